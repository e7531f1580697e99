package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solvmetria/internal/dataset"
	"github.com/sells-group/solvmetria/internal/diagnosis"
	"github.com/sells-group/solvmetria/internal/model"
	"github.com/sells-group/solvmetria/internal/scorer"
)

// staticSource implements DatasetSource for testing.
type staticSource struct {
	ds  *dataset.Dataset
	err error
}

func (s *staticSource) Get(context.Context) (*dataset.Dataset, error) {
	return s.ds, s.err
}

func at(region, muni string, ph, al *float64, year int) model.SoilSample {
	return model.SoilSample{
		Region: region, Municipality: muni,
		PH: ph, Aluminum: al, OrganicMatter: model.Float(3),
		AnalysisDate: model.Date(year, time.January, 15),
	}
}

func f(v float64) *float64 { return model.Float(v) }

// testDataset has one clean municipality, one with stale and partially
// missing data, and one with no usable values at all.
func testDataset() *dataset.Dataset {
	return dataset.New("test.csv", []model.SoilSample{
		at("Antioquia", "Rionegro", f(6.0), f(0.5), 2020),
		at("Antioquia", "Rionegro", f(6.2), f(0.4), 2021),
		at("Antioquia", "Rionegro", f(6.1), f(0.3), 2022),
		at("Boyacá", "Tunja", f(5.0), nil, 2010),
		at("Boyacá", "Tunja", f(5.2), f(1.5), 2011),
		{Region: "Cauca", Municipality: "Popayán"},
	})
}

func TestEvaluate(t *testing.T) {
	results, err := Evaluate(context.Background(), testDataset(), scorer.DefaultParams(), 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	byMuni := map[string]MunicipalityQuality{}
	for _, r := range results {
		byMuni[r.Municipality] = r
	}

	assert.Equal(t, 100, byMuni["Rionegro"].Score)
	assert.Equal(t, scorer.TierHigh, byMuni["Rionegro"].Tier)
	assert.Equal(t, diagnosis.StateHealthy, byMuni["Rionegro"].State)
	assert.Equal(t, 3, byMuni["Rionegro"].Samples)

	// 100 - 10 (half the aluminum missing) - 20 (stale) = 70
	assert.Equal(t, 70, byMuni["Tunja"].Score)
	assert.Equal(t, diagnosis.StateDanger, byMuni["Tunja"].State)
	assert.Equal(t, 2, byMuni["Tunja"].Penalties)

	assert.True(t, byMuni["Popayán"].Insufficient)
	assert.Equal(t, scorer.TierMedium, byMuni["Popayán"].Tier)
}

func TestEvaluate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Evaluate(ctx, testDataset(), scorer.DefaultParams(), 1)
	require.Error(t, err)
	assert.True(t, eris.Is(err, context.Canceled))
}

func TestCollector_Snapshot(t *testing.T) {
	c := NewCollector(&staticSource{ds: testDataset()}, scorer.DefaultParams(), 4)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "test.csv", snap.Source)
	assert.Empty(t, snap.LoadError)
	assert.Equal(t, 6, snap.Samples)
	assert.Equal(t, 3, snap.Municipalities)
	assert.Equal(t, 1, snap.Insufficient)
	assert.Equal(t, 1, snap.TierCounts[scorer.TierHigh])
	assert.Equal(t, 2, snap.TierCounts[scorer.TierMedium])
	assert.Equal(t, 2, snap.StateCounts[diagnosis.StateDanger])
	assert.InDelta(t, 0.0, snap.LowTierShare, 1e-9)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollector_LoadError(t *testing.T) {
	src := &staticSource{
		ds:  dataset.Empty("missing.csv"),
		err: eris.Wrap(dataset.ErrMissingSource, "dataset: missing.csv"),
	}
	c := NewCollector(src, scorer.DefaultParams(), 0)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "missing.csv", snap.Source)
	assert.Contains(t, snap.LoadError, "missing.csv")
	assert.Zero(t, snap.Municipalities)
	assert.NotNil(t, snap.Results)
}

func TestCollector_EmptyDataset(t *testing.T) {
	c := NewCollector(&staticSource{ds: dataset.Empty("empty.csv")}, scorer.DefaultParams(), 0)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.Municipalities)
	assert.InDelta(t, 0.0, snap.AvgScore, 1e-9)
}
