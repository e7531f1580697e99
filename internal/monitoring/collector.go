package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/solvmetria/internal/config"
	"github.com/sells-group/solvmetria/internal/dataset"
	"github.com/sells-group/solvmetria/internal/diagnosis"
	"github.com/sells-group/solvmetria/internal/model"
	"github.com/sells-group/solvmetria/internal/scorer"
)

const defaultConcurrency = 8

// MunicipalityQuality is the ICD and diagnosis state of one municipality.
type MunicipalityQuality struct {
	model.Location
	Samples      int             `json:"samples"`
	Score        int             `json:"score"`
	Tier         scorer.Tier     `json:"tier"`
	Penalties    int             `json:"penalties"`
	State        diagnosis.State `json:"state"`
	Insufficient bool            `json:"insufficient"`
}

// QualitySnapshot holds a point-in-time view of data quality across every
// municipality of the dataset.
type QualitySnapshot struct {
	Source         string                  `json:"source"`
	LoadError      string                  `json:"load_error,omitempty"`
	Samples        int                     `json:"samples"`
	Municipalities int                     `json:"municipalities"`
	AvgScore       float64                 `json:"avg_score"`
	LowTierShare   float64                 `json:"low_tier_share"`
	Insufficient   int                     `json:"insufficient"`
	TierCounts     map[scorer.Tier]int     `json:"tier_counts"`
	StateCounts    map[diagnosis.State]int `json:"state_counts"`
	Results        []MunicipalityQuality   `json:"results"`
	CollectedAt    time.Time               `json:"collected_at"`
}

// DatasetSource hands out the current dataset. *dataset.Cache satisfies it.
type DatasetSource interface {
	Get(ctx context.Context) (*dataset.Dataset, error)
}

// Collector scores every municipality of the dataset.
type Collector struct {
	source      DatasetSource
	params      config.ScoringConfig
	concurrency int
}

// NewCollector creates a collector scoring with params.
func NewCollector(src DatasetSource, params config.ScoringConfig, concurrency int) *Collector {
	return &Collector{source: src, params: params, concurrency: concurrency}
}

// Collect gathers a quality snapshot. A dataset that fails to load yields a
// snapshot carrying LoadError rather than an error.
func (c *Collector) Collect(ctx context.Context) (*QualitySnapshot, error) {
	snap := &QualitySnapshot{
		TierCounts:  map[scorer.Tier]int{},
		StateCounts: map[diagnosis.State]int{},
		Results:     []MunicipalityQuality{},
		CollectedAt: time.Now().UTC(),
	}

	ds, err := c.source.Get(ctx)
	if ds != nil {
		snap.Source = ds.Source()
	}
	if err != nil {
		snap.LoadError = err.Error()
		return snap, nil
	}

	results, err := Evaluate(ctx, ds, c.params, c.concurrency)
	if err != nil {
		return nil, err
	}

	snap.Samples = ds.Len()
	snap.Municipalities = len(results)
	snap.Results = results

	var total float64
	for _, r := range results {
		total += float64(r.Score)
		snap.TierCounts[r.Tier]++
		snap.StateCounts[r.State]++
		if r.Insufficient {
			snap.Insufficient++
		}
	}
	if len(results) > 0 {
		snap.AvgScore = total / float64(len(results))
		snap.LowTierShare = float64(snap.TierCounts[scorer.TierLow]) / float64(len(results))
	}
	return snap, nil
}

// Evaluate scores and diagnoses every location of ds with up to concurrency
// workers. Results keep the order of ds.Locations.
func Evaluate(ctx context.Context, ds *dataset.Dataset, params config.ScoringConfig, concurrency int) ([]MunicipalityQuality, error) {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	locs := ds.Locations()
	results := make([]MunicipalityQuality, len(locs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, loc := range locs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			set := ds.Filter(loc.Region, loc.Municipality)
			res := scorer.Score(set, params)
			diag := diagnosis.Diagnose(set, params)
			results[i] = MunicipalityQuality{
				Location:     loc,
				Samples:      set.Len(),
				Score:        res.Score,
				Tier:         res.Tier,
				Penalties:    len(res.Breakdown),
				State:        diag.State,
				Insufficient: diag.Insufficient,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "monitoring: evaluate municipalities")
	}

	zap.L().Debug("monitoring: municipalities evaluated",
		zap.Int("municipalities", len(results)),
		zap.Int("concurrency", concurrency),
	)
	return results, nil
}
