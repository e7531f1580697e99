package scorer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solvmetria/internal/model"
)

func TestMarshalReport(t *testing.T) {
	p := DefaultParams()
	p.MaxOutlierRate = 0.15

	b, err := MarshalReport(p)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 13)
	assert.Equal(t, "parameter,value", lines[0])
	assert.Equal(t, "null_ph_penalty,20", lines[1])
	assert.Equal(t, "ph_min,3", lines[7])
	assert.Equal(t, "max_outlier_rate,0.15", lines[11])
	assert.Equal(t, "stale_cutoff_year,2018", lines[12])
}

func TestReportFilename(t *testing.T) {
	assert.Equal(t, "ICD_Reglas_Rionegro.csv", ReportFilename("Rionegro"))
	assert.Equal(t, "ICD_Reglas.csv", ReportFilename(""))
}

func TestLoadParamsFile_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("anomaly_penalty: 40\nph_min: 3.5\n"), 0o644))

	p, err := LoadParamsFile(path, DefaultParams())
	require.NoError(t, err)
	assert.InDelta(t, 40.0, p.AnomalyPenalty, 1e-9)
	assert.InDelta(t, 3.5, p.PHMin, 1e-9)
	// Untouched keys keep the base values.
	assert.InDelta(t, 30.0, p.IncoherentPHPenalty, 1e-9)
	assert.Equal(t, 2018, p.StaleCutoffYear)
}

func TestLoadParamsFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("ph_min: 12\n"), 0o644))
	_, err := LoadParamsFile(bad, DefaultParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ph_max must be > ph_min")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("ph_min: [1"), 0o644))
	_, err = LoadParamsFile(broken, DefaultParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse params file")

	nan := filepath.Join(dir, "nan.yaml")
	require.NoError(t, os.WriteFile(nan, []byte("null_ph_penalty: .nan\nph_min: .nan\n"), 0o644))
	p, err := LoadParamsFile(nan, DefaultParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null_ph_penalty must be a finite number")
	assert.Contains(t, err.Error(), "ph_min must be a finite number")
	assert.Equal(t, DefaultParams(), p)

	_, err = LoadParamsFile(filepath.Join(dir, "missing.yaml"), DefaultParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read params file")
}

func TestMarshalParamsYAML_RoundTrip(t *testing.T) {
	p := DefaultParams()
	p.StalenessPenalty = 5

	b, err := MarshalParamsYAML(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), "staleness_penalty: 5")

	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	back, err := LoadParamsFile(path, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestProblemRows(t *testing.T) {
	s := set(
		sample(f(6.0), f(0.5), f(3), 2020),
		sample(nil, f(0.5), f(3), 2020),
		sample(f(6.1), nil, f(3), 2016),
		sample(f(6.2), f(0.5), f(3), 2020),
		sample(f(6.1), f(0.5), f(3), 2020),
		sample(f(14.0), f(0.5), f(3), 2020),
	)
	s.Samples[5].Row = 42

	rows := ProblemRows(s, DefaultParams())
	require.Len(t, rows, 3)
	assert.Equal(t, []ProblemReason{ReasonPHMissing}, rows[0].Reasons)
	assert.Equal(t, []ProblemReason{ReasonAlMissing, ReasonStaleDate}, rows[1].Reasons)
	assert.Equal(t, []ProblemReason{ReasonPHOutlier}, rows[2].Reasons)
	assert.Equal(t, 42, rows[2].Sample.Row)
}

func TestProblemRows_NoneFlagged(t *testing.T) {
	rows := ProblemRows(cleanSet(), DefaultParams())
	assert.Empty(t, rows)
	assert.NotNil(t, rows)

	s := cleanSet()
	s.Samples[0].AnalysisDate = model.Date(2015, time.January, 2)
	p := DefaultParams()
	p.StaleCutoffYear = 2010
	assert.Empty(t, ProblemRows(s, p))
}
