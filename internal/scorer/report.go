package scorer

import (
	"os"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/solvmetria/internal/config"
)

// ReportRow is one line of the rules report.
type ReportRow struct {
	Parameter string `csv:"parameter"`
	Value     string `csv:"value"`
}

// ReportRows flattens p into (parameter, value) pairs in a fixed order.
func ReportRows(p config.ScoringConfig) []ReportRow {
	return []ReportRow{
		{"null_ph_penalty", formatFloat(p.NullPHPenalty)},
		{"null_al_penalty", formatFloat(p.NullAlPenalty)},
		{"incoherent_ph_penalty", formatFloat(p.IncoherentPHPenalty)},
		{"anomaly_penalty", formatFloat(p.AnomalyPenalty)},
		{"low_precision_penalty", formatFloat(p.LowPrecisionPenalty)},
		{"staleness_penalty", formatFloat(p.StalenessPenalty)},
		{"ph_min", formatFloat(p.PHMin)},
		{"ph_max", formatFloat(p.PHMax)},
		{"al_toxic", formatFloat(p.AlToxic)},
		{"om_low", formatFloat(p.OMLow)},
		{"max_outlier_rate", formatFloat(p.MaxOutlierRate)},
		{"stale_cutoff_year", strconv.Itoa(p.StaleCutoffYear)},
	}
}

// MarshalReport renders the two-column CSV rules report for p.
func MarshalReport(p config.ScoringConfig) ([]byte, error) {
	b, err := csvutil.Marshal(ReportRows(p))
	if err != nil {
		return nil, eris.Wrap(err, "scorer: marshal rules report")
	}
	return b, nil
}

// ReportFilename returns the download name of the rules report for a
// municipality.
func ReportFilename(municipality string) string {
	if municipality == "" {
		return "ICD_Reglas.csv"
	}
	return "ICD_Reglas_" + municipality + ".csv"
}

// MarshalParamsYAML renders p as a standalone YAML parameter file.
func MarshalParamsYAML(p config.ScoringConfig) ([]byte, error) {
	b, err := yaml.Marshal(p)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: marshal params yaml")
	}
	return b, nil
}

// LoadParamsFile reads a YAML parameter file on top of base. Keys absent
// from the file keep base's values. The result is validated.
func LoadParamsFile(path string, base config.ScoringConfig) (config.ScoringConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, eris.Wrapf(err, "scorer: read params file %s", path)
	}
	p := base
	if err := yaml.Unmarshal(data, &p); err != nil {
		return base, eris.Wrapf(err, "scorer: parse params file %s", path)
	}
	if err := ValidateParams(p); err != nil {
		return base, err
	}
	return p, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
