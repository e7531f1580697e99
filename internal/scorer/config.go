// Package scorer computes the Data Quality Index (ICD) of a municipality's
// soil samples.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solvmetria/internal/config"
)

// Fixed agronomic constants that are not user-adjustable.
const (
	// AcidicPH is the plausible-but-acidic pH threshold used by the diagnosis.
	AcidicPH = 5.5
	// AlPrecisionFloor marks aluminum readings below instrument precision.
	AlPrecisionFloor = 0.01
)

// ErrInvalidParams marks a parameter set that failed ValidateParams.
var ErrInvalidParams = eris.New("scorer: invalid scoring params")

// DefaultParams returns a fresh config.ScoringConfig with the stock ICD
// thresholds and penalties. Each call returns a new value.
func DefaultParams() config.ScoringConfig {
	return config.ScoringConfig{
		// Penalties (points).
		NullPHPenalty:       20,
		NullAlPenalty:       20,
		IncoherentPHPenalty: 30,
		AnomalyPenalty:      15,
		LowPrecisionPenalty: 10,
		StalenessPenalty:    20,

		// Thresholds.
		PHMin:           3.0,
		PHMax:           10.0,
		AlToxic:         1.0,
		OMLow:           2.0,
		MaxOutlierRate:  0.10,
		StaleCutoffYear: 2018,
	}
}

// PenaltySum returns the sum of all penalty weights.
func PenaltySum(p config.ScoringConfig) float64 {
	return p.NullPHPenalty + p.NullAlPenalty + p.IncoherentPHPenalty +
		p.AnomalyPenalty + p.LowPrecisionPenalty + p.StalenessPenalty
}

// ValidateParams checks that a ScoringConfig is internally consistent.
func ValidateParams(p config.ScoringConfig) error {
	var errs []string

	// NaN slips past every comparison below.
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"null_ph_penalty", p.NullPHPenalty},
		{"null_al_penalty", p.NullAlPenalty},
		{"incoherent_ph_penalty", p.IncoherentPHPenalty},
		{"anomaly_penalty", p.AnomalyPenalty},
		{"low_precision_penalty", p.LowPrecisionPenalty},
		{"staleness_penalty", p.StalenessPenalty},
		{"ph_min", p.PHMin},
		{"ph_max", p.PHMax},
		{"al_toxic", p.AlToxic},
		{"om_low", p.OMLow},
		{"max_outlier_rate", p.MaxOutlierRate},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			errs = append(errs, fmt.Sprintf("%s must be a finite number", f.name))
		}
	}

	// All penalties must be non-negative.
	penalties := []struct {
		name  string
		value float64
	}{
		{"null_ph_penalty", p.NullPHPenalty},
		{"null_al_penalty", p.NullAlPenalty},
		{"incoherent_ph_penalty", p.IncoherentPHPenalty},
		{"anomaly_penalty", p.AnomalyPenalty},
		{"low_precision_penalty", p.LowPrecisionPenalty},
		{"staleness_penalty", p.StalenessPenalty},
	}
	for _, pen := range penalties {
		if pen.value < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", pen.name))
		}
	}

	// pH coherence window.
	if p.PHMin < 0 || p.PHMax > 14 {
		errs = append(errs, "ph_min and ph_max must lie within 0-14")
	}
	if p.PHMax <= p.PHMin {
		errs = append(errs, "ph_max must be > ph_min")
	}

	if p.AlToxic < 0 {
		errs = append(errs, "al_toxic must be >= 0")
	}
	if p.OMLow < 0 {
		errs = append(errs, "om_low must be >= 0")
	}
	if p.MaxOutlierRate < 0 || p.MaxOutlierRate > 1 {
		errs = append(errs, "max_outlier_rate must be between 0 and 1")
	}
	if p.StaleCutoffYear < 1900 || p.StaleCutoffYear > 2200 {
		errs = append(errs, "stale_cutoff_year must be between 1900 and 2200")
	}

	if len(errs) > 0 {
		return eris.Wrapf(ErrInvalidParams, "scorer: params validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
