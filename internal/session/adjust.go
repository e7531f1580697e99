package session

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solvmetria/internal/config"
	"github.com/sells-group/solvmetria/internal/scorer"
)

// ErrOutOfBounds marks an adjustment outside its slider range.
var ErrOutOfBounds = eris.New("session: adjustment out of bounds")

// Limit is the permitted range of one adjustable parameter.
type Limit struct {
	Field string  `json:"field"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Step  float64 `json:"step"`
}

// Limits lists the expert-adjustable parameters and their ranges.
var Limits = []Limit{
	{Field: "null_ph_penalty", Min: 0, Max: 50, Step: 1},
	{Field: "incoherent_ph_penalty", Min: 0, Max: 50, Step: 1},
	{Field: "anomaly_penalty", Min: 0, Max: 50, Step: 1},
	{Field: "staleness_penalty", Min: 0, Max: 50, Step: 1},
	{Field: "ph_min", Min: 2.0, Max: 5.0, Step: 0.1},
	{Field: "max_outlier_rate", Min: 0.01, Max: 0.20, Step: 0.01},
}

// Adjustment is a partial parameter update. Nil fields are left unchanged.
type Adjustment struct {
	NullPHPenalty       *float64 `json:"null_ph_penalty,omitempty"`
	IncoherentPHPenalty *float64 `json:"incoherent_ph_penalty,omitempty"`
	AnomalyPenalty      *float64 `json:"anomaly_penalty,omitempty"`
	StalenessPenalty    *float64 `json:"staleness_penalty,omitempty"`
	PHMin               *float64 `json:"ph_min,omitempty"`
	MaxOutlierRate      *float64 `json:"max_outlier_rate,omitempty"`
}

// Empty reports whether adj changes nothing.
func (a Adjustment) Empty() bool {
	return a.NullPHPenalty == nil && a.IncoherentPHPenalty == nil && a.AnomalyPenalty == nil &&
		a.StalenessPenalty == nil && a.PHMin == nil && a.MaxOutlierRate == nil
}

// Apply returns p with adj applied. Every set field must lie within its
// Limit and the result must pass scorer.ValidateParams.
func (a Adjustment) Apply(p config.ScoringConfig) (config.ScoringConfig, error) {
	orig := p
	fields := []struct {
		value *float64
		dst   *float64
	}{
		{a.NullPHPenalty, &p.NullPHPenalty},
		{a.IncoherentPHPenalty, &p.IncoherentPHPenalty},
		{a.AnomalyPenalty, &p.AnomalyPenalty},
		{a.StalenessPenalty, &p.StalenessPenalty},
		{a.PHMin, &p.PHMin},
		{a.MaxOutlierRate, &p.MaxOutlierRate},
	}

	var errs []string
	for i, f := range fields {
		if f.value == nil {
			continue
		}
		lim := Limits[i]
		if v := *f.value; math.IsNaN(v) || v < lim.Min || v > lim.Max {
			errs = append(errs, fmt.Sprintf("%s must be between %g and %g", lim.Field, lim.Min, lim.Max))
			continue
		}
		*f.dst = *f.value
	}
	if len(errs) > 0 {
		return orig, eris.Wrapf(ErrOutOfBounds, "session: %s", strings.Join(errs, "; "))
	}

	if err := scorer.ValidateParams(p); err != nil {
		return orig, err
	}
	return p, nil
}
