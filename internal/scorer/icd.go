package scorer

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/solvmetria/internal/config"
	"github.com/sells-group/solvmetria/internal/model"
	"github.com/sells-group/solvmetria/internal/outlier"
)

// Tier is the letter grade derived from the ICD score.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

// Tier cut-offs.
const (
	HighTierMin   = 80
	MediumTierMin = 50
	maxScore      = 100
)

// TierFor maps a score to its tier.
func TierFor(score int) Tier {
	switch {
	case score >= HighTierMin:
		return TierHigh
	case score >= MediumTierMin:
		return TierMedium
	default:
		return TierLow
	}
}

// Result is the ICD of one sample set under one parameter set.
type Result struct {
	Score       int       `json:"score"`
	Tier        Tier      `json:"tier"`
	Breakdown   Breakdown `json:"breakdown"`
	Samples     int       `json:"samples"`
	OutlierRate float64   `json:"outlier_rate"`
}

// Score computes the ICD for set under p. It starts from 100 and subtracts
// every applicable penalty; criteria are independent and cumulative.
// The function is pure: the same inputs always give the same Result.
func Score(set model.SampleSet, p config.ScoringConfig) Result {
	if set.Empty() {
		return Result{Score: 0, Tier: TierLow, Breakdown: Breakdown{}}
	}

	total := float64(set.Len())
	ph := set.PH()
	al := set.Aluminum()
	breakdown := Breakdown{}

	// Completeness of pH and aluminum.
	breakdown = appendNullPenalty(breakdown, ph, p.NullPHPenalty, PenaltyPHNullTotal, PenaltyPHNullPartial)
	breakdown = appendNullPenalty(breakdown, al, p.NullAlPenalty, PenaltyAlNullTotal, PenaltyAlNullPartial)

	// Coherence: physically impossible pH.
	presentPH := model.Present(ph)
	if len(presentPH) > 0 && anyOutside(presentPH, p.PHMin, p.PHMax) {
		breakdown = appendPenalty(breakdown, PenaltyPHIncoherent, p.IncoherentPHPenalty)
	}

	// Anomalies: IQR outlier rate of pH over all rows.
	rep := outlier.DetectIQR(ph)
	rate := float64(rep.Count) / total
	if rate > p.MaxOutlierRate {
		breakdown = appendPenalty(breakdown, PenaltyPHOutliers, p.AnomalyPenalty)
	}

	// Precision: aluminum below the instrument floor.
	if anyBelow(model.Present(al), AlPrecisionFloor) {
		breakdown = appendPenalty(breakdown, PenaltyAlLowPrecision, p.LowPrecisionPenalty)
	}

	// Freshness: analyses older than the cutoff year.
	if anyStale(set.Samples, p.StaleCutoffYear) {
		breakdown = appendPenalty(breakdown, PenaltyStaleDate, p.StalenessPenalty)
	}

	score := int(math.RoundToEven(maxScore - breakdown.Total()))
	score = max(0, min(maxScore, score))

	zap.L().Debug("scorer: icd computed",
		zap.String("region", set.Region),
		zap.String("municipality", set.Municipality),
		zap.Int("samples", set.Len()),
		zap.Int("score", score),
		zap.Int("penalties", len(breakdown)),
	)

	return Result{
		Score:       score,
		Tier:        TierFor(score),
		Breakdown:   breakdown,
		Samples:     set.Len(),
		OutlierRate: rate,
	}
}

// appendNullPenalty deducts the full weight when every value is missing and a
// prorated share when only some are.
func appendNullPenalty(b Breakdown, values []*float64, weight float64, totalKind, partialKind PenaltyKind) Breakdown {
	missing := model.CountMissing(values)
	switch {
	case missing == 0:
		return b
	case missing == len(values):
		return appendPenalty(b, totalKind, weight)
	default:
		return appendPenalty(b, partialKind, weight*float64(missing)/float64(len(values)))
	}
}

// appendPenalty records a deduction; zero deductions are omitted.
func appendPenalty(b Breakdown, kind PenaltyKind, points float64) Breakdown {
	if points == 0 {
		return b
	}
	return append(b, Penalty{Kind: kind, Points: points})
}

func anyOutside(values []float64, lo, hi float64) bool {
	for _, v := range values {
		if v < lo || v > hi {
			return true
		}
	}
	return false
}

func anyBelow(values []float64, floor float64) bool {
	for _, v := range values {
		if v < floor {
			return true
		}
	}
	return false
}

func anyStale(samples []model.SoilSample, cutoffYear int) bool {
	for _, s := range samples {
		if year, ok := s.AnalysisYear(); ok && year < cutoffYear {
			return true
		}
	}
	return false
}
