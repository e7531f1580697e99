package scorer

import (
	"github.com/sells-group/solvmetria/internal/config"
	"github.com/sells-group/solvmetria/internal/model"
	"github.com/sells-group/solvmetria/internal/outlier"
)

// ProblemReason explains why a single row lowers data quality.
type ProblemReason string

const (
	ReasonPHMissing ProblemReason = "ph_missing"
	ReasonAlMissing ProblemReason = "al_missing"
	ReasonPHOutlier ProblemReason = "ph_outlier"
	ReasonStaleDate ProblemReason = "stale_date"
)

// ProblemRow is a sample flagged by at least one row-level check.
type ProblemRow struct {
	Sample  model.SoilSample `json:"sample"`
	Reasons []ProblemReason  `json:"reasons"`
}

// ProblemRows lists the samples of set that are missing pH or aluminum, are
// pH IQR outliers, or were analysed before the staleness cutoff. Rows keep
// their order in set.
func ProblemRows(set model.SampleSet, p config.ScoringConfig) []ProblemRow {
	outliers := outlier.DetectIQR(set.PH()).Indexes()

	rows := []ProblemRow{}
	for i, s := range set.Samples {
		var reasons []ProblemReason
		if s.PH == nil {
			reasons = append(reasons, ReasonPHMissing)
		}
		if s.Aluminum == nil {
			reasons = append(reasons, ReasonAlMissing)
		}
		if outliers[i] {
			reasons = append(reasons, ReasonPHOutlier)
		}
		if year, ok := s.AnalysisYear(); ok && year < p.StaleCutoffYear {
			reasons = append(reasons, ReasonStaleDate)
		}
		if len(reasons) > 0 {
			rows = append(rows, ProblemRow{Sample: s, Reasons: reasons})
		}
	}
	return rows
}
