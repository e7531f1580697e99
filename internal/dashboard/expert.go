package dashboard

import (
	"github.com/sells-group/solvmetria/internal/config"
	"github.com/sells-group/solvmetria/internal/model"
	"github.com/sells-group/solvmetria/internal/scorer"
	"github.com/sells-group/solvmetria/internal/session"
)

// ExpertView shows the ICD under the session's working parameters along
// with the controls to tune them.
type ExpertView struct {
	Params         config.ScoringConfig `json:"params"`
	Defaults       config.ScoringConfig `json:"defaults"`
	Score          int                  `json:"score"`
	Tier           scorer.Tier          `json:"tier"`
	Breakdown      scorer.Breakdown     `json:"breakdown"`
	Limits         []session.Limit      `json:"limits"`
	ReportURL      string               `json:"report_url"`
	ReportFilename string               `json:"report_filename"`
}

// Expert builds the expert view. defaults are what a reset restores.
func Expert(set model.SampleSet, sess session.Session, defaults config.ScoringConfig) ExpertView {
	res := scoreSet(set, sess)

	return ExpertView{
		Params:         sess.Params,
		Defaults:       defaults,
		Score:          res.Score,
		Tier:           res.Tier,
		Breakdown:      res.Breakdown,
		Limits:         session.Limits,
		ReportURL:      ReportPath(sess.ID, set.Municipality),
		ReportFilename: scorer.ReportFilename(set.Municipality),
	}
}
