package dashboard

import (
	"github.com/sells-group/solvmetria/internal/model"
	"github.com/sells-group/solvmetria/internal/scorer"
	"github.com/sells-group/solvmetria/internal/session"
)

// IntermediateView explains where the ICD points were lost.
type IntermediateView struct {
	Score        int                 `json:"score"`
	Tier         scorer.Tier         `json:"tier"`
	Breakdown    scorer.Breakdown    `json:"breakdown"`
	ProblemCount int                 `json:"problem_count"`
	ProblemRows  []scorer.ProblemRow `json:"problem_rows"`
	MapURL       string              `json:"map_url"`
}

// Intermediate builds the intermediate view. Penalties are sorted by points,
// largest first; only the first ProblemPreview problem rows are listed.
func Intermediate(set model.SampleSet, sess session.Session) IntermediateView {
	res := scoreSet(set, sess)
	problems := scorer.ProblemRows(set, sess.Params)

	return IntermediateView{
		Score:        res.Score,
		Tier:         res.Tier,
		Breakdown:    res.Breakdown.SortedByPoints(),
		ProblemCount: len(problems),
		ProblemRows:  problems[:min(len(problems), ProblemPreview)],
		MapURL:       MapURL(set.Location),
	}
}
