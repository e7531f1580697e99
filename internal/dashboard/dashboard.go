// Package dashboard assembles the per-level views of a municipality from a
// session's working parameters and the municipality's samples.
package dashboard

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solvmetria/internal/config"
	"github.com/sells-group/solvmetria/internal/diagnosis"
	"github.com/sells-group/solvmetria/internal/model"
	"github.com/sells-group/solvmetria/internal/scorer"
	"github.com/sells-group/solvmetria/internal/session"
)

// MsgSelectLevel is returned while a session has not picked a level yet.
const MsgSelectLevel = "Seleccione su nivel de experiencia para continuar."

// ProblemPreview caps the problem rows listed in the intermediate view.
const ProblemPreview = 5

// View is the response for one session and municipality. Exactly one of
// the level views is set, or none when the session has no level.
type View struct {
	Level        session.Level     `json:"level"`
	Location     model.Location    `json:"location"`
	Message      string            `json:"message,omitempty"`
	Novice       *NoviceView       `json:"novice,omitempty"`
	Intermediate *IntermediateView `json:"intermediate,omitempty"`
	Expert       *ExpertView       `json:"expert,omitempty"`
}

// Build renders the view for sess over set. defaults are the parameters a
// reset restores, shown in the expert view.
func Build(sess session.Session, set model.SampleSet, defaults config.ScoringConfig) (View, error) {
	v := View{Level: sess.Level, Location: set.Location}

	switch sess.Level {
	case session.LevelNone:
		v.Message = MsgSelectLevel
	case session.LevelNovice:
		nv := Novice(set, sess)
		v.Novice = &nv
	case session.LevelIntermediate:
		iv := Intermediate(set, sess)
		v.Intermediate = &iv
	case session.LevelExpert:
		ev := Expert(set, sess, defaults)
		v.Expert = &ev
	default:
		return View{}, eris.Wrapf(session.ErrInvalidLevel, "dashboard: level %q", sess.Level)
	}

	zap.L().Debug("dashboard: view built",
		zap.String("session", sess.ID),
		zap.String("level", string(sess.Level)),
		zap.String("municipality", set.Municipality),
		zap.Int("samples", set.Len()),
	)
	return v, nil
}

// MapURL returns a Google Maps search link for the municipality.
func MapURL(loc model.Location) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{loc.Municipality, loc.Region} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, "Colombia")

	q := url.Values{}
	q.Set("api", "1")
	q.Set("query", strings.Join(parts, ", "))
	return "https://www.google.com/maps/search/?" + q.Encode()
}

// ReportPath is the API path of the rules report download for a session.
func ReportPath(sessionID, municipality string) string {
	p := "/api/v1/sessions/" + url.PathEscape(sessionID) + "/params/report"
	if municipality == "" {
		return p
	}
	return p + "?" + url.Values{"municipality": {municipality}}.Encode()
}

// completeSamples counts rows with both pH and aluminum present.
func completeSamples(set model.SampleSet) int {
	n := 0
	for _, s := range set.Samples {
		if s.PH != nil && s.Aluminum != nil {
			n++
		}
	}
	return n
}

func warningMessages(ws []diagnosis.Warning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Message
	}
	return out
}

func scoreSet(set model.SampleSet, sess session.Session) scorer.Result {
	return scorer.Score(set, sess.Params)
}
