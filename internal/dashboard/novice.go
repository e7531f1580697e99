package dashboard

import (
	"strconv"

	"github.com/sells-group/solvmetria/internal/config"
	"github.com/sells-group/solvmetria/internal/diagnosis"
	"github.com/sells-group/solvmetria/internal/model"
	"github.com/sells-group/solvmetria/internal/scorer"
	"github.com/sells-group/solvmetria/internal/session"
)

// Color is the risk colour of an indicator layer.
type Color string

const (
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
	ColorGray   Color = "gray"
)

// pH band considered ideal for most crops.
const (
	idealPHMin = 6.0
	idealPHMax = 7.5
)

// Layer is one indicator bar of the novice view.
type Layer struct {
	Indicator diagnosis.Indicator `json:"indicator"`
	Label     string              `json:"label"`
	Mean      *float64            `json:"mean"`
	Color     Color               `json:"color"`
}

// Recommendation is the single action suggested to a novice.
type Recommendation string

const (
	RecommendImmediateAction Recommendation = "immediate_action"
	RecommendMonitoring      Recommendation = "monitoring"
	RecommendMaintenance     Recommendation = "maintenance"
	RecommendCollectSamples  Recommendation = "collect_samples"
)

var recommendationText = map[Recommendation]string{
	RecommendImmediateAction: "ACCIÓN INMEDIATA: Aplique cal o enmiendas para corregir la acidez y reducir el aluminio tóxico. Consulte a un agrónomo.",
	RecommendMonitoring:      "MONITOREO: Considere agregar abono orgánico para subir la Materia Orgánica y revise el pH en el próximo ciclo.",
	RecommendMaintenance:     "MANTENIMIENTO: Las condiciones son favorables. Continúe con las prácticas agrícolas actuales.",
	RecommendCollectSamples:  "IMPOSIBLE SUGERIR: No hay datos de muestras de suelo válidos para hacer una recomendación. La acción inmediata es recolectar muestras.",
}

// Text returns the message shown for r.
func (r Recommendation) Text() string { return recommendationText[r] }

// NoviceView is the quick diagnosis for new users. ICD is nil when the data
// is insufficient.
type NoviceView struct {
	ICD                *int            `json:"icd"`
	Tier               scorer.Tier     `json:"tier"`
	Insufficient       bool            `json:"insufficient"`
	State              diagnosis.State `json:"state"`
	Layers             []Layer         `json:"layers"`
	Warnings           []string        `json:"warnings"`
	Recommendation     Recommendation  `json:"recommendation"`
	RecommendationText string          `json:"recommendation_text"`
	ValidSamples       int             `json:"valid_samples"`
	MapURL             string          `json:"map_url"`
}

// ICDLabel renders the ICD as "NN%" or "N/A".
func (v NoviceView) ICDLabel() string {
	if v.ICD == nil {
		return "N/A"
	}
	return strconv.Itoa(*v.ICD) + "%"
}

// Novice builds the novice view.
func Novice(set model.SampleSet, sess session.Session) NoviceView {
	diag := diagnosis.Diagnose(set, sess.Params)
	valid := completeSamples(set)
	insufficient := diag.Insufficient || set.Empty() || valid == 0

	v := NoviceView{
		State:        diag.State,
		Insufficient: insufficient,
		Warnings:     warningMessages(diag.Warnings),
		ValidSamples: valid,
		MapURL:       MapURL(set.Location),
	}

	if insufficient {
		v.Tier = scorer.TierLow
		v.Layers = layers(diagnosis.Result{}, sess.Params, true)
		v.Recommendation = RecommendCollectSamples
	} else {
		res := scoreSet(set, sess)
		v.ICD = &res.Score
		v.Tier = res.Tier
		v.Layers = layers(diag, sess.Params, false)
		v.Recommendation = recommend(diag.State)
	}
	v.RecommendationText = v.Recommendation.Text()
	return v
}

func recommend(s diagnosis.State) Recommendation {
	switch s {
	case diagnosis.StateDanger:
		return RecommendImmediateAction
	case diagnosis.StateAlert:
		return RecommendMonitoring
	default:
		return RecommendMaintenance
	}
}

func layers(d diagnosis.Result, p config.ScoringConfig, gray bool) []Layer {
	out := []Layer{
		{Indicator: diagnosis.IndicatorPH, Label: "Nivel de Acidez (pH)", Mean: d.MeanPH},
		{Indicator: diagnosis.IndicatorAluminum, Label: "Nivel de Toxicidad (Aluminio)", Mean: d.MeanAluminum},
		{Indicator: diagnosis.IndicatorOrganicMatter, Label: "Nivel de Fertilidad (Materia Orgánica)", Mean: d.MeanOrganicMatter},
	}
	for i := range out {
		if gray || out[i].Mean == nil {
			out[i].Mean = nil
			out[i].Color = ColorGray
			continue
		}
		out[i].Color = layerColor(out[i].Indicator, *out[i].Mean, p)
	}
	return out
}

func layerColor(ind diagnosis.Indicator, v float64, p config.ScoringConfig) Color {
	switch ind {
	case diagnosis.IndicatorPH:
		switch {
		case v < scorer.AcidicPH || v > idealPHMax:
			return ColorRed
		case v < idealPHMin:
			return ColorYellow
		}
	case diagnosis.IndicatorAluminum:
		if v > p.AlToxic {
			return ColorRed
		}
	case diagnosis.IndicatorOrganicMatter:
		if v < p.OMLow {
			return ColorYellow
		}
	}
	return ColorGreen
}
