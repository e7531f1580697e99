// Package diagnosis derives an agronomic soil diagnosis from the mean pH,
// aluminum and organic matter of a municipality's samples.
package diagnosis

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/solvmetria/internal/config"
	"github.com/sells-group/solvmetria/internal/model"
	"github.com/sells-group/solvmetria/internal/scorer"
)

// State is the overall severity of a diagnosis.
type State string

const (
	StateHealthy State = "healthy"
	StateAlert   State = "alert"
	StateDanger  State = "danger"
)

func (s State) rank() int {
	switch s {
	case StateDanger:
		return 2
	case StateAlert:
		return 1
	default:
		return 0
	}
}

// escalate returns the more severe of s and to. States never go down.
func (s State) escalate(to State) State {
	if to.rank() > s.rank() {
		return to
	}
	return s
}

// Indicator names one of the key soil measurements.
type Indicator string

const (
	IndicatorPH            Indicator = "pH"
	IndicatorAluminum      Indicator = "Aluminio"
	IndicatorOrganicMatter Indicator = "Materia Orgánica"
	// IndicatorGeneral tags messages not tied to a single measurement.
	IndicatorGeneral Indicator = "general"
)

// Severity grades a single warning.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
	SeverityMissing Severity = "missing"
)

// Warning is one diagnosis message.
type Warning struct {
	Indicator Indicator `json:"indicator"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
}

// Messages shown to end users.
const (
	MsgInsufficient = "Advertencia: No hay datos completos o suficientes para generar un diagnóstico agronómico para este municipio. Se requiere recolectar más muestras."
	MsgOptimal      = "El suelo presenta condiciones óptimas en las variables clave."
)

// Result is the outcome of Diagnose. A nil mean was not computable.
type Result struct {
	Warnings          []Warning `json:"warnings"`
	State             State     `json:"state"`
	MeanPH            *float64  `json:"mean_ph"`
	MeanAluminum      *float64  `json:"mean_aluminum"`
	MeanOrganicMatter *float64  `json:"mean_organic_matter"`
	// Insufficient is set when no sample carries any key measurement.
	Insufficient bool `json:"insufficient"`
	// Samples counts the rows the means were taken over.
	Samples int `json:"samples"`
}

// Messages returns the warning texts in order.
func (r Result) Messages() []string {
	out := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		out[i] = w.Message
	}
	return out
}

// HasSeverity reports whether any warning carries sev.
func (r Result) HasSeverity(sev Severity) bool {
	for _, w := range r.Warnings {
		if w.Severity == sev {
			return true
		}
	}
	return false
}

// Insufficient returns the terminal result for a subset with no usable data.
func Insufficient() Result {
	return Result{
		Warnings: []Warning{{
			Indicator: IndicatorGeneral,
			Severity:  SeverityDanger,
			Message:   MsgInsufficient,
		}},
		State:        StateDanger,
		Insufficient: true,
	}
}

// Diagnose evaluates set against the thresholds in p. Means are taken over
// rows with at least one key value; a row need not carry all three.
func Diagnose(set model.SampleSet, p config.ScoringConfig) Result {
	var valid []model.SoilSample
	for _, s := range set.Samples {
		if s.HasKeyValue() {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		zap.L().Debug("diagnosis: insufficient data",
			zap.String("region", set.Region),
			zap.String("municipality", set.Municipality),
			zap.Int("rows", set.Len()),
		)
		return Insufficient()
	}

	validSet := model.NewSampleSet(set.Location, valid)
	res := Result{
		Warnings:          []Warning{},
		State:             StateHealthy,
		MeanPH:            mean(validSet.PH()),
		MeanAluminum:      mean(validSet.Aluminum()),
		MeanOrganicMatter: mean(validSet.OrganicMatter()),
		Samples:           len(valid),
	}

	res.checkPH(p)
	res.checkAluminum(p)
	res.checkOrganicMatter(p)

	if res.State == StateHealthy && !res.HasSeverity(SeverityMissing) {
		res.add(IndicatorGeneral, SeverityInfo, StateHealthy, MsgOptimal)
	}

	zap.L().Debug("diagnosis: evaluated",
		zap.String("region", set.Region),
		zap.String("municipality", set.Municipality),
		zap.String("state", string(res.State)),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res
}

func (r *Result) add(ind Indicator, sev Severity, state State, msg string) {
	r.Warnings = append(r.Warnings, Warning{Indicator: ind, Severity: sev, Message: msg})
	r.State = r.State.escalate(state)
}

func (r *Result) missing(ind Indicator) {
	r.add(ind, SeverityMissing, StateAlert,
		fmt.Sprintf("%s: Dato Ausente. No se pudo calcular el promedio.", ind))
}

func (r *Result) checkPH(p config.ScoringConfig) {
	if r.MeanPH == nil {
		r.missing(IndicatorPH)
		return
	}
	ph := *r.MeanPH
	switch {
	case ph < p.PHMin || ph > p.PHMax:
		r.add(IndicatorPH, SeverityDanger, StateDanger,
			fmt.Sprintf("pH: Fuera de Rango Extremo (%.2f).", ph))
	case ph < scorer.AcidicPH:
		r.add(IndicatorPH, SeverityWarning, StateAlert,
			fmt.Sprintf("pH: Ácido (%.2f). Requiere enmiendas como cal.", ph))
	}
}

func (r *Result) checkAluminum(p config.ScoringConfig) {
	if r.MeanAluminum == nil {
		r.missing(IndicatorAluminum)
		return
	}
	if al := *r.MeanAluminum; al > p.AlToxic {
		r.add(IndicatorAluminum, SeverityDanger, StateDanger,
			fmt.Sprintf("Aluminio: Tóxico (%.2f).", al))
	}
}

func (r *Result) checkOrganicMatter(p config.ScoringConfig) {
	if r.MeanOrganicMatter == nil {
		r.missing(IndicatorOrganicMatter)
		return
	}
	if om := *r.MeanOrganicMatter; om < p.OMLow {
		r.add(IndicatorOrganicMatter, SeverityWarning, StateAlert,
			fmt.Sprintf("Materia Orgánica: Baja (%.2f). Sugerimos mejorar la fertilidad.", om))
	}
}

func mean(values []*float64) *float64 {
	present := model.Present(values)
	if len(present) == 0 {
		return nil
	}
	var sum float64
	for _, v := range present {
		sum += v
	}
	m := sum / float64(len(present))
	return &m
}
