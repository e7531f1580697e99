package scorer

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// PenaltyKind enumerates the ICD deduction criteria.
type PenaltyKind int

const (
	PenaltyPHNullTotal PenaltyKind = iota + 1
	PenaltyPHNullPartial
	PenaltyAlNullTotal
	PenaltyAlNullPartial
	PenaltyPHIncoherent
	PenaltyPHOutliers
	PenaltyAlLowPrecision
	PenaltyStaleDate
)

// AllPenaltyKinds lists every kind in evaluation order.
var AllPenaltyKinds = []PenaltyKind{
	PenaltyPHNullTotal,
	PenaltyPHNullPartial,
	PenaltyAlNullTotal,
	PenaltyAlNullPartial,
	PenaltyPHIncoherent,
	PenaltyPHOutliers,
	PenaltyAlLowPrecision,
	PenaltyStaleDate,
}

var penaltyKeys = map[PenaltyKind]string{
	PenaltyPHNullTotal:    "ph_null_total",
	PenaltyPHNullPartial:  "ph_null_partial",
	PenaltyAlNullTotal:    "al_null_total",
	PenaltyAlNullPartial:  "al_null_partial",
	PenaltyPHIncoherent:   "ph_incoherent",
	PenaltyPHOutliers:     "ph_outliers",
	PenaltyAlLowPrecision: "al_low_precision",
	PenaltyStaleDate:      "stale_date",
}

var penaltyLabels = map[PenaltyKind]string{
	PenaltyPHNullTotal:    "Compleción (pH Nulo Total)",
	PenaltyPHNullPartial:  "Compleción (pH Nulo Parcial)",
	PenaltyAlNullTotal:    "Compleción (Aluminio Nulo Total)",
	PenaltyAlNullPartial:  "Compleción (Aluminio Nulo Parcial)",
	PenaltyPHIncoherent:   "Coherencia (pH Imposible)",
	PenaltyPHOutliers:     "Anomalías (Outliers pH IQR)",
	PenaltyAlLowPrecision: "Precisión (Al bajo)",
	PenaltyStaleDate:      "Actualidad (Fecha Antigua)",
}

// String returns the stable machine key of the kind.
func (k PenaltyKind) String() string {
	if s, ok := penaltyKeys[k]; ok {
		return s
	}
	return "unknown"
}

// Label returns the human-readable criterion name shown in the dashboard.
func (k PenaltyKind) Label() string {
	return penaltyLabels[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k PenaltyKind) MarshalText() ([]byte, error) {
	if _, ok := penaltyKeys[k]; !ok {
		return nil, eris.Errorf("scorer: unknown penalty kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PenaltyKind) UnmarshalText(b []byte) error {
	for kind, key := range penaltyKeys {
		if key == string(b) {
			*k = kind
			return nil
		}
	}
	return eris.Errorf("scorer: unknown penalty kind %q", string(b))
}

// Penalty is one deduction applied to the ICD.
type Penalty struct {
	Kind   PenaltyKind
	Points float64 // exact points deducted
}

// Display returns the deduction rounded for presentation.
func (p Penalty) Display() int {
	return int(math.RoundToEven(p.Points))
}

// MarshalJSON renders the penalty with its key, label and display value.
func (p Penalty) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    PenaltyKind `json:"kind"`
		Label   string      `json:"label"`
		Points  float64     `json:"points"`
		Display int         `json:"display"`
	}{p.Kind, p.Kind.Label(), p.Points, p.Display()})
}

// Breakdown is the ordered list of non-zero deductions.
type Breakdown []Penalty

// Points returns the deduction for kind and whether it was applied.
func (b Breakdown) Points(kind PenaltyKind) (float64, bool) {
	for _, p := range b {
		if p.Kind == kind {
			return p.Points, true
		}
	}
	return 0, false
}

// Has reports whether kind was applied.
func (b Breakdown) Has(kind PenaltyKind) bool {
	_, ok := b.Points(kind)
	return ok
}

// Total returns the exact sum of deductions.
func (b Breakdown) Total() float64 {
	var sum float64
	for _, p := range b {
		sum += p.Points
	}
	return sum
}

// SortedByPoints returns a copy ordered by points, largest first. Ties keep
// evaluation order.
func (b Breakdown) SortedByPoints() Breakdown {
	out := make(Breakdown, len(b))
	copy(out, b)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	return out
}
