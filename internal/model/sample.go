// Package model defines the soil-sample records shared by the loaders, the
// scoring engine and the dashboard views.
package model

import "time"

// UnknownLocation replaces a missing region or municipality at load time.
const UnknownLocation = "Unknown"

// Dataset column headers as they appear in the source files.
const (
	ColumnRegion        = "Departamento"
	ColumnMunicipality  = "Municipio"
	ColumnPH            = "pH_agua_suelo"
	ColumnAluminum      = "Aluminio intercambiable"
	ColumnOrganicMatter = "Materia organica"
	ColumnAnalysisDate  = "Fecha de Análisis"
	ColumnCrop          = "Cultivo"
)

// RequiredColumns lists the headers a dataset must carry.
var RequiredColumns = []string{
	ColumnRegion,
	ColumnMunicipality,
	ColumnPH,
	ColumnAluminum,
	ColumnOrganicMatter,
	ColumnAnalysisDate,
	ColumnCrop,
}

// Location identifies a municipality within a region (departamento).
type Location struct {
	Region       string `json:"region"`
	Municipality string `json:"municipality"`
}

// SoilSample is one measured record. Nil measurements are missing values.
type SoilSample struct {
	Row           int        `json:"row"` // position in the source dataset
	Region        string     `json:"region"`
	Municipality  string     `json:"municipality"`
	PH            *float64   `json:"ph"`
	Aluminum      *float64   `json:"aluminum"`
	OrganicMatter *float64   `json:"organic_matter"`
	AnalysisDate  *time.Time `json:"analysis_date"`
	Crop          string     `json:"crop"`
}

// Location returns the sample's region and municipality.
func (s SoilSample) Location() Location {
	return Location{Region: s.Region, Municipality: s.Municipality}
}

// HasKeyValue reports whether at least one of pH, aluminum or organic
// matter is present.
func (s SoilSample) HasKeyValue() bool {
	return s.PH != nil || s.Aluminum != nil || s.OrganicMatter != nil
}

// AnalysisYear returns the year of the analysis date, if known.
func (s SoilSample) AnalysisYear() (int, bool) {
	if s.AnalysisDate == nil {
		return 0, false
	}
	return s.AnalysisDate.Year(), true
}

// SampleSet is the ordered subset of samples for one municipality.
// It is a read-only snapshot; callers must not mutate Samples.
type SampleSet struct {
	Location
	Samples []SoilSample `json:"samples"`
}

// NewSampleSet builds a SampleSet for loc.
func NewSampleSet(loc Location, samples []SoilSample) SampleSet {
	return SampleSet{Location: loc, Samples: samples}
}

// Len returns the number of rows in the set.
func (s SampleSet) Len() int { return len(s.Samples) }

// Empty reports whether the set has no rows.
func (s SampleSet) Empty() bool { return len(s.Samples) == 0 }

// PH returns the pH column, positionally aligned with Samples.
func (s SampleSet) PH() []*float64 {
	return s.column(func(x SoilSample) *float64 { return x.PH })
}

// Aluminum returns the exchangeable-aluminum column.
func (s SampleSet) Aluminum() []*float64 {
	return s.column(func(x SoilSample) *float64 { return x.Aluminum })
}

// OrganicMatter returns the organic-matter column.
func (s SampleSet) OrganicMatter() []*float64 {
	return s.column(func(x SoilSample) *float64 { return x.OrganicMatter })
}

func (s SampleSet) column(get func(SoilSample) *float64) []*float64 {
	out := make([]*float64, len(s.Samples))
	for i, x := range s.Samples {
		out[i] = get(x)
	}
	return out
}

// Float returns a pointer to v. Handy for building samples in code and tests.
func Float(v float64) *float64 { return &v }

// Date returns a pointer to a UTC midnight date.
func Date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

// CountMissing returns how many entries of values are nil.
func CountMissing(values []*float64) int {
	n := 0
	for _, v := range values {
		if v == nil {
			n++
		}
	}
	return n
}

// Present returns the non-nil values of values, in order.
func Present(values []*float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}
