// Package outlier flags extreme values in a numeric column using the
// interquartile-range rule.
package outlier

import (
	"math"
	"sort"
)

// MinSamples is the smallest number of present values for which quartiles
// are estimated. Smaller columns never report outliers.
const MinSamples = 4

// fenceFactor scales the IQR to obtain the lower and upper fences.
const fenceFactor = 1.5

// Outlier is a flagged value together with its position in the input.
type Outlier struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// Report is the result of an IQR scan.
type Report struct {
	Count    int       `json:"count"`
	Outliers []Outlier `json:"outliers"`
	Q1       float64   `json:"q1"`
	Q3       float64   `json:"q3"`
	Lower    float64   `json:"lower_fence"`
	Upper    float64   `json:"upper_fence"`
	// Evaluated is false when there were fewer than MinSamples values.
	Evaluated bool `json:"evaluated"`
}

// Indexes returns the positions of the flagged values.
func (r Report) Indexes() map[int]bool {
	out := make(map[int]bool, len(r.Outliers))
	for _, o := range r.Outliers {
		out[o.Index] = true
	}
	return out
}

// DetectIQR scans values (nil = missing) and flags entries strictly below
// Q1-1.5*IQR or strictly above Q3+1.5*IQR. Quartiles use linear
// interpolation between order statistics.
func DetectIQR(values []*float64) Report {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil && !math.IsNaN(*v) {
			present = append(present, *v)
		}
	}
	if len(present) < MinSamples {
		return Report{Outliers: []Outlier{}}
	}

	sort.Float64s(present)
	q1 := Quantile(present, 0.25)
	q3 := Quantile(present, 0.75)
	iqr := q3 - q1
	lower := q1 - fenceFactor*iqr
	upper := q3 + fenceFactor*iqr

	rep := Report{
		Outliers:  []Outlier{},
		Q1:        q1,
		Q3:        q3,
		Lower:     lower,
		Upper:     upper,
		Evaluated: true,
	}
	for i, v := range values {
		if v == nil || math.IsNaN(*v) {
			continue
		}
		if *v < lower || *v > upper {
			rep.Outliers = append(rep.Outliers, Outlier{Index: i, Value: *v})
		}
	}
	rep.Count = len(rep.Outliers)
	return rep
}

// Quantile returns the q-th quantile of sorted using linear interpolation
// at position q*(n-1). sorted must be ascending and non-empty.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
