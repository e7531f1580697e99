package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/solvmetria/internal/model"
)

// rawRecord is one dataset row before coercion. Tags match the source headers.
type rawRecord struct {
	Region        string `csv:"Departamento"`
	Municipality  string `csv:"Municipio"`
	PH            string `csv:"pH_agua_suelo"`
	Aluminum      string `csv:"Aluminio intercambiable"`
	OrganicMatter string `csv:"Materia organica"`
	AnalysisDate  string `csv:"Fecha de Análisis"`
	Crop          string `csv:"Cultivo"`
}

// toSample coerces r. Unparsable numbers and dates become missing; missing
// locations become model.UnknownLocation.
func (r rawRecord) toSample(row int) model.SoilSample {
	return model.SoilSample{
		Row:           row,
		Region:        location(r.Region),
		Municipality:  location(r.Municipality),
		PH:            ParseNumber(r.PH),
		Aluminum:      ParseNumber(r.Aluminum),
		OrganicMatter: ParseNumber(r.OrganicMatter),
		AnalysisDate:  ParseDate(r.AnalysisDate),
		Crop:          strings.TrimSpace(r.Crop),
	}
}

// missingTokens are cell values treated as empty.
var missingTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"na":   true,
	"n/a":  true,
	"null": true,
	"none": true,
	"-":    true,
}

func isMissing(v string) bool {
	return missingTokens[strings.ToLower(v)]
}

func location(v string) string {
	v = strings.TrimSpace(v)
	if isMissing(v) {
		return model.UnknownLocation
	}
	return v
}

// ParseNumber parses a measurement cell. A lone decimal comma ("5,4") is
// accepted. Anything else that does not parse to a finite number is missing.
func ParseNumber(v string) *float64 {
	v = strings.TrimSpace(v)
	if isMissing(v) {
		return nil
	}
	if strings.Count(v, ",") == 1 && !strings.Contains(v, ".") {
		v = strings.Replace(v, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// dateLayouts are tried in order. Ambiguous slash dates read day first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"02/01/06",
	"2/1/06",
}

// Excel serial day numbers inside this window are read as dates
// (1954-10-03 to 2119-02-24).
const (
	excelSerialMin = 20000
	excelSerialMax = 80000
)

var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseDate parses an analysis date, day first. Unparsable values are missing.
func ParseDate(v string) *time.Time {
	v = strings.TrimSpace(v)
	if isMissing(v) {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial >= excelSerialMin && serial <= excelSerialMax {
		t := excelEpoch.AddDate(0, 0, int(serial))
		return &t
	}
	return nil
}
