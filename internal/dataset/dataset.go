// Package dataset loads the soil-sample table from its source, coerces
// malformed cells to missing values and serves immutable per-location
// snapshots of it.
package dataset

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/solvmetria/internal/model"
)

// Dataset is a loaded, read-only sample table indexed by location.
type Dataset struct {
	source   string
	loadedAt time.Time
	samples  []model.SoilSample

	regions        []string
	municipalities map[string][]string
	byLocation     map[model.Location][]model.SoilSample

	regionKeys map[string]string
	muniKeys   map[string]map[string]string
}

// New indexes samples. The slice is owned by the Dataset afterwards.
func New(source string, samples []model.SoilSample) *Dataset {
	d := &Dataset{
		source:         source,
		loadedAt:       time.Now().UTC(),
		samples:        samples,
		municipalities: make(map[string][]string),
		byLocation:     make(map[model.Location][]model.SoilSample),
		regionKeys:     make(map[string]string),
		muniKeys:       make(map[string]map[string]string),
	}

	for _, s := range samples {
		loc := s.Location()
		if _, ok := d.byLocation[loc]; !ok {
			d.municipalities[loc.Region] = append(d.municipalities[loc.Region], loc.Municipality)
			if _, ok := d.muniKeys[loc.Region]; !ok {
				d.muniKeys[loc.Region] = make(map[string]string)
				d.regions = append(d.regions, loc.Region)
				d.regionKeys[Key(loc.Region)] = loc.Region
			}
			d.muniKeys[loc.Region][Key(loc.Municipality)] = loc.Municipality
		}
		d.byLocation[loc] = append(d.byLocation[loc], s)
	}

	col := collate.New(language.Spanish)
	col.SortStrings(d.regions)
	for _, munis := range d.municipalities {
		col.SortStrings(munis)
	}
	return d
}

// Empty returns a dataset without samples.
func Empty(source string) *Dataset {
	return New(source, nil)
}

// Source returns where the dataset was read from.
func (d *Dataset) Source() string { return d.source }

// LoadedAt returns when the dataset was indexed.
func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.samples) }

// Samples returns all samples in source order. Callers must not mutate it.
func (d *Dataset) Samples() []model.SoilSample { return d.samples }

// Regions returns the distinct regions in Spanish collation order.
func (d *Dataset) Regions() []string {
	return append([]string(nil), d.regions...)
}

// Municipalities returns the sorted municipalities of region. Matching is
// case and accent insensitive. Unknown regions yield an empty list.
func (d *Dataset) Municipalities(region string) []string {
	canon, ok := d.resolveRegion(region)
	if !ok {
		return []string{}
	}
	return append([]string(nil), d.municipalities[canon]...)
}

// Locations returns every (region, municipality) pair in sorted order.
func (d *Dataset) Locations() []model.Location {
	var out []model.Location
	for _, r := range d.regions {
		for _, m := range d.municipalities[r] {
			out = append(out, model.Location{Region: r, Municipality: m})
		}
	}
	return out
}

// Resolve maps a user-supplied location to the spelling used in the data.
func (d *Dataset) Resolve(region, municipality string) (model.Location, bool) {
	canonRegion, ok := d.resolveRegion(region)
	if !ok {
		return model.Location{}, false
	}
	if _, ok := d.byLocation[model.Location{Region: canonRegion, Municipality: municipality}]; ok {
		return model.Location{Region: canonRegion, Municipality: municipality}, true
	}
	canonMuni, ok := d.muniKeys[canonRegion][Key(municipality)]
	if !ok {
		return model.Location{}, false
	}
	return model.Location{Region: canonRegion, Municipality: canonMuni}, true
}

// Filter returns the samples of one municipality. An unknown location
// yields an empty set labelled with the requested names.
func (d *Dataset) Filter(region, municipality string) model.SampleSet {
	loc, ok := d.Resolve(region, municipality)
	if !ok {
		return model.NewSampleSet(model.Location{Region: region, Municipality: municipality}, nil)
	}
	return model.NewSampleSet(loc, d.byLocation[loc])
}

func (d *Dataset) resolveRegion(region string) (string, bool) {
	if _, ok := d.muniKeys[region]; ok {
		return region, true
	}
	canon, ok := d.regionKeys[Key(region)]
	return canon, ok
}

// Key folds case, strips accents and collapses whitespace so that
// "BOYACÁ " and "boyaca" compare equal.
func Key(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return cases.Fold().String(strings.Join(strings.Fields(folded), " "))
}
