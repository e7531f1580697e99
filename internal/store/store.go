// Package store persists imported soil-sample datasets in SQLite or
// PostgreSQL so the dashboard can load them without the source file.
package store

import (
	"context"
	"regexp"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solvmetria/internal/model"
)

// DefaultTable is the table samples are stored in unless overridden.
const DefaultTable = "soil_samples"

// ImportRecord describes one dataset import.
type ImportRecord struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	ImportedAt time.Time `json:"imported_at"`
}

// Store defines the persistence interface for imported datasets.
type Store interface {
	// ReplaceSamples swaps the stored dataset for samples and records the import.
	ReplaceSamples(ctx context.Context, source string, samples []model.SoilSample) (*ImportRecord, error)
	// ReadSamples returns every stored sample ordered by source row.
	ReadSamples(ctx context.Context) ([]model.SoilSample, error)
	// LastImport returns the most recent import, or nil when none exists.
	LastImport(ctx context.Context) (*ImportRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// sampleColumns is the stored column order shared by both backends.
var sampleColumns = []string{
	"row_num",
	"region",
	"municipality",
	"ph",
	"aluminum",
	"organic_matter",
	"analysis_date",
	"crop",
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateTable rejects table names that are not plain SQL identifiers.
func ValidateTable(table string) error {
	if !identRe.MatchString(table) {
		return eris.Errorf("store: invalid table name %q", table)
	}
	return nil
}

func tableOrDefault(table string) string {
	if table == "" {
		return DefaultTable
	}
	return table
}
