package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/solvmetria/internal/model"
)

const sqliteDateLayout = "2006-01-02"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. An empty table uses DefaultTable.
func NewSQLite(dsn, table string) (*SQLiteStore, error) {
	table = tableOrDefault(table)
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	if strings.Contains(table, ".") {
		return nil, eris.Errorf("sqlite: schema-qualified table %q not supported", table)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, table: table}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS %[1]s (
	row_num        INTEGER NOT NULL,
	region         TEXT NOT NULL,
	municipality   TEXT NOT NULL,
	ph             REAL,
	aluminum       REAL,
	organic_matter REAL,
	analysis_date  TEXT,
	crop           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sample_imports (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	row_count   INTEGER NOT NULL,
	imported_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_location ON %[1]s(region, municipality);
CREATE INDEX IF NOT EXISTS idx_sample_imports_imported_at ON sample_imports(imported_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(sqliteMigration, s.table))
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ReplaceSamples(ctx context.Context, source string, samples []model.SoilSample) (*ImportRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return nil, eris.Wrap(err, "sqlite: clear samples")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(sampleColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		s.table, strings.Join(sampleColumns, ", "), placeholders,
	))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, smp := range samples {
		var date any
		if smp.AnalysisDate != nil {
			date = smp.AnalysisDate.Format(sqliteDateLayout)
		}
		if _, err := stmt.ExecContext(ctx,
			smp.Row, smp.Region, smp.Municipality,
			smp.PH, smp.Aluminum, smp.OrganicMatter,
			date, smp.Crop,
		); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert sample row %d", smp.Row)
		}
	}

	rec := &ImportRecord{
		ID:         uuid.New().String(),
		Source:     source,
		Rows:       len(samples),
		ImportedAt: time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sample_imports (id, source, row_count, imported_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Source, rec.Rows, rec.ImportedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert import record")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}

	zap.L().Info("sqlite: samples replaced",
		zap.String("import_id", rec.ID),
		zap.String("source", source),
		zap.Int("rows", rec.Rows),
	)
	return rec, nil
}

func (s *SQLiteStore) ReadSamples(ctx context.Context) ([]model.SoilSample, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY row_num",
		strings.Join(sampleColumns, ", "), s.table,
	))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query samples")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SoilSample
	for rows.Next() {
		smp, err := scanSQLiteSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, smp)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate samples")
}

func (s *SQLiteStore) LastImport(ctx context.Context) (*ImportRecord, error) {
	var rec ImportRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, row_count, imported_at FROM sample_imports ORDER BY imported_at DESC LIMIT 1`,
	).Scan(&rec.ID, &rec.Source, &rec.Rows, &rec.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last import")
	}
	return &rec, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteSample(row scannable) (model.SoilSample, error) {
	var (
		smp          model.SoilSample
		ph, al, om   sql.NullFloat64
		analysisDate sql.NullString
	)
	if err := row.Scan(&smp.Row, &smp.Region, &smp.Municipality, &ph, &al, &om, &analysisDate, &smp.Crop); err != nil {
		return smp, eris.Wrap(err, "sqlite: scan sample")
	}
	smp.PH = nullFloat(ph)
	smp.Aluminum = nullFloat(al)
	smp.OrganicMatter = nullFloat(om)
	if analysisDate.Valid {
		d, err := time.Parse(sqliteDateLayout, analysisDate.String)
		if err != nil {
			return smp, eris.Wrapf(err, "sqlite: parse analysis date of row %d", smp.Row)
		}
		smp.AnalysisDate = &d
	}
	return smp, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
