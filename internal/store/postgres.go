package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solvmetria/internal/db"
	"github.com/sells-group/solvmetria/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool  db.Pool
	table string
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool. An empty
// table uses DefaultTable.
func NewPostgres(ctx context.Context, connString, table string, poolCfg *PoolConfig) (*PostgresStore, error) {
	table = tableOrDefault(table)
	if err := ValidateTable(table); err != nil {
		return nil, err
	}

	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool, table string) (*PostgresStore, error) {
	table = tableOrDefault(table)
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS %[1]s (
	row_num        INTEGER NOT NULL,
	region         TEXT NOT NULL,
	municipality   TEXT NOT NULL,
	ph             DOUBLE PRECISION,
	aluminum       DOUBLE PRECISION,
	organic_matter DOUBLE PRECISION,
	analysis_date  DATE,
	crop           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sample_imports (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	row_count   INTEGER NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (region, municipality);
CREATE INDEX IF NOT EXISTS idx_sample_imports_imported_at ON sample_imports (imported_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	ident := db.Identifier(s.table)
	index := pgx.Identifier{"idx_" + ident[len(ident)-1] + "_location"}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(postgresMigration, ident.Sanitize(), index.Sanitize()))
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ReplaceSamples(ctx context.Context, source string, samples []model.SoilSample) (*ImportRecord, error) {
	rows := make([][]any, len(samples))
	for i, smp := range samples {
		rows[i] = []any{
			smp.Row, smp.Region, smp.Municipality,
			smp.PH, smp.Aluminum, smp.OrganicMatter,
			smp.AnalysisDate, smp.Crop,
		}
	}

	if _, err := db.ReplaceAll(ctx, s.pool, s.table, sampleColumns, rows); err != nil {
		return nil, eris.Wrap(err, "postgres: replace samples")
	}

	rec := &ImportRecord{
		ID:         uuid.New().String(),
		Source:     source,
		Rows:       len(samples),
		ImportedAt: time.Now().UTC(),
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO sample_imports (id, source, row_count, imported_at) VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.Source, rec.Rows, rec.ImportedAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert import record")
	}

	zap.L().Info("postgres: samples replaced",
		zap.String("import_id", rec.ID),
		zap.String("source", source),
		zap.Int("rows", rec.Rows),
	)
	return rec, nil
}

func (s *PostgresStore) ReadSamples(ctx context.Context) ([]model.SoilSample, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY row_num",
		db.QuoteColumns(sampleColumns), db.Identifier(s.table).Sanitize(),
	))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query samples")
	}
	defer rows.Close()

	var out []model.SoilSample
	for rows.Next() {
		var (
			smp        model.SoilSample
			ph, al, om pgtype.Float8
			date       pgtype.Date
		)
		if err := rows.Scan(&smp.Row, &smp.Region, &smp.Municipality, &ph, &al, &om, &date, &smp.Crop); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sample")
		}
		smp.PH = pgFloat(ph)
		smp.Aluminum = pgFloat(al)
		smp.OrganicMatter = pgFloat(om)
		if date.Valid {
			d := date.Time
			smp.AnalysisDate = &d
		}
		out = append(out, smp)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate samples")
}

func (s *PostgresStore) LastImport(ctx context.Context) (*ImportRecord, error) {
	var rec ImportRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, source, row_count, imported_at FROM sample_imports ORDER BY imported_at DESC LIMIT 1`,
	).Scan(&rec.ID, &rec.Source, &rec.Rows, &rec.ImportedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: last import")
	}
	return &rec, nil
}

func pgFloat(v pgtype.Float8) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
