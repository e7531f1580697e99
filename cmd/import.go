package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/solvmetria/internal/dataset"
	"github.com/sells-group/solvmetria/internal/store"
)

var (
	importTo    string
	importTable string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy the configured dataset into a SQLite or Postgres store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importTable != "" {
			cfg.Dataset.Table = importTable
		}
		if cfg.Dataset.Table == "" {
			cfg.Dataset.Table = store.DefaultTable
		}
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		samples, err := dataset.NewLoader(cfg.Dataset, nil).ReadSamples(ctx)
		if err != nil {
			return eris.Wrap(err, "import: read dataset")
		}

		st, err := openStore(ctx, importTo, cfg.Dataset.Table)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "import: migrate")
		}

		rec, err := st.ReplaceSamples(ctx, cfg.Dataset.Source, samples)
		if err != nil {
			return eris.Wrap(err, "import: replace samples")
		}

		zap.L().Info("import complete",
			zap.String("id", rec.ID),
			zap.Int("rows", rec.Rows),
			zap.String("table", cfg.Dataset.Table),
			zap.Time("imported_at", rec.ImportedAt),
		)
		return nil
	},
}

// openStore picks the backend from target: a postgres:// DSN, or a SQLite
// path with or without the sqlite:// scheme.
func openStore(ctx context.Context, target, table string) (store.Store, error) {
	switch dataset.KindOf(target) {
	case dataset.KindPostgres:
		return store.NewPostgres(ctx, target, table, nil)
	case dataset.KindSQLite:
		return store.NewSQLite(strings.TrimPrefix(target, "sqlite://"), table)
	default:
		return nil, eris.Errorf("import: unsupported target %q (want a .db/.sqlite path, sqlite:// or postgres://)", target)
	}
}

func init() {
	importCmd.Flags().StringVar(&importTo, "to", "", "target store: SQLite file or postgres:// DSN (required)")
	importCmd.Flags().StringVar(&importTable, "table", "", "table name (default dataset.table or soil_samples)")
	_ = importCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(importCmd)
}
