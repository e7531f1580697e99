package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/solvmetria/internal/config"
	"github.com/sells-group/solvmetria/internal/scorer"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "solvmetria",
	Short: "Soil diagnosis and data quality index service",
	Long:  "Loads soil-sample datasets, diagnoses pH, aluminum and organic matter per municipality, and scores data quality (ICD) with tunable penalties.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// scoringParams returns the configured parameters, overlaid with a YAML
// parameter file when path is set.
func scoringParams(path string) (config.ScoringConfig, error) {
	if err := scorer.ValidateParams(cfg.Scoring); err != nil {
		return cfg.Scoring, eris.Wrap(err, "scoring config")
	}
	if path == "" {
		return cfg.Scoring, nil
	}
	return scorer.LoadParamsFile(path, cfg.Scoring)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
