package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/solvmetria/internal/config"
	"github.com/sells-group/solvmetria/internal/scorer"
)

var (
	paramsFormat string
	paramsOutput string
	paramsFile   string
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Inspect and validate ICD scoring parameters",
}

var paramsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the effective scoring parameters as CSV or YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		params, err := scoringParams(paramsFile)
		if err != nil {
			return err
		}

		b, err := renderParams(params, paramsFormat)
		if err != nil {
			return err
		}

		if paramsOutput == "" {
			_, err = cmd.OutOrStdout().Write(b)
			return eris.Wrap(err, "params: write")
		}
		if err := os.WriteFile(paramsOutput, b, 0o644); err != nil {
			return eris.Wrapf(err, "params: write %s", paramsOutput)
		}
		return nil
	},
}

var paramsValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check a YAML parameter file against the scoring limits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := scoringParams(args[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (penalty sum %.0f)\n", args[0], scorer.PenaltySum(params))
		return nil
	},
}

func renderParams(p config.ScoringConfig, format string) ([]byte, error) {
	switch format {
	case "csv":
		return scorer.MarshalReport(p)
	case "yaml":
		return scorer.MarshalParamsYAML(p)
	default:
		return nil, eris.Errorf("params: unknown format %q", format)
	}
}

func init() {
	paramsExportCmd.Flags().StringVar(&paramsFormat, "format", "csv", "output format: csv or yaml")
	paramsExportCmd.Flags().StringVar(&paramsOutput, "output", "", "write to file instead of stdout")
	paramsExportCmd.Flags().StringVar(&paramsFile, "params", "", "YAML file overriding scoring parameters")

	paramsCmd.AddCommand(paramsExportCmd)
	paramsCmd.AddCommand(paramsValidateCmd)
	rootCmd.AddCommand(paramsCmd)
}
