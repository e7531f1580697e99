package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/solvmetria/internal/dataset"
	"github.com/sells-group/solvmetria/internal/diagnosis"
	"github.com/sells-group/solvmetria/internal/model"
	"github.com/sells-group/solvmetria/internal/scorer"
)

var (
	diagnoseRegion       string
	diagnoseMunicipality string
	diagnoseParams       string
	diagnoseFormat       string
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Diagnose one municipality and score its data quality",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("dataset"); err != nil {
			return err
		}
		params, err := scoringParams(diagnoseParams)
		if err != nil {
			return err
		}

		ds, err := dataset.NewLoader(cfg.Dataset, nil).Load(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "diagnose: load dataset")
		}

		set := ds.Filter(diagnoseRegion, diagnoseMunicipality)
		out := municipalityReport{
			Location:  set.Location,
			Samples:   set.Len(),
			Diagnosis: diagnosis.Diagnose(set, params),
			Quality:   scorer.Score(set, params),
		}

		switch diagnoseFormat {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		case "text":
			formatMunicipalityReport(cmd.OutOrStdout(), out)
			return nil
		default:
			return eris.Errorf("diagnose: unknown format %q", diagnoseFormat)
		}
	},
}

type municipalityReport struct {
	model.Location
	Samples   int              `json:"samples"`
	Diagnosis diagnosis.Result `json:"diagnosis"`
	Quality   scorer.Result    `json:"quality"`
}

// formatMunicipalityReport writes a human-readable summary to w.
func formatMunicipalityReport(out io.Writer, r municipalityReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Region:\t%s\n", r.Region)
	_, _ = fmt.Fprintf(w, "Municipality:\t%s\n", r.Municipality)
	_, _ = fmt.Fprintf(w, "Samples:\t%d\n", r.Samples)
	_, _ = fmt.Fprintf(w, "State:\t%s\n", r.Diagnosis.State)
	_, _ = fmt.Fprintf(w, "Mean pH:\t%s\n", formatMean(r.Diagnosis.MeanPH))
	_, _ = fmt.Fprintf(w, "Mean aluminum:\t%s\n", formatMean(r.Diagnosis.MeanAluminum))
	_, _ = fmt.Fprintf(w, "Mean organic matter:\t%s\n", formatMean(r.Diagnosis.MeanOrganicMatter))
	_, _ = fmt.Fprintf(w, "ICD:\t%d (%s)\n", r.Quality.Score, r.Quality.Tier)
	_ = w.Flush()

	if len(r.Quality.Breakdown) > 0 {
		_, _ = fmt.Fprintln(out, "\nPenalties:")
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, p := range r.Quality.Breakdown.SortedByPoints() {
			_, _ = fmt.Fprintf(w, "  %s\t-%d\n", p.Kind.Label(), p.Display())
		}
		_ = w.Flush()
	}

	_, _ = fmt.Fprintln(out, "\nDiagnosis:")
	for _, m := range r.Diagnosis.Messages() {
		_, _ = fmt.Fprintf(out, "  - %s\n", m)
	}
}

func formatMean(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *v)
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagnoseRegion, "region", "", "region (departamento), required")
	diagnoseCmd.Flags().StringVar(&diagnoseMunicipality, "municipality", "", "municipality, required")
	diagnoseCmd.Flags().StringVar(&diagnoseParams, "params", "", "YAML file overriding scoring parameters")
	diagnoseCmd.Flags().StringVar(&diagnoseFormat, "format", "text", "output format: text or json")
	_ = diagnoseCmd.MarkFlagRequired("region")
	_ = diagnoseCmd.MarkFlagRequired("municipality")
	rootCmd.AddCommand(diagnoseCmd)
}
