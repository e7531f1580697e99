package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/solvmetria/internal/dataset"
	"github.com/sells-group/solvmetria/internal/fetcher"
	"github.com/sells-group/solvmetria/internal/monitoring"
)

var (
	reportFormat      string
	reportOutput      string
	reportParams      string
	reportConcurrency int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Score every municipality in the dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("dataset"); err != nil {
			return err
		}
		params, err := scoringParams(reportParams)
		if err != nil {
			return err
		}

		ds, err := dataset.NewLoader(cfg.Dataset, nil).Load(ctx)
		if err != nil {
			return eris.Wrap(err, "report: load dataset")
		}

		results, err := monitoring.Evaluate(ctx, ds, params, reportConcurrency)
		if err != nil {
			return err
		}
		rows := toReportRows(results)

		if strings.EqualFold(filepath.Ext(reportOutput), ".xlsx") {
			if err := writeReportXLSX(reportOutput, rows); err != nil {
				return err
			}
			zap.L().Info("report written", zap.String("path", reportOutput), zap.Int("municipalities", len(rows)))
			return nil
		}

		out := cmd.OutOrStdout()
		if reportOutput != "" {
			f, err := os.Create(reportOutput)
			if err != nil {
				return eris.Wrap(err, "report: create output")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return writeReport(out, reportFormat, rows)
	},
}

// reportRow is one municipality line of the quality report.
type reportRow struct {
	Region       string `csv:"region" json:"region"`
	Municipality string `csv:"municipality" json:"municipality"`
	Samples      int    `csv:"samples" json:"samples"`
	Score        int    `csv:"icd" json:"icd"`
	Tier         string `csv:"tier" json:"tier"`
	State        string `csv:"state" json:"state"`
	Penalties    int    `csv:"penalties" json:"penalties"`
	Insufficient bool   `csv:"insufficient" json:"insufficient"`
}

var reportHeader = []string{"region", "municipality", "samples", "icd", "tier", "state", "penalties", "insufficient"}

func toReportRows(results []monitoring.MunicipalityQuality) []reportRow {
	rows := make([]reportRow, len(results))
	for i, r := range results {
		rows[i] = reportRow{
			Region:       r.Region,
			Municipality: r.Municipality,
			Samples:      r.Samples,
			Score:        r.Score,
			Tier:         string(r.Tier),
			State:        string(r.State),
			Penalties:    r.Penalties,
			Insufficient: r.Insufficient,
		}
	}
	return rows
}

func (r reportRow) values() []string {
	return []string{
		r.Region, r.Municipality, strconv.Itoa(r.Samples), strconv.Itoa(r.Score),
		r.Tier, r.State, strconv.Itoa(r.Penalties), strconv.FormatBool(r.Insufficient),
	}
}

func writeReport(out io.Writer, format string, rows []reportRow) error {
	switch format {
	case "table":
		formatReportTable(out, rows)
		return nil
	case "csv":
		b, err := csvutil.Marshal(rows)
		if err != nil {
			return eris.Wrap(err, "report: marshal csv")
		}
		_, err = out.Write(b)
		return eris.Wrap(err, "report: write csv")
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}

// formatReportTable writes a tabular list of municipalities to w.
func formatReportTable(out io.Writer, rows []reportRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "REGION\tMUNICIPALITY\tSAMPLES\tICD\tTIER\tSTATE")
	_, _ = fmt.Fprintln(w, "------\t------------\t-------\t---\t----\t-----")
	for _, r := range rows {
		icd := strconv.Itoa(r.Score)
		if r.Insufficient {
			icd += "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", r.Region, r.Municipality, r.Samples, icd, r.Tier, r.State)
	}
	_ = w.Flush()
}

func writeReportXLSX(path string, rows []reportRow) error {
	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = r.values()
	}
	return fetcher.WriteXLSX(path, "ICD", reportHeader, data)
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "table", "output format: table, csv or json")
	reportCmd.Flags().StringVar(&reportOutput, "output", "", "write to file instead of stdout (.xlsx writes a workbook)")
	reportCmd.Flags().StringVar(&reportParams, "params", "", "YAML file overriding scoring parameters")
	reportCmd.Flags().IntVar(&reportConcurrency, "concurrency", 8, "municipalities scored in parallel")
	rootCmd.AddCommand(reportCmd)
}
