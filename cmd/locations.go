package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/solvmetria/internal/dataset"
)

var locationsRegion string

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List regions, or the municipalities of one region",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("dataset"); err != nil {
			return err
		}

		ds, err := dataset.NewLoader(cfg.Dataset, nil).Load(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "locations: load dataset")
		}

		formatLocations(cmd.OutOrStdout(), ds, locationsRegion)
		return nil
	},
}

// formatLocations writes regions with their municipality counts, or the
// municipalities of region when it is set.
func formatLocations(out io.Writer, ds *dataset.Dataset, region string) {
	if region != "" {
		for _, m := range ds.Municipalities(region) {
			_, _ = fmt.Fprintln(out, m)
		}
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "REGION\tMUNICIPALITIES")
	_, _ = fmt.Fprintln(w, "------\t--------------")
	for _, r := range ds.Regions() {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", r, len(ds.Municipalities(r)))
	}
	_ = w.Flush()
}

func init() {
	locationsCmd.Flags().StringVar(&locationsRegion, "region", "", "list the municipalities of this region")
	rootCmd.AddCommand(locationsCmd)
}
