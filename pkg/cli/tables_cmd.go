package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the configured table descriptors",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, cleanup, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tPRIMARY KEY\tWATERMARK\tEXPECTED COLUMNS")
			for _, d := range application.Descriptors {
				watermark := d.WatermarkColumn
				if watermark == "" {
					watermark = "-"
				}
				columns := "-"
				if len(d.ExpectedColumns) > 0 {
					columns = strings.Join(d.ExpectedColumns, ",")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.PrimaryKey, watermark, columns)
			}
			return w.Flush()
		},
	}
}
