package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newMappingCmd() *cobra.Command {
	var idColumn, nameColumn string

	cmd := &cobra.Command{
		Use:   "mapping <table>",
		Short: "Print the id→name mapping for a synced table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, cleanup, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			mapping, err := application.Mappings.BuildMapping(ctx, args[0], idColumn, nameColumn)
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(mapping))
			for id := range mapping {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, id := range ids {
				fmt.Fprintf(w, "%s\t%s\n", id, mapping[id])
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&idColumn, "id-column", "id", "identifier column")
	cmd.Flags().StringVar(&nameColumn, "name-column", "name", "display name column")
	return cmd
}
