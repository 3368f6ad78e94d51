package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"crmsync/internal/domain"
)

func newSyncCmd() *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass over the configured tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, cleanup, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			descriptors := application.Descriptors
			if len(only) > 0 {
				descriptors, err = selectDescriptors(descriptors, only)
				if err != nil {
					return err
				}
			}

			results := application.Engine.SyncAll(ctx, descriptors)
			printSyncResults(cmd.OutOrStdout(), results)

			for _, r := range results {
				if r.Failed() {
					return fmt.Errorf("%d of %d tables failed", countFailed(results), len(results))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "table", nil, "sync only the named tables (repeatable)")
	return cmd
}

func selectDescriptors(all []domain.TableDescriptor, names []string) ([]domain.TableDescriptor, error) {
	byName := make(map[string]domain.TableDescriptor, len(all))
	for _, d := range all {
		byName[d.Name] = d
	}
	selected := make([]domain.TableDescriptor, 0, len(names))
	for _, name := range names {
		d, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("table %q is not configured", name)
		}
		selected = append(selected, d)
	}
	return selected, nil
}

func printSyncResults(out io.Writer, results []domain.SyncResult) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tPOLICY\tROWS\tSTATUS")
	for _, r := range results {
		status := "ok"
		switch {
		case r.Failed():
			status = "error: " + r.Err.Error()
		case r.Warning != "":
			status = "warning: " + r.Warning
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.TableName, r.Policy, r.RowsWritten, status)
	}
	_ = w.Flush()
}

func countFailed(results []domain.SyncResult) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}
