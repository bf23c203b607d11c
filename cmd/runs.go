package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sales-assistant/internal/model"
	"github.com/sells-group/sales-assistant/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect and prune insight run history",
}

// withStore validates the runs config, opens the store for the duration
// of fn and closes it afterwards.
func withStore(ctx context.Context, fn func(store.Store) error) error {
	if err := cfg.Validate("runs"); err != nil {
		return err
	}
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	return fn(st)
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent insight runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter := store.RunFilter{}
		status, _ := cmd.Flags().GetString("status")
		filter.Status = model.RunStatus(status)
		filter.TargetURL, _ = cmd.Flags().GetString("target")
		filter.Product, _ = cmd.Flags().GetString("product")
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		return withStore(cmd.Context(), func(st store.Store) error {
			runs, err := st.ListRuns(cmd.Context(), filter)
			if err != nil {
				return eris.Wrap(err, "runs list")
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
				return nil
			}
			formatRunsList(cmd.OutOrStdout(), runs)
			return nil
		})
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run, its result and phase log as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return eris.Wrap(err, "runs show")
			}
			phases, err := st.ListPhases(cmd.Context(), run.ID)
			if err != nil {
				return eris.Wrap(err, "runs show phases")
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*model.Run
				PhaseLog []model.RunPhase `json:"phase_log"`
			}{run, phases})
		})
	},
}

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than a retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		if olderThan <= 0 {
			return eris.New("runs prune: --older-than must be positive")
		}
		cutoff := time.Now().Add(-olderThan)

		return withStore(cmd.Context(), func(st store.Store) error {
			n, err := st.DeleteRunsBefore(cmd.Context(), cutoff)
			if err != nil {
				return eris.Wrap(err, "runs prune")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d runs created before %s.\n", n, cutoff.UTC().Format(time.RFC3339))
			return nil
		})
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, fetching, complete, degraded, failed, ...)")
	runsListCmd.Flags().String("target", "", "filter by target URL")
	runsListCmd.Flags().String("product", "", "filter by product name (case-insensitive)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "delete runs created longer ago than this")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsPruneCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes runs as an aligned table. DURATION is the time
// from creation to the last status change.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRODUCT\tTARGET\tSTATUS\tCREATED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			clipCell(r.Input.ProductName),
			clipCell(r.Input.TargetURL),
			r.Status,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second),
		)
	}
	w.Flush() //nolint:errcheck
}

const maxCell = 30

func clipCell(s string) string {
	if len(s) <= maxCell {
		return s
	}
	return s[:maxCell-3] + "..."
}

// truncateID shortens a UUID to its first block.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
