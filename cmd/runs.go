package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sgstats/cpi-ingest/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List ingest run history",
	Long:  "Lists past ingest runs recorded in cpi.ingest_log, most recent first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		entries, err := store.NewIngestLog(pool).ListAll(ctx)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatIngestEntries(os.Stdout, entries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

// formatIngestEntries writes a tabular list of ingest runs to out.
func formatIngestEntries(out io.Writer, entries []store.IngestEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tSTARTED\tDURATION\tROWS\tARTIFACT")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-------\t--------\t----\t--------")

	for _, e := range entries {
		dur := ""
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}

		artifact := e.Artifact
		if e.Status == "failed" && e.Error != "" {
			artifact = e.Error
			if len(artifact) > 40 {
				artifact = artifact[:37] + "..."
			}
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			e.Source,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			e.RowsLoaded,
			artifact,
		)
	}
	_ = w.Flush()
}
