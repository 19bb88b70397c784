package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"ev-charging-api/internal/repository"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent ingestion runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		repo, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer repo.Close()

		runs, err := repo.RecentRuns(ctx, runsLimit)
		if err != nil {
			return eris.Wrap(err, "ingest runs")
		}

		if len(runs) == 0 {
			log.Info().Msg("no ingestion runs recorded yet")
			return nil
		}

		formatRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

// formatRuns writes a tabular representation of runs to out.
func formatRuns(out io.Writer, runs []repository.IngestRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tSTATUS\tSTARTED\tDURATION\tINSERTED\tUPDATED\tREJECTED\tERROR")

	for _, r := range runs {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}

		errMsg := r.Error
		if len(errMsg) > 60 {
			errMsg = errMsg[:60] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.Source,
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
			r.Counts.Inserted,
			r.Counts.Updated,
			r.Counts.Rejected,
			errMsg,
		)
	}
	_ = w.Flush()
}
