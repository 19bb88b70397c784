package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"ev-charging-api/internal/config"
	"ev-charging-api/internal/ingest"
	"ev-charging-api/internal/models"
	"ev-charging-api/internal/sources"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Source names accepted on the command line.
const (
	nameGoogle = "google"
	nameOCM    = "ocm"
	nameStatiq = "statiq"
	nameBEE    = "bee"
)

var allSources = []string{nameGoogle, nameOCM, nameStatiq, nameBEE}

func sourceCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources(cmd, []string{name})
		},
	}
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run every configured source concurrently",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSources(cmd, configuredSources(cfg))
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Re-run every configured source at INGEST_INTERVAL until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		repo, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer repo.Close()

		jobs, err := buildJobs(cfg, ingest.NewDriver(repo, repo), configuredSources(cfg))
		if err != nil {
			return err
		}

		s := ingest.NewScheduler(ctx, cfg.IngestInterval, jobs)
		if err := s.Start(); err != nil {
			return err
		}
		defer s.Stop()

		<-ctx.Done()
		log.Info().Msg("schedule: shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(
		sourceCmd(nameGoogle, "Scan the city grid with Google Places nearby search"),
		sourceCmd(nameOCM, "Page through OpenChargeMap points of interest"),
		sourceCmd(nameStatiq, "Scrape the Statiq station map"),
		sourceCmd(nameBEE, "Fetch station details from BEE EV Yatra"),
		allCmd,
		scheduleCmd,
	)
}

func runSources(cmd *cobra.Command, names []string) error {
	ctx := cmd.Context()

	repo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	jobs, err := buildJobs(cfg, ingest.NewDriver(repo, repo), names)
	if err != nil {
		return err
	}

	results, err := ingest.RunAll(ctx, jobs)
	formatResults(os.Stdout, results)
	return err
}

// configuredSources lists the sources that can run with the current settings.
func configuredSources(c config.Config) []string {
	names := make([]string, 0, len(allSources))
	for _, name := range allSources {
		if name == nameGoogle && c.GoogleAPIKey == "" {
			log.Warn().Msg("GOOGLE_API_KEY not set, skipping google source")
			continue
		}
		names = append(names, name)
	}
	return names
}

// buildJobs turns source names into runnable jobs sharing one driver.
func buildJobs(c config.Config, d *ingest.Driver, names []string) ([]ingest.Job, error) {
	hc := &http.Client{Timeout: c.HTTPTimeout}
	breaker := sources.WithBreakerTimeout(c.BreakerTimeout)

	jobs := make([]ingest.Job, 0, len(names))
	for _, name := range names {
		switch name {
		case nameGoogle:
			if c.GoogleAPIKey == "" {
				return nil, eris.New("google: GOOGLE_API_KEY is required")
			}
			jobs = append(jobs, ingest.Bind(d, models.SourceGooglePlaces, func() sources.Source[sources.GooglePlace] {
				return sources.NewGoogle(c.GoogleAPIKey, c.GoogleDefaultProvider, sources.DefaultCities,
					sources.WithHTTPClient(hc), sources.WithDelay(c.GoogleRequestDelay), breaker)
			}))
		case nameOCM:
			jobs = append(jobs, ingest.Bind(d, models.SourceOpenChargeMap, func() sources.Source[sources.OCMPOI] {
				return sources.NewOpenChargeMap(sources.OCMConfig{
					APIKey:      c.OCMAPIKey,
					CountryCode: c.OCMCountryCode,
					BatchSize:   c.OCMBatchSize,
					MaxOffset:   c.OCMMaxOffset,
				}, sources.WithHTTPClient(hc), sources.WithDelay(c.OCMRequestDelay), breaker)
			}))
		case nameStatiq:
			jobs = append(jobs, ingest.Bind(d, models.SourceStatiq, func() sources.Source[sources.StatiqCard] {
				return sources.NewStatiq(c.StatiqSelector, sources.WithBaseURL(c.StatiqURL), sources.WithHTTPClient(hc), breaker)
			}))
		case nameBEE:
			if c.BEEFirstID > c.BEELastID {
				return nil, eris.Errorf("bee: BEE_FIRST_ID %d is after BEE_LAST_ID %d", c.BEEFirstID, c.BEELastID)
			}
			jobs = append(jobs, ingest.Bind(d, models.SourceBEE, func() sources.Source[sources.BEEStation] {
				return sources.NewBEE(c.BEEFirstID, c.BEELastID,
					sources.WithBaseURL(c.BEEURL), sources.WithHTTPClient(hc), sources.WithDelay(c.BEERequestDelay), breaker)
			}))
		default:
			return nil, eris.Errorf("unknown source %q", name)
		}
	}
	return jobs, nil
}

// formatResults writes a tabular summary of finished runs to out.
func formatResults(out io.Writer, results []ingest.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tPAGES\tINSERTED\tUPDATED\tREJECTED\tDUPLICATES\tFAILED UNITS\tFAILED WRITES\tTOTAL")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			r.Source, r.Pages, r.Inserted, r.Updated, r.Rejected, r.Duplicates, r.FailedUnits, r.FailedWrites, r.Total)
	}
	_ = w.Flush()
}
