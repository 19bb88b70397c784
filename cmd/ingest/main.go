package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ev-charging-api/internal/config"
	"ev-charging-api/internal/repository"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfg       config.Config
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load EV charging stations from upstream sources",
	Long:  "Fetches stations from Google Places, OpenChargeMap, Statiq and BEE EV Yatra and upserts them into the shared store.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadConfig(configDir)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := config.InitLogger(c.LogLevel, c.LogFormat); err != nil {
			return eris.Wrap(err, "init logger")
		}
		cfg = c
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "./configs", "directory holding app.env")
}

// openRepository connects to the store and makes sure the schema exists.
// An unreachable store is fatal for every command.
func openRepository(ctx context.Context) (*repository.Repository, error) {
	repo, err := repository.Open(ctx, cfg.DBSource)
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("ingest failed")
		cancel()
		os.Exit(1)
	}
}
