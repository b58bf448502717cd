// Command gridiron builds NFL team-game feature tables from play-by-play
// exports and serves them over REST and WebSocket.
//
// Usage:
//
//	gridiron build --input 'data/*_plays.csv' --output data/nfl_training.csv
//	gridiron serve
//	gridiron odds --home "Kansas City Chiefs" --away "Baltimore Ravens"
//	gridiron teamform --team KC --season 2024 --week 10
//	gridiron migrate
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fortuna/gridiron/internal/config"
	"github.com/fortuna/gridiron/internal/logging"
)

const (
	serviceName    = "gridiron"
	serviceVersion = "1.0.0"
)

// app carries what every subcommand needs.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func main() {
	_ = godotenv.Load(".env")

	a := &app{}

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "NFL play-by-play feature pipeline",
		Version:       serviceVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			a.logger = logging.New(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}

	root.AddCommand(buildCmd(a))
	root.AddCommand(serveCmd(a))
	root.AddCommand(oddsCmd(a))
	root.AddCommand(teamFormCmd(a))
	root.AddCommand(migrateCmd(a))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
