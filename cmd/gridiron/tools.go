package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fortuna/gridiron/internal/odds"
	"github.com/fortuna/gridiron/internal/store"
	"github.com/fortuna/gridiron/internal/teamstats"
)

func oddsCmd(a *app) *cobra.Command {
	var home, away, file string

	cmd := &cobra.Command{
		Use:   "odds",
		Short: "Print consensus odds for a matchup from the odds cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = a.cfg.Data.OddsCacheFile
			}

			c, err := odds.LoadCache(file)
			if err != nil {
				return err
			}

			game, err := c.FindGame(home, away)
			if err != nil {
				return fmt.Errorf("%s vs %s: %w", home, away, err)
			}

			printConsensus(cmd.OutOrStdout(), game, odds.Consensus(game), c.Age(time.Now()))
			return nil
		},
	}

	cmd.Flags().StringVar(&home, "home", "", "Home team name (substring match)")
	cmd.Flags().StringVar(&away, "away", "", "Away team name (substring match)")
	cmd.Flags().StringVar(&file, "file", "", "Odds cache JSON (default ODDS_CACHE_FILE)")
	cmd.MarkFlagRequired("home")
	cmd.MarkFlagRequired("away")

	return cmd
}

func printConsensus(w io.Writer, game *odds.Game, c *odds.ConsensusOdds, ageDays int) {
	fmt.Fprintf(w, "%s @ %s (cache age %dd)\n", game.AwayTeam, game.HomeTeam, ageDays)
	if c == nil {
		fmt.Fprintln(w, "No bookmakers")
		return
	}

	fmt.Fprintf(w, "Sources: %d\n", c.Sources)
	if c.Spread != nil {
		fmt.Fprintf(w, "Spread:  %+.1f\n", *c.Spread)
	}
	if c.Total != nil {
		fmt.Fprintf(w, "Total:   %.1f\n", *c.Total)
	}
	if c.MLHome != nil {
		fmt.Fprintf(w, "ML home: %+d\n", *c.MLHome)
	}
	if c.MLAway != nil {
		fmt.Fprintf(w, "ML away: %+d\n", *c.MLAway)
	}
}

func teamFormCmd(a *app) *cobra.Command {
	var (
		team   string
		season int
		week   int
		n      int
		file   string
	)

	cmd := &cobra.Command{
		Use:   "teamform",
		Short: "Print last-N and season averages from the team stats table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = a.cfg.Data.TeamStatsFile
			}

			games, err := teamstats.LoadFile(file)
			if err != nil {
				return err
			}

			form, err := teamstats.ComputeForm(games, strings.ToUpper(team), season, week, n)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(form)
		},
	}

	cmd.Flags().StringVar(&team, "team", "", "Team code")
	cmd.Flags().IntVar(&season, "season", time.Now().Year(), "Season")
	cmd.Flags().IntVar(&week, "week", 0, "Only games before this week (0 = all)")
	cmd.Flags().IntVar(&n, "n", 5, "Games in the recent window")
	cmd.Flags().StringVar(&file, "file", "", "Team stats CSV (default TEAM_STATS_FILE)")
	cmd.MarkFlagRequired("team")

	return cmd
}

func migrateCmd(a *app) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = a.cfg.DatabaseDSN
			}
			if dsn == "" {
				return fmt.Errorf("DATABASE_DSN or --dsn is required")
			}

			db, err := store.NewDatabase(dsn, a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.RunMigrations(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("✓ Database migrations applied")
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN (default DATABASE_DSN)")
	return cmd
}
