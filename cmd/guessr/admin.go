package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/osu-guessr/guessr-stats/internal/repository"
	"github.com/osu-guessr/guessr-stats/internal/seed"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	RunE: func(_ *cobra.Command, _ []string) error {
		return repository.Migrate(&cfg.Database.Postgres, log)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (default 1)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid steps %q: %w", args[0], err)
			}
			steps = n
		}
		return repository.Rollback(&cfg.Database.Postgres, steps, log)
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild-achievements",
	Short: "Recompute every achievement row from the game log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		rows, err := a.aggregator.Rebuild(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Rebuilt %d achievement rows\n", rows)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify-achievements",
	Short: "Compare the achievement rows with the game log without writing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.aggregator.Verify(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Checked %d rows: %d missing, %d extra, %d drifted\n",
			report.Checked, len(report.Missing), len(report.Extra), len(report.Drifted))
		if !report.Consistent() {
			return fmt.Errorf("%d achievement rows need repair, run rebuild-achievements", report.Problems())
		}
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Load users and games from a YAML fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fixture, err := seed.LoadFile(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := seed.Apply(cmd.Context(), fixture, a.users, a.games, log.Component("seed"))
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d users and %d games\n", res.Users, res.Games)
		return nil
	},
}

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apiKeyCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Issue a new API key and print it once",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		plaintext, key, err := a.apiKeys.Create(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Key #%d (%s): %s\n", key.ID, key.Name, plaintext)
		return nil
	},
}

var apiKeyRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid key id %q: %w", args[0], err)
		}

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.apiKeys.Revoke(cmd.Context(), uint(id))
	},
}

var badgeColor string

var badgeCmd = &cobra.Command{
	Use:   "badge <bancho_id> [badge]",
	Short: "Set a player's special badge, or clear it when no badge is given",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid bancho id %q: %w", args[0], err)
		}
		badge := ""
		if len(args) == 2 {
			badge = args[1]
		}

		// Redis is needed so the cached profile is evicted.
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.users.SetSpecialBadge(cmd.Context(), id, badge, badgeColor)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	apiKeyCmd.AddCommand(apiKeyCreateCmd, apiKeyRevokeCmd)
	badgeCmd.Flags().StringVar(&badgeColor, "color", "", "badge color, e.g. #ff66aa")
}
