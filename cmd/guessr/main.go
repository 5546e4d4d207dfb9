// Command guessr runs the osu!guessr statistics API and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/osu-guessr/guessr-stats/internal/config"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
)

var (
	version    = "dev"
	configPath string
	envFile    string

	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:           "guessr",
	Short:         "osu!guessr statistics service",
	Long:          "Records finished guessing games and serves leaderboards, ranks and player profiles.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		// A missing .env is fine; the environment may already be set.
		_ = godotenv.Load(envFile)

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		log = logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println("guessr", version)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	rootCmd.AddCommand(serveCmd, migrateCmd, rebuildCmd, verifyCmd, seedCmd, apiKeyCmd, badgeCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
