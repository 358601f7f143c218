package cli

import (
	"os"

	"github.com/huangang/secwatch/internal/config"
	"github.com/huangang/secwatch/internal/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "secwatchctl",
	Short: "Operate a secwatch dashboard deployment",
	Long: `secwatchctl reads the same config.yaml as the secwatch server.
Inspect dashboard statistics straight from the database, mint bearer
tokens for an auth-enabled server, and run system log maintenance.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "Path to config.yaml (defaults to $CONFIG_PATH, then ./config.yaml)")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(logsCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// openDB connects without migrating; the CLI never changes the schema.
func openDB(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := models.Open(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return db, closeFn, nil
}
