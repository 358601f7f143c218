package cli

import (
	"fmt"

	"github.com/huangang/secwatch/internal/services"
	"github.com/spf13/cobra"
)

var cleanupDays int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Maintain the persisted system log",
}

var logsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete system logs older than the retention window",
	Long: `Run the retention job once, outside the server's cron schedule.

Examples:
  secwatchctl logs cleanup
  secwatchctl logs cleanup --days 7`,
	RunE: runLogsCleanup,
}

func init() {
	logsCleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "Retention in days (defaults to system_log.retention_days)")

	logsCmd.AddCommand(logsCleanupCmd)
}

func runLogsCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	days := cleanupDays
	if days <= 0 {
		days = cfg.SystemLog.RetentionDays
	}
	if days <= 0 {
		return fmt.Errorf("retention must be positive, got %d days", days)
	}

	db, closeDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	deleted, err := services.NewSystemLogService(db).CleanupOldLogs(days)
	if err != nil {
		return fmt.Errorf("failed to cleanup system logs: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d system logs older than %d days\n", deleted, days)
	return nil
}
