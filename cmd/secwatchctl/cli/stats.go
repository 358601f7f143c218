package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/huangang/secwatch/internal/services"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print dashboard statistics",
	Long: `Compute the dashboard payload directly against the configured database.

Examples:
  secwatchctl stats
  secwatchctl stats --json | jq .eventsByHour`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print the raw JSON payload served by /api/dashboard/stats")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, closeDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	svc := services.NewDashboardService(services.NewGormDashboardStore(db), nil)
	resp, err := svc.GetStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch dashboard stats: %w", err)
	}

	out := cmd.OutOrStdout()
	if statsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	renderStats(out, resp)
	return nil
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)

	t.Style().Title.Align = text.AlignCenter
	t.Style().Format.Header = text.FormatDefault

	return t
}

func renderStats(w io.Writer, resp *services.DashboardResponse) {
	summary := newTable(w, "Overview")
	summary.AppendHeader(table.Row{"Total Events", "Active Alerts", "Active Sources", "Active Policies"})
	summary.AppendRow(table.Row{
		resp.Stats.TotalEvents,
		resp.Stats.ActiveAlerts,
		resp.Stats.ActiveSources,
		resp.Stats.ActivePolicies,
	})
	summary.Render()

	recent := newTable(w, "Recent Events")
	recent.AppendHeader(table.Row{"Timestamp", "Type", "Source", "Risk", "Status", "ID"})
	for _, e := range resp.RecentEvents {
		recent.AppendRow(table.Row{e.Timestamp.String(), e.Type, e.Source, fmt.Sprintf("%.1f", e.RiskScore), e.Status, e.ID})
	}
	if len(resp.RecentEvents) == 0 {
		recent.AppendRow(table.Row{"-", "-", "-", "-", "-", "-"})
	}
	recent.Render()

	hourly := newTable(w, "Events by Hour (last 24h)")
	hourly.AppendHeader(table.Row{"Hour", "Count"})
	var total int64
	for _, b := range resp.EventsByHour {
		hourly.AppendRow(table.Row{b.Hour.String(), b.Count})
		total += b.Count
	}
	hourly.AppendFooter(table.Row{"Total", total})
	hourly.Render()
}
