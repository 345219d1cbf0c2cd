package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/zhengda-lu/zerotrace/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"stats"},
	Short:   "Show cleanup history and statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		h := history.New(history.DefaultPath())
		stats := h.Stats(historyLimit)

		if jsonFlag {
			return printJSON(buildHistoryJSON(stats))
		}

		fmt.Println("zerotrace -- Cleanup History")
		fmt.Println()

		if stats.TotalCleanups == 0 {
			fmt.Println("  No cleanup history yet. Run 'zerotrace uninstall <app>' to get started.")
			fmt.Println()
			return nil
		}

		fmt.Printf("  Items removed all-time:   %d\n", stats.TotalRemoved)
		fmt.Printf("  Deferred to next logon:   %d\n", stats.TotalDeferred)
		fmt.Printf("  Total cleanups:           %d\n", stats.TotalCleanups)

		if len(stats.ByApp) > 0 {
			fmt.Println()
			fmt.Println("  By App:")

			type appEntry struct {
				name  string
				stats history.AppStats
			}
			apps := make([]appEntry, 0, len(stats.ByApp))
			for name, as := range stats.ByApp {
				apps = append(apps, appEntry{name: name, stats: as})
			}
			sort.Slice(apps, func(i, j int) bool {
				if apps[i].stats.Removed != apps[j].stats.Removed {
					return apps[i].stats.Removed > apps[j].stats.Removed
				}
				return apps[i].name < apps[j].name
			})

			for _, a := range apps {
				label := "cleanups"
				if a.stats.Cleanups == 1 {
					label = "cleanup"
				}
				fmt.Printf("    %-32s %5d items  (%d %s)\n", truncateText(a.name, 32), a.stats.Removed, a.stats.Cleanups, label)
			}
		}

		fmt.Println()
		fmt.Println("  Recent:")
		for _, e := range stats.Recent {
			c := e.Counts
			fmt.Printf("    %s  %-28s paths %d, registry %d, services %d, tasks %d, firewall %d",
				e.Timestamp.Format("2006-01-02 15:04"), truncateText(e.App, 28),
				c.Paths, c.Registry, c.Services, c.Tasks, c.Firewall)
			if e.Deferred > 0 {
				fmt.Printf(", deferred %d", e.Deferred)
			}
			if e.Errors > 0 {
				fmt.Printf(", errors %d", e.Errors)
			}
			fmt.Println()
		}

		fmt.Println()
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of recent entries to show (0 = all)")
}
