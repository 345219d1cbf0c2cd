package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/cleanup"
	"github.com/zhengda-lu/zerotrace/internal/scancache"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
	"github.com/zhengda-lu/zerotrace/internal/utils"
)

// groupByKind buckets targets in scanner.Kinds order. Missing targets are
// dropped unless showMissing is set.
func groupByKind(targets []scanner.Target, showMissing bool) map[scanner.Kind][]scanner.Target {
	grouped := make(map[scanner.Kind][]scanner.Target)
	for _, t := range targets {
		if !t.Exists && !showMissing {
			continue
		}
		grouped[t.Kind] = append(grouped[t.Kind], t)
	}
	return grouped
}

func printTargets(targets []scanner.Target, showMissing bool) {
	grouped := groupByKind(targets, showMissing)
	if len(grouped) == 0 {
		fmt.Println("No leftovers found.")
		return
	}

	removable := 0
	for _, kind := range scanner.Kinds {
		items := grouped[kind]
		if len(items) == 0 {
			continue
		}

		fmt.Printf("\n%s (%d items)\n", kind, len(items))
		fmt.Println(strings.Repeat("-", 78))

		for _, item := range items {
			flag := ""
			switch {
			case item.Blocked:
				flag = " [blocked]"
			case !item.Exists:
				flag = " [missing]"
			default:
				removable++
			}
			fmt.Printf("  %-50s %-7s %s%s\n", truncatePath(item.Value, 50), item.Confidence, item.Meta, flag)
		}
	}

	fmt.Printf("\n%d removable item(s).\n", removable)
}

func printApps(apps []catalog.App) {
	if len(apps) == 0 {
		fmt.Println("No installed apps found.")
		return
	}
	fmt.Printf("%-40s %-24s %-14s %10s  %s\n", "Name", "Publisher", "Version", "Size", "Source")
	fmt.Println(strings.Repeat("-", 100))
	for _, a := range apps {
		size := "-"
		if a.SizeBytes != nil {
			size = utils.FormatSize(*a.SizeBytes)
		}
		fmt.Printf("%-40s %-24s %-14s %10s  %s\n",
			truncateText(a.DisplayName, 40), truncateText(a.Publisher, 24), truncateText(a.Version, 14), size, a.Source)
	}
	fmt.Printf("\n%d app(s).\n", len(apps))
}

func printResult(res cleanup.Result) {
	fmt.Println(res.Message)
	for _, f := range res.Failures {
		fmt.Printf("  Failed: %s %s (%s)\n", f.Target.Kind, f.Target.Value, f.Reason)
	}
	if res.Registration != nil {
		fmt.Printf("  Deletion script: %s\n", res.Registration.Script)
	}
}

func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}

func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func confirmAction(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var response string
	fmt.Scanln(&response)
	return strings.ToLower(strings.TrimSpace(response)) == "y"
}

// printScanDiff reports how the leftovers changed since the previous scan.
func printScanDiff(d *scancache.DiffResult) {
	if d == nil {
		return
	}
	when := humanize.Time(d.PreviousTimestamp)
	if !d.Changed() {
		fmt.Printf("No change since the last scan (%s).\n", when)
		return
	}
	fmt.Printf("Since the last scan (%s):\n", when)
	for _, k := range scanner.Kinds {
		kd, ok := d.Kinds[k.String()]
		if !ok || kd.Delta == 0 {
			continue
		}
		fmt.Printf("  %-14s %+d (%d -> %d)\n", k.String(), kd.Delta, kd.Previous, kd.Current)
	}
}
