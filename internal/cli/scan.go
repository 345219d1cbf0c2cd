package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/scancache"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
	"github.com/zhengda-lu/zerotrace/internal/workflow"
)

var (
	scanFull        bool
	scanAll         bool
	scanDomains     []string
	scanListDomains bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <app-name>",
	Short: "Scan for an application's leftovers without removing anything",
	Args: func(cmd *cobra.Command, args []string) error {
		if scanListDomains {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s := buildSession()
		if scanListDomains {
			names := domainNames(s.engine)
			if jsonFlag {
				return printJSON(names)
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		}
		domains, err := checkDomains(s.engine, scanDomains)
		if err != nil {
			return err
		}

		app, err := s.findApp(ctx, args[0])
		if err != nil {
			return err
		}

		full := appConfig.Scan.FullCleanup
		if cmd.Flags().Changed("full") {
			full = scanFull
		}

		if !jsonFlag {
			fmt.Printf("Scanning for leftovers of %q...\n", app.DisplayName)
		}
		coord := s.coordinatorFor(domains, nil)
		st, err := coord.Scan(ctx, app, full)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		targets := itemTargets(st)
		if st, err = coord.FinishScanOnly(); err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		diff := rememberScan(app, targets, len(domains) == 0)

		if jsonFlag {
			out := buildScanJSON(app, full, targets, scanAll, st.Status)
			out.SinceLast = diff
			return printJSON(out)
		}
		printTargets(targets, scanAll)
		printScanDiff(diff)
		fmt.Println(st.Status)
		return nil
	},
}

// rememberScan stores a complete scan in the scan cache and returns how it
// differs from the previous one. Partial scans are compared but not stored.
func rememberScan(app catalog.App, targets []scanner.Target, complete bool) *scancache.DiffResult {
	snap := scancache.FromTargets(app, targets, time.Now().UTC())
	path := scancache.DefaultPath()
	var prev *scancache.Snapshot
	if complete {
		var err error
		if prev, err = scancache.Exchange(path, scancache.Key(app), snap); err != nil {
			logger.V(1).Info("could not update scan cache", "path", path, "error", err.Error())
		}
	} else if c, err := scancache.Load(path); err == nil {
		if old, ok := c[scancache.Key(app)]; ok {
			prev = &old
		}
	}
	if prev == nil {
		return nil
	}
	d := scancache.Diff(*prev, snap)
	return &d
}

func itemTargets(st workflow.State) []scanner.Target {
	out := make([]scanner.Target, 0, len(st.Items))
	for _, it := range st.Items {
		out = append(out, it.Target)
	}
	return out
}

func init() {
	scanCmd.Flags().BoolVar(&scanFull, "full", true, "Include per-user data folders (default from config)")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Also show candidates that do not exist")
	scanCmd.Flags().StringSliceVar(&scanDomains, "domain", nil, "Only scan these domains (repeatable, see --list-domains)")
	scanCmd.Flags().BoolVar(&scanListDomains, "list-domains", false, "List the scan domains and exit")
}
