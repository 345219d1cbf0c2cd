package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhengda-lu/zerotrace/internal/cleanup"
	"github.com/zhengda-lu/zerotrace/internal/workflow"
)

var (
	uninstallFull         bool
	uninstallRunInstaller bool
	uninstallDryRun       bool
	uninstallYes          bool
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <app-name>",
	Short: "Run an app's uninstaller and remove its leftovers",
	Long: "Optionally runs the application's own uninstaller, then scans for leftover\n" +
		"folders, registry keys, services, scheduled tasks and firewall rules and\n" +
		"removes the ones that exist and are not protected. Requires an elevated prompt.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s := buildSession()
		if !uninstallDryRun && !s.plat.IsElevated() {
			return errors.New(cleanup.AdminRequiredMessage)
		}

		app, err := s.findApp(ctx, args[0])
		if err != nil {
			return err
		}

		full := appConfig.Scan.FullCleanup
		if cmd.Flags().Changed("full") {
			full = uninstallFull
		}

		coord := s.coordinator(func(st workflow.State) {
			if !jsonFlag && st.Busy {
				fmt.Println(st.Status)
			}
		})

		var st workflow.State
		if uninstallRunInstaller {
			st, err = coord.Uninstall(ctx, app, full)
		} else {
			st, err = coord.Scan(ctx, app, full)
		}
		if err != nil {
			return err
		}
		if st.Step != workflow.Audit {
			// The uninstaller failed and the session went back to the picker.
			return errors.New(st.Status)
		}

		targets := itemTargets(st)
		selected := st.Selected()
		report := cleanupJSON{scanJSON: buildScanJSON(app, full, targets, false, st.Status)}

		if !jsonFlag {
			printTargets(targets, false)
		}

		if uninstallDryRun {
			if _, err := coord.FinishScanOnly(); err != nil {
				return err
			}
			if jsonFlag {
				report.DryRun = true
				return printJSON(report)
			}
			fmt.Printf("\n[DRY RUN] Would remove %d item(s).\n", len(selected))
			fmt.Println("[DRY RUN] Nothing was removed.")
			return nil
		}

		if len(selected) == 0 {
			coord.FinishScanOnly()
			if jsonFlag {
				return printJSON(report)
			}
			fmt.Println("Nothing to remove!")
			return nil
		}

		if !jsonFlag {
			printYoloWarning()
		}
		if !shouldSkipConfirm(uninstallYes) && !confirmAction(fmt.Sprintf("\nRemove %d item(s) left by %s?", len(selected), app.DisplayName)) {
			coord.FinishScanOnly()
			fmt.Println("Cancelled.")
			return nil
		}

		st, err = coord.Cleanup(ctx)
		if err != nil {
			return err
		}
		if st.LastResult == nil {
			return errors.New(st.Status)
		}

		if jsonFlag {
			report.Result = st.LastResult
			return printJSON(report)
		}
		printResult(*st.LastResult)
		if st.LastResult.AdminRequired {
			return errors.New(cleanup.AdminRequiredMessage)
		}
		return nil
	},
}

func init() {
	uninstallCmd.Flags().BoolVar(&uninstallFull, "full", true, "Include per-user data folders (default from config)")
	uninstallCmd.Flags().BoolVar(&uninstallRunInstaller, "run-uninstaller", false, "Run the app's own uninstaller before scanning")
	uninstallCmd.Flags().BoolVar(&uninstallDryRun, "dry-run", false, "Show what would be removed without removing anything")
	uninstallCmd.Flags().BoolVarP(&uninstallYes, "yes", "y", false, "Skip confirmation prompt")
}
