package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/cleanup"
	"github.com/zhengda-lu/zerotrace/internal/config"
	"github.com/zhengda-lu/zerotrace/internal/engine"
	"github.com/zhengda-lu/zerotrace/internal/history"
	"github.com/zhengda-lu/zerotrace/internal/platform"
	"github.com/zhengda-lu/zerotrace/internal/resolve"
	"github.com/zhengda-lu/zerotrace/internal/safety"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
	"github.com/zhengda-lu/zerotrace/internal/schedule"
	"github.com/zhengda-lu/zerotrace/internal/tui"
	"github.com/zhengda-lu/zerotrace/internal/uninstall"
	"github.com/zhengda-lu/zerotrace/internal/workflow"
)

var (
	yoloMode   bool
	jsonFlag   bool
	verbosity  int
	configPath string
	appConfig  *config.Config
	logger     = logr.Discard()

	// Set via ldflags at build time.
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "zerotrace",
	Short:   "Find and remove what uninstallers leave behind",
	Long:    "zerotrace lists installed applications, finds leftover folders, registry keys,\nservices, scheduled tasks and firewall rules, and removes the ones you select.\nLaunch without subcommands for interactive TUI mode.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Flags().Changed("version") {
			appConfig = config.Default()
			return nil
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		appConfig = cfg

		for _, w := range appConfig.Validate() {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		logger = newLogger(max(verbosity, appConfig.Log.Verbosity))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if shell, _ := cmd.Flags().GetString("generate-completion"); shell != "" {
			switch shell {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, fish, or powershell)", shell)
			}
		}

		s := buildSession()
		var p *tea.Program
		// The observer also fires from Update on the event loop, where a
		// blocking Send would never be received.
		coord := s.coordinator(func(st workflow.State) {
			if p != nil {
				go p.Send(tui.StateMsg(st))
			}
		})
		p = tea.NewProgram(tui.New(s.catalog, coord, s.filter(), appConfig.Scan.FullCleanup), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("zerotrace %s\n", version))
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVar(&yoloMode, "yolo", false, "Skip ALL confirmation prompts (dangerous!)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity on stderr (repeatable)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", `Path to config file (default %APPDATA%\zerotrace\config.yaml)`)
	rootCmd.Flags().String("generate-completion", "", "Generate shell completion (bash, zsh, fish, powershell)")
	rootCmd.Flags().MarkHidden("generate-completion")
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
}

// RootCmd returns the root cobra command for documentation generation.
func RootCmd() *cobra.Command {
	return rootCmd
}

// newLogger writes diagnostics to stderr. Level 0 messages always print;
// -v enables V(1) and so on.
func newLogger(v int) logr.Logger {
	stdr.SetVerbosity(v)
	return stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("zerotrace")
}

// shouldSkipConfirm returns true if the user wants to skip confirmation,
// either via command-specific --yes or global --yolo.
func shouldSkipConfirm(cmdYes bool) bool {
	return cmdYes || yoloMode
}

// printYoloWarning prints a warning banner when --yolo mode is active.
func printYoloWarning() {
	if yoloMode {
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "  WARNING: --yolo mode is active. All confirmations will be skipped!")
		fmt.Fprintln(os.Stderr, "  Leftovers will be deleted without asking. Press Ctrl+C NOW to abort.")
		fmt.Fprintln(os.Stderr, "")
	}
}

// signalContext is cancelled on Ctrl+C so long scans and cleanups stop
// between items.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// session holds the components wired from the loaded config.
type session struct {
	plat     platform.Platform
	gate     *safety.Gate
	catalog  *catalog.Catalog
	engine   *engine.Engine
	resolver *resolve.Resolver
	executor *cleanup.Executor
	uninst   *uninstall.Runner
	history  *history.History
}

func buildSession() *session {
	if appConfig == nil {
		appConfig = config.Default()
	}
	cfg := appConfig

	plat := platform.New(platform.Options{
		TaskQueryTimeout:     cfg.TaskQueryTimeout(),
		FirewallQueryTimeout: cfg.FirewallQueryTimeout(),
	})
	gate := safety.New(plat.Folders(), cfg.IsExcluded)

	e := engine.New(logger)
	e.SetConcurrency(cfg.Scan.Concurrency)
	e.Register(scanner.Domains(plat, gate, cfg.Scan.ProtectedPublishers)...)

	return &session{
		plat: plat,
		gate: gate,
		catalog: catalog.New(plat, catalog.Options{
			ComputeSizes: cfg.Catalog.ComputeSizes,
			SizeBudget:   cfg.SizeBudget(),
			Steam:        cfg.Catalog.Steam,
		}, logger),
		engine:   e,
		resolver: resolve.New(plat, gate, logger),
		executor: cleanup.New(plat, gate, schedule.New(plat, plat.Folders().Temp),
			cleanup.Options{ServiceStopTimeout: cfg.ServiceStopTimeout()}, logger),
		uninst:  uninstall.New(plat, cfg.UninstallerTimeout(), logger),
		history: history.New(history.DefaultPath()),
	}
}

func (s *session) filter() catalog.Filter {
	return catalog.Filter{
		HideMicrosoft: appConfig.Catalog.HideMicrosoft,
		SortBy:        catalog.SortByName,
		Limit:         appConfig.Catalog.Limit,
	}
}

func (s *session) coordinator(observer workflow.Observer) *workflow.Coordinator {
	return s.coordinatorFor(nil, observer)
}

// coordinatorFor limits scans to the named domains; nil means all of them.
func (s *session) coordinatorFor(domains []string, observer workflow.Observer) *workflow.Coordinator {
	return workflow.New(workflow.Deps{
		Scanner:     domainScanner{engine: s.engine, domains: domains, log: logger},
		Resolver:    s.resolver,
		Executor:    s.executor,
		Uninstaller: s.uninst,
		Recorder:    s.history,
		Observer:    observer,
	}, appConfig.Scan.FullCleanup, logger)
}

// findApp resolves a user-typed name to exactly one installed app.
func (s *session) findApp(ctx context.Context, name string) (catalog.App, error) {
	apps, err := s.catalog.List(ctx)
	if err != nil {
		return catalog.App{}, fmt.Errorf("failed to list installed apps: %w", err)
	}
	return pickApp(apps, name)
}

func pickApp(apps []catalog.App, name string) (catalog.App, error) {
	matches := catalog.Find(apps, name)
	switch len(matches) {
	case 0:
		return catalog.App{}, fmt.Errorf("no installed app matches %q", name)
	case 1:
		return matches[0], nil
	default:
		msg := fmt.Sprintf("%q matches %d apps; be more specific:", name, len(matches))
		for i, a := range matches {
			if i == 10 {
				msg += fmt.Sprintf("\n  ... and %d more", len(matches)-i)
				break
			}
			msg += "\n  " + a.DisplayName
		}
		return catalog.App{}, fmt.Errorf("%s", msg)
	}
}
