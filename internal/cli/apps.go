package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
)

var (
	appsQuery         string
	appsHideMicrosoft bool
	appsSort          string
	appsNoSize        bool
	appsLimit         int
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List installed applications",
	RunE: func(cmd *cobra.Command, args []string) error {
		if appsSort != catalog.SortByName && appsSort != catalog.SortBySize {
			return fmt.Errorf("unsupported sort: %s (use name or size)", appsSort)
		}
		if appsNoSize {
			appConfig.Catalog.ComputeSizes = false
		}

		ctx, cancel := signalContext()
		defer cancel()

		s := buildSession()
		if !jsonFlag {
			fmt.Println("Loading installed apps...")
		}
		apps, err := s.catalog.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list installed apps: %w", err)
		}

		f := s.filter()
		f.Query = appsQuery
		f.SortBy = appsSort
		if cmd.Flags().Changed("hide-microsoft") {
			f.HideMicrosoft = appsHideMicrosoft
		}
		if cmd.Flags().Changed("limit") {
			f.Limit = appsLimit
		}
		apps = f.Apply(apps)

		if jsonFlag {
			return printJSON(buildAppsJSON(apps))
		}
		printApps(apps)
		if f.HideMicrosoft {
			fmt.Println("(Microsoft apps hidden; use --hide-microsoft=false to show them)")
		}
		return nil
	},
}

func init() {
	appsCmd.Flags().StringVarP(&appsQuery, "query", "q", "", "Only show apps whose name or publisher contains this text")
	appsCmd.Flags().BoolVar(&appsHideMicrosoft, "hide-microsoft", true, "Hide Microsoft apps (default from config)")
	appsCmd.Flags().StringVar(&appsSort, "sort", catalog.SortByName, "Sort order: name or size")
	appsCmd.Flags().BoolVar(&appsNoSize, "no-size", false, "Skip install folder size computation")
	appsCmd.Flags().IntVar(&appsLimit, "limit", 0, "Maximum number of apps to show (0 = unlimited, default from config)")
}
