package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhengda-lu/zerotrace/internal/cleanup"
	"github.com/zhengda-lu/zerotrace/internal/platform"
)

var servicesQuery string

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Inspect services and change their start type",
}

var servicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List services with status and start type",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		plat := buildSession().plat
		services, err := plat.ListServices(ctx)
		if err != nil {
			return fmt.Errorf("failed to list services: %w", err)
		}
		services = filterServices(services, servicesQuery)

		if jsonFlag {
			return printJSON(buildServicesJSON(services))
		}
		if len(services) == 0 {
			fmt.Println("No services found.")
			return nil
		}
		fmt.Printf("%-32s %-40s %-10s %s\n", "Name", "Display Name", "Status", "Start Type")
		fmt.Println(strings.Repeat("-", 100))
		for _, s := range services {
			fmt.Printf("%-32s %-40s %-10s %s\n",
				truncateText(s.Name, 32), truncateText(s.DisplayName, 40), s.Status, s.StartType)
		}
		fmt.Printf("\n%d service(s).\n", len(services))
		return nil
	},
}

var servicesSetStartCmd = &cobra.Command{
	Use:   "set-start <name> <automatic|manual|disabled>",
	Short: "Change the start type of a service",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := platform.ParseStartType(args[1])
		if err != nil {
			return err
		}
		plat := buildSession().plat
		if !plat.IsElevated() {
			return errors.New(cleanup.AdminRequiredMessage)
		}
		if !plat.ServiceExists(args[0]) {
			return fmt.Errorf("service %q not found", args[0])
		}
		if err := platform.SetServiceStartType(plat, args[0], st); err != nil {
			return fmt.Errorf("failed to set start type: %w", err)
		}
		fmt.Printf("%s start type set to %s.\n", args[0], st)
		return nil
	},
}

// filterServices keeps services whose name or display name contains query
// and sorts them by name.
func filterServices(services []platform.ServiceInfo, query string) []platform.ServiceInfo {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]platform.ServiceInfo, 0, len(services))
	for _, s := range services {
		if q != "" && !strings.Contains(strings.ToLower(s.Name), q) && !strings.Contains(strings.ToLower(s.DisplayName), q) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func init() {
	servicesListCmd.Flags().StringVarP(&servicesQuery, "query", "q", "", "Only show services whose name contains this text")
	servicesCmd.AddCommand(servicesListCmd)
	servicesCmd.AddCommand(servicesSetStartCmd)
}
