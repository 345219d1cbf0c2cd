package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zhengda-lu/zerotrace/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management",
}

func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonFlag {
			return printJSON(appConfig)
		}
		data, err := yaml.Marshal(appConfig)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Overwrite the config file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		if !shouldSkipConfirm(false) && !confirmAction(fmt.Sprintf("Reset %s to defaults?", p)) {
			fmt.Println("Cancelled.")
			return nil
		}
		if err := config.Default().Save(p); err != nil {
			return err
		}
		fmt.Printf("Config reset (%s)\n", p)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolvedConfigPath()
		if err != nil {
			return err
		}

		cfg, err := config.LoadFrom(p)
		if err != nil {
			return err
		}
		warnings := cfg.Validate()

		if len(warnings) == 0 {
			fmt.Printf("Config OK (%s)\n", p)
			return nil
		}

		fmt.Printf("Found %d warning(s) in %s:\n", len(warnings), p)
		for _, w := range warnings {
			fmt.Printf("  %s\n", w)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configValidateCmd)
}
