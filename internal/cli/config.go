package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/docseal/docseal/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Manage docseal configuration",
	Long: `Manage docseal configuration stored in .docseal/config.yaml.

The file is decoded strictly: unknown fields or invalid values make every
command fail until they are fixed.

Available commands:
  show              - Show current configuration
  set <key> <value> - Set a configuration value
  get <key>         - Get a configuration value

Settable keys:
  ` + strings.Join(config.Keys, "\n  "),
	DisableFlagsInUseLine: true,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := requireProject()
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(p.Config)
		}
		data, err := yaml.Marshal(p.Config)
		if err != nil {
			return fmt.Errorf("render config: %w", err)
		}
		fmt.Printf("# %s\n", config.Path(p.Root))
		fmt.Print(string(data))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in .docseal/config.yaml.

Examples:
  docseal config set algorithm blake3
  docseal config set compression.codec lz4
  docseal config set default_tags "[ci, nightly]"
  docseal config set retention_policy.keep_min_age 168h

Changing algorithm makes validate report root_mismatch until the tree is
re-approved with "docseal lock --update".`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := requireProject()
		if err != nil {
			return err
		}
		key, value := args[0], args[1]
		if err := p.Config.Set(key, value); err != nil {
			return err
		}
		if err := config.Save(p.Root, p.Config); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		if jsonOutput {
			return outputJSON(map[string]string{"key": key, "value": value})
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := requireProject()
		if err != nil {
			return err
		}
		key := args[0]
		value, err := p.Config.Get(key)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(map[string]string{"key": key, "value": value})
		}
		if value == "" {
			fmt.Printf("%s (not set)\n", key)
		} else {
			fmt.Println(value)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}
