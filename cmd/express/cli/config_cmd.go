package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/orcfax/protocol-server/cmd/express/cli/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage express configuration",
	Long: `View and modify express configuration.

Without arguments, displays the current effective configuration.
Use subcommands to view the config path, initialize a config file,
or set configuration values.`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE: func(_ *cobra.Command, _ []string) error {
		if cfgFile != "" {
			fmt.Println(cfgFile)
			return nil
		}
		configPath, err := config.Path()
		if err != nil {
			return err
		}
		fmt.Println(configPath)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long: `Create a default configuration file at the XDG config path.

The file will be created at ~/.config/express/config.yaml (or
$XDG_CONFIG_HOME/express/config.yaml if set).`,
	RunE: runConfigInit,
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	configDir, err := config.Dir()
	if err != nil {
		return err
	}
	configPath := filepath.Join(configDir, config.FileName)

	// Check if already exists
	if _, statErr := os.Stat(configPath); statErr == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if mkdirErr := os.MkdirAll(configDir, 0o750); mkdirErr != nil {
		return mkdirErr
	}

	data, err := yaml.Marshal(config.Defaults())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if writeErr := os.WriteFile(configPath, data, 0o600); writeErr != nil {
		return writeErr
	}

	fmt.Printf("Created config file: %s\n", configPath)
	return nil
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Examples:
  express config set feed.interval 10s
  express config set nats.url nats://127.0.0.1:4222`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		// Parse boolean and integer values
		var parsedValue any = value
		if b, err := strconv.ParseBool(value); err == nil {
			parsedValue = b
		} else if n, err := strconv.Atoi(value); err == nil {
			parsedValue = n
		}

		viper.Set(key, parsedValue)
		if _, err := config.Load(viper.GetViper()); err != nil {
			return err
		}

		configPath := cfgFile
		if configPath == "" {
			var err error
			if configPath, err = config.Path(); err != nil {
				return err
			}
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
			return err
		}
		if err := viper.WriteConfigAs(configPath); err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		fmt.Printf("Updated %s = %v\n", key, parsedValue)
		return nil
	},
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	// Show all settings with their effective values
	settings := viper.AllSettings()
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
