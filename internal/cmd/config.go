package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cta-lst/dl1merge/internal/config"
	"github.com/cta-lst/dl1merge/internal/errors"
)

const configHeader = `# dl1merge configuration
#
# Every key can be overridden by an environment variable named after it,
# e.g. DL1MERGE_SCHEDULER_COMMAND for scheduler.command.

`

func registerConfigCmd(parent *cobra.Command) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View or create the dl1merge configuration",
		Long: `View or create the dl1merge configuration.

Without arguments, displays the effective configuration.`,
		RunE: runConfigShow,
	}

	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE:  runConfigShow,
	}

	var force bool
	configInitCmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a config file with the default values",
		Annotations: map[string]string{configOptional: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, force)
		},
	}
	configInitCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	configPathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show the config file path",
		RunE:  runConfigPath,
	}

	configCmd.AddCommand(configShowCmd, configInitCmd, configPathCmd)
	parent.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(w, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(w, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	_, err = w.Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	configFile := config.ConfigFile()
	if path := viper.GetString("config"); path != "" {
		configFile = path
	}

	if _, err := os.Stat(configFile); err == nil && !force {
		return errors.NewValidationError("config file already exists, use --force to overwrite").
			WithField("config").WithValue(configFile)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return errors.Wrap(err, "encoding default config")
	}
	if err := os.WriteFile(configFile, append([]byte(configHeader), data...), 0644); err != nil {
		return errors.Wrap(err, "writing config file")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(w, "Active config: %s\n", used)
	} else {
		fmt.Fprintf(w, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(w, "\nSearch paths:")
	fmt.Fprintf(w, "  1. %s\n", config.ConfigFile())
	fmt.Fprintln(w, "  2. ./config.yaml (current directory)")
	fmt.Fprintln(w, "\nEnvironment variables: DL1MERGE_* (e.g., DL1MERGE_MERGE_TOOL)")
	return nil
}
