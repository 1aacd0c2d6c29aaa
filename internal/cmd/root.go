// Package cmd implements the dl1merge command line.
package cmd

import (
	"context"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cta-lst/dl1merge/internal/config"
	"github.com/cta-lst/dl1merge/internal/errors"
	"github.com/cta-lst/dl1merge/internal/logging"
)

// NewRootCmd builds the dl1merge command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dl1merge",
		Short: "Complete, merge and archive LST DL1 productions",
		Long: `dl1merge finishes a DL1 production: it checks that the job logs are clean
and that every file listed in training.list and testing.list was produced,
merges each set into one archive with lstchain_merge_hdf5_files, moves the
results into the final DL1 tree and archives the production directory as logs.

Standalone runs do everything in place. With --workflow the merge and the
relocation are submitted to Slurm as dependent jobs and the id of the last
job is printed for the next stage of the workflow.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd.Annotations[configOptional] != "true")
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/dl1merge/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: "+strings.Join(config.ValidLogLevels(), ", "))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	registerMergeCmd(rootCmd)
	registerCheckCmd(rootCmd)
	registerRelocateCmd(rootCmd)
	registerConfigCmd(rootCmd)

	return rootCmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the run.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// configOptional marks commands that run even when the file named by
// --config does not exist yet.
const configOptional = "config-optional"

func initConfig(strict bool) error {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("DL1MERGE")
	// e.g. DL1MERGE_SCHEDULER_COMMAND for scheduler.command
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicitly named file that is missing is an error; a missing
		// default file is not.
		if errors.As(err, &notFound) && viper.GetString("config") == "" {
			return nil
		}
		if !strict && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.Wrap(err, "reading config")
	}
	return nil
}

// loadConfig returns the validated configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Join(errors.ErrInvalidInput, err)
	}
	return cfg, nil
}

// newLogger opens the logger described by cfg.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.NewLoggerWithRotation(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
}
