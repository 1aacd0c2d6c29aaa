package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete dl1merge configuration
type Config struct {
	Merge     MergeConfig     `mapstructure:"merge" yaml:"merge"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Relocate  RelocateConfig  `mapstructure:"relocate" yaml:"relocate"`
	Paths     PathsConfig     `mapstructure:"paths" yaml:"paths"`
	JobLogs   JobLogsConfig   `mapstructure:"joblogs" yaml:"joblogs"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// MergeConfig controls the external merge tool
type MergeConfig struct {
	// Tool is the merge executable, invoked as `<tool> -d <set dir> -o <output>`
	Tool string `mapstructure:"tool" yaml:"tool"`
	// Prefix is prepended to the derived merge output filename (default: "dl1_")
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	// Extension is appended to the derived merge output filename (default: ".h5")
	Extension string `mapstructure:"extension" yaml:"extension"`
	// VerifyOutput checks that the merged archive exists after a synchronous merge
	VerifyOutput bool `mapstructure:"verify_output" yaml:"verify_output"`
}

// SchedulerConfig controls batch submission
type SchedulerConfig struct {
	// Command is the submit executable (default: "sbatch")
	Command string `mapstructure:"command" yaml:"command"`
	// ExtraArgs are passed to every submission before the dependency clause,
	// e.g. ["--partition=short", "--mem=8G"]
	ExtraArgs []string `mapstructure:"extra_args" yaml:"extra_args"`
	// SubmitTimeoutSeconds bounds a single submission (0 = no timeout)
	SubmitTimeoutSeconds int `mapstructure:"submit_timeout_seconds" yaml:"submit_timeout_seconds"`
}

// RelocateConfig controls the move-and-archive step
type RelocateConfig struct {
	// ConfigPatterns selects the configuration artifacts copied next to the
	// final DL1 files (glob syntax, default: ["*.json"])
	ConfigPatterns []string `mapstructure:"config_patterns" yaml:"config_patterns"`
	// RequireMergeOutput makes the deferred relocation job fail when a merged
	// archive is missing instead of only warning (default: false)
	RequireMergeOutput bool `mapstructure:"require_merge_output" yaml:"require_merge_output"`
	// Executable overrides the program the deferred relocation job runs.
	// Empty means the running dl1merge binary.
	Executable string `mapstructure:"executable" yaml:"executable"`
}

// PathsConfig controls how destination directories are derived from the
// production directory path
type PathsConfig struct {
	// RunningSegment is the path component identifying a running production (default: "running_analysis")
	RunningSegment string `mapstructure:"running_segment" yaml:"running_segment"`
	// DL1Segment replaces RunningSegment to form the final DL1 directory (default: "DL1")
	DL1Segment string `mapstructure:"dl1_segment" yaml:"dl1_segment"`
	// LogsSegment replaces RunningSegment to form the logs archive directory (default: "analysis_logs")
	LogsSegment string `mapstructure:"logs_segment" yaml:"logs_segment"`
}

// JobLogsConfig controls validation of upstream job logs
type JobLogsConfig struct {
	// Suffixes selects which files in job_logs/ are scanned (default: [".e"])
	Suffixes []string `mapstructure:"suffixes" yaml:"suffixes"`
	// ErrorMarkers are substrings that flag a log as failed (default: ["Error"])
	ErrorMarkers []string `mapstructure:"error_markers" yaml:"error_markers"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where dl1merge.log is written; empty logs to stderr
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// SubmitTimeout returns the submission timeout as a time.Duration (0 means none)
func (c *SchedulerConfig) SubmitTimeout() time.Duration {
	return time.Duration(c.SubmitTimeoutSeconds) * time.Second
}

// Default returns a Config with the values used by the LST onsite productions
func Default() *Config {
	return &Config{
		Merge: MergeConfig{
			Tool:         "lstchain_merge_hdf5_files",
			Prefix:       "dl1_",
			Extension:    ".h5",
			VerifyOutput: true,
		},
		Scheduler: SchedulerConfig{
			Command:              "sbatch",
			ExtraArgs:            []string{},
			SubmitTimeoutSeconds: 0,
		},
		Relocate: RelocateConfig{
			ConfigPatterns:     []string{"*.json"},
			RequireMergeOutput: false,
			Executable:         "",
		},
		Paths: PathsConfig{
			RunningSegment: "running_analysis",
			DL1Segment:     "DL1",
			LogsSegment:    "analysis_logs",
		},
		JobLogs: JobLogsConfig{
			Suffixes:     []string{".e"},
			ErrorMarkers: []string{"Error"},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("merge.tool", defaults.Merge.Tool)
	viper.SetDefault("merge.prefix", defaults.Merge.Prefix)
	viper.SetDefault("merge.extension", defaults.Merge.Extension)
	viper.SetDefault("merge.verify_output", defaults.Merge.VerifyOutput)

	viper.SetDefault("scheduler.command", defaults.Scheduler.Command)
	viper.SetDefault("scheduler.extra_args", defaults.Scheduler.ExtraArgs)
	viper.SetDefault("scheduler.submit_timeout_seconds", defaults.Scheduler.SubmitTimeoutSeconds)

	viper.SetDefault("relocate.config_patterns", defaults.Relocate.ConfigPatterns)
	viper.SetDefault("relocate.require_merge_output", defaults.Relocate.RequireMergeOutput)
	viper.SetDefault("relocate.executable", defaults.Relocate.Executable)

	viper.SetDefault("paths.running_segment", defaults.Paths.RunningSegment)
	viper.SetDefault("paths.dl1_segment", defaults.Paths.DL1Segment)
	viper.SetDefault("paths.logs_segment", defaults.Paths.LogsSegment)

	viper.SetDefault("joblogs.suffixes", defaults.JobLogs.Suffixes)
	viper.SetDefault("joblogs.error_markers", defaults.JobLogs.ErrorMarkers)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dl1merge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dl1merge"
	}
	return filepath.Join(home, ".config", "dl1merge")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
