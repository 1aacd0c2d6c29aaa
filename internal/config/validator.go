package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/cta-lst/dl1merge/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "merge.tool")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels, lowercase
func ValidLogLevels() []string {
	levels := logging.ValidLevels()
	for i, l := range levels {
		levels[i] = strings.ToLower(l)
	}
	return levels
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateMerge()...)
	errors = append(errors, c.validateScheduler()...)
	errors = append(errors, c.validateRelocate()...)
	errors = append(errors, c.validatePaths()...)
	errors = append(errors, c.validateJobLogs()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateMerge() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Merge.Tool) == "" {
		errors = append(errors, ValidationError{
			Field:   "merge.tool",
			Value:   c.Merge.Tool,
			Message: "must not be empty",
		})
	}
	if strings.ContainsRune(c.Merge.Prefix, '/') || strings.ContainsRune(c.Merge.Extension, '/') {
		errors = append(errors, ValidationError{
			Field:   "merge.prefix/extension",
			Value:   c.Merge.Prefix + "…" + c.Merge.Extension,
			Message: "must not contain path separators",
		})
	}
	if c.Merge.Extension != "" && !strings.HasPrefix(c.Merge.Extension, ".") {
		errors = append(errors, ValidationError{
			Field:   "merge.extension",
			Value:   c.Merge.Extension,
			Message: "must start with '.'",
		})
	}

	return errors
}

func (c *Config) validateScheduler() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Scheduler.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "scheduler.command",
			Value:   c.Scheduler.Command,
			Message: "must not be empty",
		})
	}
	if c.Scheduler.SubmitTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.submit_timeout_seconds",
			Value:   c.Scheduler.SubmitTimeoutSeconds,
			Message: "must be non-negative",
		})
	}
	for _, arg := range c.Scheduler.ExtraArgs {
		// The dependency clause is owned by the dispatcher.
		if strings.HasPrefix(arg, "--dependency") || arg == "-d" {
			errors = append(errors, ValidationError{
				Field:   "scheduler.extra_args",
				Value:   arg,
				Message: "must not set a dependency",
			})
		}
	}

	return errors
}

func (c *Config) validateRelocate() []ValidationError {
	var errors []ValidationError

	for _, pattern := range c.Relocate.ConfigPatterns {
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   "relocate.config_patterns",
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob: %v", err),
			})
		}
	}

	return errors
}

func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	segments := map[string]string{
		"paths.running_segment": c.Paths.RunningSegment,
		"paths.dl1_segment":     c.Paths.DL1Segment,
		"paths.logs_segment":    c.Paths.LogsSegment,
	}
	for _, field := range []string{"paths.running_segment", "paths.dl1_segment", "paths.logs_segment"} {
		if strings.TrimSpace(segments[field]) == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   segments[field],
				Message: "must not be empty",
			})
		}
	}

	if c.Paths.DL1Segment != "" && c.Paths.DL1Segment == c.Paths.LogsSegment {
		errors = append(errors, ValidationError{
			Field:   "paths.logs_segment",
			Value:   c.Paths.LogsSegment,
			Message: "must differ from paths.dl1_segment",
		})
	}
	if c.Paths.RunningSegment != "" &&
		(c.Paths.RunningSegment == c.Paths.DL1Segment || c.Paths.RunningSegment == c.Paths.LogsSegment) {
		errors = append(errors, ValidationError{
			Field:   "paths.running_segment",
			Value:   c.Paths.RunningSegment,
			Message: "must differ from the destination segments",
		})
	}

	return errors
}

func (c *Config) validateJobLogs() []ValidationError {
	var errors []ValidationError

	if len(c.JobLogs.Suffixes) == 0 {
		errors = append(errors, ValidationError{
			Field:   "joblogs.suffixes",
			Value:   c.JobLogs.Suffixes,
			Message: "must list at least one suffix",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
