package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cta-lst/dl1merge/internal/relocate"
)

type relocateOptions struct {
	paths         relocate.Paths
	expect        []string
	requireOutput bool
}

func registerRelocateCmd(parent *cobra.Command) {
	var opts relocateOptions

	cmd := &cobra.Command{
		Use:   "relocate",
		Short: "Move merged DL1 files to their final place and archive the production",
		Long: `Move the content of --run-dl1 into --dl1-dir, copy the configuration files
of --indir next to them, then move what is left of --indir into --logs-dir.

This is the job 'merge --workflow' submits after the merge jobs; it can also
be run by hand to finish a production whose merge was run separately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelocate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.paths.FinalDL1, "dl1-dir", "", "final DL1 directory")
	cmd.Flags().StringVar(&opts.paths.RunningDL1, "run-dl1", "", "working DL1 directory of the production")
	cmd.Flags().StringVar(&opts.paths.LogsDir, "logs-dir", "", "logs archive directory")
	cmd.Flags().StringVar(&opts.paths.Root, "indir", "", "production directory")
	cmd.Flags().StringArrayVar(&opts.expect, "expect", nil, "merge output that should exist (repeatable)")
	cmd.Flags().BoolVar(&opts.requireOutput, "require-output", false, "fail instead of warning when an --expect file is missing")
	for _, name := range []string{"dl1-dir", "run-dl1", "logs-dir", "indir"} {
		_ = cmd.MarkFlagRequired(name)
	}

	parent.AddCommand(cmd)
}

func runRelocate(cmd *cobra.Command, opts relocateOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	out := printer{w: cmd.OutOrStdout()}
	r := relocate.New(cfg.Relocate, nil, logger)

	res, err := r.Run(cmd.Context(), opts.paths, opts.expect, opts.requireOutput || cfg.Relocate.RequireMergeOutput)
	for _, missing := range res.MissingOutputs {
		out.warn("merge output missing: %s", missing)
	}
	if err != nil {
		reportError(out, logger, err)
		return err
	}

	out.ok("DL1 files have been moved to %s (%d entries)", opts.paths.FinalDL1, res.MovedDL1)
	if len(res.ConfigFiles) > 0 {
		out.ok("config files copied: %v", res.ConfigFiles)
	}
	out.ok("logs have been moved to %s (%d entries)", opts.paths.LogsDir, res.MovedLogs)
	return nil
}
