package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cta-lst/dl1merge/internal/errors"
	"github.com/cta-lst/dl1merge/internal/gate"
	"github.com/cta-lst/dl1merge/internal/joblogs"
	"github.com/cta-lst/dl1merge/internal/layout"
	"github.com/cta-lst/dl1merge/internal/util"
)

// missingListLimit caps the missing names printed per set.
const missingListLimit = 20

func registerCheckCmd(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "check <input_dir>",
		Short: "Report whether a production is ready to be merged",
		Long: `Run the readiness checks of 'merge' without prompting, merging or moving
anything. Exits non-zero when job logs report errors or files are missing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0])
		},
	}
	parent.AddCommand(cmd)
}

func runCheck(cmd *cobra.Command, inputDir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	pd := layout.New(inputDir, cfg.Paths)
	if err := pd.Validate(); err != nil {
		return err
	}

	g := gate.New(joblogs.NewChecker(cfg.JobLogs), nil, true, logger)
	report, err := g.Inspect(pd)
	if err != nil {
		return err
	}

	out := printer{w: cmd.OutOrStdout()}
	out.header("%s", pd.Root)
	printJobLogs(out, report.JobLogs)
	for _, s := range report.Sets {
		printSetStatus(out, s)
	}
	if pd.InPlace() {
		out.warn("path has no %q segment; merge cannot derive separate destinations", cfg.Paths.RunningSegment)
	} else {
		out.detail("final DL1 dir: %s", pd.FinalDL1)
		out.detail("logs dir:      %s", pd.LogsDir)
	}

	if !report.JobLogs.Clean() {
		return errors.ErrJobLogsFailed
	}
	if !report.Ready() {
		return errors.ErrIncomplete
	}
	return nil
}

func printJobLogs(out printer, r joblogs.Report) {
	switch {
	case r.DirMissing:
		out.warn("job logs: %s not found", r.Dir)
	case r.Clean():
		out.ok("job logs: %d scanned, no errors", r.Scanned)
	default:
		out.fail("job logs: %d of %d report errors", len(r.Failed), r.Scanned)
		out.detail("%s", util.FormatNames(r.Failed, missingListLimit))
	}
}

func printSetStatus(out printer, s gate.SetStatus) {
	switch {
	case s.Complete() && s.Compared:
		out.ok("%s: %d/%d files (extra files present)", s.Set, s.Present, s.Expected)
	case s.Complete():
		out.ok("%s: %d/%d files", s.Set, s.Present, s.Expected)
	default:
		out.fail("%s: %d/%d files, %d %s missing", s.Set, s.Present, s.Expected,
			len(s.Missing), util.Plural(len(s.Missing), "file", "files"))
		out.detail("%s", util.FormatNames(s.Missing, missingListLimit))
	}
}
