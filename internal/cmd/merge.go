package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cta-lst/dl1merge/internal/errors"
	"github.com/cta-lst/dl1merge/internal/layout"
	"github.com/cta-lst/dl1merge/internal/orchestrator"
	"github.com/cta-lst/dl1merge/internal/prompt"
	"github.com/cta-lst/dl1merge/internal/record"
	"github.com/cta-lst/dl1merge/internal/runner"
	"github.com/cta-lst/dl1merge/internal/scheduler"
)

type mergeOptions struct {
	workflow  bool
	particle  string
	dependsOn string
	yes       bool
	recordOut string
}

func registerMergeCmd(parent *cobra.Command) {
	var opts mergeOptions

	cmd := &cobra.Command{
		Use:   "merge <input_dir>",
		Short: "Check, merge and relocate a finished DL1 production",
		Long: `Check, merge and relocate a DL1 production.

  1. check job_logs
  2. check that all files listed in training.list and testing.list exist in DL1/
  3. merge DL1/testing and DL1/training into one archive each
  4. move DL1 files to their final place
  5. move the production directory to the logs archive

With --workflow, steps 3 to 5 are submitted to Slurm: one merge job per set,
waiting for --depends-on, and one relocation job waiting for both merges.
The relocation job id is printed on stdout.`,
		Example: `  dl1merge merge /fefs/aswg/data/mc/running_analysis/20200629/gamma/south_pointing
  dl1merge merge --workflow --particle gamma --depends-on 4242,4243 --record-out jobs.yaml <input_dir>`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.workflow, "workflow", false, "run as a stage of a larger workflow: submit jobs instead of running inline")
	cmd.Flags().StringVar(&opts.particle, "particle", "", "particle type keying the job record (required with --workflow)")
	cmd.Flags().StringVar(&opts.dependsOn, "depends-on", "", "comma separated job ids the merge jobs wait for")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "continue past readiness problems without asking")
	cmd.Flags().StringVar(&opts.recordOut, "record-out", "", "merge the job record into this file (.json, .yaml)")

	parent.AddCommand(cmd)
}

func runMerge(cmd *cobra.Command, inputDir string, opts mergeOptions) error {
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
	if opts.workflow {
		// stdout carries only the job id
		out = printer{w: cmd.ErrOrStderr()}
	}

	var p prompt.Prompter
	if opts.yes {
		p = prompt.NewAutoYes(cmd.ErrOrStderr())
	} else {
		p = prompt.NewTerminal(os.Stdin, cmd.OutOrStdout())
	}

	orch := orchestrator.New(cfg, runner.NewExecRunner(), p, logger)
	if !opts.workflow {
		orch.SetOutput(cmd.OutOrStdout())
	}
	if used := viper.ConfigFileUsed(); used != "" {
		abs, err := filepath.Abs(used)
		if err != nil {
			return errors.Wrap(err, "resolving config file path")
		}
		orch.SetConfigFile(abs)
	}

	out.header("==== START merge %s ====", inputDir)

	rec, latest, err := orch.Run(cmd.Context(), orchestrator.Options{
		InputDir: inputDir,
		Workflow: opts.workflow,
		Particle: opts.particle,
		Upstream: scheduler.SplitIDs(opts.dependsOn),
	})
	if err != nil {
		if errors.Is(err, errors.ErrNotInteractive) {
			out.fail("confirmation needed but stdin is not a terminal; rerun with --yes or fix the production")
		} else {
			reportError(out, logger, err)
		}
		return err
	}

	if !opts.workflow {
		out.ok("merged, relocated and archived")
		out.header("==== END merge ====")
		return nil
	}

	printRecord(out, rec)
	if opts.recordOut != "" {
		if err := saveRecord(opts.recordOut, rec); err != nil {
			return err
		}
		out.ok("job record merged into %s", opts.recordOut)
	}
	out.header("==== END merge (relocation job %s) ====", latest)

	fmt.Fprintln(cmd.OutOrStdout(), latest)
	return nil
}

func printRecord(out printer, rec *record.JobRecord) {
	for _, particle := range rec.Particles() {
		for _, set := range layout.MergeOrder {
			sr, ok := rec.Lookup(particle, set)
			if !ok {
				continue
			}
			if sr.MergeJobID != "" {
				out.ok("%s %s: merge job %s -> %s", particle, set, sr.MergeJobID, sr.OutputPath)
			}
			for _, l := range sr.Logs {
				out.warn("%s %s: %s", particle, set, l)
			}
		}
	}
}

// saveRecord merges rec into the record stored at path, so one file can
// collect the records of every particle of a workflow.
func saveRecord(path string, rec *record.JobRecord) error {
	stored, err := record.LoadOrNew(path)
	if err != nil {
		return err
	}
	stored.Merge(rec)
	return record.Save(path, stored)
}
