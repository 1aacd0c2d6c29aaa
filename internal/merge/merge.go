// Package merge builds and dispatches the external merge of each file set
// into one archive, either running it in place or submitting it as a batch
// job.
package merge

import (
	"context"
	"io"
	"os"

	"github.com/kballard/go-shellquote"

	"github.com/cta-lst/dl1merge/internal/config"
	"github.com/cta-lst/dl1merge/internal/errors"
	"github.com/cta-lst/dl1merge/internal/layout"
	"github.com/cta-lst/dl1merge/internal/logging"
	"github.com/cta-lst/dl1merge/internal/runner"
	"github.com/cta-lst/dl1merge/internal/scheduler"
)

// Job is the merge of one file set.
type Job struct {
	Set      layout.FileSet
	InputDir string
	Output   string
	// Inputs are the files found in InputDir when the job was planned. The
	// merge tool is given the directory, so they are informational.
	Inputs []string
}

// Command returns the merge tool invocation for the job.
func (j Job) Command(tool string) runner.Command {
	return runner.Command{
		Name: tool,
		Args: []string{"-d", j.InputDir, "-o", j.Output},
	}
}

// Dispatcher plans and runs merge jobs.
type Dispatcher struct {
	runner runner.Runner
	slurm  *scheduler.Slurm
	cfg    config.MergeConfig
	logger *logging.Logger
	stream io.Writer
}

// NewDispatcher creates a Dispatcher. slurm may be nil when only
// synchronous merges are run.
func NewDispatcher(r runner.Runner, slurm *scheduler.Slurm, cfg config.MergeConfig, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Dispatcher{
		runner: r,
		slurm:  slurm,
		cfg:    cfg,
		logger: logger.WithStage("merge"),
	}
}

// SetOutput makes synchronous merges echo the tool's output to w.
func (d *Dispatcher) SetOutput(w io.Writer) {
	d.stream = w
}

// Plan derives the merge job for set.
func (d *Dispatcher) Plan(pd layout.ProductionDirectory, set layout.FileSet) (Job, error) {
	inputs, err := layout.ListPaths(pd.SetDir(set))
	if err != nil {
		return Job{}, err
	}
	return Job{
		Set:      set,
		InputDir: pd.SetDir(set),
		Output:   layout.OutputFilename(pd.RunningDL1, set, d.cfg.Prefix, d.cfg.Extension),
		Inputs:   inputs,
	}, nil
}

// RunSync runs the merge tool and waits for it. A non-zero exit is an error,
// as is a missing output file when output verification is enabled.
func (d *Dispatcher) RunSync(ctx context.Context, job Job) error {
	logger := d.logger.WithSet(string(job.Set))
	logger.Info("merging", "input_dir", job.InputDir, "inputs", len(job.Inputs), "output", job.Output)

	cmd := job.Command(d.cfg.Tool)
	cmd.Stream = d.stream
	if _, err := d.runner.Run(ctx, cmd); err != nil {
		logger.Error("merge failed", "error", err)
		return errors.Wrapf(err, "merging %s set", job.Set)
	}

	if d.cfg.VerifyOutput {
		if _, err := os.Stat(job.Output); err != nil {
			logger.Error("merge output missing", "output", job.Output)
			return errors.Join(errors.ErrMergeOutputMissing, errors.NewLayoutError("merged archive not written", err).
				WithSet(string(job.Set)).WithPath(job.Output))
		}
	}

	logger.Info("merge complete", "output", job.Output)
	return nil
}

// Submit queues the merge as a batch job that starts after every job in
// deps succeeded.
func (d *Dispatcher) Submit(ctx context.Context, job Job, deps []string) (scheduler.Submission, error) {
	if d.slurm == nil {
		return scheduler.Submission{}, errors.NewValidationError("no batch scheduler configured")
	}

	logger := d.logger.WithSet(string(job.Set))
	cmd := job.Command(d.cfg.Tool)
	shellCommand := shellquote.Join(append([]string{cmd.Name}, cmd.Args...)...)

	sub, err := d.slurm.SubmitWrap(ctx, deps, shellCommand)
	if err != nil {
		logger.Error("merge submission failed", "error", err)
		return sub, errors.Wrapf(err, "submitting %s merge", job.Set)
	}

	logger.Info("merge submitted", "job_id", sub.JobID, "depends_on", deps, "output", job.Output)
	return sub, nil
}
