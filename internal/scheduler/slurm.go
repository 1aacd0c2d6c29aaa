// Package scheduler submits work to the Slurm batch system with
// `sbatch --parsable`, chaining jobs through afterok dependencies.
package scheduler

import (
	"context"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/cta-lst/dl1merge/internal/config"
	"github.com/cta-lst/dl1merge/internal/errors"
	"github.com/cta-lst/dl1merge/internal/logging"
	"github.com/cta-lst/dl1merge/internal/runner"
)

// Submission is an accepted batch job.
type Submission struct {
	JobID string
	// CommandLine is the submit command as it would be typed in a shell.
	CommandLine string
}

// Slurm submits jobs through sbatch. Submissions block until sbatch
// returns; nothing waits for the submitted jobs themselves.
type Slurm struct {
	runner runner.Runner
	cfg    config.SchedulerConfig
	logger *logging.Logger
}

// New creates a Slurm submitter.
func New(r runner.Runner, cfg config.SchedulerConfig, logger *logging.Logger) *Slurm {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Slurm{runner: r, cfg: cfg, logger: logger}
}

// DependencyClause returns "--dependency=afterok:<ids>" with the ids joined
// by commas in input order, or "" when there is no non-blank id.
func DependencyClause(ids []string) string {
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return "--dependency=afterok:" + strings.Join(kept, ",")
}

// SplitIDs parses a comma separated id list as passed between workflow
// stages. Blank entries are dropped.
func SplitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ParseJobID extracts the job id from `sbatch --parsable` output: the first
// line, without its trailing newline and without a ";cluster" suffix.
func ParseJobID(out string) (string, error) {
	line, _, _ := strings.Cut(strings.TrimLeft(out, "\r\n"), "\n")
	line = strings.TrimSpace(line)
	id, _, _ := strings.Cut(line, ";")
	if id == "" {
		return "", errors.ErrNoJobID
	}
	return id, nil
}

func (s *Slurm) baseArgs(deps []string) []string {
	args := []string{"--parsable"}
	args = append(args, s.cfg.ExtraArgs...)
	if clause := DependencyClause(deps); clause != "" {
		args = append(args, clause)
	}
	return args
}

// WrapArgs returns the sbatch arguments submitting shellCommand with --wrap.
func (s *Slurm) WrapArgs(deps []string, shellCommand string) []string {
	return append(s.baseArgs(deps), "--wrap="+shellCommand)
}

// SubmitWrap submits shellCommand as a batch job that starts once every job
// in deps has completed successfully.
func (s *Slurm) SubmitWrap(ctx context.Context, deps []string, shellCommand string) (Submission, error) {
	return s.submit(ctx, s.WrapArgs(deps, shellCommand))
}

func (s *Slurm) submit(ctx context.Context, args []string) (Submission, error) {
	sub := Submission{CommandLine: shellquote.Join(append([]string{s.cfg.Command}, args...)...)}

	res, err := s.runner.Run(ctx, runner.Command{
		Name:    s.cfg.Command,
		Args:    args,
		Timeout: s.cfg.SubmitTimeout(),
	})
	if err != nil {
		return sub, errors.Wrap(err, "batch submission failed")
	}

	sub.JobID, err = ParseJobID(res.Stdout)
	if err != nil {
		return sub, errors.Wrapf(err, "parsing output of %s", s.cfg.Command)
	}

	s.logger.Info("batch job submitted", "job_id", sub.JobID, "command", sub.CommandLine)
	return sub, nil
}
