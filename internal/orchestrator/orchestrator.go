// Package orchestrator completes a DL1 production: it checks that the
// production is ready, merges each file set and relocates the results,
// either inline or as a chain of batch jobs.
package orchestrator

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/cta-lst/dl1merge/internal/config"
	"github.com/cta-lst/dl1merge/internal/errors"
	"github.com/cta-lst/dl1merge/internal/gate"
	"github.com/cta-lst/dl1merge/internal/joblogs"
	"github.com/cta-lst/dl1merge/internal/layout"
	"github.com/cta-lst/dl1merge/internal/logging"
	"github.com/cta-lst/dl1merge/internal/merge"
	"github.com/cta-lst/dl1merge/internal/prompt"
	"github.com/cta-lst/dl1merge/internal/record"
	"github.com/cta-lst/dl1merge/internal/relocate"
	"github.com/cta-lst/dl1merge/internal/runner"
	"github.com/cta-lst/dl1merge/internal/scheduler"
)

// Options select what one run does.
type Options struct {
	// InputDir is the production directory.
	InputDir string
	// Workflow submits merge and relocation as batch jobs and never blocks
	// on readiness problems. Otherwise everything runs inline and problems
	// are confirmed with the operator.
	Workflow bool
	// Particle keys the JobRecord. Required in workflow mode.
	Particle string
	// Upstream are the job ids the merge jobs wait for.
	Upstream []string
}

// Validate checks the options before anything touches the filesystem.
func (o Options) Validate() error {
	if strings.TrimSpace(o.InputDir) == "" {
		return errors.NewValidationError("input directory is required").WithField("input_dir")
	}
	if o.Workflow && strings.TrimSpace(o.Particle) == "" {
		return errors.NewValidationError("particle is required in workflow mode").WithField("particle")
	}
	return nil
}

// Orchestrator runs Gate, merge dispatch and relocation in that order.
type Orchestrator struct {
	cfg      *config.Config
	runner   runner.Runner
	prompter prompt.Prompter
	logger   *logging.Logger
	stream   io.Writer
	newRunID func() string
	// configFile is handed to deferred relocation jobs.
	configFile string
}

// New creates an Orchestrator. prompter is only used outside workflow mode.
func New(cfg *config.Config, r runner.Runner, p prompt.Prompter, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Orchestrator{
		cfg:      cfg,
		runner:   r,
		prompter: p,
		logger:   logger,
		newRunID: uuid.NewString,
	}
}

// SetOutput makes inline merges echo the merge tool's output to w.
func (o *Orchestrator) SetOutput(w io.Writer) {
	o.stream = w
}

// SetConfigFile names the configuration file deferred relocation jobs read.
func (o *Orchestrator) SetConfigFile(path string) {
	o.configFile = path
}

// Run completes the production in opts.InputDir.
//
// In workflow mode it returns the JobRecord of the run and the id of the
// relocation job, the last job of the chain. Outside workflow mode the
// record is nil and the id empty; the error is the only outcome.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*record.JobRecord, string, error) {
	if err := opts.Validate(); err != nil {
		return nil, "", err
	}

	logger := o.logger.WithRun(o.newRunID())
	if opts.Particle != "" {
		logger = logger.WithParticle(opts.Particle)
	}

	pd := layout.New(opts.InputDir, o.cfg.Paths)
	if err := pd.Validate(); err != nil {
		return nil, "", err
	}
	paths := relocate.PathsFor(pd)
	if err := paths.Validate(); err != nil {
		return nil, "", err
	}

	logger.Info("run started", "input_dir", pd.Root, "workflow", opts.Workflow,
		"final_dl1", pd.FinalDL1, "logs_dir", pd.LogsDir, "upstream", opts.Upstream)

	rec := record.New()
	g := gate.New(joblogs.NewChecker(o.cfg.JobLogs), o.prompter, opts.Workflow, logger)
	if _, err := g.Check(ctx, pd, rec, opts.Particle); err != nil {
		return o.result(opts, rec), "", err
	}

	var slurm *scheduler.Slurm
	if opts.Workflow {
		slurm = scheduler.New(o.runner, o.cfg.Scheduler, logger)
	}
	dispatcher := merge.NewDispatcher(o.runner, slurm, o.cfg.Merge, logger)
	dispatcher.SetOutput(o.stream)
	relocator := relocate.New(o.cfg.Relocate, slurm, logger)
	relocator.SetConfigFile(o.configFile)

	jobs := make([]merge.Job, 0, len(layout.MergeOrder))
	for _, set := range layout.MergeOrder {
		job, err := dispatcher.Plan(pd, set)
		if err != nil {
			return o.result(opts, rec), "", err
		}
		jobs = append(jobs, job)
	}

	if opts.Workflow {
		latest, err := o.submit(ctx, dispatcher, relocator, paths, jobs, rec, opts)
		if err != nil {
			return rec, "", err
		}
		logger.Info("run submitted", "latest_job_id", latest)
		return rec, latest, nil
	}

	if err := o.runInline(ctx, dispatcher, relocator, paths, jobs); err != nil {
		return nil, "", err
	}
	logger.Info("run complete", "final_dl1", pd.FinalDL1, "logs_dir", pd.LogsDir)
	return nil, "", nil
}

func (o *Orchestrator) result(opts Options, rec *record.JobRecord) *record.JobRecord {
	if opts.Workflow {
		return rec
	}
	return nil
}

// runInline merges both sets, then relocates once.
func (o *Orchestrator) runInline(ctx context.Context, d *merge.Dispatcher, r *relocate.Relocator, paths relocate.Paths, jobs []merge.Job) error {
	outputs := make([]string, 0, len(jobs))
	for _, job := range jobs {
		if err := d.RunSync(ctx, job); err != nil {
			return err
		}
		outputs = append(outputs, job.Output)
	}

	_, err := r.Run(ctx, paths, outputs, o.cfg.Relocate.RequireMergeOutput)
	return err
}

// submit queues both merges and one relocation job that waits for both.
func (o *Orchestrator) submit(ctx context.Context, d *merge.Dispatcher, r *relocate.Relocator, paths relocate.Paths, jobs []merge.Job, rec *record.JobRecord, opts Options) (string, error) {
	mergeIDs := make([]string, 0, len(jobs))
	outputs := make([]string, 0, len(jobs))

	for _, job := range jobs {
		sub, err := d.Submit(ctx, job, opts.Upstream)
		sr := rec.Set(opts.Particle, job.Set)
		sr.OutputPath = job.Output
		sr.Command = sub.CommandLine
		if err != nil {
			return "", err
		}
		sr.MergeJobID = sub.JobID
		mergeIDs = append(mergeIDs, sub.JobID)
		outputs = append(outputs, job.Output)
	}

	sub, err := r.Submit(ctx, paths, mergeIDs, outputs)
	if err != nil {
		return "", err
	}
	for _, job := range jobs {
		rec.Set(opts.Particle, job.Set).RelocateJobID = sub.JobID
	}
	return sub.JobID, nil
}
