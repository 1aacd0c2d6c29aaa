// Package relocate moves a finished production into its permanent place:
// merged and per-run DL1 files into the final DL1 tree, configuration
// artifacts next to them, and everything left in the production directory
// into the logs archive.
package relocate

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/cta-lst/dl1merge/internal/config"
	"github.com/cta-lst/dl1merge/internal/errors"
	"github.com/cta-lst/dl1merge/internal/layout"
	"github.com/cta-lst/dl1merge/internal/logging"
	"github.com/cta-lst/dl1merge/internal/scheduler"
)

// Paths are the four directories a relocation works on.
type Paths struct {
	// FinalDL1 receives the content of RunningDL1 and the config artifacts.
	FinalDL1 string
	// RunningDL1 is the working output directory, removed afterwards.
	RunningDL1 string
	// LogsDir receives everything left in Root.
	LogsDir string
	// Root is the production directory, removed afterwards.
	Root string
}

// PathsFor returns the relocation paths of a production directory.
func PathsFor(pd layout.ProductionDirectory) Paths {
	return Paths{
		FinalDL1:   pd.FinalDL1,
		RunningDL1: pd.RunningDL1,
		LogsDir:    pd.LogsDir,
		Root:       pd.Root,
	}
}

// Validate rejects paths whose moves would land inside their own source.
func (p Paths) Validate() error {
	for field, v := range map[string]string{"dl1-dir": p.FinalDL1, "run-dl1": p.RunningDL1, "logs-dir": p.LogsDir, "indir": p.Root} {
		if strings.TrimSpace(v) == "" {
			return errors.NewValidationError("relocation path is empty").WithField(field)
		}
	}
	if within(p.FinalDL1, p.Root) {
		return errors.NewValidationError("final DL1 directory lies inside the production directory").
			WithField("dl1-dir").WithValue(p.FinalDL1)
	}
	if within(p.LogsDir, p.Root) {
		return errors.NewValidationError("logs directory lies inside the production directory").
			WithField("logs-dir").WithValue(p.LogsDir)
	}
	return nil
}

// within reports whether path equals dir or is below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Result summarizes a relocation.
type Result struct {
	MovedDL1    int
	ConfigFiles []string
	MovedLogs   int
	// MissingOutputs lists expected merge outputs that were absent.
	MissingOutputs []string
}

// Relocator performs relocations inline or schedules them as batch jobs.
type Relocator struct {
	cfg        config.RelocateConfig
	slurm      *scheduler.Slurm
	logger     *logging.Logger
	executable func() (string, error)
	configFile string
}

// New creates a Relocator. slurm may be nil when only inline relocations
// are run.
func New(cfg config.RelocateConfig, slurm *scheduler.Slurm, logger *logging.Logger) *Relocator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Relocator{
		cfg:        cfg,
		slurm:      slurm,
		logger:     logger.WithStage("relocate"),
		executable: os.Executable,
	}
}

// SetConfigFile makes the deferred relocation job read path, the
// configuration the submitting run was started with.
func (r *Relocator) SetConfigFile(path string) {
	r.configFile = path
}

// Run relocates a production now. expectedOutputs are the merge archives
// that should exist in RunningDL1; a missing one is a warning, or an
// ErrMergeOutputMissing error when require is set.
func (r *Relocator) Run(ctx context.Context, p Paths, expectedOutputs []string, require bool) (Result, error) {
	var res Result

	if err := p.Validate(); err != nil {
		return res, err
	}

	for _, out := range expectedOutputs {
		if _, err := os.Stat(out); err != nil {
			res.MissingOutputs = append(res.MissingOutputs, out)
		}
	}
	if len(res.MissingOutputs) > 0 {
		if require {
			r.logger.Error("merge outputs missing, relocation refused", "missing", res.MissingOutputs)
			return res, errors.Wrapf(errors.ErrMergeOutputMissing, "%s", strings.Join(res.MissingOutputs, ", "))
		}
		r.logger.Warn("merge outputs missing, relocating anyway", "missing", res.MissingOutputs)
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	if err := EnsureDir(p.FinalDL1); err != nil {
		return res, err
	}
	moved, err := MoveDirContent(p.RunningDL1, p.FinalDL1)
	res.MovedDL1 = moved
	if err != nil {
		return res, err
	}
	r.logger.Info("DL1 files moved", "dest", p.FinalDL1, "entries", moved)

	res.ConfigFiles, err = CopyConfigFiles(p.Root, p.FinalDL1, r.cfg.ConfigPatterns)
	if err != nil {
		return res, err
	}
	r.logger.Debug("config files copied", "files", res.ConfigFiles)

	if err := EnsureDir(p.LogsDir); err != nil {
		return res, err
	}
	res.MovedLogs, err = MoveDirContent(p.Root, p.LogsDir)
	if err != nil {
		return res, err
	}
	r.logger.Info("logs moved", "dest", p.LogsDir, "entries", res.MovedLogs)

	return res, nil
}

// Command returns the argv of the deferred relocation job.
func (r *Relocator) Command(p Paths, expectedOutputs []string) ([]string, error) {
	var argv []string
	if r.cfg.Executable != "" {
		words, err := shellquote.Split(r.cfg.Executable)
		if err != nil || len(words) == 0 {
			return nil, errors.NewValidationError("cannot parse relocate executable").
				WithField("relocate.executable").WithValue(r.cfg.Executable)
		}
		argv = words
	} else {
		self, err := r.executable()
		if err != nil {
			return nil, errors.Wrap(err, "locating own executable")
		}
		argv = []string{self}
	}

	if r.configFile != "" {
		argv = append(argv, "--config", r.configFile)
	}
	argv = append(argv, "relocate",
		"--dl1-dir", p.FinalDL1,
		"--run-dl1", p.RunningDL1,
		"--logs-dir", p.LogsDir,
		"--indir", p.Root,
	)
	for _, out := range expectedOutputs {
		argv = append(argv, "--expect", out)
	}
	if r.cfg.RequireMergeOutput {
		argv = append(argv, "--require-output")
	}
	return argv, nil
}

// Submit pre-creates both destinations and schedules the relocation as a
// batch job starting after every job in deps succeeded.
func (r *Relocator) Submit(ctx context.Context, p Paths, deps []string, expectedOutputs []string) (scheduler.Submission, error) {
	if r.slurm == nil {
		return scheduler.Submission{}, errors.NewValidationError("no batch scheduler configured")
	}
	if err := p.Validate(); err != nil {
		return scheduler.Submission{}, err
	}

	if err := EnsureDir(p.FinalDL1); err != nil {
		return scheduler.Submission{}, err
	}
	if err := EnsureDir(p.LogsDir); err != nil {
		return scheduler.Submission{}, err
	}

	argv, err := r.Command(p, expectedOutputs)
	if err != nil {
		return scheduler.Submission{}, err
	}

	sub, err := r.slurm.SubmitWrap(ctx, deps, shellquote.Join(argv...))
	if err != nil {
		return sub, errors.Wrap(err, "submitting relocation")
	}

	r.logger.Info("relocation submitted", "job_id", sub.JobID, "depends_on", deps,
		"dl1_dir", p.FinalDL1, "logs_dir", p.LogsDir)
	return sub, nil
}
