// Package gate decides whether a production is ready to be merged: the
// upstream job logs are clean and every file set holds the files its
// manifest lists.
package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/cta-lst/dl1merge/internal/errors"
	"github.com/cta-lst/dl1merge/internal/joblogs"
	"github.com/cta-lst/dl1merge/internal/layout"
	"github.com/cta-lst/dl1merge/internal/logging"
	"github.com/cta-lst/dl1merge/internal/prompt"
	"github.com/cta-lst/dl1merge/internal/record"
	"github.com/cta-lst/dl1merge/internal/util"
)

// SetStatus is the readiness of one file set.
type SetStatus struct {
	Set      layout.FileSet
	Expected int
	Present  int
	// Compared is set when the counts differed and the manifest was matched
	// name by name against the listing.
	Compared bool
	Missing  []string
}

// Complete reports whether no manifest entry is missing.
func (s SetStatus) Complete() bool {
	return len(s.Missing) == 0
}

// Report collects the readiness of a whole production.
type Report struct {
	JobLogs joblogs.Report
	Sets    []SetStatus
}

// Ready reports whether job logs are clean and every set is complete.
func (r Report) Ready() bool {
	if !r.JobLogs.Clean() {
		return false
	}
	for _, s := range r.Sets {
		if !s.Complete() {
			return false
		}
	}
	return true
}

// MissingFiles returns the base names of manifest entries absent from
// listing, in manifest order.
func MissingFiles(manifest, listing []string) []string {
	present := make(map[string]struct{}, len(listing))
	for _, name := range listing {
		present[name] = struct{}{}
	}

	var missing []string
	for _, line := range manifest {
		name := manifestBase(line)
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// manifestBase returns what follows the last "/" of a manifest line. A blank
// or slash-terminated line gives "", which no directory entry matches.
func manifestBase(line string) string {
	return line[strings.LastIndex(line, "/")+1:]
}

// Gate runs the readiness checks. In workflow mode problems are recorded and
// never block; otherwise the operator is asked whether to continue.
type Gate struct {
	checker  *joblogs.Checker
	prompter prompt.Prompter
	workflow bool
	logger   *logging.Logger
	// listLimit caps how many missing names are printed in a prompt.
	listLimit int
}

// New creates a Gate. prompter is only consulted outside workflow mode.
func New(checker *joblogs.Checker, prompter prompt.Prompter, workflow bool, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Gate{
		checker:   checker,
		prompter:  prompter,
		workflow:  workflow,
		logger:    logger.WithStage("gate"),
		listLimit: 50,
	}
}

// CheckSet compares a set's directory listing with its manifest. The
// name-by-name comparison only runs when the counts differ, so a listing
// with the right number of wrong files counts as complete.
func (g *Gate) CheckSet(pd layout.ProductionDirectory, set layout.FileSet) (SetStatus, error) {
	status := SetStatus{Set: set}

	manifest, err := layout.ReadManifest(pd.Manifest(set))
	if err != nil {
		return status, err
	}
	listing, err := layout.ListNames(pd.SetDir(set))
	if err != nil {
		return status, err
	}

	status.Expected = len(manifest)
	status.Present = len(listing)
	if status.Expected == status.Present {
		return status, nil
	}

	status.Compared = true
	status.Missing = MissingFiles(manifest, listing)
	return status, nil
}

// Inspect runs every check without prompting or recording.
func (g *Gate) Inspect(pd layout.ProductionDirectory) (Report, error) {
	var report Report

	logsReport, err := g.checker.Check(pd.JobLogs)
	if err != nil {
		return report, err
	}
	report.JobLogs = logsReport

	for _, set := range layout.MergeOrder {
		status, err := g.CheckSet(pd, set)
		if err != nil {
			return report, err
		}
		report.Sets = append(report.Sets, status)
	}
	return report, nil
}

// Check runs the gate for a production. rec and particle are only used in
// workflow mode, where findings are appended to the set's log bucket.
// Declining a prompt returns ErrAborted.
func (g *Gate) Check(ctx context.Context, pd layout.ProductionDirectory, rec *record.JobRecord, particle string) (Report, error) {
	report, err := g.Inspect(pd)
	if err != nil {
		return report, err
	}

	if err := g.handleJobLogs(ctx, report.JobLogs, rec, particle); err != nil {
		return report, err
	}

	for _, status := range report.Sets {
		if err := g.handleSet(ctx, status, rec, particle); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (g *Gate) handleJobLogs(ctx context.Context, logs joblogs.Report, rec *record.JobRecord, particle string) error {
	if logs.DirMissing {
		g.logger.Warn("job logs directory not found", "dir", logs.Dir)
		return nil
	}
	g.logger.Debug("job logs scanned", "dir", logs.Dir, "scanned", logs.Scanned)
	if logs.Clean() {
		return nil
	}

	g.logger.Warn("job logs report failures", "dir", logs.Dir, "failed", logs.Failed)

	if g.workflow {
		msg := fmt.Sprintf("%d job %s in %s report errors: %s. Cannot stop workflow, check later.",
			len(logs.Failed), util.Plural(len(logs.Failed), "log", "logs"), logs.Dir,
			util.FormatNames(logs.Failed, 0))
		for _, set := range layout.MergeOrder {
			rec.AppendLog(particle, set, msg)
		}
		return nil
	}

	question := fmt.Sprintf("%d job %s in %s report errors:\n%s\nContinue ?",
		len(logs.Failed), util.Plural(len(logs.Failed), "log", "logs"), logs.Dir,
		util.FormatNames(logs.Failed, g.listLimit))
	return g.confirm(ctx, question, errors.ErrJobLogsFailed)
}

func (g *Gate) handleSet(ctx context.Context, status SetStatus, rec *record.JobRecord, particle string) error {
	logger := g.logger.WithSet(string(status.Set))
	logger.Info("file set checked",
		"expected", status.Expected,
		"present", status.Present,
		"compared", status.Compared,
		"missing", len(status.Missing))

	if status.Complete() {
		return nil
	}

	if g.workflow {
		rec.AppendLog(particle, status.Set, fmt.Sprintf(
			"%d files from the %s list are not in the directory: %s. Cannot stop workflow, check later.",
			len(status.Missing), status.Set, util.FormatNames(status.Missing, 0)))
		return nil
	}

	question := fmt.Sprintf("%d files from the %s list are not in the `DL1/%s` directory:\n%s\nContinue ?",
		len(status.Missing), status.Set, status.Set, util.FormatNames(status.Missing, g.listLimit))
	return g.confirm(ctx, question, errors.ErrIncomplete)
}

func (g *Gate) confirm(ctx context.Context, question string, cause error) error {
	ok, err := g.prompter.Confirm(ctx, question)
	if err != nil {
		return errors.Join(cause, err)
	}
	if !ok {
		g.logger.Info("operator declined to continue")
		return errors.Join(errors.ErrAborted, cause)
	}
	return nil
}
