package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cta-lst/dl1merge/internal/config"
	"github.com/cta-lst/dl1merge/internal/errors"
	"github.com/cta-lst/dl1merge/internal/layout"
	"github.com/cta-lst/dl1merge/internal/prompt"
	"github.com/cta-lst/dl1merge/internal/runner"
	"github.com/cta-lst/dl1merge/internal/testutil"
)

// writeOutput simulates the merge tool writing the file given after -o.
func writeOutput(c runner.Command) {
	for i, a := range c.Args {
		if a == "-o" && i+1 < len(c.Args) {
			_ = os.WriteFile(c.Args[i+1], []byte("merged"), 0644)
		}
	}
}

func submitted(ids ...string) []runner.Response {
	responses := make([]runner.Response, len(ids))
	for i, id := range ids {
		responses[i] = runner.Response{Result: runner.Result{Stdout: id + "\n"}}
	}
	return responses
}

// production builds a fixture whose training set has 3 expected files and
// the given outputs; the testing set is complete.
func production(t *testing.T, trainingOutputs ...string) (testutil.Production, layout.ProductionDirectory) {
	t.Helper()
	fx := testutil.SetupProduction(t)
	fx.WriteManifest(t, "training", "run1.h5", "run2.h5", "run3.h5")
	fx.AddOutputs(t, "training", trainingOutputs...)
	fx.WriteManifest(t, "testing", "run4.h5")
	fx.AddOutputs(t, "testing", "run4.h5")
	fx.AddJobLog(t, "job_1.e", "")
	testutil.WriteFile(t, filepath.Join(fx.Root, "lstchain_config.json"), "{}")
	return fx, layout.New(fx.Root, config.Default().Paths)
}

func newOrchestrator(r runner.Runner, p prompt.Prompter) *Orchestrator {
	o := New(config.Default(), r, p, nil)
	o.newRunID = func() string { return "run-test" }
	return o
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"standalone", Options{InputDir: "/prod"}, false},
		{"workflow with particle", Options{InputDir: "/prod", Workflow: true, Particle: "gamma"}, false},
		{"missing dir", Options{}, true},
		{"workflow without particle", Options{InputDir: "/prod", Workflow: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr != (err != nil) {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("Validate() = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRun_Standalone(t *testing.T) {
	_, pd := production(t, "run1.h5", "run2.h5", "run3.h5")

	rec := &runner.Recorder{Responses: []runner.Response{{Effect: writeOutput}, {Effect: writeOutput}}}
	p := &prompt.Scripted{}

	jr, latest, err := newOrchestrator(rec, p).Run(context.Background(), Options{InputDir: pd.Root})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if jr != nil || latest != "" {
		t.Errorf("standalone Run() = %v, %q; want nil, empty", jr, latest)
	}
	if len(p.Asked) != 0 {
		t.Errorf("complete production should not prompt: %v", p.Asked)
	}

	lines := rec.Lines()
	if len(lines) != 2 {
		t.Fatalf("commands = %v, want two merges", lines)
	}
	if !strings.HasSuffix(lines[0], "_testing.h5") || !strings.HasSuffix(lines[1], "_training.h5") {
		t.Errorf("merge order = %v, want testing then training", lines)
	}

	testutil.AssertNotExists(t, pd.Root)
	testutil.AssertExists(t, filepath.Join(pd.FinalDL1, "dl1_20200629_gamma_south_pointing_DL1_testing.h5"))
	testutil.AssertExists(t, filepath.Join(pd.FinalDL1, "dl1_20200629_gamma_south_pointing_DL1_training.h5"))
	testutil.AssertExists(t, filepath.Join(pd.FinalDL1, "training", "run3.h5"))
	testutil.AssertExists(t, filepath.Join(pd.FinalDL1, "lstchain_config.json"))
	testutil.AssertExists(t, filepath.Join(pd.LogsDir, "job_logs", "job_1.e"))
}

func TestRun_StandaloneDeclined(t *testing.T) {
	_, pd := production(t, "run1.h5", "run2.h5")

	rec := &runner.Recorder{}
	p := &prompt.Scripted{Answers: []bool{false}}

	_, _, err := newOrchestrator(rec, p).Run(context.Background(), Options{InputDir: pd.Root})
	if !errors.Is(err, errors.ErrAborted) {
		t.Fatalf("Run() error = %v, want ErrAborted", err)
	}
	if len(p.Asked) != 1 {
		t.Errorf("prompts = %v, want one", p.Asked)
	}
	if len(rec.Commands) != 0 {
		t.Errorf("nothing should run after a decline: %v", rec.Lines())
	}
	testutil.AssertExists(t, pd.Root)
}

func TestRun_StandaloneMergeFailure(t *testing.T) {
	_, pd := production(t, "run1.h5", "run2.h5", "run3.h5")

	rec := &runner.Recorder{Responses: []runner.Response{{Result: runner.Result{ExitCode: 2, Stderr: "HDF5 error"}}}}

	_, _, err := newOrchestrator(rec, &prompt.Scripted{}).Run(context.Background(), Options{InputDir: pd.Root})
	if !errors.Is(err, errors.ErrProcessFailed) {
		t.Fatalf("Run() error = %v, want ErrProcessFailed", err)
	}
	if len(rec.Commands) != 1 {
		t.Errorf("commands = %v, want to stop after the failed merge", rec.Lines())
	}
	testutil.AssertExists(t, pd.Root)
	testutil.AssertNotExists(t, pd.FinalDL1)
}

func TestRun_Workflow(t *testing.T) {
	_, pd := production(t, "run1.h5", "run2.h5")

	rec := &runner.Recorder{Responses: submitted("101", "102", "103")}
	p := &prompt.Scripted{}

	jr, latest, err := newOrchestrator(rec, p).Run(context.Background(), Options{
		InputDir: pd.Root,
		Workflow: true,
		Particle: "gamma",
		Upstream: []string{"11", "12"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if latest != "103" {
		t.Errorf("latest job id = %q, want relocation job 103", latest)
	}
	if len(p.Asked) != 0 {
		t.Errorf("workflow mode must not prompt: %v", p.Asked)
	}

	test, _ := jr.Lookup("gamma", layout.Testing)
	train, _ := jr.Lookup("gamma", layout.Training)
	if test == nil || train == nil {
		t.Fatalf("record = %v", jr.Particles())
	}
	if test.MergeJobID != "101" || train.MergeJobID != "102" {
		t.Errorf("merge job ids = %q/%q, want 101/102", test.MergeJobID, train.MergeJobID)
	}
	if test.RelocateJobID != "103" || train.RelocateJobID != "103" {
		t.Errorf("relocate job ids = %q/%q, want 103", test.RelocateJobID, train.RelocateJobID)
	}
	if train.OutputPath != layout.OutputFilename(pd.RunningDL1, layout.Training, "dl1_", ".h5") {
		t.Errorf("training output = %q", train.OutputPath)
	}
	wantLog := []string{"1 files from the training list are not in the directory: [run3.h5]. Cannot stop workflow, check later."}
	if diff := cmp.Diff(wantLog, train.Logs); diff != "" {
		t.Errorf("training logs mismatch (-want +got):\n%s", diff)
	}
	if len(test.Logs) != 0 {
		t.Errorf("testing logs = %v, want none", test.Logs)
	}

	if len(rec.Commands) != 3 {
		t.Fatalf("commands = %v, want 3 submissions", rec.Lines())
	}
	for i, wantDep := range []string{"--dependency=afterok:11,12", "--dependency=afterok:11,12", "--dependency=afterok:101,102"} {
		c := rec.Commands[i]
		if c.Name != "sbatch" || c.Args[0] != "--parsable" || c.Args[1] != wantDep {
			t.Errorf("command %d = %s, want dependency %s", i, c, wantDep)
		}
	}
	if !strings.Contains(rec.Commands[0].Args[2], "_testing.h5") {
		t.Errorf("first submission should merge testing: %s", rec.Commands[0])
	}
	if !strings.Contains(rec.Commands[2].Args[2], " relocate --dl1-dir "+pd.FinalDL1) {
		t.Errorf("third submission should relocate: %s", rec.Commands[2])
	}

	testutil.AssertExists(t, pd.Root)
	testutil.AssertExists(t, pd.FinalDL1)
	testutil.AssertExists(t, pd.LogsDir)
}

func TestRun_WorkflowWithoutUpstream(t *testing.T) {
	_, pd := production(t, "run1.h5", "run2.h5", "run3.h5")

	rec := &runner.Recorder{Responses: submitted("1", "2", "3")}
	_, latest, err := newOrchestrator(rec, nil).Run(context.Background(), Options{
		InputDir: pd.Root,
		Workflow: true,
		Particle: "proton",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if latest != "3" {
		t.Errorf("latest = %q, want 3", latest)
	}
	for _, c := range rec.Commands[:2] {
		for _, a := range c.Args {
			if strings.HasPrefix(a, "--dependency") {
				t.Errorf("merge without upstream jobs has a dependency: %s", c)
			}
		}
	}
	if rec.Commands[2].Args[1] != "--dependency=afterok:1,2" {
		t.Errorf("relocation dependency = %q", rec.Commands[2].Args[1])
	}
}

func TestRun_WorkflowSubmissionFailure(t *testing.T) {
	_, pd := production(t, "run1.h5", "run2.h5", "run3.h5")

	rec := &runner.Recorder{Responses: []runner.Response{
		{Result: runner.Result{Stdout: "101\n"}},
		{Result: runner.Result{ExitCode: 1, Stderr: "sbatch: error: QOSMaxSubmitJobPerUserLimit"}},
	}}

	jr, latest, err := newOrchestrator(rec, nil).Run(context.Background(), Options{
		InputDir: pd.Root,
		Workflow: true,
		Particle: "gamma",
	})
	if !errors.Is(err, errors.ErrProcessFailed) {
		t.Fatalf("Run() error = %v, want ErrProcessFailed", err)
	}
	if latest != "" {
		t.Errorf("latest = %q, want empty on failure", latest)
	}
	if sr, ok := jr.Lookup("gamma", layout.Testing); !ok || sr.MergeJobID != "101" {
		t.Errorf("partial record should keep the testing submission: %+v", sr)
	}
	if len(rec.Commands) != 2 {
		t.Errorf("commands = %v, relocation must not be submitted", rec.Lines())
	}
}

func TestRun_LayoutErrors(t *testing.T) {
	t.Run("missing production", func(t *testing.T) {
		_, _, err := newOrchestrator(&runner.Recorder{}, nil).Run(context.Background(), Options{InputDir: filepath.Join(t.TempDir(), "nope")})
		if !errors.Is(err, &errors.LayoutError{}) {
			t.Errorf("Run() error = %v, want LayoutError", err)
		}
	})

	t.Run("no running segment", func(t *testing.T) {
		fx := testutil.SetupProduction(t)
		root := filepath.Join(fx.Base, "flat")
		if err := os.Rename(fx.Root, root); err != nil {
			t.Fatal(err)
		}
		_, _, err := newOrchestrator(&runner.Recorder{}, nil).Run(context.Background(), Options{InputDir: root})
		if !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Run() error = %v, want ErrInvalidInput", err)
		}
	})
}
