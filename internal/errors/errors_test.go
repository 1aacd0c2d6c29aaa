package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// ProcessError Tests
// -----------------------------------------------------------------------------

func TestProcessError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ProcessError
		want string
	}{
		{
			name: "exit code only",
			err:  NewProcessError("sbatch", []string{"--parsable"}, 1),
			want: "process error [cmd=sbatch, exit=1]: command exited unsuccessfully",
		},
		{
			name: "with stderr",
			err:  NewProcessError("sbatch", nil, 1).WithStderr("sbatch: error: invalid dependency\n"),
			want: "process error [cmd=sbatch, exit=1]: command exited unsuccessfully: sbatch: error: invalid dependency",
		},
		{
			name: "with cause",
			err:  NewProcessError("merge", nil, -1).WithCause(fmt.Errorf("executable file not found")),
			want: "process error [cmd=merge, exit=-1]: command exited unsuccessfully: executable file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProcessError_Is(t *testing.T) {
	err := fmt.Errorf("merging testing set: %w", NewProcessError("merge", nil, 2))

	if !errors.Is(err, ErrProcessFailed) {
		t.Error("errors.Is(err, ErrProcessFailed) = false, want true")
	}
	if !errors.Is(err, &ProcessError{}) {
		t.Error("errors.Is(err, &ProcessError{}) = false, want true")
	}
	if errors.Is(err, ErrAborted) {
		t.Error("errors.Is(err, ErrAborted) = true, want false")
	}

	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatal("errors.As(err, *ProcessError) = false")
	}
	if procErr.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", procErr.ExitCode)
	}
}

func TestProcessError_CommandLine(t *testing.T) {
	err := NewProcessError("lstchain_merge_hdf5_files", []string{"-d", "/a", "-o", "/b.h5"}, 1)
	want := "lstchain_merge_hdf5_files -d /a -o /b.h5"
	if got := err.CommandLine(); got != want {
		t.Errorf("CommandLine() = %q, want %q", got, want)
	}
}

// -----------------------------------------------------------------------------
// LayoutError Tests
// -----------------------------------------------------------------------------

func TestLayoutError_Error(t *testing.T) {
	err := NewLayoutError("manifest unreadable", ErrNotFound).
		WithSet("training").
		WithPath("/prod/training.list")

	got := err.Error()
	for _, part := range []string{"set=training", "path=/prod/training.list", "manifest unreadable", "not found"} {
		if !strings.Contains(got, part) {
			t.Errorf("Error() = %q, missing %q", got, part)
		}
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("LayoutError should unwrap to its cause")
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestValidationError_IsInvalidInput(t *testing.T) {
	err := NewValidationError("particle is required").WithField("particle").WithValue("")
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
	if !strings.Contains(err.Error(), "field=particle") {
		t.Errorf("Error() = %q, want field context", err.Error())
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("directory", "/prod/DL1/training")
	if got, want := err.Error(), "directory '/prod/DL1/training' not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"aborted", Wrap(ErrAborted, "training set"), 2},
		{"not interactive", ErrNotInteractive, 2},
		{"validation", NewValidationError("bad"), 3},
		{"layout", NewLayoutError("missing", nil), 3},
		{"process", NewProcessError("sbatch", nil, 1), 1},
		{"plain", New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(nil); got != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want debug", got)
	}
	if got := GetSeverity(NewValidationError("x")); got != SeverityWarning {
		t.Errorf("GetSeverity(validation) = %v, want warning", got)
	}
	if got := GetSeverity(New("plain")); got != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want error", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true")
	}
	if !IsUserFacing(Wrap(NewProcessError("sbatch", nil, 1), "submit")) {
		t.Error("process errors should be user facing")
	}
	if !IsUserFacing(ErrAborted) {
		t.Error("ErrAborted should be user facing")
	}
	if IsUserFacing(New("internal")) {
		t.Error("plain errors should not be user facing")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	err := Wrapf(ErrNoJobID, "submitting %s", "merge")
	if got, want := err.Error(), "submitting merge: scheduler returned no job id"; got != want {
		t.Errorf("Wrapf() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrNoJobID) {
		t.Error("Wrapf should preserve the chain")
	}
}
