// Package testutil provides production-directory fixtures for dl1merge tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Production describes a fixture production directory.
type Production struct {
	// Root is the production directory, always below a running_analysis segment.
	Root string
	// Base is the temporary directory holding the running_analysis tree, so
	// derived DL1 and analysis_logs destinations stay inside the test sandbox.
	Base string
}

// SetupProduction creates <tmp>/running_analysis/20200629/gamma/south_pointing
// with an empty job_logs directory, empty manifests and empty
// DL1/{training,testing} directories.
func SetupProduction(t *testing.T) Production {
	t.Helper()

	base := t.TempDir()
	root := filepath.Join(base, "running_analysis", "20200629", "gamma", "south_pointing")

	for _, dir := range []string{
		filepath.Join(root, "job_logs"),
		filepath.Join(root, "DL1", "training"),
		filepath.Join(root, "DL1", "testing"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	for _, set := range []string{"training", "testing"} {
		WriteFile(t, filepath.Join(root, set+".list"), "")
	}

	return Production{Root: root, Base: base}
}

// WriteManifest writes one manifest line per name for set.
func (p Production) WriteManifest(t *testing.T, set string, names ...string) {
	t.Helper()

	content := ""
	for _, name := range names {
		content += "/fefs/simtel/" + set + "/" + name + "\n"
	}
	WriteFile(t, filepath.Join(p.Root, set+".list"), content)
}

// AddOutputs creates empty DL1 files in the set directory.
func (p Production) AddOutputs(t *testing.T, set string, names ...string) {
	t.Helper()

	for _, name := range names {
		WriteFile(t, filepath.Join(p.Root, "DL1", set, name), "")
	}
}

// AddJobLog writes a job log file with the given content.
func (p Production) AddJobLog(t *testing.T, name, content string) {
	t.Helper()
	WriteFile(t, filepath.Join(p.Root, "job_logs", name), content)
}

// WriteFile creates a file (and its parent directories) with content.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// AssertExists fails the test if path does not exist.
func AssertExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}

// AssertNotExists fails the test if path exists.
func AssertNotExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected %s not to exist (stat err: %v)", path, err)
	}
}

// Names returns the sorted names of the direct children of dir.
func Names(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
