// Package layout derives every path of a production directory and reads the
// manifests and listings the readiness gate compares.
//
// A production directory looks like:
//
//	<root>/
//	    job_logs/
//	    training.list
//	    testing.list
//	    DL1/
//	        training/
//	        testing/
//	    *.json
//
// Its final DL1 and logs destinations are obtained by textual replacement of
// the running segment ("running_analysis") in the root path.
package layout

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cta-lst/dl1merge/internal/config"
	"github.com/cta-lst/dl1merge/internal/errors"
)

// FileSet selects which manifest, subdirectory and merge output applies.
type FileSet string

const (
	Training FileSet = "training"
	Testing  FileSet = "testing"
)

// MergeOrder is the fixed order in which file sets are checked and merged.
var MergeOrder = []FileSet{Testing, Training}

// Short returns the abbreviated set name used in record keys ("train", "test").
func (s FileSet) Short() string {
	switch s {
	case Training:
		return "train"
	case Testing:
		return "test"
	default:
		return string(s)
	}
}

// Valid reports whether s is one of the two known sets.
func (s FileSet) Valid() bool {
	return s == Training || s == Testing
}

const (
	jobLogsDirName    = "job_logs"
	runningDL1DirName = "DL1"
	manifestSuffix    = ".list"
)

// ProductionDirectory holds the paths of one production run.
type ProductionDirectory struct {
	Root       string
	JobLogs    string
	RunningDL1 string
	FinalDL1   string
	LogsDir    string
}

// New derives the paths of the production rooted at root. The root is
// cleaned but otherwise used as given; destination paths are computed by
// replacing every occurrence of paths.RunningSegment.
func New(root string, paths config.PathsConfig) ProductionDirectory {
	root = filepath.Clean(root)
	return ProductionDirectory{
		Root:       root,
		JobLogs:    filepath.Join(root, jobLogsDirName),
		RunningDL1: filepath.Join(root, runningDL1DirName),
		FinalDL1:   strings.ReplaceAll(root, paths.RunningSegment, paths.DL1Segment),
		LogsDir:    strings.ReplaceAll(root, paths.RunningSegment, paths.LogsSegment),
	}
}

// Manifest returns the path of the expected-filenames list for set.
func (p ProductionDirectory) Manifest(set FileSet) string {
	return filepath.Join(p.Root, string(set)+manifestSuffix)
}

// SetDir returns the working output directory holding the per-run files of set.
func (p ProductionDirectory) SetDir(set FileSet) string {
	return filepath.Join(p.RunningDL1, string(set))
}

// InPlace reports whether the destinations collapse onto the root, which
// happens when the root path does not contain the running segment.
func (p ProductionDirectory) InPlace() bool {
	return p.FinalDL1 == p.Root || p.LogsDir == p.Root
}

// OutputFilename derives the merged archive path for set. The last four
// "/"-separated segments of runningDL1 are joined with underscores, wrapped
// as <prefix><segments>_<set><ext>, and placed inside runningDL1. Shorter
// paths use every segment available.
func OutputFilename(runningDL1 string, set FileSet, prefix, ext string) string {
	segments := strings.Split(strings.Trim(filepath.ToSlash(runningDL1), "/"), "/")
	if len(segments) > 4 {
		segments = segments[len(segments)-4:]
	}

	var name strings.Builder
	name.WriteString(prefix)
	for _, s := range segments {
		name.WriteString(s)
		name.WriteString("_")
	}
	name.WriteString(string(set))
	name.WriteString(ext)

	return filepath.Join(runningDL1, name.String())
}

// ReadManifest returns the lines of a manifest with their line terminators
// stripped. A trailing newline does not produce an extra empty entry.
func ReadManifest(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewLayoutError("cannot read manifest", err).WithPath(path)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewLayoutError("cannot read manifest", err).WithPath(path)
	}
	return lines, nil
}

// ListNames returns the names of the direct children of dir.
func ListNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewLayoutError("cannot list directory", err).WithPath(dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// ListPaths returns the full paths of the direct children of dir.
func ListPaths(dir string) ([]string, error) {
	names, err := ListNames(dir)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

// Validate checks that the inputs the gate needs are present.
func (p ProductionDirectory) Validate() error {
	info, err := os.Stat(p.Root)
	if err != nil {
		return errors.NewLayoutError("production directory not accessible", err).WithPath(p.Root)
	}
	if !info.IsDir() {
		return errors.NewLayoutError("production path is not a directory", nil).WithPath(p.Root)
	}

	for _, set := range MergeOrder {
		if _, err := os.Stat(p.Manifest(set)); err != nil {
			return errors.NewLayoutError("missing manifest", err).WithSet(string(set)).WithPath(p.Manifest(set))
		}
		if info, err := os.Stat(p.SetDir(set)); err != nil || !info.IsDir() {
			return errors.NewLayoutError("missing set directory", err).WithSet(string(set)).WithPath(p.SetDir(set))
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (p ProductionDirectory) String() string {
	return fmt.Sprintf("production %s (final=%s, logs=%s)", p.Root, p.FinalDL1, p.LogsDir)
}
