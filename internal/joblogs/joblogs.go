// Package joblogs validates the batch job logs an upstream production left
// in its job_logs directory.
package joblogs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cta-lst/dl1merge/internal/config"
	"github.com/cta-lst/dl1merge/internal/errors"
)

// Report is the outcome of scanning one job_logs directory.
type Report struct {
	Dir string
	// DirMissing is set when the directory does not exist yet, which is the
	// normal situation when the upstream jobs were only just submitted.
	DirMissing bool
	Scanned    int
	// Failed lists the names of logs containing an error marker, sorted.
	Failed []string
}

// Clean reports whether no scanned log contains an error marker.
func (r Report) Clean() bool {
	return len(r.Failed) == 0
}

// Checker scans job logs for error markers.
type Checker struct {
	suffixes []string
	markers  []string
}

// NewChecker builds a Checker from configuration.
func NewChecker(cfg config.JobLogsConfig) *Checker {
	return &Checker{suffixes: cfg.Suffixes, markers: cfg.ErrorMarkers}
}

// Check scans dir. Only read failures on existing files are errors; a
// missing directory is reported through Report.DirMissing.
func (c *Checker) Check(dir string) (Report, error) {
	report := Report{Dir: dir}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			report.DirMissing = true
			return report, nil
		}
		return report, errors.NewLayoutError("cannot list job logs", err).WithPath(dir)
	}

	for _, entry := range entries {
		if entry.IsDir() || !c.selected(entry.Name()) {
			continue
		}
		report.Scanned++

		failed, err := c.containsMarker(filepath.Join(dir, entry.Name()))
		if err != nil {
			return report, errors.Wrapf(err, "reading job log %s", entry.Name())
		}
		if failed {
			report.Failed = append(report.Failed, entry.Name())
		}
	}

	sort.Strings(report.Failed)
	return report, nil
}

func (c *Checker) selected(name string) bool {
	for _, suffix := range c.suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// chunkSize is how much of a log is searched at a time. Logs are not split
// into lines: progress bars rewrite one line with \r for the whole job.
const chunkSize = 64 * 1024

func (c *Checker) containsMarker(path string) (bool, error) {
	if len(c.markers) == 0 {
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	markers := make([][]byte, 0, len(c.markers))
	overlap := 0
	for _, m := range c.markers {
		if m == "" {
			continue
		}
		markers = append(markers, []byte(m))
		overlap = max(overlap, len(m)-1)
	}
	if len(markers) == 0 {
		return false, nil
	}

	// window holds the tail of the previous chunk followed by the new one,
	// so a marker split across two reads is still found.
	window := make([]byte, 0, overlap+chunkSize)
	chunk := make([]byte, chunkSize)
	for {
		n, err := f.Read(chunk)
		if n > 0 {
			window = append(window, chunk[:n]...)
			for _, m := range markers {
				if bytes.Contains(window, m) {
					return true, nil
				}
			}
			if keep := min(overlap, len(window)); keep < len(window) {
				window = append(window[:0], window[len(window)-keep:]...)
			}
		}
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}
