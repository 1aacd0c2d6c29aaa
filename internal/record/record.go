// Package record holds the JobRecord handed back to an enclosing workflow:
// per particle and per file set, the log lines produced by a run, the merge
// output path and the scheduler job ids.
//
// The serialized key names (logs_script_train, test_path_and_outname_dl1,
// jobid, ...) are the ones downstream workflow stages already read.
package record

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cta-lst/dl1merge/internal/errors"
	"github.com/cta-lst/dl1merge/internal/layout"
)

// SetRecord is what one run recorded for one particle and file set.
type SetRecord struct {
	Logs          []string
	OutputPath    string
	MergeJobID    string
	RelocateJobID string
	// Command is the merge command line as submitted.
	Command string
}

// ParticleRecord maps a file set to its record.
type ParticleRecord map[layout.FileSet]*SetRecord

// JobRecord is keyed by particle type, then by file set.
type JobRecord struct {
	particles map[string]ParticleRecord
}

// New returns an empty JobRecord.
func New() *JobRecord {
	return &JobRecord{particles: make(map[string]ParticleRecord)}
}

// Set returns the record for particle and set, creating it if needed.
func (r *JobRecord) Set(particle string, set layout.FileSet) *SetRecord {
	if r.particles == nil {
		r.particles = make(map[string]ParticleRecord)
	}
	pr, ok := r.particles[particle]
	if !ok {
		pr = make(ParticleRecord)
		r.particles[particle] = pr
	}
	sr, ok := pr[set]
	if !ok {
		sr = &SetRecord{}
		pr[set] = sr
	}
	return sr
}

// Lookup returns the record for particle and set without creating it.
func (r *JobRecord) Lookup(particle string, set layout.FileSet) (*SetRecord, bool) {
	pr, ok := r.particles[particle]
	if !ok {
		return nil, false
	}
	sr, ok := pr[set]
	return sr, ok
}

// AppendLog adds a log line to the particle's set bucket.
func (r *JobRecord) AppendLog(particle string, set layout.FileSet, msg string) {
	sr := r.Set(particle, set)
	sr.Logs = append(sr.Logs, msg)
}

// Particles returns the recorded particle names, sorted.
func (r *JobRecord) Particles() []string {
	names := make([]string, 0, len(r.particles))
	for name := range r.particles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge copies every particle of other into r. Set records of a particle
// present in both are replaced by other's.
func (r *JobRecord) Merge(other *JobRecord) {
	if other == nil {
		return
	}
	for particle, pr := range other.particles {
		for set, sr := range pr {
			copied := *sr
			copied.Logs = append([]string(nil), sr.Logs...)
			*r.Set(particle, set) = copied
		}
	}
}

// setDoc is the serialized form of a SetRecord. The log and output keys are
// named after the set, so only one of each pair is filled.
type setDoc struct {
	LogsTrain     []string `json:"logs_script_train,omitempty" yaml:"logs_script_train,omitempty"`
	LogsTest      []string `json:"logs_script_test,omitempty" yaml:"logs_script_test,omitempty"`
	TrainOutput   string   `json:"train_path_and_outname_dl1,omitempty" yaml:"train_path_and_outname_dl1,omitempty"`
	TestOutput    string   `json:"test_path_and_outname_dl1,omitempty" yaml:"test_path_and_outname_dl1,omitempty"`
	JobID         string   `json:"jobid,omitempty" yaml:"jobid,omitempty"`
	RelocateJobID string   `json:"relocate_jobid,omitempty" yaml:"relocate_jobid,omitempty"`
	Command       string   `json:"command,omitempty" yaml:"command,omitempty"`
}

type document map[string]map[string]setDoc

func (r *JobRecord) document() document {
	doc := make(document, len(r.particles))
	for particle, pr := range r.particles {
		sets := make(map[string]setDoc, len(pr))
		for set, sr := range pr {
			d := setDoc{JobID: sr.MergeJobID, RelocateJobID: sr.RelocateJobID, Command: sr.Command}
			if set == layout.Training {
				d.LogsTrain, d.TrainOutput = sr.Logs, sr.OutputPath
			} else {
				d.LogsTest, d.TestOutput = sr.Logs, sr.OutputPath
			}
			sets[string(set)] = d
		}
		doc[particle] = sets
	}
	return doc
}

func (r *JobRecord) fromDocument(doc document) error {
	r.particles = make(map[string]ParticleRecord, len(doc))
	for particle, sets := range doc {
		for name, d := range sets {
			set := layout.FileSet(name)
			if !set.Valid() {
				return errors.NewValidationError("unknown file set in job record").
					WithField(particle).WithValue(name)
			}
			sr := r.Set(particle, set)
			sr.MergeJobID, sr.RelocateJobID, sr.Command = d.JobID, d.RelocateJobID, d.Command
			if set == layout.Training {
				sr.Logs, sr.OutputPath = d.LogsTrain, d.TrainOutput
			} else {
				sr.Logs, sr.OutputPath = d.LogsTest, d.TestOutput
			}
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r *JobRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.document())
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *JobRecord) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	return r.fromDocument(doc)
}

// MarshalYAML implements yaml.Marshaler.
func (r *JobRecord) MarshalYAML() (any, error) {
	return r.document(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *JobRecord) UnmarshalYAML(node *yaml.Node) error {
	var doc document
	if err := node.Decode(&doc); err != nil {
		return err
	}
	return r.fromDocument(doc)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Save writes the record to path, as YAML for .yaml/.yml and JSON otherwise.
func Save(path string, r *JobRecord) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(r)
	} else {
		data, err = json.MarshalIndent(r, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.Wrap(err, "encoding job record")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "creating job record directory")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "writing job record")
	}
	return os.Rename(tmp, path)
}

// Load reads a record written by Save. A missing file yields a NotFoundError.
func Load(path string) (*JobRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("job record", path).WithCause(err)
		}
		return nil, errors.Wrap(err, "reading job record")
	}

	r := New()
	if len(strings.TrimSpace(string(data))) == 0 {
		return r, nil
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, r)
	} else {
		err = json.Unmarshal(data, r)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding job record %s", path)
	}
	return r, nil
}

// LoadOrNew is Load, returning an empty record when path does not exist.
func LoadOrNew(path string) (*JobRecord, error) {
	r, err := Load(path)
	if errors.Is(err, errors.ErrNotFound) {
		return New(), nil
	}
	return r, err
}
