package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/annotie/internal/graph"
	"github.com/roach88/annotie/internal/record"
	"github.com/roach88/annotie/internal/schema"
)

// Scenario is one scripted editing session.
type Scenario struct {
	// Name uniquely identifies the scenario; it names the golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Session is the fixed session id stamped on every change-set.
	// If empty, defaults to "test-session-default".
	Session string `yaml:"session,omitempty"`

	// Annotation is the id the record is stored under. Defaults to Name.
	Annotation string `yaml:"annotation,omitempty"`

	// Record is the initial flat record, inline.
	Record yaml.Node `yaml:"record,omitempty"`

	// RecordFile is a path to a JSON or YAML record, relative to the
	// scenario file.
	RecordFile string `yaml:"record_file,omitempty"`

	Steps []Step `yaml:"steps"`

	// Graph configures the projection used by edge assertions and goldens.
	Graph GraphOptions `yaml:"graph,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// GraphOptions is the YAML form of graph.Options.
type GraphOptions struct {
	Key   string `yaml:"key,omitempty"`
	Merge string `yaml:"merge,omitempty"`
}

// Options parses the projection options.
func (g GraphOptions) Options() (graph.Options, error) {
	keys, err := graph.ParseKeyFields(g.Key)
	if err != nil {
		return graph.Options{}, err
	}
	merge, err := graph.ParseMergeMethod(g.Merge)
	if err != nil {
		return graph.Options{}, err
	}
	return graph.Options{KeyFields: keys, Merge: merge}, nil
}

// Assertion checks the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind is the record kind (entities, groups, locations, ties).
	Kind string `yaml:"kind,omitempty"`

	ID  string   `yaml:"id,omitempty"`
	IDs []string `yaml:"ids,omitempty"`

	// Key is the projected edge key (edge).
	Key string `yaml:"key,omitempty"`

	Count int `yaml:"count,omitempty"`

	// Expect holds expected fields (row, edge). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertCount        = "count"
	AssertExists       = "exists"
	AssertAbsent       = "absent"
	AssertRow          = "row"
	AssertGroupMembers = "group_members"
	AssertTiesOf       = "ties_of"
	AssertEdgeCount    = "edge_count"
	AssertEdge         = "edge"
)

var assertionTypes = map[string]bool{
	AssertCount: true, AssertExists: true, AssertAbsent: true, AssertRow: true,
	AssertGroupMembers: true, AssertTiesOf: true, AssertEdgeCount: true, AssertEdge: true,
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly. A record_file is resolved relative to the
// scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.RecordFile != "" && !filepath.IsAbs(scenario.RecordFile) {
		scenario.RecordFile = filepath.Join(filepath.Dir(path), scenario.RecordFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and known names.
func validateScenario(s *Scenario) error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	hasInline := !s.Record.IsZero()
	if hasInline == (s.RecordFile != "") {
		errs = append(errs, errors.New("exactly one of record or record_file is required"))
	}
	if len(s.Steps) == 0 {
		errs = append(errs, errors.New("at least one step is required"))
	}
	bound := map[string]bool{}
	for i, step := range s.Steps {
		if !knownOps[step.Op] {
			errs = append(errs, fmt.Errorf("steps[%d]: unknown op %q", i, step.Op))
		}
		if step.As != "" {
			if strings.HasPrefix(step.As, "$") {
				errs = append(errs, fmt.Errorf("steps[%d]: as %q must not start with $", i, step.As))
			}
			bound[step.As] = true
		}
	}
	if _, err := s.Graph.Options(); err != nil {
		errs = append(errs, fmt.Errorf("graph: %w", err))
	}
	for i, a := range s.Assertions {
		if !assertionTypes[a.Type] {
			errs = append(errs, fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type))
			continue
		}
		if a.Kind != "" {
			if _, err := record.ParseKind(a.Kind); err != nil {
				errs = append(errs, fmt.Errorf("assertions[%d]: %w", i, err))
			}
		}
		for _, ref := range append([]string{a.ID}, a.IDs...) {
			if name, ok := strings.CutPrefix(ref, "$"); ok && !bound[name] {
				errs = append(errs, fmt.Errorf("assertions[%d]: %s is never bound", i, ref))
			}
		}
	}
	return errors.Join(errs...)
}

// loadRecord decodes and schema-checks the scenario's initial record.
func (s *Scenario) loadRecord() (record.Record, error) {
	if s.RecordFile != "" {
		data, err := os.ReadFile(s.RecordFile)
		if err != nil {
			return record.Record{}, fmt.Errorf("read record: %w", err)
		}
		if strings.HasSuffix(s.RecordFile, ".json") {
			return schema.Decode(data)
		}
		return schema.DecodeYAML(data)
	}
	data, err := yaml.Marshal(&s.Record)
	if err != nil {
		return record.Record{}, fmt.Errorf("encode inline record: %w", err)
	}
	return schema.DecodeYAML(data)
}

func (s *Scenario) annotationID() string {
	if s.Annotation != "" {
		return s.Annotation
	}
	return s.Name
}
