// Package schema validates flat annotation records against a CUE
// definition before they are loaded.
//
// The CUE schema checks shape only: field names and types, non-negative
// ordered spans, and that every tie endpoint carries exactly one of
// location_id or entity_id. Cross-references (an entity naming a missing
// group, a tie pointing at a deleted location) are checked by
// annotation.Initialize.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/annotie/internal/record"
)

//go:embed annotation.cue
var annotationCUE string

// Problem is one schema violation.
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path + ": " + p.Message
}

// Error lists every violation found in a record.
type Error struct {
	Problems []Problem
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return "schema: " + strings.Join(parts, "; ")
}

// Validator checks records against the #Annotation definition.
// A cue.Context is not safe for concurrent use, so calls are serialized.
type Validator struct {
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
}

// New compiles the embedded schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(annotationCUE, cue.Filename("annotation.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Annotation"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Annotation: %w", err)
	}
	return &Validator{ctx: ctx, def: def}, nil
}

// Validate checks a JSON record.
func (v *Validator) Validate(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	val := v.ctx.CompileBytes(data, cue.Filename("record.json"))
	if err := val.Err(); err != nil {
		return problems(err)
	}
	if err := v.def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return problems(err)
	}
	return nil
}

// Decode validates a JSON record and decodes it.
func (v *Validator) Decode(data []byte) (record.Record, error) {
	if err := v.Validate(data); err != nil {
		return record.Record{}, err
	}
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record.Record{}, fmt.Errorf("decode record: %w", err)
	}
	rec.Normalize()
	return rec, nil
}

// DecodeYAML accepts the same record written as YAML. Unquoted numeric
// ids such as `1:` are read as strings.
func (v *Validator) DecodeYAML(data []byte) (record.Record, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return record.Record{}, fmt.Errorf("parse yaml: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	jsonData, err := json.Marshal(stringKeys(raw))
	if err != nil {
		return record.Record{}, fmt.Errorf("convert yaml: %w", err)
	}
	return v.Decode(jsonData)
}

// stringKeys rewrites YAML mappings with non-string keys into JSON objects.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = stringKeys(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = stringKeys(val)
		}
		return t
	}
	return v
}

func problems(err error) error {
	var out []Problem
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		p := Problem{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 && pos[0].Filename() == "record.json" {
			p.Line = pos[0].Line()
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		out = append(out, Problem{Message: err.Error()})
	}
	return &Error{Problems: out}
}

var defaultValidator = sync.OnceValues(New)

// Decode validates and decodes a JSON record with the embedded schema.
func Decode(data []byte) (record.Record, error) {
	v, err := defaultValidator()
	if err != nil {
		return record.Record{}, err
	}
	return v.Decode(data)
}

// DecodeYAML validates and decodes a YAML record with the embedded schema.
func DecodeYAML(data []byte) (record.Record, error) {
	v, err := defaultValidator()
	if err != nil {
		return record.Record{}, err
	}
	return v.DecodeYAML(data)
}
