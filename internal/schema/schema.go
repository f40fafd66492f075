package schema

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/statetree/internal/ir"
)

// Schema is a compiled CUE constraint.
//
// Thread-safety: a cue.Context is not safe for concurrent use, so Validate
// serializes callers with an internal mutex.
type Schema struct {
	mu    sync.Mutex
	name  string
	ctx   *cue.Context
	value cue.Value
}

// Compile compiles CUE source into a Schema. name is used as the file name
// in error positions.
func Compile(name, source string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(source, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return &Schema{name: name, ctx: ctx, value: v}, nil
}

// Load reads and compiles a .cue file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Compile(path, string(data))
}

// Name returns the name the schema was compiled under.
func (s *Schema) Name() string {
	return s.name
}

// Validate unifies v with the schema and returns one Violation per CUE
// error. A nil result means v satisfies the schema. Fields the schema
// declares but v lacks are reported as incomplete.
func (s *Schema) Validate(v ir.Value) []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.ctx.Encode(ir.ToNative(v))
	if err := data.Err(); err != nil {
		return []error{&Violation{Message: err.Error()}}
	}

	err := s.value.Unify(data).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var out []error
	for _, e := range errors.Errors(err) {
		format, args := e.Msg()
		out = append(out, &Violation{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	return out
}

// Violation is one way a value fails its schema.
type Violation struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (v *Violation) Error() string {
	if v.Path == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// CompileError reports CUE source that does not compile.
type CompileError struct {
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	format, args := first.Msg()
	ce := &CompileError{Message: fmt.Sprintf(format, args...)}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
