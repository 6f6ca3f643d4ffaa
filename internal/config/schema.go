package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/hashicorp/go-multierror"
)

//go:embed schema.cue
var schemaCUE string

// schema holds the compiled #Config definition. A cue.Context is not safe
// for concurrent use, so all schema work is serialized through mu.
type schema struct {
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
}

var (
	schemaOnce sync.Once
	compiled   *schema
	schemaErr  error
)

func loadSchema() (*schema, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		def := v.LookupPath(cue.ParsePath("#Config"))
		if !def.Exists() {
			schemaErr = fmt.Errorf("config schema has no #Config definition")
			return
		}
		compiled = &schema{ctx: ctx, def: def}
	})
	return compiled, schemaErr
}

// CheckSchema validates a configuration against the CUE schema.
// Every violation becomes a *FieldError in the returned *multierror.Error.
func CheckSchema(c Config) error {
	s, err := loadSchema()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ctx.Encode(c)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	unified := s.def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return schemaErrors(err)
	}
	return nil
}

// decodeCUE evaluates CUE source against the schema and decodes the
// result, filling unset fields with schema defaults.
func decodeCUE(filename string, data []byte) (Config, error) {
	s, err := loadSchema()
	if err != nil {
		return Config{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, schemaErrors(err)
	}

	unified := s.def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, schemaErrors(err)
	}

	var c Config
	if err := unified.Decode(&c); err != nil {
		return Config{}, schemaErrors(err)
	}
	return c, nil
}

// schemaErrors converts CUE errors into field errors.
func schemaErrors(err error) error {
	var result *multierror.Error
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		result = multierror.Append(result, &FieldError{
			Kind:    KindSchema,
			Field:   strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
			Pos:     e.Position(),
		})
	}
	if result == nil {
		return err
	}
	return result
}
