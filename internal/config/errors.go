package config

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/hashicorp/go-multierror"
)

// Check kinds for FieldError.
const (
	KindSchema = "schema" // rejected by the CUE schema
	KindRule   = "rule"   // rejected by a cross-field rule
)

// FieldError reports one invalid configuration field.
type FieldError struct {
	Field   string
	Message string
	Kind    string
	Pos     token.Pos // CUE position if available
}

func (e *FieldError) Error() string {
	prefix := e.Field
	if prefix == "" {
		prefix = "config"
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Problems flattens a load or validation error into its individual causes.
// A nil error yields nil.
func Problems(err error) []error {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		return merr.WrappedErrors()
	}
	return []error{err}
}
