package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/sweeptrace/internal/config"
	"github.com/roach88/sweeptrace/internal/engine"
)

// LoadError represents one problem found while loading a configuration.
type LoadError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// LoadConfig reads a configuration file. An empty path selects the
// built-in defaults. On failure every problem is returned as a *LoadError.
func LoadConfig(path string) (config.Config, []error) {
	if path == "" {
		return config.Default(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Config{}, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}}
	}

	c, err := config.Load(path)
	if err != nil {
		return config.Config{}, toLoadErrors(err)
	}
	return c, nil
}

// CheckConfig revalidates a configuration after flag overrides.
func CheckConfig(c config.Config) []error {
	return toLoadErrors(config.Check(c))
}

// toLoadErrors classifies each problem by where it was caught.
func toLoadErrors(err error) []error {
	problems := config.Problems(err)
	out := make([]error, 0, len(problems))
	for _, p := range problems {
		out = append(out, classify(p))
	}
	return out
}

func classify(err error) *LoadError {
	var fe *config.FieldError
	if errors.As(err, &fe) {
		code := ErrCodeSchema
		if fe.Kind == config.KindRule {
			code = ErrCodeRule
		}
		return &LoadError{Code: code, Field: fe.Field, Message: fe.Message, Pos: fe.Pos}
	}

	var re *engine.RuntimeError
	if errors.As(err, &re) && re.Code == engine.ErrCodeInvalidConfig {
		return &LoadError{Code: ErrCodeRule, Field: re.Field, Message: re.Message}
	}

	return &LoadError{Code: ErrCodeParse, Message: err.Error()}
}
