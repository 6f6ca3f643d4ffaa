package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Load reads a configuration file.
//
// The format follows the extension: .cue files are evaluated against the
// schema directly, anything else is parsed as YAML on top of Default().
// Unknown fields are rejected in both formats.
//
// The returned error aggregates every schema and engine violation; use
// Problems to list them.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if filepath.Ext(path) == ".cue" {
		c, err := decodeCUE(path, data)
		if err != nil {
			return Config{}, err
		}
		if err := c.Validate(); err != nil {
			return Config{}, err
		}
		return c, nil
	}
	return ParseYAML(data)
}

// ParseYAML parses YAML configuration data.
// Fields not present keep their Default() values.
func ParseYAML(data []byte) (Config, error) {
	c := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := Check(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Check runs schema and engine validation and merges their findings.
func Check(c Config) error {
	var result *multierror.Error
	if err := CheckSchema(c); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
