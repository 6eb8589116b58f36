// Package feeders provides configuration feeders for reading data from
// YAML, TOML and JSON files and from environment variables.
package feeders

import (
	"path/filepath"
	"strings"
)

// Feeder populates a configuration structure from one source.
type Feeder interface {
	Feed(structure any) error
}

// NewFileFeeder returns the file feeder matching the extension of path.
func NewFileFeeder(path string) (Feeder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYamlFeeder(path), nil
	case ".toml":
		return NewTomlFeeder(path), nil
	case ".json":
		return NewJSONFeeder(path), nil
	default:
		return nil, wrapFormatError(path)
	}
}
