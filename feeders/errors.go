package feeders

import (
	"errors"
	"fmt"
)

// Static error definitions for feeders
var (
	ErrEnvInvalidStructure     = errors.New("env: invalid structure")
	ErrEnvEmptyPrefixAndSuffix = errors.New("env: prefix or suffix cannot be empty")
	ErrEnvFieldCannotBeSet     = errors.New("env: field cannot be set")
	ErrFileFormatUnsupported   = errors.New("unsupported config file format")
	ErrFileRead                = errors.New("failed to read config file")
)

func wrapFileReadError(path string, err error) error {
	return fmt.Errorf("%w %s: %w", ErrFileRead, path, err)
}

func wrapFormatError(path string) error {
	return fmt.Errorf("%w: %s", ErrFileFormatUnsupported, path)
}
