package feeders

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// TomlFeeder is a feeder that reads TOML files
type TomlFeeder struct {
	Path string
}

func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{Path: filePath}
}

// Feed decodes the file onto structure.
func (t TomlFeeder) Feed(structure any) error {
	if _, err := toml.DecodeFile(t.Path, structure); err != nil {
		return fmt.Errorf("failed to decode toml %s: %w", t.Path, err)
	}
	return nil
}
