package feeders

import (
	"encoding/json"
	"fmt"
	"os"
)

// JSONFeeder is a feeder that reads JSON files
type JSONFeeder struct {
	Path string
}

func NewJSONFeeder(filePath string) JSONFeeder {
	return JSONFeeder{Path: filePath}
}

// Feed decodes the file onto structure.
func (j JSONFeeder) Feed(structure any) error {
	data, err := os.ReadFile(j.Path)
	if err != nil {
		return wrapFileReadError(j.Path, err)
	}

	if err := json.Unmarshal(data, structure); err != nil {
		return fmt.Errorf("failed to unmarshal JSON %s: %w", j.Path, err)
	}
	return nil
}
