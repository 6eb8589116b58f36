// Package catalogsync keeps the catalog fresh. Refresher pulls products from
// a Source on start and on a cron schedule; Watcher reloads a seed file when
// it changes on disk. Both hand the products to the storefront over the bus.
package catalogsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/GoCodeAlone/storefront/catalog"
)

// Sync errors
var (
	ErrNilSource       = errors.New("catalog source is nil")
	ErrInvalidSchedule = errors.New("invalid refresh schedule")
	ErrSeedFileRead    = errors.New("failed to read catalog seed file")
	ErrSeedFileFormat  = errors.New("catalog seed file is neither a product list nor an {\"items\": [...]} document")
	ErrNotInitialized  = errors.New("module not initialized")
)

// Source supplies raw catalog records.
type Source interface {
	Products(ctx context.Context) ([]catalog.RawProduct, error)
}

// FileSource reads products from a JSON file. The file holds either a bare
// product list or the product API's {"items": [...]} document.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path on every call.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the file the source reads.
func (s *FileSource) Path() string {
	return s.path
}

// Products reads and decodes the file.
func (s *FileSource) Products(ctx context.Context) ([]catalog.RawProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSeedFileRead, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []catalog.RawProduct
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSeedFileFormat, err)
		}
		return items, nil
	}

	var doc struct {
		Items []catalog.RawProduct `json:"items"`
	}
	if err := json.Unmarshal(data, &doc); err != nil || doc.Items == nil {
		return nil, fmt.Errorf("%w: %s", ErrSeedFileFormat, s.path)
	}
	return doc.Items, nil
}
