package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"price-sync-service/models"
)

// PriceTableRepository defines data access for the operator-edited surcharge
// table.
type PriceTableRepository interface {
	Load(ctx context.Context) (models.PriceTable, error)
	Save(ctx context.Context, table models.PriceTable) error
}

// FilePriceTableRepository keeps the table as one JSON document on disk.
// Reads and writes always cover the whole document; writers within the
// process serialize on the mutex and the last write wins.
type FilePriceTableRepository struct {
	path string
	mu   sync.Mutex
}

// NewFilePriceTableRepository creates a repository backed by the document at
// path. The document is operator-provisioned: loading a missing file is an
// error, not an empty table.
func NewFilePriceTableRepository(path string) PriceTableRepository {
	return &FilePriceTableRepository{path: path}
}

func (r *FilePriceTableRepository) Load(_ context.Context) (models.PriceTable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read price table %s: %w", r.path, err)
	}
	var table models.PriceTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse price table %s: %w", r.path, err)
	}
	return table, nil
}

func (r *FilePriceTableRepository) Save(_ context.Context, table models.PriceTable) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal price table: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write price table %s: %w", r.path, err)
	}
	return nil
}
