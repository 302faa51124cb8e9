package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/buntdb"
)

const buntKeyPrefix = "mcwatch:"

// Bunt keeps snapshots in a BuntDB file, or in memory when no path is given.
type Bunt struct {
	db *buntdb.DB
}

// OpenBunt opens path, falling back to an in-memory database for "" or ":memory:".
func OpenBunt(path string) (*Bunt, error) {
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create buntdb dir: %w", err)
			}
		}
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open buntdb: %w", err)
	}
	return &Bunt{db: db}, nil
}

// Load reads the payload for resource.
func (b *Bunt) Load(_ context.Context, resource Resource) ([]byte, error) {
	var payload string
	err := b.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(buntKeyPrefix + string(resource))
		if err != nil {
			return err
		}
		payload = val
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", resource, err)
	}
	return []byte(payload), nil
}

// Save replaces the payload for resource.
func (b *Bunt) Save(_ context.Context, resource Resource, payload []byte) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(buntKeyPrefix+string(resource), string(payload), nil); err != nil {
			return fmt.Errorf("write %s: %w", resource, err)
		}
		return nil
	})
}

// Close flushes and closes the database.
func (b *Bunt) Close() error {
	return b.db.Close()
}

var _ Backend = (*Bunt)(nil)
