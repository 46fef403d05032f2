// Package local keeps decks, render jobs, feedback and blobs on the local
// disk so the CLI can run without Postgres or object storage.
package local

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/timshannon/badgerhold/v4"
)

type DB struct {
	store *badgerhold.Store
	dir   string
}

// Open opens (creating if needed) a badgerhold database under dir/db.
func Open(dir string) (*DB, error) {
	path := filepath.Join(dir, "db")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &DB{store: store, dir: dir}, nil
}

func (d *DB) Store() *badgerhold.Store {
	return d.store
}

func (d *DB) Close() error {
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
