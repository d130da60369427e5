// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoRecord is returned by Load when nothing has been saved yet or the
// stored record is truncated.
var ErrNoRecord = errors.New("persistence: no saved brightness")

// Storage defines the interface for persisting the brightness value.
type Storage interface {
	// Open prepares the backing store, creating it if it does not exist.
	Open() error

	// Load returns the saved brightness, or ErrNoRecord.
	Load() (uint32, error)

	// Save overwrites the saved brightness and flushes it.
	Save(value uint32) error

	Close() error
}

// Backend names accepted by New.
const (
	TypeFile   = "file"
	TypeMmap   = "mmap"
	TypeSQL    = "sql"
	TypeMemory = "memory"
)

// SQLDriver is the database/sql driver name used by the "sql" backend.
// The main package must import the driver.
const SQLDriver = "sqlite"

// New returns the storage backend named by kind. An empty kind selects
// the file backend.
func New(kind, path string) (Storage, error) {
	switch kind {
	case TypeFile, "":
		slog.Debug("Using file persistence", "path", path)
		return NewFileStorage(path), nil
	case TypeMmap:
		slog.Debug("Using mmap persistence", "path", path)
		return NewMmapStorage(path), nil
	case TypeSQL:
		slog.Debug("Using SQL persistence", "driver", SQLDriver, "dsn", path)
		return NewSQLStorage(SQLDriver, path), nil
	case TypeMemory:
		slog.Debug("Using memory storage (non-persistent)")
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown persistence type %q", kind)
	}
}
