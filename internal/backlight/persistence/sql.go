// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"database/sql"
	"errors"
	"fmt"
)

// SQLStorage keeps the record in a single-row table.
type SQLStorage struct {
	driver string
	dsn    string
	db     *sql.DB
}

// NewSQLStorage creates a new SQLStorage.
// Note: The driver must be imported by the caller.
func NewSQLStorage(driver, dsn string) *SQLStorage {
	return &SQLStorage{
		driver: driver,
		dsn:    dsn,
	}
}

// Open connects to the DB and creates the table.
func (s *SQLStorage) Open() error {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	// One long-lived connection, opened while the process can still write
	// the state directory. initSchema keeps its journal in memory.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db

	if err := s.initSchema(); err != nil {
		db.Close()
		s.db = nil
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

func (s *SQLStorage) initSchema() error {
	// A rollback journal file would be created next to the database on
	// every write, which fails once the directory is no longer writable.
	if _, err := s.db.Exec("PRAGMA journal_mode=MEMORY"); err != nil {
		return err
	}

	query := `
	CREATE TABLE IF NOT EXISTS brightness_state (
		id INTEGER PRIMARY KEY CHECK (id = 0),
		value INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLStorage) Load() (uint32, error) {
	if s.db == nil {
		return 0, errors.New("db is not open")
	}
	var value int64
	err := s.db.QueryRow("SELECT value FROM brightness_state WHERE id = 0").Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoRecord
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query brightness: %w", err)
	}
	if value < 0 || value > int64(^uint32(0)) {
		return 0, fmt.Errorf("%w: stored value %d out of range", ErrNoRecord, value)
	}
	return uint32(value), nil
}

// Save upserts the single row.
func (s *SQLStorage) Save(value uint32) error {
	if s.db == nil {
		return errors.New("db is not open")
	}
	query := "INSERT INTO brightness_state (id, value) VALUES (0, ?) ON CONFLICT(id) DO UPDATE SET value=excluded.value"
	if _, err := s.db.Exec(query, int64(value)); err != nil {
		return fmt.Errorf("failed to persist brightness: %w", err)
	}
	return nil
}

func (s *SQLStorage) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}
