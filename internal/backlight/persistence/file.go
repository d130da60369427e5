// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// FileStorage keeps the record in a plain file that is rewritten in place.
type FileStorage struct {
	path string
	file *os.File
}

// NewFileStorage creates a new FileStorage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path: path,
	}
}

// Open opens the state file, creating it empty if necessary.
func (fs *FileStorage) Open() error {
	f, err := os.OpenFile(fs.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}
	fs.file = f
	return nil
}

func (fs *FileStorage) Load() (uint32, error) {
	if fs.file == nil {
		return 0, errors.New("state file is not open")
	}
	buf := make([]byte, recordSize)
	n, err := fs.file.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("failed to read state file: %w", err)
	}
	return decodeRecord(buf[:n])
}

// Save writes the record at offset 0 and syncs the file to disk.
func (fs *FileStorage) Save(value uint32) error {
	if fs.file == nil {
		return errors.New("state file is not open")
	}
	if _, err := fs.file.WriteAt(encodeRecord(value), 0); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := fs.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync state file to disk: %w", err)
	}
	return nil
}

// Close the file.
func (fs *FileStorage) Close() error {
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}
