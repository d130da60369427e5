// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MmapStorage keeps the record in a memory-mapped file.
//
// A fresh state file is empty and cannot be mapped, so the mapping is
// created on the first Save; until then Load reports ErrNoRecord.
type MmapStorage struct {
	path string
	file *os.File
	data mmap.MMap
}

// NewMmapStorage creates a new MmapStorage.
func NewMmapStorage(path string) *MmapStorage {
	return &MmapStorage{
		path: path,
	}
}

// Open opens the state file, creating it if necessary, and maps the
// record if one is present.
func (ms *MmapStorage) Open() error {
	f, err := os.OpenFile(ms.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open mmap file: %w", err)
	}
	ms.file = f

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		ms.file = nil
		return err
	}

	if fi.Size() >= recordSize {
		if err := ms.mapRecord(); err != nil {
			f.Close()
			ms.file = nil
			return err
		}
	}
	return nil
}

func (ms *MmapStorage) mapRecord() error {
	data, err := mmap.MapRegion(ms.file, recordSize, mmap.RDWR, 0, 0)
	if err != nil {
		return fmt.Errorf("mmap failed: %w", err)
	}
	ms.data = data
	return nil
}

func (ms *MmapStorage) Load() (uint32, error) {
	if ms.data == nil {
		return 0, ErrNoRecord
	}
	return decodeRecord(ms.data)
}

// Save writes the record into the mapping and flushes it to disk.
func (ms *MmapStorage) Save(value uint32) error {
	if ms.file == nil {
		return errors.New("mmap file is not open")
	}
	if ms.data == nil {
		if err := ms.file.Truncate(recordSize); err != nil {
			return fmt.Errorf("failed to resize mmap file: %w", err)
		}
		if err := ms.mapRecord(); err != nil {
			return err
		}
	}
	copy(ms.data, encodeRecord(value))
	return ms.data.Flush()
}

// Close unmaps and closes the file.
func (ms *MmapStorage) Close() error {
	var err error
	if ms.data != nil {
		if e := ms.data.Unmap(); e != nil {
			err = e
		}
		ms.data = nil
	}
	if ms.file != nil {
		if e := ms.file.Close(); e != nil {
			err = e
		}
		ms.file = nil
	}
	return err
}
