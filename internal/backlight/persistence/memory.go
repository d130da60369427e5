// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

// MemoryStorage is a non-persistent storage.
type MemoryStorage struct {
	value uint32
	saved bool
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (ms *MemoryStorage) Open() error {
	return nil
}

func (ms *MemoryStorage) Load() (uint32, error) {
	if !ms.saved {
		return 0, ErrNoRecord
	}
	return ms.value, nil
}

func (ms *MemoryStorage) Save(value uint32) error {
	ms.value = value
	ms.saved = true
	return nil
}

func (ms *MemoryStorage) Close() error {
	return nil
}
