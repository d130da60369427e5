// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package backlight owns the brightness attribute of a backlight device
// and the saved brightness value.
//
// A Backlight is not safe for concurrent use; the daemon drives it from a
// single goroutine.
package backlight

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ffutop/brightness-daemon/internal/backlight/persistence"
	"github.com/ffutop/brightness-daemon/internal/sysfs"
)

var (
	ErrInit       = errors.New("backlight: initialization failed")
	ErrOutOfRange = errors.New("backlight: brightness out of range")
	ErrPersist    = errors.New("backlight: failed to save brightness")
)

// Options configures a Backlight.
type Options struct {
	Identifier sysfs.Identifier
	ClassDir   string // defaults to sysfs.DefaultClassDir
	Powersave  uint32
}

// Backlight mirrors the hardware brightness in memory. After Init the
// invariant current <= maxBrightness holds.
type Backlight struct {
	opts    Options
	storage persistence.Storage

	node          string
	brightness    *os.File
	current       uint32
	maxBrightness uint32
}

// New creates an uninitialized Backlight. Call Init before anything else.
func New(opts Options, storage persistence.Storage) *Backlight {
	if opts.ClassDir == "" {
		opts.ClassDir = sysfs.DefaultClassDir
	}
	return &Backlight{
		opts:    opts,
		storage: storage,
	}
}

// Init resolves the device, reads its limits, opens the brightness
// attribute and the saved state.
func (b *Backlight) Init() error {
	node, err := sysfs.Lookup(b.opts.ClassDir, b.opts.Identifier)
	if err != nil {
		return fmt.Errorf("failed to lookup backlight node for %s: %w", b.opts.Identifier, err)
	}
	b.node = node

	maxBrightness, err := sysfs.ReadUint(filepath.Join(node, "max_brightness"))
	if err != nil {
		return fmt.Errorf("%w: failed to query maximum brightness: %v", ErrInit, err)
	}
	b.maxBrightness = maxBrightness

	f, err := os.OpenFile(filepath.Join(node, "brightness"), os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("%w: failed to open brightness: %v", ErrInit, err)
	}
	b.brightness = f

	if err := b.sync(); err != nil {
		b.brightness.Close()
		b.brightness = nil
		return fmt.Errorf("%w: %v", ErrInit, err)
	}

	if err := b.storage.Open(); err != nil {
		b.brightness.Close()
		b.brightness = nil
		return fmt.Errorf("%w: failed to open saved state: %v", ErrInit, err)
	}

	slog.Info("Backlight ready", "node", node, "brightness", b.current, "max", b.maxBrightness)
	return nil
}

// sync reads the hardware value into memory.
func (b *Backlight) sync() error {
	buf := make([]byte, 32)
	n, err := b.brightness.ReadAt(buf, 0)
	if err != nil && n == 0 {
		return fmt.Errorf("failed to read brightness: %w", err)
	}
	v, err := strconv.ParseUint(trimValue(buf[:n]), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid brightness value: %w", err)
	}
	if uint32(v) > b.maxBrightness {
		v = uint64(b.maxBrightness)
	}
	b.current = uint32(v)
	return nil
}

// trimValue returns the first line of an attribute read. A shorter value
// written over a longer one in a regular file leaves stale bytes behind the
// newline.
func trimValue(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimSpace(b))
}

// SetState writes value to the hardware. The in-memory value only
// changes when the write succeeds.
func (b *Backlight) SetState(value uint32) error {
	if value > b.maxBrightness {
		return fmt.Errorf("%w: %d > %d", ErrOutOfRange, value, b.maxBrightness)
	}
	if _, err := b.brightness.WriteAt([]byte(strconv.FormatUint(uint64(value), 10)+"\n"), 0); err != nil {
		return fmt.Errorf("failed to write brightness: %w", err)
	}
	b.current = value
	return nil
}

// ModifyState adds delta to the current brightness, saturating at 0 and
// the hardware maximum.
func (b *Backlight) ModifyState(delta int32) error {
	target := int64(b.current) + int64(delta)
	if target < 0 {
		target = 0
	}
	if target > int64(b.maxBrightness) {
		target = int64(b.maxBrightness)
	}
	return b.SetState(uint32(target))
}

// SaveState stores the current brightness.
func (b *Backlight) SaveState() error {
	if err := b.storage.Save(b.current); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// RestoreState applies the saved brightness. A missing record or an
// unusable value is logged and otherwise ignored.
func (b *Backlight) RestoreState() {
	value, err := b.storage.Load()
	if err != nil {
		slog.Debug("No saved brightness to restore", "err", err)
		return
	}
	if err := b.SetState(value); err != nil {
		slog.Warn("Failed to restore saved brightness", "value", value, "err", err)
		return
	}
	slog.Debug("Restored saved brightness", "value", value)
}

// SetPowersave applies the configured powersave brightness.
func (b *Backlight) SetPowersave() error {
	return b.SetState(b.opts.Powersave)
}

func (b *Backlight) Current() uint32 { return b.current }

func (b *Backlight) Max() uint32 { return b.maxBrightness }

// Node returns the resolved class directory entry.
func (b *Backlight) Node() string { return b.node }

// Close releases the brightness attribute and the storage.
func (b *Backlight) Close() error {
	var err error
	if b.brightness != nil {
		err = b.brightness.Close()
		b.brightness = nil
	}
	if e := b.storage.Close(); e != nil {
		err = e
	}
	return err
}
