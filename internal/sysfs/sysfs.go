// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package sysfs locates the kernel backlight node that belongs to a
// configured PCI vendor/device pair.
package sysfs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultClassDir is where the kernel exposes backlight class devices.
const DefaultClassDir = "/sys/class/backlight"

// maxDeviceDepth bounds the walk along "device" symlinks.
const maxDeviceDepth = 16

var ErrDeviceNotFound = errors.New("sysfs: backlight device not found")

// Identifier selects a backlight node. Prefix filters entry names in the
// class directory, VendorID and DeviceID must match the physical device.
type Identifier struct {
	Prefix   string
	VendorID uint16
	DeviceID uint16
}

func (id Identifier) String() string {
	return fmt.Sprintf("%s*[%04x:%04x]", id.Prefix, id.VendorID, id.DeviceID)
}

// ParseID parses a hexadecimal vendor or device id, with or without 0x.
func ParseID(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid hex id %q: %w", s, err)
	}
	return uint16(v), nil
}

// Lookup returns the class directory entry of the first backlight whose
// physical device matches id. Entries are visited in directory order, so
// when several candidates match the first one wins.
func Lookup(classDir string, id Identifier) (string, error) {
	entries, err := os.ReadDir(classDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	}

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		if !strings.HasPrefix(entry.Name(), id.Prefix) {
			continue
		}

		node := filepath.Join(classDir, entry.Name())
		parent, ok := parentDevice(node)
		if !ok {
			slog.Debug("Backlight candidate has no parent device", "node", node)
			continue
		}

		if identify(parent, id) {
			return node, nil
		}
	}

	return "", ErrDeviceNotFound
}

// parentDevice follows the "device" links of path until it reaches a node
// that carries class, vendor and device attributes.
func parentDevice(path string) (string, bool) {
	visited := make(map[string]struct{})
	current := path

	for depth := 0; depth < maxDeviceDepth; depth++ {
		if isParentDevice(current) {
			return current, true
		}

		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			if _, seen := visited[resolved]; seen {
				return "", false
			}
			visited[resolved] = struct{}{}
		}

		next := filepath.Join(current, "device")
		fi, err := os.Lstat(next)
		if err != nil || fi.Mode()&os.ModeSymlink == 0 {
			return "", false
		}
		current = next
	}

	return "", false
}

func isParentDevice(path string) bool {
	for _, attr := range []string{"class", "vendor", "device"} {
		fi, err := os.Stat(filepath.Join(path, attr))
		if err != nil || !fi.Mode().IsRegular() {
			return false
		}
	}
	return true
}

func identify(path string, id Identifier) bool {
	vendor, err := readID(filepath.Join(path, "vendor"))
	if err != nil {
		slog.Debug("Failed to read vendor id", "path", path, "err", err)
		return false
	}
	device, err := readID(filepath.Join(path, "device"))
	if err != nil {
		slog.Debug("Failed to read device id", "path", path, "err", err)
		return false
	}
	return vendor == id.VendorID && device == id.DeviceID
}

func readID(path string) (uint16, error) {
	s, err := ReadAttribute(path)
	if err != nil {
		return 0, err
	}
	return ParseID(s)
}

// ReadAttribute returns the content of a sysfs attribute with trailing
// whitespace removed.
func ReadAttribute(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimRightFunc(string(data), func(r rune) bool {
		return r == '\n' || r == ' ' || r == '\t' || r == '\r'
	}), nil
}

// ReadUint reads a decimal attribute such as max_brightness.
func ReadUint(path string) (uint32, error) {
	s, err := ReadAttribute(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value in %s: %w", path, err)
	}
	return uint32(v), nil
}
