// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ffutop/brightness-daemon/internal/backlight/persistence"
	"github.com/ffutop/brightness-daemon/internal/sysfs"
)

var ErrConfig = errors.New("config: invalid configuration")

// Config defines the global configuration structure
type Config struct {
	User           string          `mapstructure:"user"`  // Unprivileged user to run as
	Group          string          `mapstructure:"group"` // Defaults to the user's primary group
	Backlight      BacklightConfig `mapstructure:"backlight"`
	State          StateConfig     `mapstructure:"state"`
	Socket         SocketConfig    `mapstructure:"socket"`
	PowersaveValue uint32          `mapstructure:"powersave_value"`
	Verbose        bool            `mapstructure:"verbose"` // Log every handled command
	Log            LogConfig       `mapstructure:"log"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// BacklightConfig identifies the backlight device
type BacklightConfig struct {
	Prefix   string `mapstructure:"prefix"`    // e.g. "amdgpu_bl"
	VendorID string `mapstructure:"vendor_id"` // hex, e.g. "0x1002"
	DeviceID string `mapstructure:"device_id"` // hex, e.g. "0x15bf"
	ClassDir string `mapstructure:"class_dir"`
}

// StateConfig defines where the brightness is saved
type StateConfig struct {
	Type string `mapstructure:"type"` // "file", "mmap", "sql", "memory"
	Path string `mapstructure:"path"` // File path, or DSN for "sql"
}

// SocketConfig defines the command socket
type SocketConfig struct {
	Path string `mapstructure:"path"`
	Mode string `mapstructure:"mode"` // octal, e.g. "0660"
}

// Identifier parses the configured backlight identifier.
func (b BacklightConfig) Identifier() (sysfs.Identifier, error) {
	vendor, err := sysfs.ParseID(b.VendorID)
	if err != nil {
		return sysfs.Identifier{}, fmt.Errorf("%w: backlight.vendor_id: %v", ErrConfig, err)
	}
	device, err := sysfs.ParseID(b.DeviceID)
	if err != nil {
		return sysfs.Identifier{}, fmt.Errorf("%w: backlight.device_id: %v", ErrConfig, err)
	}
	return sysfs.Identifier{Prefix: b.Prefix, VendorID: vendor, DeviceID: device}, nil
}

// FileMode parses the socket mode.
func (s SocketConfig) FileMode() (os.FileMode, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s.Mode, "0o"), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: socket.mode %q: %v", ErrConfig, s.Mode, err)
	}
	return os.FileMode(v).Perm(), nil
}

// Flags returns the command line flags understood by LoadConfig.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("brightness-daemon", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Configuration file path.")
	fs.BoolP("verbose", "v", false, "Log every handled command.")
	fs.StringP("log-level", "l", "", "Log verbosity level (debug, info, warn, error).")
	fs.StringP("log-file", "L", "", "Log file name ('-' for logging to STDOUT only).")
	return fs
}

// LoadConfig loads configuration from file, overridden by flags.
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("backlight.class_dir", sysfs.DefaultClassDir)
	v.SetDefault("state.type", persistence.TypeFile)
	v.SetDefault("state.path", "/var/lib/brightness-daemon/state")
	v.SetDefault("socket.path", "/run/brightness-daemon.sock")
	v.SetDefault("socket.mode", "0660")

	configFile := ""
	if flags != nil {
		configFile, _ = flags.GetString("config")
		for key, flag := range map[string]string{
			"verbose":   "verbose",
			"log.level": "log-level",
			"log.file":  "log-file",
		} {
			if f := flags.Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/brightness-daemon/")
		v.AddConfigPath("$HOME/.brightness-daemon")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("failed to find config file: %w", err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the fields the daemon cannot start without.
func (c *Config) Validate() error {
	if c.Backlight.Prefix == "" {
		return fmt.Errorf("%w: backlight.prefix is required", ErrConfig)
	}
	if _, err := c.Backlight.Identifier(); err != nil {
		return err
	}
	switch c.State.Type {
	case persistence.TypeFile, persistence.TypeMmap, persistence.TypeSQL, persistence.TypeMemory:
	default:
		return fmt.Errorf("%w: unknown state.type %q", ErrConfig, c.State.Type)
	}
	if c.State.Path == "" && c.State.Type != persistence.TypeMemory {
		return fmt.Errorf("%w: state.path is required", ErrConfig)
	}
	if c.Socket.Path == "" {
		return fmt.Errorf("%w: socket.path is required", ErrConfig)
	}
	if _, err := c.Socket.FileMode(); err != nil {
		return err
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	return nil
}
