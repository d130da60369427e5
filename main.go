// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	_ "modernc.org/sqlite"

	"github.com/ffutop/brightness-daemon/internal/backlight"
	"github.com/ffutop/brightness-daemon/internal/backlight/persistence"
	"github.com/ffutop/brightness-daemon/internal/config"
	"github.com/ffutop/brightness-daemon/internal/daemon"
	"github.com/ffutop/brightness-daemon/internal/privilege"
	"github.com/ffutop/brightness-daemon/transport/unixgram"
)

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf("Failed to parse flags: %v\n", err)
		os.Exit(2)
	}

	// Load Configuration
	cfg, err := config.LoadConfig(flags)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	slog.Info("Starting brightness daemon...")

	if err := run(cfg); err != nil {
		slog.Error("Brightness daemon stopped with error", "err", err)
		os.Exit(1)
	}
	slog.Info("Goodbye.")
}

// run performs the privileged setup, drops privileges and serves until
// SIGINT or SIGTERM.
func run(cfg *config.Config) error {
	id, err := cfg.Backlight.Identifier()
	if err != nil {
		return err
	}
	mode, err := cfg.Socket.FileMode()
	if err != nil {
		return err
	}

	storage, err := persistence.New(cfg.State.Type, cfg.State.Path)
	if err != nil {
		return err
	}
	slog.Info("Using state storage", "type", cfg.State.Type, "path", cfg.State.Path)

	bl := backlight.New(backlight.Options{
		Identifier: id,
		ClassDir:   cfg.Backlight.ClassDir,
		Powersave:  cfg.PowersaveValue,
	}, storage)
	if err := bl.Init(); err != nil {
		return err
	}
	defer bl.Close()

	boundary := privilege.New(cfg.User, cfg.Group)

	var owner *unixgram.Owner
	if cfg.User != "" {
		target, err := boundary.Target()
		if err != nil {
			return err
		}
		owner = &unixgram.Owner{UID: target.UID, GID: target.GID}
	}

	server := unixgram.NewServer(cfg.Socket.Path, mode)
	if err := server.Bind(owner); err != nil {
		return err
	}
	defer server.Close()

	dropped, err := boundary.Drop()
	if err != nil {
		return err
	}
	who := dropped.Identity()
	slog.Info("Running unprivileged", "user", who.Username, "uid", who.UID, "gid", who.GID)

	// Wait for Signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return daemon.New(bl, server, cfg.Verbose).Run(ctx, dropped)
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
