// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ffutop/brightness-daemon/internal/privilege"
	"github.com/ffutop/brightness-daemon/protocol"
	"github.com/ffutop/brightness-daemon/transport"
)

// Backlight is the set of brightness operations commands map to.
type Backlight interface {
	SetState(value uint32) error
	ModifyState(delta int32) error
	SaveState() error
	RestoreState()
	SetPowersave() error
	Current() uint32
}

// Daemon dispatches commands received on an endpoint to the backlight.
// Commands are handled strictly one after another.
type Daemon struct {
	backlight Backlight
	endpoint  transport.Endpoint
	verbose   bool
}

// New creates a new Daemon.
func New(backlight Backlight, endpoint transport.Endpoint, verbose bool) *Daemon {
	return &Daemon{
		backlight: backlight,
		endpoint:  endpoint,
		verbose:   verbose,
	}
}

// Run restores the saved brightness, serves commands until ctx is done and
// then saves the current brightness once. It refuses to run before
// privileges were dropped.
func (d *Daemon) Run(ctx context.Context, dropped privilege.Dropped) error {
	if !dropped.Valid() {
		return errors.New("daemon: refusing to serve before dropping privileges")
	}

	d.backlight.RestoreState()

	slog.Info("Serving brightness commands", "brightness", d.backlight.Current())
	err := d.endpoint.Serve(ctx, d.Handle)

	if saveErr := d.backlight.SaveState(); saveErr != nil {
		slog.Error("Failed to save brightness on shutdown", "err", saveErr)
	} else {
		slog.Info("Saved brightness", "value", d.backlight.Current())
	}
	return err
}

// Handle is the central dispatch function.
func (d *Daemon) Handle(ctx context.Context, cmd protocol.Command) error {
	if d.verbose {
		slog.Info("Handling command", "type", cmd.Type(), "command", cmd)
	}

	var err error
	switch c := cmd.(type) {
	case protocol.SetState:
		err = d.backlight.SetState(c.Value)
	case protocol.ModifyState:
		err = d.backlight.ModifyState(c.Delta)
	case protocol.SaveState:
		err = d.backlight.SaveState()
	case protocol.RestoreState:
		d.backlight.RestoreState()
	case protocol.SetPowersave:
		err = d.backlight.SetPowersave()
	default:
		err = fmt.Errorf("unhandled command type %s", cmd.Type())
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Type(), err)
	}

	slog.Debug("Command applied", "command", cmd, "brightness", d.backlight.Current())
	return nil
}
