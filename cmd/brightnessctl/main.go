// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command brightnessctl sends a single command to the brightness daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/ffutop/brightness-daemon/protocol"
	"github.com/ffutop/brightness-daemon/transport/unixgram"
)

const usage = `Usage: brightnessctl [--socket path] <command> [value]

Commands:
  set N       set brightness to N
  inc N       raise brightness by N
  dec N       lower brightness by N
  save        persist the current brightness
  restore     apply the persisted brightness
  powersave   switch to the configured powersave level
`

func main() {
	fs := pflag.NewFlagSet("brightnessctl", pflag.ContinueOnError)
	socket := fs.StringP("socket", "s", "/run/brightness-daemon.sock", "Daemon socket path.")
	timeout := fs.DurationP("timeout", "t", time.Second, "Send timeout.")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage, "\nFlags:\n", fs.FlagUsages())
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cmd, err := parseCommand(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "brightnessctl: %v\n\n", err)
		fs.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := unixgram.NewClient(*socket)
	client.Timeout = *timeout
	defer client.Close()

	if err := client.Send(ctx, cmd); err != nil {
		fmt.Fprintf(os.Stderr, "brightnessctl: %v\n", err)
		os.Exit(1)
	}
}

// parseCommand maps command line arguments to a protocol command.
func parseCommand(args []string) (protocol.Command, error) {
	if len(args) == 0 {
		return nil, errors.New("missing command")
	}

	name, rest := args[0], args[1:]
	switch name {
	case "set", "inc", "dec":
		if len(rest) != 1 {
			return nil, fmt.Errorf("%s takes exactly one value", name)
		}
	default:
		if len(rest) != 0 {
			return nil, fmt.Errorf("%s takes no value", name)
		}
	}

	switch name {
	case "set":
		v, err := strconv.ParseUint(rest[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid brightness %q", rest[0])
		}
		return protocol.SetState{Value: uint32(v)}, nil
	case "inc", "dec":
		v, err := strconv.ParseUint(rest[0], 10, 31)
		if err != nil {
			return nil, fmt.Errorf("invalid step %q", rest[0])
		}
		delta := int32(v)
		if name == "dec" {
			delta = -delta
		}
		return protocol.ModifyState{Delta: delta}, nil
	case "save":
		return protocol.SaveState{}, nil
	case "restore":
		return protocol.RestoreState{}, nil
	case "powersave":
		return protocol.SetPowersave{}, nil
	}
	return nil, fmt.Errorf("unknown command %q", name)
}
