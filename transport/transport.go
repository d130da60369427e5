// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"

	"github.com/ffutop/brightness-daemon/protocol"
)

// Handler executes one decoded command. The protocol has no response
// channel, so the error is only logged by the endpoint.
type Handler func(ctx context.Context, cmd protocol.Command) error

// Endpoint receives command frames from local clients and hands them to
// a Handler one at a time.
type Endpoint interface {
	// Serve blocks until ctx is done or the endpoint is closed.
	Serve(ctx context.Context, handler Handler) error
	Close() error
}

// Sender delivers commands to a running daemon.
type Sender interface {
	Send(ctx context.Context, cmd protocol.Command) error
	Close() error
}
