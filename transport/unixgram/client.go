// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package unixgram

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/ffutop/brightness-daemon/protocol"
	"github.com/ffutop/brightness-daemon/transport"
)

const clientTimeout = 2 * time.Second

// Client sends command frames to the daemon socket. Delivery is
// fire-and-forget; the daemon does not answer.
type Client struct {
	Path    string
	Timeout time.Duration

	conn net.Conn
}

var _ transport.Sender = (*Client)(nil)

// NewClient allocates and initializes a Client.
func NewClient(path string) *Client {
	return &Client{
		Path:    path,
		Timeout: clientTimeout,
	}
}

// Send encodes cmd and writes it as a single datagram.
func (c *Client) Send(ctx context.Context, cmd protocol.Command) error {
	return c.SendRaw(ctx, protocol.Encode(cmd))
}

// SendRaw writes frame as is.
func (c *Client) SendRaw(ctx context.Context, frame []byte) error {
	if c.conn == nil {
		d := net.Dialer{Timeout: c.Timeout}
		conn, err := d.DialContext(ctx, "unixgram", c.Path)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", c.Path, err)
		}
		c.conn = conn
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.Timeout)); err != nil {
		return err
	}
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	slog.Debug("Sent command frame", "path", c.Path, "frame", hex.EncodeToString(frame))
	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
