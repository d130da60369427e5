// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package unixgram

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ffutop/brightness-daemon/protocol"
	"github.com/ffutop/brightness-daemon/transport"
)

// DefaultMode lets the owning user and group send to the socket.
const DefaultMode os.FileMode = 0660

// Pause after a failed receive, doubled on each consecutive failure.
const (
	minReceiveBackoff = 5 * time.Millisecond
	maxReceiveBackoff = time.Second
)

// Owner is the uid/gid the socket file is handed to.
type Owner struct {
	UID int
	GID int
}

// Server receives command frames on a Unix datagram socket.
type Server struct {
	Path string
	Mode os.FileMode

	conn *net.UnixConn
}

var _ transport.Endpoint = (*Server)(nil)

// NewServer creates a new Server for the socket at path.
func NewServer(path string, mode os.FileMode) *Server {
	if mode == 0 {
		mode = DefaultMode
	}
	return &Server{
		Path: path,
		Mode: mode,
	}
}

// Bind removes a stale socket, binds a new one and adjusts its mode and,
// when owner is not nil, its ownership. This needs the privileges of the
// directory holding the socket and must run before privileges are dropped.
func (s *Server) Bind(owner *Owner) error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove stale socket %s: %w", s.Path, err)
	}

	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: s.Path, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.Path, err)
	}
	s.conn = conn

	if err := unix.Chmod(s.Path, uint32(s.Mode.Perm())); err != nil {
		s.Close()
		return fmt.Errorf("chmod %s: %w", s.Path, err)
	}
	if owner != nil {
		if err := unix.Chown(s.Path, owner.UID, owner.GID); err != nil {
			s.Close()
			return fmt.Errorf("chown %s: %w", s.Path, err)
		}
	}

	slog.Info("Command socket bound", "path", s.Path, "mode", s.Mode.Perm())
	return nil
}

// Serve receives one frame at a time, decodes it and calls handler before
// receiving the next one. Bad frames and handler errors are logged and
// dropped. Serve returns nil once ctx is done.
func (s *Server) Serve(ctx context.Context, handler transport.Handler) error {
	if s.conn == nil {
		return errors.New("unixgram: socket is not bound")
	}
	return serve(ctx, s.conn, handler)
}

// datagramConn is the part of *net.UnixConn the receive loop uses.
type datagramConn interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	Close() error
}

func serve(ctx context.Context, conn datagramConn, handler transport.Handler) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, protocol.ReceiveBufferSize)
	var backoff time.Duration
	running := true
	for running {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			backoff = min(max(2*backoff, minReceiveBackoff), maxReceiveBackoff)
			slog.Error("Failed to receive command frame", "err", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		cmd, err := protocol.Decode(buf[:n])
		if err != nil {
			slog.Warn("Dropping command frame", "err", err, "frame", hex.EncodeToString(buf[:n]))
			continue
		}

		if err := handler(ctx, cmd); err != nil {
			slog.Error("Error handling frame", "command", cmd, "err", err)
		}

		select {
		case <-ctx.Done():
			running = false
		default:
		}
	}
	return nil
}

// Close closes the socket and removes its path.
func (s *Server) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	s.conn = nil
	if rmErr := os.Remove(s.Path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		slog.Warn("Failed to remove socket", "path", s.Path, "err", rmErr)
	}
	return err
}
