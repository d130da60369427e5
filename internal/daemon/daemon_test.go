// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ffutop/brightness-daemon/internal/backlight"
	"github.com/ffutop/brightness-daemon/internal/backlight/persistence"
	"github.com/ffutop/brightness-daemon/internal/privilege"
	"github.com/ffutop/brightness-daemon/internal/sysfs"
	"github.com/ffutop/brightness-daemon/protocol"
	"github.com/ffutop/brightness-daemon/transport/unixgram"
)

// recorder is a Backlight that logs every call.
type recorder struct {
	calls   chan string
	current uint32
	failSet bool
}

func newRecorder() *recorder {
	return &recorder{calls: make(chan string, 32)}
}

func (r *recorder) SetState(v uint32) error {
	r.calls <- fmt.Sprintf("set %d", v)
	if r.failSet {
		return backlight.ErrOutOfRange
	}
	r.current = v
	return nil
}

func (r *recorder) ModifyState(d int32) error {
	r.calls <- fmt.Sprintf("modify %d", d)
	return nil
}

func (r *recorder) SaveState() error    { r.calls <- "save"; return nil }
func (r *recorder) RestoreState()       { r.calls <- "restore" }
func (r *recorder) SetPowersave() error { r.calls <- "powersave"; return nil }
func (r *recorder) Current() uint32     { return r.current }

func (r *recorder) next(t *testing.T) string {
	t.Helper()
	select {
	case c := <-r.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for backlight call")
		return ""
	}
}

// nonRoot pretends the process never had privileges.
type nonRoot struct{}

func (nonRoot) Getuid() int           { return 1000 }
func (nonRoot) Getgid() int           { return 1000 }
func (nonRoot) Setgroups([]int) error { return errors.New("unexpected setgroups") }
func (nonRoot) Setgid(int) error      { return errors.New("unexpected setgid") }
func (nonRoot) Setuid(int) error      { return errors.New("unexpected setuid") }
func (nonRoot) Chdir(string) error    { return errors.New("unexpected chdir") }

func dropped(t *testing.T) privilege.Dropped {
	t.Helper()
	d, err := privilege.NewWithSystem("nobody", "", nonRoot{}).Drop()
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestHandle(t *testing.T) {
	tests := []struct {
		cmd  protocol.Command
		want string
	}{
		{protocol.SetState{Value: 50}, "set 50"},
		{protocol.ModifyState{Delta: -7}, "modify -7"},
		{protocol.SaveState{}, "save"},
		{protocol.RestoreState{}, "restore"},
		{protocol.SetPowersave{}, "powersave"},
	}
	for _, tt := range tests {
		r := newRecorder()
		d := New(r, nil, true)
		if err := d.Handle(context.Background(), tt.cmd); err != nil {
			t.Errorf("Handle(%v) error = %v", tt.cmd, err)
		}
		if got := r.next(t); got != tt.want {
			t.Errorf("Handle(%v) called %q, want %q", tt.cmd, got, tt.want)
		}
	}
}

func TestHandle_PropagatesError(t *testing.T) {
	r := newRecorder()
	r.failSet = true
	err := New(r, nil, false).Handle(context.Background(), protocol.SetState{Value: 1 << 20})
	if !errors.Is(err, backlight.ErrOutOfRange) {
		t.Errorf("Handle() error = %v, want ErrOutOfRange", err)
	}
}

func TestRun_RequiresDrop(t *testing.T) {
	r := newRecorder()
	err := New(r, nil, false).Run(context.Background(), privilege.Dropped{})
	if err == nil {
		t.Fatal("Run() with zero Dropped expected error")
	}
	if len(r.calls) != 0 {
		t.Errorf("backlight touched before drop: %d calls", len(r.calls))
	}
}

func TestRun_SequentialAndSavesOnce(t *testing.T) {
	r := newRecorder()
	server := unixgram.NewServer(filepath.Join(t.TempDir(), "d.sock"), 0)
	if err := server.Bind(nil); err != nil {
		t.Fatal(err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	marker := dropped(t)
	errCh := make(chan error, 1)
	go func() {
		errCh <- New(r, server, false).Run(ctx, marker)
	}()

	if got := r.next(t); got != "restore" {
		t.Fatalf("first call = %q, want restore", got)
	}

	client := unixgram.NewClient(server.Path)
	defer client.Close()
	cmds := []protocol.Command{
		protocol.SetState{Value: 10},
		protocol.ModifyState{Delta: 3},
		protocol.SetPowersave{},
		protocol.SetState{Value: 20},
	}
	for _, c := range cmds {
		if err := client.Send(context.Background(), c); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range []string{"set 10", "modify 3", "powersave", "set 20"} {
		if got := r.next(t); got != want {
			t.Errorf("call = %q, want %q", got, want)
		}
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if got := r.next(t); got != "save" {
		t.Errorf("call after shutdown = %q, want save", got)
	}
	select {
	case extra := <-r.calls:
		t.Errorf("unexpected call after shutdown: %q", extra)
	default:
	}
}

// TestRun_EndToEnd drives a real Backlight over a synthetic sysfs tree.
func TestRun_EndToEnd(t *testing.T) {
	root := t.TempDir()
	pci := filepath.Join(root, "devices/pci0000:00/0000:00:02.0")
	node := filepath.Join(pci, "backlight/intel_backlight")
	must(t, os.MkdirAll(node, 0755))
	must(t, os.WriteFile(filepath.Join(pci, "class"), []byte("0x030000\n"), 0644))
	must(t, os.WriteFile(filepath.Join(pci, "vendor"), []byte("0x8086\n"), 0644))
	must(t, os.WriteFile(filepath.Join(pci, "device"), []byte("0x9a49\n"), 0644))
	must(t, os.WriteFile(filepath.Join(node, "max_brightness"), []byte("100\n"), 0644))
	must(t, os.WriteFile(filepath.Join(node, "brightness"), []byte("50\n"), 0644))
	must(t, os.Symlink(pci, filepath.Join(node, "device")))
	classDir := filepath.Join(root, "class/backlight")
	must(t, os.MkdirAll(classDir, 0755))
	must(t, os.Symlink(node, filepath.Join(classDir, "intel_backlight")))

	statePath := filepath.Join(root, "state")
	bl := backlight.New(backlight.Options{
		Identifier: sysfs.Identifier{Prefix: "intel_", VendorID: 0x8086, DeviceID: 0x9a49},
		ClassDir:   classDir,
		Powersave:  5,
	}, persistence.NewFileStorage(statePath))
	must(t, bl.Init())
	defer bl.Close()

	server := unixgram.NewServer(filepath.Join(root, "bl.sock"), 0)
	must(t, server.Bind(nil))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	marker := dropped(t)
	errCh := make(chan error, 1)
	go func() {
		errCh <- New(bl, server, false).Run(ctx, marker)
	}()

	client := unixgram.NewClient(server.Path)
	defer client.Close()
	frames := [][]byte{
		{0x00, 0x04, 0x32, 0x00, 0x00, 0x00}, // set 50
		{0x01, 0x04, 0x18, 0xfc, 0xff, 0xff}, // modify -1000
		{0x01, 0x04, 0x40, 0x00, 0x00, 0x00}, // modify +64
		{0x00, 0x04, 0xff, 0x00, 0x00, 0x00}, // set 255, out of range
	}
	for _, f := range frames {
		must(t, client.SendRaw(context.Background(), f))
	}

	waitFor(t, func() bool { return readBrightness(t, node) == "64" })

	cancel()
	must(t, <-errCh)

	raw, err := os.ReadFile(statePath)
	must(t, err)
	if len(raw) != 4 || raw[0] != 64 || raw[1] != 0 || raw[2] != 0 || raw[3] != 0 {
		t.Errorf("state file = % x, want 40 00 00 00", raw)
	}
}

func readBrightness(t *testing.T, node string) string {
	raw, err := os.ReadFile(filepath.Join(node, "brightness"))
	must(t, err)
	line, _, _ := strings.Cut(string(raw), "\n")
	return line
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
