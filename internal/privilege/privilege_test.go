// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package privilege

import (
	"errors"
	"fmt"
	"os/user"
	"reflect"
	"testing"
)

type fakeSystem struct {
	uid    int
	calls  []string
	failOn string
}

func (f *fakeSystem) record(call string) error {
	f.calls = append(f.calls, call)
	if call == f.failOn {
		return errors.New("operation not permitted")
	}
	return nil
}

func (f *fakeSystem) Getuid() int { return f.uid }
func (f *fakeSystem) Getgid() int { return f.uid }
func (f *fakeSystem) Setgroups(gids []int) error {
	return f.record(fmt.Sprintf("setgroups%v", gids))
}
func (f *fakeSystem) Setgid(gid int) error   { return f.record(fmt.Sprintf("setgid %d", gid)) }
func (f *fakeSystem) Setuid(uid int) error   { return f.record(fmt.Sprintf("setuid %d", uid)) }
func (f *fakeSystem) Chdir(dir string) error { return f.record("chdir " + dir) }

type fakeDirectory struct {
	users  map[string]*user.User
	groups map[string]*user.Group
	ids    map[string][]string
}

func (d fakeDirectory) User(name string) (*user.User, error) {
	if u, ok := d.users[name]; ok {
		return u, nil
	}
	return nil, user.UnknownUserError(name)
}

func (d fakeDirectory) Group(name string) (*user.Group, error) {
	if g, ok := d.groups[name]; ok {
		return g, nil
	}
	return nil, user.UnknownGroupError(name)
}

func (d fakeDirectory) GroupIDs(u *user.User) ([]string, error) {
	return d.ids[u.Username], nil
}

var directory = fakeDirectory{
	users: map[string]*user.User{
		"backlight": {Uid: "990", Gid: "990", Username: "backlight"},
		"toor":      {Uid: "0", Gid: "990", Username: "toor"},
		"wheelie":   {Uid: "991", Gid: "0", Username: "wheelie"},
	},
	groups: map[string]*user.Group{
		"video": {Gid: "44", Name: "video"},
		"root":  {Gid: "0", Name: "root"},
	},
	ids: map[string][]string{
		"backlight": {"990", "44", "27"},
	},
}

func TestDrop_Order(t *testing.T) {
	sys := &fakeSystem{uid: 0}
	b := newBoundary("backlight", "video", sys, directory)

	dropped, err := b.Drop()
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if !dropped.Valid() {
		t.Error("Drop() returned an invalid marker")
	}

	want := []string{
		"setgroups[]",
		"setgid 44",
		"setgroups[44 990 27]",
		"chdir /",
		"setuid 990",
	}
	if !reflect.DeepEqual(sys.calls, want) {
		t.Errorf("calls = %q, want %q", sys.calls, want)
	}
	if id := dropped.Identity(); id.UID != 990 || id.GID != 44 {
		t.Errorf("Identity() = %+v", id)
	}
}

func TestDrop_PrimaryGroup(t *testing.T) {
	sys := &fakeSystem{uid: 0}
	if _, err := newBoundary("backlight", "", sys, directory).Drop(); err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if sys.calls[1] != "setgid 990" {
		t.Errorf("calls = %q, want setgid 990 second", sys.calls)
	}
}

func TestDrop_RejectsElevatedTargets(t *testing.T) {
	tests := []struct {
		name, user, group string
	}{
		{"RootUser", "toor", ""},
		{"RootPrimaryGroup", "wheelie", ""},
		{"RootGroup", "backlight", "root"},
		{"UnknownUser", "nobody-here", ""},
		{"UnknownGroup", "backlight", "nogroup-here"},
		{"NoUser", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &fakeSystem{uid: 0}
			_, err := newBoundary(tt.user, tt.group, sys, directory).Drop()
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("Drop() error = %v, want ErrConfig", err)
			}
			if len(sys.calls) != 0 {
				t.Errorf("identity calls made before rejecting: %q", sys.calls)
			}
		})
	}
}

func TestDrop_NotRoot(t *testing.T) {
	sys := &fakeSystem{uid: 1000}
	// Config errors do not matter when there is nothing to drop.
	dropped, err := newBoundary("toor", "", sys, directory).Drop()
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if !dropped.Valid() {
		t.Error("Drop() returned an invalid marker")
	}
	if len(sys.calls) != 0 {
		t.Errorf("calls = %q, want none", sys.calls)
	}
}

func TestDrop_Once(t *testing.T) {
	sys := &fakeSystem{uid: 0}
	b := newBoundary("backlight", "video", sys, directory)
	if _, err := b.Drop(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Drop(); !errors.Is(err, ErrAlreadyDropped) {
		t.Errorf("second Drop() error = %v, want ErrAlreadyDropped", err)
	}
	if len(sys.calls) != 5 {
		t.Errorf("calls = %q, want exactly one transition", sys.calls)
	}
}

func TestDrop_StopsOnFailure(t *testing.T) {
	sys := &fakeSystem{uid: 0, failOn: "setgid 44"}
	_, err := newBoundary("backlight", "video", sys, directory).Drop()
	if err == nil {
		t.Fatal("Drop() expected error")
	}
	for _, call := range sys.calls {
		if call == "setuid 990" {
			t.Errorf("setuid called after setgid failed: %q", sys.calls)
		}
	}
}

func TestTarget(t *testing.T) {
	b := newBoundary("backlight", "video", &fakeSystem{}, directory)
	id, err := b.Target()
	if err != nil {
		t.Fatal(err)
	}
	if id.UID != 990 || id.GID != 44 || id.Username != "backlight" {
		t.Errorf("Target() = %+v", id)
	}
}

func TestDropped_ZeroValue(t *testing.T) {
	var d Dropped
	if d.Valid() {
		t.Error("zero Dropped must not be valid")
	}
}
