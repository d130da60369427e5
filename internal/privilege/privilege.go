// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package privilege switches the daemon from root to its configured
// unprivileged identity, once.
package privilege

import (
	"errors"
	"fmt"
	"log/slog"
	"os/user"
	"strconv"
)

var (
	ErrConfig         = errors.New("privilege: invalid target identity")
	ErrAlreadyDropped = errors.New("privilege: privileges already dropped")
)

// Identity is a resolved target user.
type Identity struct {
	Username string
	UID      int
	GID      int
	Groups   []int // supplementary groups
}

// Boundary performs the one-shot transition to an unprivileged identity.
type Boundary struct {
	username  string
	groupname string

	sys System
	dir Directory

	target *Identity
	used   bool
}

// Dropped proves that Drop has completed. The zero value is not valid.
type Dropped struct {
	identity Identity
	valid    bool
}

// Valid reports whether d was returned by a successful Drop.
func (d Dropped) Valid() bool { return d.valid }

// Identity returns the identity the process runs as after the drop.
func (d Dropped) Identity() Identity { return d.identity }

// New creates a Boundary for username and groupname. An empty groupname
// selects the user's primary group.
func New(username, groupname string) *Boundary {
	return newBoundary(username, groupname, unixSystem{}, osDirectory{})
}

// NewWithSystem is New with the identity calls routed through sys.
func NewWithSystem(username, groupname string, sys System) *Boundary {
	return newBoundary(username, groupname, sys, osDirectory{})
}

func newBoundary(username, groupname string, sys System, dir Directory) *Boundary {
	return &Boundary{
		username:  username,
		groupname: groupname,
		sys:       sys,
		dir:       dir,
	}
}

// Target resolves the configured user and group. It may be called before
// Drop, e.g. to hand ownership of the socket to the target user.
func (b *Boundary) Target() (Identity, error) {
	if b.target != nil {
		return *b.target, nil
	}
	id, err := resolve(b.dir, b.username, b.groupname)
	if err != nil {
		return Identity{}, err
	}
	b.target = &id
	return id, nil
}

// Drop switches to the target identity. When the process is not root
// there is nothing to drop and Drop only marks the transition. Drop
// can be called once.
//
// The order is fixed: clear supplementary groups, set gid, set the
// user's supplementary groups, chdir to /, set uid.
func (b *Boundary) Drop() (Dropped, error) {
	if b.used {
		return Dropped{}, ErrAlreadyDropped
	}
	b.used = true

	uid := b.sys.Getuid()
	if uid != 0 {
		slog.Debug("Not running as root, keeping identity", "uid", uid)
		return Dropped{identity: Identity{UID: uid, GID: b.sys.Getgid()}, valid: true}, nil
	}

	id, err := b.Target()
	if err != nil {
		return Dropped{}, err
	}

	if err := b.sys.Setgroups(nil); err != nil {
		return Dropped{}, fmt.Errorf("setgroups(): %w", err)
	}
	if err := b.sys.Setgid(id.GID); err != nil {
		return Dropped{}, fmt.Errorf("setgid(%d): %w", id.GID, err)
	}
	if err := b.sys.Setgroups(id.Groups); err != nil {
		return Dropped{}, fmt.Errorf("setgroups(%v): %w", id.Groups, err)
	}
	if err := b.sys.Chdir("/"); err != nil {
		return Dropped{}, fmt.Errorf("chdir(/): %w", err)
	}
	if err := b.sys.Setuid(id.UID); err != nil {
		return Dropped{}, fmt.Errorf("setuid(%d): %w", id.UID, err)
	}

	slog.Info("Dropped root privileges", "user", id.Username, "uid", id.UID, "gid", id.GID)
	return Dropped{identity: id, valid: true}, nil
}

func resolve(dir Directory, username, groupname string) (Identity, error) {
	if username == "" {
		return Identity{}, fmt.Errorf("%w: no user configured", ErrConfig)
	}

	u, err := dir.User(username)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: failed to find user %q: %v", ErrConfig, username, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bogus uid %q", ErrConfig, u.Uid)
	}
	if uid == 0 {
		return Identity{}, fmt.Errorf("%w: user %q is root", ErrConfig, username)
	}

	gidStr := u.Gid
	if groupname != "" {
		g, err := dir.Group(groupname)
		if err != nil {
			return Identity{}, fmt.Errorf("%w: failed to find group %q: %v", ErrConfig, groupname, err)
		}
		gidStr = g.Gid
	}
	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bogus gid %q", ErrConfig, gidStr)
	}
	if gid == 0 {
		return Identity{}, fmt.Errorf("%w: group of %q is root", ErrConfig, username)
	}

	ids, err := dir.GroupIDs(u)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: failed to list groups of %q: %v", ErrConfig, username, err)
	}
	groups := []int{gid}
	for _, s := range ids {
		g, err := strconv.Atoi(s)
		if err != nil || g == gid {
			continue
		}
		groups = append(groups, g)
	}

	return Identity{Username: u.Username, UID: uid, GID: gid, Groups: groups}, nil
}

// Directory looks up users and groups.
type Directory interface {
	User(name string) (*user.User, error)
	Group(name string) (*user.Group, error)
	GroupIDs(u *user.User) ([]string, error)
}

type osDirectory struct{}

func (osDirectory) User(name string) (*user.User, error)    { return user.Lookup(name) }
func (osDirectory) Group(name string) (*user.Group, error)  { return user.LookupGroup(name) }
func (osDirectory) GroupIDs(u *user.User) ([]string, error) { return u.GroupIds() }
