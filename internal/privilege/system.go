// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package privilege

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// System is the set of process identity calls Drop makes.
type System interface {
	Getuid() int
	Getgid() int
	Setgroups(gids []int) error
	Setgid(gid int) error
	Setuid(uid int) error
	Chdir(dir string) error
}

type unixSystem struct{}

func (unixSystem) Getuid() int { return unix.Getuid() }
func (unixSystem) Getgid() int { return unix.Getgid() }

// syscall.Setgroups applies to every thread of the process; the x/sys
// variant only changes the calling thread.
func (unixSystem) Setgroups(gids []int) error { return syscall.Setgroups(gids) }

func (unixSystem) Setgid(gid int) error   { return unix.Setgid(gid) }
func (unixSystem) Setuid(uid int) error   { return unix.Setuid(uid) }
func (unixSystem) Chdir(dir string) error { return unix.Chdir(dir) }
