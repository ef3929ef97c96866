// Mod Merge Core
// Copyright (c) 2026 Mod Merge Core Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Mod Merge Core.
//
// Mod Merge Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Mod Merge Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Mod Merge Core.  If not, see <http://www.gnu.org/licenses/>.

//go:build deadlock

// Package syncutil provides mutex primitives with optional deadlock
// detection. This variant is compiled in with -tags=deadlock and backs
// the wrapper types with github.com/sasha-s/go-deadlock so a lock held
// too long around the settings singleton is
// reported instead of silently hanging.
package syncutil

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// DeadlockEnabled is true if the deadlock detector is enabled.
const DeadlockEnabled = true

func init() {
	deadlock.Opts.DeadlockTimeout = 30 * time.Second
}

// A Mutex is a mutual exclusion lock instrumented for deadlock detection.
//
//nolint:gocritic // embedding deadlock.Mutex is intentional - this IS the wrapper
type Mutex struct {
	deadlock.Mutex
}

// An RWMutex is a reader/writer mutual exclusion lock instrumented for
// deadlock detection.
//
//nolint:gocritic // embedding deadlock.RWMutex is intentional - this IS the wrapper
type RWMutex struct {
	deadlock.RWMutex
}
