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

//go:build !windows

package stage

import "os"

// createLink symlinks output to target on every non-Windows platform
// (spec §4.8 "External linking": "unix: symlink").
func createLink(target, output string) error {
	return os.Symlink(target, output)
}

// isCorrectLink reports whether output is already a symlink resolving
// to target, so a repeat Install is a no-op for the external phase.
func isCorrectLink(output, target string) (bool, error) {
	dest, err := os.Readlink(output)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		if _, statErr := os.Lstat(output); statErr == nil {
			// exists but isn't a symlink
			return false, nil
		}
		return false, err
	}
	return dest == target, nil
}
