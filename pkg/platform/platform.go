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

// Package platform carries the two supported hardware variants (WiiU,
// Switch) and the handful of facts that differ between them: byte
// order, the on-disk mod-root subtree name, and the DLC subtree name.
// This package has no dependencies to avoid import cycles, the same
// discipline the teacher documents for its own platform ID constants.
package platform

// Variant identifies which console release a mod snapshot targets.
type Variant int

const (
	// WiiU is the Cemu-era release: content/ and aoc/0010 subtrees, big
	// endian binary formats.
	WiiU Variant = iota
	// Switch is the NX release: title-ID-rooted romfs/ subtrees, little
	// endian binary formats.
	Switch
)

func (v Variant) String() string {
	switch v {
	case WiiU:
		return "wiiu"
	case Switch:
		return "switch"
	default:
		return "unknown"
	}
}

// Endian reports the byte order used by every binary codec (parameter
// tree, message file, RSTB estimate) for this variant.
type Endian int

const (
	Big Endian = iota
	Little
)

// Endian returns the byte order for the variant, per spec §3/§6.
func (v Variant) Endian() Endian {
	if v == WiiU {
		return Big
	}
	return Little
}

// ContentDir is the mod-root subtree that mirrors the base game's asset
// tree for this variant.
func (v Variant) ContentDir() string {
	if v == WiiU {
		return "content"
	}
	return "01007EF00011E000/romfs"
}

// DLCDir is the mod-root subtree that mirrors the DLC asset tree for
// this variant.
func (v Variant) DLCDir() string {
	if v == WiiU {
		return "aoc/0010"
	}
	return "01007EF00011F001/romfs"
}

// RequiresRulesFile reports whether the variant's emulator needs a
// rules.txt descriptor written to the Merged Tree root (§4.8, §6).
func (v Variant) RequiresRulesFile() bool {
	return v == WiiU
}
