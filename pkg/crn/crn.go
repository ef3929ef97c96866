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

// Package crn canonicalizes arbitrary on-disk mod paths into Canonical
// Resource Names (spec §3, §4.2): forward-slash paths relative to a
// virtual game root, with platform/DLC prefixes stripped and the
// compressed-extension marker normalized away. The normalization rules
// mirror strip_rom_prefixes in the BCML-derived original source
// (original_source/src/util.rs), generalized from a fixed Rust slice
// loop into a small pure Go function.
package crn

import (
	"path/filepath"
	"strings"
)

// romPrefixes are stripped repeatedly from the front of a path until
// none match, exactly as original_source/src/util.rs's
// strip_rom_prefixes loops over ROM_PREFIXES.
var romPrefixes = []string{
	"content",
	"romfs",
	"aoc",
	"0010",
	"01007ef00011e000",
	"01007ef00011e001",
	"01007ef00011e002",
	"01007ef00011f001",
	"01007ef00011f002",
	"01007EF00011E000",
	"01007EF00011E001",
	"01007EF00011E002",
	"01007EF00011F001",
	"01007EF00011F002",
}

// Canonicalize normalizes an arbitrary on-disk path into a Canonical
// Resource Name: separators become '/', known rom/content/DLC prefixes
// are stripped, the compressed-extension marker ".s<ext>" is rewritten
// to ".<ext>", and DLC paths are re-prefixed "Aoc/0010/". The function
// is pure, total, and idempotent (spec §8: canonicalize(canonicalize(p))
// == canonicalize(p)).
func Canonicalize(path string) string {
	slashPath := filepath.ToSlash(path)
	isAoc := strings.Contains(slashPath, "aoc") || strings.Contains(slashPath, "Aoc") ||
		strings.Contains(strings.ToLower(slashPath), "01007ef00011f001")

	stripped := stripPrefixes(slashPath)
	stripped = stripCompressedMarker(stripped)
	stripped = strings.TrimPrefix(stripped, "/")

	if isAoc && !strings.HasPrefix(stripped, "Aoc/0010/") {
		stripped = "Aoc/0010/" + stripped
	}
	return stripped
}

func stripPrefixes(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for {
		if len(segments) == 0 {
			break
		}
		matched := false
		for _, prefix := range romPrefixes {
			if segments[0] == prefix {
				segments = segments[1:]
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}
	return strings.Join(segments, "/")
}

// stripCompressedMarker rewrites the leading ".s" of a compressed
// extension back to ".": "Foo.sbyml" -> "Foo.byml" (spec §3).
func stripCompressedMarker(path string) string {
	ext := filepath.Ext(path)
	if len(ext) > 2 && ext[1] == 's' {
		base := strings.TrimSuffix(path, ext)
		return base + "." + ext[2:]
	}
	return path
}

// IsCompressed reports whether name carries the ".s<ext>" compressed
// marker, used by callers that need to decide whether to recompress
// after a recursive merge (spec §4.7 step 2).
func IsCompressed(name string) bool {
	ext := filepath.Ext(name)
	return len(ext) > 2 && ext[1] == 's'
}
