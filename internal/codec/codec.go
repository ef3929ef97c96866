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

// Package codec defines the contracts for the four stock file-format
// collaborators named in spec §6 (archive codec, compressed-stream
// codec, parameter-tree binary codec, message-file codec) plus the name
// hash service and resource-size estimator. Spec §1 treats these as
// "named external libraries with contracts"; this package is that
// contract boundary — every merger depends on the interfaces here, not
// on a concrete format implementation, so a real game-format codec can
// be swapped in without touching merge logic.
package codec

import (
	"github.com/modforge/mergecore/pkg/paramtree"
	"github.com/modforge/mergecore/pkg/platform"
)

// ArchiveEntry is one named byte payload inside an archive container.
type ArchiveEntry struct {
	Name string
	Data []byte
}

// Archive is a decoded container: an ordered sequence of named byte
// entries. Names preserve case (spec §6).
type Archive struct {
	Entries []ArchiveEntry
}

// Get returns the payload for name, or nil, false if absent.
func (a *Archive) Get(name string) ([]byte, bool) {
	for _, e := range a.Entries {
		if e.Name == name {
			return e.Data, true
		}
	}
	return nil, false
}

// ArchiveCodec decodes/encodes the SARC-family container format (magic
// "SARC"). Encode does not guarantee any particular entry ordering in
// the output bytes beyond what the caller supplies (spec §4.7's
// "Ordering contract").
type ArchiveCodec interface {
	Decode(data []byte) (*Archive, error)
	Encode(archive *Archive, endian platform.Endian) ([]byte, error)
}

// CompressionCodec implements the compressed-stream codec of spec §6,
// identified by a fixed four-byte header.
type CompressionCodec interface {
	Decompress(data []byte) ([]byte, error)
	Compress(data []byte) ([]byte, error)
}

// ParamTreeCodec implements the parameter-tree binary codec of spec §6.
type ParamTreeCodec interface {
	Decode(data []byte) (*paramtree.Tree, error)
	Encode(tree *paramtree.Tree, endian platform.Endian) ([]byte, error)
}

// MsgFile is a decoded message file: its metadata plus an
// order-preserving id -> localized-entry mapping. The three optional
// sub-blocks named in spec §6 (ato1, tsy1, nli1) are codec-internal and
// therefore opaque here — carried verbatim so encode can reproduce
// them, never interpreted by merge logic.
type MsgFile struct {
	Opaque      map[string][]byte
	Entries     *paramtree.Tree // Mapping: message-id -> Message Entry
	GroupCount  uint32
	Atr1Unknown uint32
}

// MsgCodec implements the message-file codec of spec §6.
type MsgCodec interface {
	Decode(data []byte) (*MsgFile, error)
	Encode(msg *MsgFile, endian platform.Endian) ([]byte, error)
}

// NameHashService implements the name hash service of spec §6: a stable
// 32-bit name hash used to key the Actor Catalog.
type NameHashService interface {
	HashName(name string) uint32
}

// SizeEstimator implements the resource-size estimator of spec §6, used
// by the Map Merger's RSTB reporting step (§4.5).
type SizeEstimator interface {
	Estimate(sizeBytes int, pseudoFilename string, endian platform.Endian) uint32
}
