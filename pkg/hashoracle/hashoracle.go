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

// Package hashoracle answers "is this byte blob a modification of the
// canonical asset at this logical path?" (spec §4.1). It holds, per
// platform variant, an immutable mapping from Canonical Resource Name
// to the set of stock-content fingerprints ever shipped for that path,
// decoded once at process start from a compact embedded binary table
// and never mutated again — matching the "loaded once, immutable
// thereafter" lifecycle botw_utils' StockHashTable gives the BCML
// original (original_source/src/util.rs's HASH_TABLE_WIIU /
// HASH_TABLE_SWITCH lazy statics).
//
// Because the backing maps are never written to after Load returns,
// concurrent lookups need no mutex at all; this package deliberately
// does not reach for internal/syncutil the way the settings singleton
// does.
package hashoracle

import (
	"bytes"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/modforge/mergecore/pkg/merrors"
	"github.com/modforge/mergecore/pkg/platform"
)

//go:embed data/hashes_switch.bin data/hashes_wiiu.bin
var embeddedTables embed.FS

const tableMagic = "MMHT"

// Table is an immutable CRN -> fingerprint-set table for one platform
// variant. The zero value is not usable; construct with Load or Decode.
type Table struct {
	variant platform.Variant
	entries map[string][]uint64
}

// Fingerprint computes the stock-hash fingerprint used to key Table
// entries. It is exported so mergers and tests can ask "what would the
// oracle think this data is" without duplicating the hash choice.
func Fingerprint(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Decode parses a table from its compact binary encoding:
//
//	magic   [4]byte  "MMHT"
//	version uint32   little-endian, currently 1
//	count   uint32   little-endian, number of entries
//	entries repeated count times:
//	  crnLen  uint16 little-endian
//	  crn     [crnLen]byte  UTF-8, not NUL-terminated
//	  fpCount uint8
//	  fps     [fpCount]uint64 little-endian
//
// The encoding is independent of the target game platform's own
// endianness (spec's WiiU/Switch byte-order split concerns file
// formats the mergers read, not this package's own bookkeeping).
func Decode(variant platform.Variant, data []byte) (*Table, error) {
	r := bytes.NewReader(data)
	magic := make([]byte, 4)
	if _, err := r.Read(magic); err != nil || string(magic) != tableMagic {
		return nil, merrors.New(merrors.KindSchema, variant.String(), errors.New("bad table magic"))
	}
	var version, count uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, merrors.New(merrors.KindSchema, variant.String(), fmt.Errorf("truncated version: %w", err))
	}
	if version != 1 {
		return nil, merrors.New(merrors.KindSchema, variant.String(), fmt.Errorf("unsupported table version %d", version))
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, merrors.New(merrors.KindSchema, variant.String(), fmt.Errorf("truncated entry count: %w", err))
	}

	entries := make(map[string][]uint64, count)
	for i := uint32(0); i < count; i++ {
		var crnLen uint16
		if err := binary.Read(r, binary.LittleEndian, &crnLen); err != nil {
			return nil, merrors.New(merrors.KindSchema, variant.String(), fmt.Errorf("truncated CRN length: %w", err))
		}
		crnBytes := make([]byte, crnLen)
		if _, err := r.Read(crnBytes); err != nil {
			return nil, merrors.New(merrors.KindSchema, variant.String(), fmt.Errorf("truncated CRN bytes: %w", err))
		}
		var fpCount uint8
		if err := binary.Read(r, binary.LittleEndian, &fpCount); err != nil {
			return nil, merrors.New(merrors.KindSchema, variant.String(), fmt.Errorf("truncated fingerprint count: %w", err))
		}
		fps := make([]uint64, fpCount)
		for j := range fps {
			if err := binary.Read(r, binary.LittleEndian, &fps[j]); err != nil {
				return nil, merrors.New(merrors.KindSchema, variant.String(), fmt.Errorf("truncated fingerprint: %w", err))
			}
		}
		entries[string(crnBytes)] = fps
	}

	return &Table{variant: variant, entries: entries}, nil
}

// Load reads and decodes the embedded stock-hash table for variant.
// Failure to load is treated as fatal process initialization error per
// spec §4.1, so callers are expected to surface the error and abort
// rather than fall back to an empty table.
func Load(variant platform.Variant) (*Table, error) {
	name := "data/hashes_switch.bin"
	if variant == platform.WiiU {
		name = "data/hashes_wiiu.bin"
	}
	raw, err := embeddedTables.ReadFile(name)
	if err != nil {
		return nil, merrors.New(merrors.KindIO, name, fmt.Errorf("read embedded table: %w", err))
	}
	table, err := Decode(variant, raw)
	if err != nil {
		return nil, err
	}
	return table, nil
}

// IsModified reports whether data is a modification of the stock asset
// at crn: true if crn is unknown to the table or none of its recorded
// fingerprints match data's fingerprint (spec §8: is_modified(c, d) ⇔
// c ∉ table ∨ fingerprint(d) ∉ table[c]). The oracle always runs in
// strict mode, so an unknown CRN is treated as modified rather than
// assumed stock.
func (t *Table) IsModified(crn string, data []byte) bool {
	fps, ok := t.entries[crn]
	if !ok {
		return true
	}
	want := Fingerprint(data)
	for _, fp := range fps {
		if fp == want {
			return false
		}
	}
	return true
}

// Variant reports which platform this table was built for.
func (t *Table) Variant() platform.Variant {
	return t.variant
}

// Len reports the number of distinct CRNs the table knows about,
// primarily useful for diagnostics and tests.
func (t *Table) Len() int {
	return len(t.entries)
}
