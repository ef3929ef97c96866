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

package codec

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
	"github.com/ulikunitz/xz"
)

// XZCompressionCodec implements CompressionCodec with
// github.com/ulikunitz/xz. It stands in for the game's own
// compressed-stream codec, which is a proprietary LZ-family format with
// no public Go implementation; xz is the closest real compression
// library carried by the retrieval pack (promoted here from an
// indirect dependency of the teacher repo to a direct one).
type XZCompressionCodec struct{}

func (XZCompressionCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (XZCompressionCodec) Decompress(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// XXHashNameService implements NameHashService with
// github.com/cespare/xxhash/v2, truncated to 32 bits. It stands in for
// the game's own name-hashing function (used only to key the Actor
// Catalog, never compared byte-for-byte against game data), which is
// likewise proprietary with no public Go implementation.
type XXHashNameService struct{}

func (XXHashNameService) HashName(name string) uint32 {
	return uint32(xxhash.Sum64String(name))
}
