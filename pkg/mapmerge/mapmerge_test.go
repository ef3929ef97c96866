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

package mapmerge_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modforge/mergecore/internal/codec"
	"github.com/modforge/mergecore/pkg/mapmerge"
	"github.com/modforge/mergecore/pkg/paramtree"
	"github.com/modforge/mergecore/pkg/platform"
)

func obj(hashID uint32, name string) *paramtree.Tree {
	return paramtree.NewMapping(
		[]string{"HashId", "UnitConfigName"},
		[]*paramtree.Tree{paramtree.Uint32(hashID), paramtree.String(name)},
	)
}

func hashesOf(t *testing.T, entries []*paramtree.Tree) []uint32 {
	t.Helper()
	out := make([]uint32, len(entries))
	for i, e := range entries {
		h, ok := e.Get("HashId").AsHashID()
		require.True(t, ok)
		out[i] = h
	}
	return out
}

func TestMergeEntriesReplacesByHashID(t *testing.T) {
	entries := []*paramtree.Tree{obj(1, "A"), obj(2, "B"), obj(3, "C")}
	diff := mapmerge.Diff{Mod: map[uint32]*paramtree.Tree{2: obj(2, "B-modded")}}

	out := mapmerge.MergeEntries(diff, entries)
	require.Len(t, out, 3)
	name, _ := out[1].Get("UnitConfigName").AsString()
	require.Equal(t, "B-modded", name, "mod entry must replace the stock entry at the same HashId")
}

func TestMergeEntriesAppendsOrphanMod(t *testing.T) {
	entries := []*paramtree.Tree{obj(1, "A")}
	diff := mapmerge.Diff{Mod: map[uint32]*paramtree.Tree{99: obj(99, "Orphan")}}

	out := mapmerge.MergeEntries(diff, entries)
	require.Len(t, out, 2)
	require.Equal(t, []uint32{1, 99}, hashesOf(t, out))
}

func TestMergeEntriesDeletesInDescendingOrder(t *testing.T) {
	entries := []*paramtree.Tree{obj(1, "A"), obj(2, "B"), obj(3, "C"), obj(4, "D")}
	diff := mapmerge.Diff{Del: []uint32{2, 4}}

	out := mapmerge.MergeEntries(diff, entries)
	require.Equal(t, []uint32{1, 3}, hashesOf(t, out))
}

func TestMergeEntriesAppendDedupesAgainstExisting(t *testing.T) {
	entries := []*paramtree.Tree{obj(1, "A")}
	diff := mapmerge.Diff{Add: []*paramtree.Tree{obj(1, "Duplicate"), obj(5, "New")}}

	out := mapmerge.MergeEntries(diff, entries)
	require.Equal(t, []uint32{1, 5}, hashesOf(t, out))
	name, _ := out[0].Get("UnitConfigName").AsString()
	require.Equal(t, "A", name, "an Add entry whose HashId already exists must not displace the existing entry")
}

func TestMergeEntriesSortsAscendingBySignedUnsignedHashID(t *testing.T) {
	// 3000000000 is > math.MaxInt32 and must be reinterpreted as an
	// unsigned value when compared against smaller signed HashIds.
	high := paramtree.NewMapping(
		[]string{"HashId"}, []*paramtree.Tree{paramtree.Uint32(3000000000)},
	)
	low := paramtree.NewMapping(
		[]string{"HashId"}, []*paramtree.Tree{paramtree.Int32(10)},
	)
	entries := []*paramtree.Tree{high, low}

	out := mapmerge.MergeEntries(mapmerge.Diff{}, entries)
	require.Equal(t, []uint32{10, 3000000000}, hashesOf(t, out))
}

func TestMergeUnitAppliesBothObjsAndRails(t *testing.T) {
	stock := paramtree.NewMapping(
		[]string{"Objs", "Rails"},
		[]*paramtree.Tree{
			paramtree.Array(obj(1, "ObjA")),
			paramtree.Array(obj(10, "RailA")),
		},
	)

	objsDiff := mapmerge.Diff{Add: []*paramtree.Tree{obj(2, "ObjB")}}
	railsDiff := mapmerge.Diff{Del: []uint32{10}}

	merged := mapmerge.MergeUnit(stock, objsDiff, railsDiff)
	objs, ok := merged.Get("Objs").AsArray()
	require.True(t, ok)
	require.Equal(t, []uint32{1, 2}, hashesOf(t, objs))

	rails, ok := merged.Get("Rails").AsArray()
	require.True(t, ok)
	require.Empty(t, rails)
}

func TestUnitResourcePaths(t *testing.T) {
	u := mapmerge.Unit{Name: "A-1", Kind: "Static"}
	require.Equal(t, "Map/MainField/A-1/A-1_Static.mubin", u.ResourcePath())
	require.Equal(t, "Map/MainField/A-1/A-1_Static.smubin", u.CompressedPath())
	require.Equal(t, "Aoc/0010/Map/MainField/A-1/A-1_Static.mubin", u.AocResourcePath())

	aoc := mapmerge.Unit{Name: "A-1", Kind: "Dynamic", AocField: true}
	require.Equal(t, "Map/AocField/A-1/A-1_Dynamic.mubin", aoc.ResourcePath())
}

func TestEncodeReportsAocPathWhenDLCConfigured(t *testing.T) {
	u := mapmerge.Unit{Name: "A-1", Kind: "Static"}
	stock := paramtree.NewMapping(
		[]string{"Objs"}, []*paramtree.Tree{paramtree.Array(obj(1, "A"))},
	)

	result, err := mapmerge.Encode(u, stock, true, platform.Switch.Endian(),
		codec.BinaryParamTreeCodec{}, codec.XZCompressionCodec{}, codec.RSTBEstimator{})
	require.NoError(t, err)
	require.Equal(t, "Aoc/0010/Map/MainField/A-1/A-1_Static.mubin", result.CRN)
	require.NotEmpty(t, result.Data)
	require.Greater(t, result.EstimateSize, uint32(0))
}
