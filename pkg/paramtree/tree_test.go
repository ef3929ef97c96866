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

package paramtree_test

import (
	"testing"

	"github.com/modforge/mergecore/pkg/paramtree"
	"github.com/stretchr/testify/require"
)

func TestEqualDeepStructural(t *testing.T) {
	a := paramtree.NewMapping([]string{"name", "Life"}, []*paramtree.Tree{
		paramtree.String("Guardian"),
		paramtree.Int32(200),
	})
	b := paramtree.NewMapping([]string{"Life", "name"}, []*paramtree.Tree{
		paramtree.Int32(200),
		paramtree.String("Guardian"),
	})
	require.True(t, paramtree.Equal(a, b), "mapping equality must not depend on key order")

	c := paramtree.NewMapping([]string{"Life", "name"}, []*paramtree.Tree{
		paramtree.Int32(150),
		paramtree.String("Guardian"),
	})
	require.False(t, paramtree.Equal(a, c))
}

func TestDeepMergeFieldLevel(t *testing.T) {
	base := paramtree.NewMapping([]string{"name", "general"}, []*paramtree.Tree{
		paramtree.String("Link"),
		paramtree.NewMapping([]string{"Life", "Attack"}, []*paramtree.Tree{
			paramtree.Int32(100),
			paramtree.Int32(10),
		}),
	})
	modA := paramtree.NewMapping([]string{"general"}, []*paramtree.Tree{
		paramtree.NewMapping([]string{"Life"}, []*paramtree.Tree{
			paramtree.Int32(200),
		}),
	})
	modB := paramtree.NewMapping([]string{"general"}, []*paramtree.Tree{
		paramtree.NewMapping([]string{"Life", "Attack"}, []*paramtree.Tree{
			paramtree.Int32(150),
			paramtree.Int32(50),
		}),
	})

	// Lower priority merges first, higher priority merges last and wins
	// (spec scenario 2: A is higher priority, sets Life=200; B sets
	// Life=150 and Attack=50; result must be Life=200, Attack=50).
	merged := base.Clone()
	paramtree.DeepMerge(merged, modB)
	paramtree.DeepMerge(merged, modA)

	general := merged.Get("general")
	life, ok := general.Get("Life").AsInt32()
	require.True(t, ok)
	require.Equal(t, int32(200), life)

	attack, ok := general.Get("Attack").AsInt32()
	require.True(t, ok)
	require.Equal(t, int32(50), attack)
}

func TestSparseDiffOnlyDifferingFields(t *testing.T) {
	stock := paramtree.NewMapping([]string{"name", "Life", "Attack"}, []*paramtree.Tree{
		paramtree.String("Guardian"),
		paramtree.Int32(100),
		paramtree.Int32(10),
	})
	modded := paramtree.NewMapping([]string{"name", "Life", "Attack"}, []*paramtree.Tree{
		paramtree.String("Guardian"),
		paramtree.Int32(200),
		paramtree.Int32(10),
	})
	diff := paramtree.SparseDiff(stock, modded)
	require.Equal(t, []string{"Life"}, diff.Keys())
}

func TestVec4EncodesAllFourFields(t *testing.T) {
	v := paramtree.NewVec4(paramtree.Vec4{X: 1, Y: 2, Z: 3, W: 4})
	got, ok := v.AsVec4()
	require.True(t, ok)
	require.Equal(t, paramtree.Vec4{X: 1, Y: 2, Z: 3, W: 4}, got)
}

func TestHashIDAcceptsSignedOrUnsigned(t *testing.T) {
	u, ok := paramtree.Uint32(3).AsHashID()
	require.True(t, ok)
	require.Equal(t, uint32(3), u)

	s, ok := paramtree.Int32(-1).AsHashID()
	require.True(t, ok)
	require.Equal(t, uint32(0xFFFFFFFF), s)

	_, ok = paramtree.String("x").AsHashID()
	require.False(t, ok, "missing HashId must fail softly, not panic")
}
