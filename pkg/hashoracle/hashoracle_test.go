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

package hashoracle_test

import (
	"testing"

	"github.com/modforge/mergecore/pkg/hashoracle"
	"github.com/modforge/mergecore/pkg/platform"
	"github.com/stretchr/testify/require"
)

func TestLoadSwitchTable(t *testing.T) {
	table, err := hashoracle.Load(platform.Switch)
	require.NoError(t, err)
	require.Equal(t, platform.Switch, table.Variant())
	require.Equal(t, 4, table.Len())
}

func TestLoadWiiUTable(t *testing.T) {
	table, err := hashoracle.Load(platform.WiiU)
	require.NoError(t, err)
	require.Equal(t, platform.WiiU, table.Variant())
}

func TestIsModifiedUnknownCRNIsAlwaysModified(t *testing.T) {
	table, err := hashoracle.Load(platform.Switch)
	require.NoError(t, err)
	require.True(t, table.IsModified("Actor/Unknown.byml", []byte("anything")))
}

func TestIsModifiedMatchingStockContentIsNotModified(t *testing.T) {
	table, err := hashoracle.Load(platform.Switch)
	require.NoError(t, err)
	require.False(t, table.IsModified("Actor/ActorInfo.product.byml", []byte("stock-actorinfo-switch-v1")))
}

func TestIsModifiedDifferingContentIsModified(t *testing.T) {
	table, err := hashoracle.Load(platform.Switch)
	require.NoError(t, err)
	require.True(t, table.IsModified("Actor/ActorInfo.product.byml", []byte("modded-actorinfo-content")))
}

func TestIsModifiedAcceptsAnyRecordedFingerprint(t *testing.T) {
	table, err := hashoracle.Load(platform.Switch)
	require.NoError(t, err)
	// Map/MainField/A-1/A-1_Static.mubin was shipped under two distinct
	// stock contents across game-update versions; both must be accepted.
	require.False(t, table.IsModified("Map/MainField/A-1/A-1_Static.mubin", []byte("stock-a1-static-switch-v1")))
	require.False(t, table.IsModified("Map/MainField/A-1/A-1_Static.mubin", []byte("stock-a1-static-switch-v1-patch")))
}

func TestWiiUAndSwitchTablesAreDistinctFingerprintSpaces(t *testing.T) {
	switchTable, err := hashoracle.Load(platform.Switch)
	require.NoError(t, err)
	wiiuTable, err := hashoracle.Load(platform.WiiU)
	require.NoError(t, err)

	// Same CRN, same literal "switch stock content" bytes: the WiiU
	// table was built from different stock bytes for that build, so it
	// must report modified even though the Switch table does not.
	data := []byte("stock-actorinfo-switch-v1")
	require.False(t, switchTable.IsModified("Actor/ActorInfo.product.byml", data))
	require.True(t, wiiuTable.IsModified("Actor/ActorInfo.product.byml", data))
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := hashoracle.Decode(platform.Switch, []byte("NOPE0000"))
	require.Error(t, err)
}

func TestFingerprintIsStable(t *testing.T) {
	data := []byte("some stock content")
	require.Equal(t, hashoracle.Fingerprint(data), hashoracle.Fingerprint(data))
}
