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

package archivewalk_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/modforge/mergecore/internal/codec"
	"github.com/modforge/mergecore/pkg/archivewalk"
	"github.com/modforge/mergecore/pkg/platform"
)

func encodeArchive(t *testing.T, entries ...codec.ArchiveEntry) []byte {
	t.Helper()
	c := codec.BinaryArchiveCodec{}
	data, err := c.Encode(&codec.Archive{Entries: entries}, platform.Big)
	require.NoError(t, err)
	return data
}

func padTo(data []byte, n int) []byte {
	if len(data) >= n {
		return data
	}
	out := make([]byte, n)
	copy(out, data)
	return out
}

func TestWalkFlatArchiveYieldsLeafNodes(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := encodeArchive(t,
		codec.ArchiveEntry{Name: "Actor/Link.bxml", Data: []byte("hello")},
		codec.ArchiveEntry{Name: "Map/A-1_Static.mubin", Data: []byte{1, 2, 3}},
	)

	nodes, warnings, err := archivewalk.Walk(context.Background(), "Pack/Bootup.pack", root, codec.BinaryArchiveCodec{})
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, nodes, 2)

	names := map[string][]byte{}
	for _, n := range nodes {
		names[n.LogicalPath] = n.Data
	}
	require.Equal(t, []byte("hello"), names["Pack/Bootup.pack//Actor/Link.bxml"])
}

func TestWalkDescendsNestedArchive(t *testing.T) {
	defer goleak.VerifyNone(t)

	nested := encodeArchive(t, codec.ArchiveEntry{Name: "Msg_001.msbt", Data: bytes.Repeat([]byte("x"), 100)})
	require.Greater(t, len(nested), 64)

	root := encodeArchive(t, codec.ArchiveEntry{Name: "Message/Msg_USen.product.sarc", Data: nested})

	nodes, _, err := archivewalk.Walk(context.Background(), "Bootup_USen.pack", root, codec.BinaryArchiveCodec{})
	require.NoError(t, err)

	var sawNested, sawLeaf bool
	for _, n := range nodes {
		if n.LogicalPath == "Bootup_USen.pack//Message/Msg_USen.product.sarc" {
			sawNested = true
		}
		if n.LogicalPath == "Bootup_USen.pack//Message/Msg_USen.product.sarc//Msg_001.msbt" {
			sawLeaf = true
		}
	}
	require.True(t, sawNested, "the nested archive's own entry must still appear")
	require.True(t, sawLeaf, "the nested archive's children must be flattened in")
}

func TestWalkDoesNotDescendSsarcSentinel(t *testing.T) {
	defer goleak.VerifyNone(t)

	nested := encodeArchive(t, codec.ArchiveEntry{Name: "Msg_001.msbt", Data: bytes.Repeat([]byte("x"), 100)})
	root := encodeArchive(t, codec.ArchiveEntry{Name: "Message/Msg_USen.product.ssarc", Data: nested})

	nodes, _, err := archivewalk.Walk(context.Background(), "Bootup_USen.pack", root, codec.BinaryArchiveCodec{})
	require.NoError(t, err)
	require.Len(t, nodes, 1, "an .ssarc entry must be kept opaque, never descended")
}

func TestWalkDoesNotDescendShortBlobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	tiny := padTo([]byte{'S', 'A', 'R', 'C'}, 32)
	root := encodeArchive(t, codec.ArchiveEntry{Name: "Tiny.sarc", Data: tiny})

	nodes, _, err := archivewalk.Walk(context.Background(), "Root.pack", root, codec.BinaryArchiveCodec{})
	require.NoError(t, err)
	require.Len(t, nodes, 1, "archive-magic blobs at or below 64 bytes must not be descended")
}

func TestWalkScopesMalformedNestedArchive(t *testing.T) {
	defer goleak.VerifyNone(t)

	fakeArchive := append([]byte{'S', 'A', 'R', 'C'}, bytes.Repeat([]byte{0xFF}, 100)...)
	root := encodeArchive(t, codec.ArchiveEntry{Name: "Broken.sarc", Data: fakeArchive})

	nodes, warnings, err := archivewalk.Walk(context.Background(), "Root.pack", root, codec.BinaryArchiveCodec{})
	require.NoError(t, err)
	require.Len(t, nodes, 1, "the malformed child is kept as an opaque leaf")
	require.Len(t, warnings, 1)
	require.Equal(t, "Root.pack//Broken.sarc", warnings[0].Path)
}
