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

package pipeline_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/modforge/mergecore/internal/codec"
	"github.com/modforge/mergecore/pkg/actorinfo"
	"github.com/modforge/mergecore/pkg/config"
	"github.com/modforge/mergecore/pkg/hashoracle"
	"github.com/modforge/mergecore/pkg/paramtree"
	"github.com/modforge/mergecore/pkg/pipeline"
	"github.com/modforge/mergecore/pkg/platform"
)

// testEnv roots every path under a real temporary directory rather than
// afero.NewMemMapFs(): stage.Orchestrator's External phase (which Run
// always reaches via InstallMerged) symlinks/copies with the real os
// package rather than through the afero.Fs abstraction, so exercising
// the full dispatch-then-publish path needs a real filesystem.
type testEnv struct {
	fs   afero.Fs
	root string
	snap config.Snapshot
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	root := t.TempDir()
	defaults := config.BaseDefaults
	defaults.Platform = platform.WiiU.String()
	defaults.StoreDir = filepath.Join(root, "store")
	defaults.OutputDir = filepath.Join(root, "output")
	defaults.GameDir = filepath.Join(root, "game")
	inst, err := config.NewConfig(filepath.Join(root, "cfg"), defaults)
	require.NoError(t, err)
	return testEnv{fs: afero.NewOsFs(), root: root, snap: inst.Snapshot()}
}

func (e testEnv) modRoot(name string) string {
	return filepath.Join(e.root, "mods", name)
}

func newDeps(t *testing.T) pipeline.Deps {
	t.Helper()
	oracle, err := hashoracle.Load(platform.WiiU)
	require.NoError(t, err)
	return pipeline.DefaultDeps(oracle)
}

func writeFile(t *testing.T, fs afero.Fs, path string, data []byte) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, afero.WriteFile(fs, path, data, 0o640))
}

func rec(fields ...any) *paramtree.Tree {
	keys := make([]string, 0, len(fields)/2)
	vals := make([]*paramtree.Tree, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		keys = append(keys, fields[i].(string))
		vals = append(vals, fields[i+1].(*paramtree.Tree))
	}
	return paramtree.NewMapping(keys, vals)
}

func encodeActorInfo(t *testing.T, deps pipeline.Deps, cat actorinfo.Catalog) []byte {
	t.Helper()
	data, err := actorinfo.Encode(cat, platform.Big, deps.Compression, deps.ParamTree)
	require.NoError(t, err)
	return data
}

func TestRunMergesActorInfoAcrossModsHigherPriorityWins(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t)
	deps := newDeps(t)

	stock := actorinfo.Catalog{
		42: rec("name", paramtree.String("Obj_Tree_A"), "HP", paramtree.Int32(10), "MP", paramtree.Int32(0)),
	}
	writeFile(t, env.fs, filepath.Join(env.snap.GameDir(), "content/Actor/ActorInfo.product.sbyml"), encodeActorInfo(t, deps, stock))

	low := actorinfo.Catalog{
		42: rec("name", paramtree.String("Obj_Tree_A"), "HP", paramtree.Int32(55), "MP", paramtree.Int32(0)),
	}
	writeFile(t, env.fs, filepath.Join(env.modRoot("modLow"), "content/Actor/ActorInfo.product.sbyml"), encodeActorInfo(t, deps, low))

	high := actorinfo.Catalog{
		42: rec("name", paramtree.String("Obj_Tree_A"), "HP", paramtree.Int32(10), "MP", paramtree.Int32(77)),
	}
	writeFile(t, env.fs, filepath.Join(env.modRoot("modHigh"), "content/Actor/ActorInfo.product.sbyml"), encodeActorInfo(t, deps, high))

	o := pipeline.New(env.fs, deps)
	// modHigh listed first: highest priority.
	result, err := o.Run(context.Background(), env.snap, []string{env.modRoot("modHigh"), env.modRoot("modLow")})
	require.NoError(t, err)

	mergedRel := "content/Actor/ActorInfo.product.sbyml"
	mergedPath := filepath.Join(env.snap.MergedTreeDir(), mergedRel)
	mergedBytes, err := afero.ReadFile(env.fs, mergedPath)
	require.NoError(t, err)

	mergedCat, err := actorinfo.Decode(mergedBytes, deps.Compression, deps.ParamTree)
	require.NoError(t, err)

	hp, ok := mergedCat[42].Get("HP").AsInt32()
	require.True(t, ok)
	require.Equal(t, int32(55), hp) // only modLow changed HP; modHigh kept the stock value, so modLow's value survives

	mp, ok := mergedCat[42].Get("MP").AsInt32()
	require.True(t, ok)
	require.Equal(t, int32(77), mp) // only modHigh touched MP

	require.Contains(t, result.Wins, mergedRel)
}

func TestRunNoOpWhenNoModTouchesActorInfo(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t)
	deps := newDeps(t)

	stock := actorinfo.Catalog{
		42: rec("name", paramtree.String("Obj_Tree_A"), "HP", paramtree.Int32(10)),
	}
	writeFile(t, env.fs, filepath.Join(env.snap.GameDir(), "content/Actor/ActorInfo.product.sbyml"), encodeActorInfo(t, deps, stock))
	writeFile(t, env.fs, filepath.Join(env.modRoot("modA"), "content/Actor/Link.bxml"), []byte("unrelated"))

	o := pipeline.New(env.fs, deps)
	result, err := o.Run(context.Background(), env.snap, []string{env.modRoot("modA")})
	require.NoError(t, err)

	exists, err := afero.Exists(env.fs, filepath.Join(env.snap.MergedTreeDir(), "content/Actor/ActorInfo.product.sbyml"))
	require.NoError(t, err)
	require.False(t, exists)
	require.NotContains(t, result.Wins, "content/Actor/ActorInfo.product.sbyml")

	// The unrelated file still reaches the merged tree via the plain link step.
	linked, err := afero.ReadFile(env.fs, filepath.Join(env.snap.MergedTreeDir(), "content/Actor/Link.bxml"))
	require.NoError(t, err)
	require.Equal(t, "unrelated", string(linked))
}

func compressedMapUnit(t *testing.T, deps pipeline.Deps, objs []*paramtree.Tree) []byte {
	t.Helper()
	tree := paramtree.NewMapping([]string{"Objs"}, []*paramtree.Tree{paramtree.Array(objs...)})
	raw, err := deps.ParamTree.Encode(tree, platform.Big)
	require.NoError(t, err)
	compressed, err := deps.Compression.Compress(raw)
	require.NoError(t, err)
	return compressed
}

func objEntry(hashID uint32, name string) *paramtree.Tree {
	return paramtree.NewMapping(
		[]string{"HashId", "UnitConfigName"},
		[]*paramtree.Tree{paramtree.Uint32(hashID), paramtree.String(name)},
	)
}

func TestRunMergesMapUnitAddModDelFromSingleMod(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t)
	deps := newDeps(t)

	const unitRel = "Map/MainField/A-1/A-1_Dynamic.smubin"
	writeFile(t, env.fs, filepath.Join(env.snap.GameDir(), "content", unitRel), compressedMapUnit(t, deps, []*paramtree.Tree{
		objEntry(1, "Obj_Kept"),
		objEntry(2, "Obj_Deleted"),
	}))
	writeFile(t, env.fs, filepath.Join(env.modRoot("modA"), "content", unitRel), compressedMapUnit(t, deps, []*paramtree.Tree{
		objEntry(1, "Obj_Kept"),
		objEntry(3, "Obj_Added"),
	}))

	o := pipeline.New(env.fs, deps)
	result, err := o.Run(context.Background(), env.snap, []string{env.modRoot("modA")})
	require.NoError(t, err)
	require.NotEmpty(t, result.RSTB)

	mergedRel := filepath.Join("content", unitRel)
	mergedBytes, err := afero.ReadFile(env.fs, filepath.Join(env.snap.MergedTreeDir(), mergedRel))
	require.NoError(t, err)

	raw, err := deps.Compression.Decompress(mergedBytes)
	require.NoError(t, err)
	tree, err := deps.ParamTree.Decode(raw)
	require.NoError(t, err)
	objs, ok := tree.Get("Objs").AsArray()
	require.True(t, ok)
	require.Len(t, objs, 2) // Obj_Deleted removed, Obj_Added inserted, Obj_Kept untouched
}

func TestRunDispatchesPackConflictHigherPriorityWins(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t)
	deps := newDeps(t)

	const packRel = "Pack/TestConflict.pack"
	buildPack := func(payload string) []byte {
		data, err := deps.Archive.Encode(&codec.Archive{
			Entries: []codec.ArchiveEntry{{Name: "Actor/Test.bas", Data: []byte(payload)}},
		}, platform.Big)
		require.NoError(t, err)
		return data
	}
	writeFile(t, env.fs, filepath.Join(env.modRoot("modLow"), "content", packRel), buildPack("low-payload"))
	writeFile(t, env.fs, filepath.Join(env.modRoot("modHigh"), "content", packRel), buildPack("high-payload"))

	o := pipeline.New(env.fs, deps)
	result, err := o.Run(context.Background(), env.snap, []string{env.modRoot("modHigh"), env.modRoot("modLow")})
	require.NoError(t, err)

	mergedRel := filepath.Join("content", packRel)
	mergedBytes, err := afero.ReadFile(env.fs, filepath.Join(env.snap.MergedTreeDir(), mergedRel))
	require.NoError(t, err)

	archive, err := deps.Archive.Decode(mergedBytes)
	require.NoError(t, err)
	payload, ok := archive.Get("Actor/Test.bas")
	require.True(t, ok)
	require.Equal(t, "high-payload", string(payload))
	require.Contains(t, result.Wins, mergedRel)
}

func TestRunLeavesSingleModPackUnconflicted(t *testing.T) {
	defer goleak.VerifyNone(t)
	env := newTestEnv(t)
	deps := newDeps(t)

	const packRel = "Pack/Solo.pack"
	data, err := deps.Archive.Encode(&codec.Archive{
		Entries: []codec.ArchiveEntry{{Name: "Actor/Solo.bas", Data: []byte("solo")}},
	}, platform.Big)
	require.NoError(t, err)
	writeFile(t, env.fs, filepath.Join(env.modRoot("modA"), "content", packRel), data)

	o := pipeline.New(env.fs, deps)
	result, err := o.Run(context.Background(), env.snap, []string{env.modRoot("modA")})
	require.NoError(t, err)

	mergedRel := filepath.Join("content", packRel)
	require.NotContains(t, result.Wins, mergedRel)

	// Not dispatched to the Pack Merger; pkg/stage's plain link publishes it verbatim.
	linked, err := afero.ReadFile(env.fs, filepath.Join(env.snap.MergedTreeDir(), mergedRel))
	require.NoError(t, err)
	require.Equal(t, data, linked)
}
