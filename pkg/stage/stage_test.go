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

package stage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/modforge/mergecore/pkg/config"
	"github.com/modforge/mergecore/pkg/platform"
	"github.com/modforge/mergecore/pkg/stage"
)

func wiiuSnapshot(t *testing.T, storeDir string) config.Snapshot {
	t.Helper()
	dir := t.TempDir()
	defaults := config.BaseDefaults
	defaults.Platform = platform.WiiU.String()
	defaults.StoreDir = storeDir
	defaults.GameDir = filepath.Join(dir, "game")
	inst, err := config.NewConfig(dir, defaults)
	require.NoError(t, err)
	return inst.Snapshot()
}

func writeFile(t *testing.T, fs afero.Fs, path, contents string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, afero.WriteFile(fs, path, []byte(contents), 0o640))
}

func TestEnumerateModsExpandsOptionsAndSkipsDisabled(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := stage.New(fs)

	writeFile(t, fs, "/mods/modA/content/file.txt", "a")
	writeFile(t, fs, "/mods/modA/options/opt1/content/file.txt", "a-opt1")
	writeFile(t, fs, "/mods/modA/options/opt2/content/file.txt", "a-opt2")
	require.NoError(t, fs.MkdirAll("/mods/modA/options/opt2", 0o750))
	writeFile(t, fs, "/mods/modA/options/opt2/.disabled", "")

	writeFile(t, fs, "/mods/modB/content/file.txt", "b")
	writeFile(t, fs, "/mods/modB/.disabled", "")

	layers, err := o.EnumerateMods([]string{"/mods/modA", "/mods/modB"})
	require.NoError(t, err)
	require.Equal(t, []string{"/mods/modA/options/opt1", "/mods/modA"}, layers)
}

func TestPlanFirstWriterWinsHighestPriorityFirst(t *testing.T) {
	defer goleak.VerifyNone(t)
	fs := afero.NewMemMapFs()
	o := stage.New(fs)
	snap := wiiuSnapshot(t, "/store")

	// modHigh is listed first (highest priority); modLow is listed last.
	writeFile(t, fs, "/mods/modHigh/content/Actor/Link.bxml", "high")
	writeFile(t, fs, "/mods/modLow/content/Actor/Link.bxml", "low")
	writeFile(t, fs, "/mods/modLow/content/Actor/Only-Low.bxml", "low-only")

	report, err := o.Plan(context.Background(), snap, []string{"/mods/modHigh", "/mods/modLow"})
	require.NoError(t, err)
	require.Equal(t, "/mods/modHigh", report.Wins["content/Actor/Link.bxml"])
	require.Equal(t, "/mods/modLow", report.Wins["content/Actor/Only-Low.bxml"])
}

func TestPlanSkipsLogsOptionsMetaAndNonTxtTopLevel(t *testing.T) {
	defer goleak.VerifyNone(t)
	fs := afero.NewMemMapFs()
	o := stage.New(fs)
	snap := wiiuSnapshot(t, "/store")

	writeFile(t, fs, "/mods/modA/logs/run.log", "log")
	writeFile(t, fs, "/mods/modA/meta/info.json", "{}")
	writeFile(t, fs, "/mods/modA/readme.md", "readme")
	writeFile(t, fs, "/mods/modA/info.txt", "keep me")
	writeFile(t, fs, "/mods/modA/content/deep.json", "{}")

	report, err := o.Plan(context.Background(), snap, []string{"/mods/modA"})
	require.NoError(t, err)

	require.Contains(t, report.Wins, "info.txt")
	require.NotContains(t, report.Wins, "logs/run.log")
	require.NotContains(t, report.Wins, "meta/info.json")
	require.NotContains(t, report.Wins, "readme.md")
	require.NotContains(t, report.Wins, "content/deep.json")
}

func TestPlanLeavesNoRulesFileInMergedTree(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := stage.New(fs)
	snap := wiiuSnapshot(t, "/store")

	_, err := o.Plan(context.Background(), snap, nil)
	require.NoError(t, err)

	// Plan operates against a throwaway scratch dir, not the real tree,
	// so nothing should have leaked into the Merged Tree itself.
	exists, err := afero.Exists(fs, filepath.Join(snap.MergedTreeDir(), "rules.txt"))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestPlanLeavesNoScratchDirBehind(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := stage.New(fs)
	snap := wiiuSnapshot(t, "/store")

	writeFile(t, fs, "/mods/modA/content/file.txt", "a")
	_, err := o.Plan(context.Background(), snap, []string{"/mods/modA"})
	require.NoError(t, err)

	entries, err := afero.ReadDir(fs, "/store")
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), "scratch-")
	}
}
