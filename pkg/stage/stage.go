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

// Package stage implements the Staging & Link Orchestrator (spec §4.8):
// a two-phase deploy that first populates an internal Merged Tree by
// hard-link-or-copy from every enabled mod (highest priority first,
// first-writer-wins per spec §5), then publishes that tree externally
// either by symlink/junction or by recursive copy. Grounded on the
// BCML original's link_master_mod (original_source/src/manager.rs),
// generalized from its glob()+BTreeSet+rayon shape into
// afero.Fs+fastwalk+errgroup, matching the teacher's own filesystem
// abstraction (pkg/testing/helpers/fs.go) and concurrency discipline.
package stage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/modforge/mergecore/pkg/config"
	"github.com/modforge/mergecore/pkg/merrors"
)

// disabledMarker is the sentinel file BCML uses to mark a mod directory
// as disabled without removing it (original_source/src/manager.rs:
// "!p.join(\".disabled\").exists()").
const disabledMarker = ".disabled"

// rulesDescriptor is the fixed textual block written to the Merged
// Tree root on platforms that require an emulator-rules file and don't
// already have one (spec §4.8/§6 "Rules descriptor").
const rulesDescriptor = `[Definition]
titleIds = 01007EF00011E000,01007EF00011E001,01007EF00011E002
name = Mod Merge Core Output
path = The Legend of Zelda: Breath of the Wild/mods/MergeCore
description = Merged output written by mergecore. Do not edit by hand.
version = 7
fsPath = content
`

// InstallReport aggregates what one Plan/Install call did: a
// merrors.Report of touched paths and scoped warnings, plus a conflict
// log mapping each written destination to the mod root that supplied
// it (spec §8 "Link phase post-condition": every destination existed
// in exactly one mod; SPEC_FULL.md "Conflict log" supplement).
type InstallReport struct {
	Report *merrors.Report
	Wins   map[string]string
}

// Orchestrator drives the two-phase deploy over a filesystem
// abstraction so the internal linking step (which never needs real
// symlinks) is fully exercisable against afero.NewMemMapFs() in tests,
// the same split the teacher documents in pkg/testing/helpers/fs.go.
type Orchestrator struct {
	fs       afero.Fs
	dirPerm  os.FileMode
	filePerm os.FileMode
}

// New builds an Orchestrator backed by fs. Production callers pass
// afero.NewOsFs(); tests pass afero.NewMemMapFs().
func New(fs afero.Fs) *Orchestrator {
	return &Orchestrator{fs: fs, dirPerm: 0o750, filePerm: 0o640}
}

// EnumerateMods expands roots (in priority order, highest first, per
// spec §3 "Mod Snapshot") into the full list of mod layers: each root
// plus every options/* subdirectory that is itself a directory,
// skipping any directory containing the disabled-marker file (spec
// §4.8 step 4). An options layer is inserted immediately before its
// parent so it overrides the parent but nothing of higher overall
// priority.
func (o *Orchestrator) EnumerateMods(roots []string) ([]string, error) {
	var layers []string
	for _, root := range roots {
		disabled, err := afero.Exists(o.fs, filepath.Join(root, disabledMarker))
		if err != nil {
			return nil, merrors.New(merrors.KindIO, root, err)
		}
		if disabled {
			continue
		}
		optionsDir := filepath.Join(root, "options")
		entries, err := afero.ReadDir(o.fs, optionsDir)
		if err != nil {
			entries = nil // no options/ subtree; not an error
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			optRoot := filepath.Join(optionsDir, e.Name())
			disabled, err := afero.Exists(o.fs, filepath.Join(optRoot, disabledMarker))
			if err != nil {
				return nil, merrors.New(merrors.KindIO, optRoot, err)
			}
			if !disabled {
				layers = append(layers, optRoot)
			}
		}
		layers = append(layers, root)
	}
	return layers, nil
}

// mergedWinner is the conflict-log attribution used for files written
// by a merger rather than linked straight from a mod root (spec §4.8
// "Conflict log" supplement).
const mergedWinner = "<merged>"

// linkInternal performs spec §4.8's "Internal linking" subphase into
// dest: remove-then-recreate, write the rules descriptor if needed,
// write any already-merged artifacts (spec §2 "each merger... produces
// a merged artifact written under the internal merged tree"), then
// hard-link-or-copy every enabled mod layer in highest-to-lowest
// priority order (first-writer-wins, spec §5). Because merged artifacts
// are written before the layer loop, linkLayer's own skip-if-exists
// check keeps raw mod copies of those same paths from overwriting them.
func (o *Orchestrator) linkInternal(ctx context.Context, snap config.Snapshot, dest string, enabledRoots []string, merged map[string][]byte) (*InstallReport, error) {
	if exists, _ := afero.DirExists(o.fs, dest); exists {
		if err := o.fs.RemoveAll(dest); err != nil {
			return nil, merrors.New(merrors.KindIO, dest, err)
		}
	}
	if err := o.fs.MkdirAll(dest, o.dirPerm); err != nil {
		return nil, merrors.New(merrors.KindIO, dest, err)
	}

	if snap.Variant().RequiresRulesFile() {
		rulesPath := filepath.Join(dest, "rules.txt")
		exists, err := afero.Exists(o.fs, rulesPath)
		if err != nil {
			return nil, merrors.New(merrors.KindIO, rulesPath, err)
		}
		if !exists {
			if err := afero.WriteFile(o.fs, rulesPath, []byte(rulesDescriptor), o.filePerm); err != nil {
				return nil, merrors.New(merrors.KindIO, rulesPath, err)
			}
		}
	}

	report := &merrors.Report{}
	wins := make(map[string]string)

	for rel, data := range merged {
		dst := filepath.Join(dest, filepath.FromSlash(rel))
		if err := o.fs.MkdirAll(filepath.Dir(dst), o.dirPerm); err != nil {
			return nil, merrors.New(merrors.KindIO, dst, err)
		}
		if err := afero.WriteFile(o.fs, dst, data, o.filePerm); err != nil {
			return nil, merrors.New(merrors.KindIO, dst, err)
		}
		report.AddTouched(dst)
		wins[rel] = mergedWinner
	}

	layers, err := o.EnumerateMods(enabledRoots)
	if err != nil {
		return nil, err
	}

	// spec §4.8 step 5 / §5: layers are already highest-priority first
	// (the Mod Snapshot's own order); linkLayer skips any destination
	// that already exists, so processing highest priority first is what
	// makes first-writer-wins resolve to highest-priority-wins, matching
	// original_source/src/manager.rs's link_master_mod.
	for _, layer := range layers {
		if err := o.linkLayer(ctx, layer, dest, report, wins); err != nil {
			return nil, err
		}
	}

	return &InstallReport{Report: report, Wins: wins}, nil
}

// Plan computes the internal-linking result into a throwaway scratch
// directory and never touches the real Merged Tree or the external
// output, the dry-run/preview affordance named in SPEC_FULL.md's
// "Dry-run mode" supplement (grounded on original_source/src/manager.rs
// being invokable for BCML's own test suite and preview UI). The
// scratch directory is removed again before Plan returns.
func (o *Orchestrator) Plan(ctx context.Context, snap config.Snapshot, enabledRoots []string) (*InstallReport, error) {
	return o.PlanMerged(ctx, snap, enabledRoots, nil)
}

// PlanMerged is Plan, additionally seeding dest with merged (CRN-relative
// path -> already-merged bytes) before any mod layer is linked in, so a
// caller that ran the per-asset mergers first (pkg/pipeline) can preview
// their effect without touching the real Merged Tree.
func (o *Orchestrator) PlanMerged(ctx context.Context, snap config.Snapshot, enabledRoots []string, merged map[string][]byte) (*InstallReport, error) {
	scratch := scratchDir(snap)
	defer func() { _ = o.fs.RemoveAll(scratch) }()
	return o.linkInternal(ctx, snap, scratch, enabledRoots, merged)
}

// Install performs the real internal linking step against the Merged
// Tree, then runs External (spec §4.8's two subphases back to back).
// A fatal error from External (e.g. a deployment post-condition
// violation) is still returned alongside the internal report so the
// caller can inspect what was staged even though the external publish
// failed.
func (o *Orchestrator) Install(ctx context.Context, snap config.Snapshot, enabledRoots []string) (*InstallReport, error) {
	return o.InstallMerged(ctx, snap, enabledRoots, nil)
}

// InstallMerged is Install, additionally seeding the Merged Tree with
// merged (CRN-relative path -> already-merged bytes) from the per-asset
// mergers (pkg/pipeline) before any mod layer is linked in (spec §2's
// data-flow description: mergers write under the internal merged tree,
// then the Link Orchestrator publishes it).
func (o *Orchestrator) InstallMerged(ctx context.Context, snap config.Snapshot, enabledRoots []string, merged map[string][]byte) (*InstallReport, error) {
	report, err := o.linkInternal(ctx, snap, snap.MergedTreeDir(), enabledRoots, merged)
	if err != nil {
		return nil, err
	}
	if err := o.External(ctx, snap, len(enabledRoots)); err != nil {
		return report, err
	}
	return report, nil
}

// scratchDir derives a one-off scratch directory name under the store
// root for operations that want to work outside the real Merged Tree,
// named with a uuid the same way the teacher disambiguates ephemeral
// temp paths.
func scratchDir(snap config.Snapshot) string {
	return filepath.Join(snap.StoreDir(), "scratch-"+uuid.New().String())
}
