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

// Package pipeline is the glue spec §2 describes but leaves unnamed:
// "for each install operation, the orchestrator enumerates mods in
// priority order, each merger consumes per-mod diffs and produces a
// merged artifact written under the internal merged tree, and the Link
// Orchestrator publishes that tree." pkg/stage implements the second
// half (publish); this package implements the first half, dispatching
// each CRN that more than one enabled mod touches to the merger whose
// data model owns it (pkg/actorinfo, pkg/mapmerge, pkg/textmerge,
// pkg/packmerge), then handing the resulting bytes to
// stage.Orchestrator.InstallMerged so the plain link step preserves
// them instead of overwriting them with a single mod's raw copy.
//
// Grounded on original_source/src/manager.rs's link_master_mod only for
// its mod-enumeration and priority-ordering discipline; the dispatch
// logic itself is this core's own redesign (spec §3 "Lifecycles": the
// Merged Tree is rebuilt from scratch every install, unlike BCML's
// incremental bake-into-the-mod-folder approach), since diff/merge here
// runs once per install over the full Mod Snapshot rather than
// incrementally per mod-add.
package pipeline

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/modforge/mergecore/internal/codec"
	"github.com/modforge/mergecore/pkg/config"
	"github.com/modforge/mergecore/pkg/hashoracle"
	"github.com/modforge/mergecore/pkg/merrors"
	"github.com/modforge/mergecore/pkg/platform"
	"github.com/modforge/mergecore/pkg/stage"
)

// Deps bundles the stock codec collaborators spec §6 names as external
// contracts, plus the Hash Oracle every merger queries to classify
// whether a mod's byte blob modifies the stock asset at a CRN.
type Deps struct {
	Archive     codec.ArchiveCodec
	Compression codec.CompressionCodec
	ParamTree   codec.ParamTreeCodec
	Message     codec.MsgCodec
	NameHash    codec.NameHashService
	SizeEst     codec.SizeEstimator
	Oracle      *hashoracle.Table
}

// DefaultDeps wires the real adapters internal/codec provides (spec §6
// "Stock codec collaborators") together with oracle, the loaded Hash
// Oracle table for the target platform variant.
func DefaultDeps(oracle *hashoracle.Table) Deps {
	return Deps{
		Archive:     codec.BinaryArchiveCodec{},
		Compression: codec.XZCompressionCodec{},
		ParamTree:   codec.BinaryParamTreeCodec{},
		Message:     codec.BinaryMsgCodec{},
		NameHash:    codec.XXHashNameService{},
		SizeEst:     codec.RSTBEstimator{},
		Oracle:      oracle,
	}
}

// Result is what a Run call hands back to the caller: the per-merger
// warnings accumulated across all four dispatchers, the CRN -> mod root
// conflict log for every asset a merger actually touched, and the
// resource-size-table deltas the Map Merger reported (spec §4.5 "RSTB
// reporting": "a mapping CRN -> estimated-size that the caller will
// merge into the global resource-size table").
type Result struct {
	Report  *merrors.Report
	Wins    map[string]string
	RSTB    map[string]uint32
	Install *stage.InstallReport
}

// Orchestrator drives the merge dispatch over a filesystem abstraction,
// matching the same afero.Fs split pkg/stage uses so this package is
// testable against afero.NewMemMapFs() with no real disk I/O.
type Orchestrator struct {
	fs    afero.Fs
	deps  Deps
	stage *stage.Orchestrator
}

// New builds an Orchestrator. fs is shared with the stage.Orchestrator
// it drives at the end of Run.
func New(fs afero.Fs, deps Deps) *Orchestrator {
	return &Orchestrator{fs: fs, deps: deps, stage: stage.New(fs)}
}

// Run computes every cross-mod merge for enabledRoots (highest priority
// first, spec §3 "Mod Snapshot"), then calls stage.Orchestrator's
// merged-seeded Install so the published tree reflects both the merged
// artifacts and every non-conflicting mod file (spec §2's full data
// flow end to end).
func (o *Orchestrator) Run(ctx context.Context, snap config.Snapshot, enabledRoots []string) (*Result, error) {
	layers, err := o.stage.EnumerateMods(enabledRoots)
	if err != nil {
		return nil, err
	}

	merged := make(map[string][]byte)
	report := &merrors.Report{}
	wins := make(map[string]string)
	rstb := make(map[string]uint32)

	if err := o.runActorInfo(ctx, snap, layers, merged, report, wins); err != nil {
		return nil, err
	}
	if err := o.runMaps(ctx, snap, layers, merged, report, wins, rstb); err != nil {
		return nil, err
	}
	if err := o.runTexts(ctx, snap, layers, merged, report, wins); err != nil {
		return nil, err
	}
	if err := o.runPacks(ctx, snap, layers, merged, report, wins); err != nil {
		return nil, err
	}

	install, err := o.stage.InstallMerged(ctx, snap, enabledRoots, merged)
	if err != nil {
		return &Result{Report: report, Wins: wins, RSTB: rstb, Install: install}, err
	}
	install.Report.Merge(report)
	for crn, root := range wins {
		install.Wins[crn] = root
	}

	return &Result{Report: report, Wins: wins, RSTB: rstb, Install: install}, nil
}

// readLayerFile reads rel (slash-separated, relative to the variant's
// content/DLC subtree) from mod root layer, returning ok=false rather
// than an error when the file simply isn't shipped by that mod.
func (o *Orchestrator) readLayerFile(layer, rel string) ([]byte, bool) {
	path := filepath.Join(layer, filepath.FromSlash(rel))
	exists, err := afero.Exists(o.fs, path)
	if err != nil || !exists {
		return nil, false
	}
	data, err := afero.ReadFile(o.fs, path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// readStock reads rel relative to the game's content subtree (or the
// DLC subtree, when preferDLC is set and configured), the baseline
// every merger diffs and merges against. Errors here are always fatal
// (spec §7: "Errors in stock resources are always fatal to the
// operation.").
func (o *Orchestrator) readStock(snap config.Snapshot, rel string, preferDLC bool) ([]byte, error) {
	root := filepath.Join(snap.GameDir(), snap.Variant().ContentDir())
	if preferDLC && snap.HasDLC() {
		root = filepath.Join(snap.GameDir(), snap.DLCDir())
	}
	path := filepath.Join(root, filepath.FromSlash(rel))
	data, err := afero.ReadFile(o.fs, path)
	if err != nil {
		return nil, merrors.New(merrors.KindNotFound, rel, err)
	}
	return data, nil
}

// destPath is the merged-tree-relative path (mirroring a mod root's own
// layout) that rel, under the active platform variant's content
// subtree, is written to.
func destPath(variant platform.Variant, rel string) string {
	return filepath.ToSlash(filepath.Join(variant.ContentDir(), filepath.FromSlash(rel)))
}

// layersLowToHigh reverses a highest-priority-first layer list, since
// every merger's "combine diffs" step folds lowest to highest so a
// higher-priority mod's change wins (spec §4.4 "CombineDiffs").
func layersLowToHigh(layers []string) []string {
	out := make([]string, len(layers))
	for i, l := range layers {
		out[len(layers)-1-i] = l
	}
	return out
}

func logScoped(kind merrors.Kind, path string, err error, report *merrors.Report) {
	log.Warn().Str("path", path).Err(err).Msg("scoped merge failure, skipping")
	report.AddWarning(path, kind, err.Error())
}
