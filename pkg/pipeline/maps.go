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

package pipeline

import (
	"context"
	"path/filepath"

	"github.com/modforge/mergecore/pkg/config"
	"github.com/modforge/mergecore/pkg/mapmerge"
	"github.com/modforge/mergecore/pkg/merrors"
	"github.com/modforge/mergecore/pkg/paramtree"
)

// runMaps dispatches every Map Unit any enabled mod ships (spec §4.5).
// A unit present in only one mod still goes through this path (rather
// than a plain file copy) because a single mod's Map Diff may itself be
// an add/mod/del subset of a larger stock unit, not a full replacement;
// computing that from DiffEntries against the real stock unit is exact
// where a byte-for-byte copy would silently drop whatever the mod chose
// not to touch.
func (o *Orchestrator) runMaps(
	ctx context.Context,
	snap config.Snapshot,
	layers []string,
	merged map[string][]byte,
	report *merrors.Report,
	wins map[string]string,
	rstb map[string]uint32,
) error {
	contentDir := snap.Variant().ContentDir()
	units, err := o.discoverMapUnits(layers, contentDir)
	if err != nil {
		return err
	}

	for _, unit := range units {
		if err := o.runMapUnit(snap, unit, layers, contentDir, merged, report, wins, rstb); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runMapUnit(
	snap config.Snapshot,
	unit mapmerge.Unit,
	layers []string,
	contentDir string,
	merged map[string][]byte,
	report *merrors.Report,
	wins map[string]string,
	rstb map[string]uint32,
) error {
	rel := unit.CompressedPath()

	stockRaw, err := o.readStock(snap, rel, snap.HasDLC())
	if err != nil {
		// Brand-new mod-authored map units with no stock counterpart are
		// legitimate content, not a fatal stock error (unlike the
		// single global Actor Catalog); skip merge dispatch and let
		// pkg/stage's plain per-layer link publish whichever mod shipped
		// it, highest priority first.
		return nil
	}
	stockTree, err := decodeCompressed(o.deps, stockRaw)
	if err != nil {
		logScoped(merrors.KindCodec, rel, err, report)
		return nil
	}

	working := stockTree.Clone()
	var wonBy string
	for _, layer := range layersLowToHigh(layers) {
		data, ok := o.readLayerFile(layer, rel)
		if !ok {
			continue
		}
		moddedTree, err := decodeCompressed(o.deps, data)
		if err != nil {
			logScoped(merrors.KindCodec, rel, err, report)
			continue
		}

		var objsDiff, railsDiff mapmerge.Diff
		if stockObjs, ok := stockTree.Get("Objs").AsArray(); ok {
			if moddedObjs, ok := moddedTree.Get("Objs").AsArray(); ok {
				objsDiff = mapmerge.DiffEntries(stockObjs, moddedObjs)
			}
		}
		if stockRails, ok := stockTree.Get("Rails").AsArray(); ok {
			if moddedRails, ok := moddedTree.Get("Rails").AsArray(); ok {
				railsDiff = mapmerge.DiffEntries(stockRails, moddedRails)
			}
		}
		working = mapmerge.MergeUnit(working, objsDiff, railsDiff)
		wonBy = layer
	}
	if wonBy == "" {
		return nil
	}

	result, err := mapmerge.Encode(unit, working, snap.HasDLC(), snap.Variant().Endian(), o.deps.ParamTree, o.deps.Compression, o.deps.SizeEst)
	if err != nil {
		return err
	}

	dest := destPath(snap.Variant(), rel)
	if snap.HasDLC() {
		dest = filepath.ToSlash(filepath.Join(snap.DLCDir(), filepath.FromSlash(rel)))
	}
	merged[dest] = result.Data
	report.AddTouched(dest)
	wins[dest] = wonBy
	rstb[result.CRN] = result.EstimateSize
	return nil
}

func decodeCompressed(deps Deps, data []byte) (*paramtree.Tree, error) {
	raw, err := deps.Compression.Decompress(data)
	if err != nil {
		return nil, err
	}
	return deps.ParamTree.Decode(raw)
}
