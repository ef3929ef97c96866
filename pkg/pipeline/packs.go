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

	"github.com/modforge/mergecore/pkg/config"
	"github.com/modforge/mergecore/pkg/crn"
	"github.com/modforge/mergecore/pkg/merrors"
	"github.com/modforge/mergecore/pkg/packmerge"
)

// runPacks dispatches every top-level pack at least two enabled mods
// ship (spec §4.7): single-mod packs need no conflict resolution and
// are left to pkg/stage's plain per-layer link.
func (o *Orchestrator) runPacks(
	ctx context.Context,
	snap config.Snapshot,
	layers []string,
	merged map[string][]byte,
	report *merrors.Report,
	wins map[string]string,
) error {
	contentDir := snap.Variant().ContentDir()
	conflicts, err := o.discoverPackConflicts(layers, contentDir)
	if err != nil {
		return err
	}

	for _, rel := range conflicts {
		if !packmerge.IsDispatchable(rel) {
			continue // AocMainField.pack is handled upstream as a map unit (spec §4.7)
		}
		if err := o.runPackConflict(ctx, snap, rel, layers, merged, report, wins); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runPackConflict(
	ctx context.Context,
	snap config.Snapshot,
	rel string,
	layers []string,
	merged map[string][]byte,
	report *merrors.Report,
	wins map[string]string,
) error {
	var sources []packmerge.Source
	for _, layer := range layers { // highest priority first, per packmerge.Source's contract
		data, ok := o.readLayerFile(layer, rel)
		if !ok {
			continue
		}
		raw := data
		if crn.IsCompressed(rel) {
			decompressed, err := o.deps.Compression.Decompress(data)
			if err != nil {
				logScoped(merrors.KindCodec, rel, err, report)
				continue
			}
			raw = decompressed
		}
		archive, err := o.deps.Archive.Decode(raw)
		if err != nil {
			logScoped(merrors.KindCodec, rel, err, report)
			continue
		}
		sources = append(sources, packmerge.Source{ModRoot: layer, Archive: archive})
	}
	if len(sources) < 2 {
		return nil
	}

	packWins := make(map[string]string)
	mergedArchive, warnings, err := packmerge.Merge(ctx, sources, o.deps.Oracle, snap.Variant().Endian(), o.deps.Archive, o.deps.Compression, packWins)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		report.AddWarning(w.Path, w.Kind, w.Msg)
	}

	encoded, err := o.deps.Archive.Encode(mergedArchive, snap.Variant().Endian())
	if err != nil {
		return err
	}
	if crn.IsCompressed(rel) {
		encoded, err = o.deps.Compression.Compress(encoded)
		if err != nil {
			return err
		}
	}

	dest := destPath(snap.Variant(), rel)
	merged[dest] = encoded
	report.AddTouched(dest)
	wins[dest] = sources[0].ModRoot
	for name, root := range packWins {
		wins[dest+"//"+name] = root
	}
	return nil
}
