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
	"fmt"

	"github.com/modforge/mergecore/internal/codec"
	"github.com/modforge/mergecore/pkg/config"
	"github.com/modforge/mergecore/pkg/merrors"
	"github.com/modforge/mergecore/pkg/paramtree"
	"github.com/modforge/mergecore/pkg/textmerge"
)

// bootupRel is the on-disk path of a language's host archive, relative
// to the content subtree (spec §4.6: "the filename suffix of the host
// archive Bootup_<L>.pack").
func bootupRel(language string) string {
	return fmt.Sprintf("Pack/Bootup_%s.pack", language)
}

// runTexts dispatches every language any enabled mod ships a Bootup
// pack for (spec §4.6).
func (o *Orchestrator) runTexts(
	ctx context.Context,
	snap config.Snapshot,
	layers []string,
	merged map[string][]byte,
	report *merrors.Report,
	wins map[string]string,
) error {
	contentDir := snap.Variant().ContentDir()
	languages, err := o.discoverLanguages(layers, contentDir)
	if err != nil {
		return err
	}

	for _, lang := range languages {
		if err := o.runLanguage(ctx, snap, lang, layers, merged, report, wins); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runLanguage(
	ctx context.Context,
	snap config.Snapshot,
	language string,
	layers []string,
	merged map[string][]byte,
	report *merrors.Report,
	wins map[string]string,
) error {
	rel := bootupRel(language)

	stockRaw, err := o.readStock(snap, rel, false)
	if err != nil {
		return nil // no stock Bootup for this language; nothing to merge against
	}
	stockBootup, err := o.deps.Archive.Decode(stockRaw)
	if err != nil {
		logScoped(merrors.KindCodec, rel, err, report)
		return nil
	}

	combined := make(map[string]*paramtree.Tree)
	var wonBy string
	for _, layer := range layersLowToHigh(layers) {
		data, ok := o.readLayerFile(layer, rel)
		if !ok {
			continue
		}
		modBootup, err := o.deps.Archive.Decode(data)
		if err != nil {
			logScoped(merrors.KindCodec, rel, err, report)
			continue
		}

		langDiff, err := textmerge.DiffLanguage(ctx, language, modBootup, stockBootup, o.deps.Archive, o.deps.Compression, o.deps.Message, false)
		if err != nil {
			logScoped(merrors.KindCodec, rel, err, report)
			continue
		}
		if len(langDiff) == 0 {
			continue
		}
		for file, diff := range langDiff {
			if existing, ok := combined[file]; ok {
				combined[file] = overlayEntries(existing, diff)
			} else {
				combined[file] = diff
			}
		}
		wonBy = layer
	}
	if wonBy == "" {
		return nil
	}

	mergedArchive, err := textmerge.MergeLanguage(ctx, language, combined, stockBootup, snap.Variant().Endian(), o.deps.Archive, o.deps.Compression, o.deps.Message)
	if err != nil {
		return err
	}

	// MergeLanguage returns a one-entry archive holding the recompressed
	// message archive; re-assemble it into the full Bootup pack so every
	// other stock entry is preserved (spec §4.6 "Re-assemble a new
	// Bootup_<L>.pack").
	out := &codec.Archive{Entries: append([]codec.ArchiveEntry{}, stockBootup.Entries...)}
	for _, e := range mergedArchive.Entries {
		replaceOrAppendEntry(out, e)
	}
	outBytes, err := o.deps.Archive.Encode(out, snap.Variant().Endian())
	if err != nil {
		return err
	}

	dest := destPath(snap.Variant(), rel)
	merged[dest] = outBytes
	report.AddTouched(dest)
	wins[dest] = wonBy
	return nil
}

// replaceOrAppendEntry overwrites archive's existing entry of the same
// name, or appends entry if none matches.
func replaceOrAppendEntry(archive *codec.Archive, entry codec.ArchiveEntry) {
	for i, e := range archive.Entries {
		if e.Name == entry.Name {
			archive.Entries[i] = entry
			return
		}
	}
	archive.Entries = append(archive.Entries, entry)
}

// overlayEntries merges two per-file message diffs key by key, higher
// (later) priority winning on conflict, the same "later wins" rule
// actorinfo.CombineDiffs applies at the field level.
func overlayEntries(base, overlay *paramtree.Tree) *paramtree.Tree {
	merged := base.Clone()
	for _, k := range overlay.Keys() {
		merged.Set(k, overlay.Get(k))
	}
	return merged
}
