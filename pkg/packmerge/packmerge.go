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

// Package packmerge implements the Pack Merger (spec §4.7): a recursive,
// per-file union of nested SARC-family archives that chooses each
// file's payload by mod priority and the Hash Oracle, recursing into
// nested containers and recompressing where the source extension
// carries the compressed marker. Grounded on the BCML original's
// merge_sarcs/get_sarc_diff (original_source/src/mergers/pack.rs),
// generalized from its recursive closures over rayon scopes into an
// errgroup fan-out across distinct output packs (spec §5: "parallel
// part is across distinct output packs, not across the inputs of one
// pack").
package packmerge

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/modforge/mergecore/internal/codec"
	"github.com/modforge/mergecore/pkg/archivewalk"
	"github.com/modforge/mergecore/pkg/crn"
	"github.com/modforge/mergecore/pkg/merrors"
	"github.com/modforge/mergecore/pkg/platform"
)

// Oracle is the subset of the Hash Oracle (spec §4.1) the Pack Merger
// needs: whether a byte blob is a modification of the stock asset at a
// CRN. Defined as an interface here, rather than depending on
// *hashoracle.Table directly, so tests can supply a fake without
// constructing an embedded table.
type Oracle interface {
	IsModified(crnPath string, data []byte) bool
}

// special substrings exclude a filename from recursive merging
// entirely; these are handled by dedicated mergers or skipped outright
// (spec §4.7 "Exclusions"). Matched by substring, not CRN equality —
// spec §9 open question, kept loose intentionally.
var special = []string{
	"gamedata",
	"savedataformat",
	"tera_resource.Nin_NX_NVN",
	"Dungeon",
	"Bootup_",
	"AocMainField",
}

// excludeExt lists extensions that are never recursed into even though
// they may look like archives (spec §4.7 "Exclusions").
var excludeExt = []string{"sbeventpack"}

func isSpecial(name string) bool {
	for _, s := range special {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

func isExcludedExt(name string) bool {
	for _, ext := range excludeExt {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// IsDispatchable reports whether pack name should be handled by the top
// level Pack Merger at all. AocMainField.pack is skipped because it is
// handled upstream as a map unit (spec §4.7 "AocMainField").
func IsDispatchable(name string) bool {
	return !strings.Contains(name, "AocMainField.pack")
}

// Source is one opened archive contributing to a merged pack, paired
// with the mod root it came from for reporting. Sources must be
// ordered highest priority first (S = [s1, ..., sn], s1 highest),
// matching spec §4.7's explicit priority-ordered input list.
type Source struct {
	ModRoot string
	Archive *codec.Archive
}

// Merge produces a new archive whose file set is the union of every
// source's files, selecting each file's payload per spec §4.7 steps
// 1-3. wins, if non-nil, is populated with entry name -> mod root of
// the source whose payload was selected for that entry,
// operationalizing the conflict-log supplement in SPEC_FULL.md.
func Merge(
	ctx context.Context,
	sources []Source,
	oracle Oracle,
	endian platform.Endian,
	arc codec.ArchiveCodec,
	comp codec.CompressionCodec,
	wins map[string]string,
) (*codec.Archive, []merrors.Warning, error) {
	names := unionNames(sources)

	type result struct {
		idx   int
		entry codec.ArchiveEntry
		warn  *merrors.Warning
		win   string
	}
	results := make([]result, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			payload, root, err := selectPayload(name, sources, oracle)
			if err != nil {
				return err
			}

			if shouldRecurse(name, payload) {
				merged, err := mergeNested(gctx, name, sources, oracle, endian, arc, comp)
				if err != nil {
					results[i] = result{idx: i, entry: codec.ArchiveEntry{Name: name, Data: payload}, warn: &merrors.Warning{
						Path: name, Kind: merrors.KindCodec, Msg: "nested pack merge failed, kept flat payload: " + err.Error(),
					}, win: root}
					return nil
				}
				results[i] = result{idx: i, entry: codec.ArchiveEntry{Name: name, Data: merged}, win: root}
				return nil
			}

			results[i] = result{idx: i, entry: codec.ArchiveEntry{Name: name, Data: payload}, win: root}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, merrors.New(merrors.KindIO, "", err)
	}

	out := &codec.Archive{Entries: make([]codec.ArchiveEntry, len(results))}
	var warnings []merrors.Warning
	for _, r := range results {
		out.Entries[r.idx] = r.entry
		if r.warn != nil {
			warnings = append(warnings, *r.warn)
		}
		if wins != nil && r.win != "" {
			wins[r.entry.Name] = r.win
		}
	}
	return out, warnings, nil
}

// unionNames collects the distinct file names across every source,
// preserving each source's own relative order where first seen (spec
// §4.7 "Ordering contract": output order need not match any input
// archive's order).
func unionNames(sources []Source) []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range sources {
		for _, e := range s.Archive.Entries {
			if !seen[e.Name] {
				seen[e.Name] = true
				names = append(names, e.Name)
			}
		}
	}
	return names
}

// selectPayload implements spec §4.7 step 1: walking sources in reverse
// priority (lowest first, highest last), pick the last payload the
// Hash Oracle reports modified. If none is modified, fall back to the
// first archive containing the file — with sources ordered highest
// priority first, that means sources[0], i.e. the *last* write in this
// reverse walk, not the first one encountered.
func selectPayload(name string, sources []Source, oracle Oracle) ([]byte, string, error) {
	resourceCRN := crn.Canonicalize(name)

	var fallbackData []byte
	var fallbackRoot string
	haveFallback := false

	var chosen []byte
	var chosenRoot string
	found := false

	for i := len(sources) - 1; i >= 0; i-- {
		data, ok := sources[i].Archive.Get(name)
		if !ok {
			continue
		}
		fallbackData = data
		fallbackRoot = sources[i].ModRoot
		haveFallback = true
		if oracle.IsModified(resourceCRN, data) {
			chosen = data
			chosenRoot = sources[i].ModRoot
			found = true
		}
	}

	if found {
		return chosen, chosenRoot, nil
	}
	if haveFallback {
		return fallbackData, fallbackRoot, nil
	}
	return nil, "", merrors.New(merrors.KindNotFound, name, errNoSourceHasFile)
}

var errNoSourceHasFile = errNotFoundErr("no source archive contains this file")

type errNotFoundErr string

func (e errNotFoundErr) Error() string { return string(e) }

// shouldRecurse reports whether name's selected payload should be
// treated as a nested archive to merge recursively, rather than taken
// verbatim (spec §4.7 step 2 vs. "Exclusions"). The length/magic/.ssarc
// guard is the same one archivewalk.Walk applies when descending an
// archive (spec §4.3); the Pack Merger's own SPECIAL/EXCLUDE lists
// layer additional exclusions on top of it.
func shouldRecurse(name string, payload []byte) bool {
	if isSpecial(name) || isExcludedExt(name) {
		return false
	}
	return archivewalk.ShouldDescend(name, payload)
}

// mergeNested collects the matching-name nested archive from every
// source that has it, decodes each, recursively merges them, and
// recompresses the result if name's extension starts with "s" (spec
// §4.7 step 2).
func mergeNested(
	ctx context.Context,
	name string,
	sources []Source,
	oracle Oracle,
	endian platform.Endian,
	arc codec.ArchiveCodec,
	comp codec.CompressionCodec,
) ([]byte, error) {
	var nested []Source
	for _, s := range sources {
		data, ok := s.Archive.Get(name)
		if !ok {
			continue
		}
		raw := data
		if crn.IsCompressed(name) {
			d, err := comp.Decompress(data)
			if err != nil {
				return nil, merrors.New(merrors.KindCodec, name, err)
			}
			raw = d
		}
		child, err := arc.Decode(raw)
		if err != nil {
			return nil, merrors.New(merrors.KindCodec, name, err)
		}
		nested = append(nested, Source{ModRoot: s.ModRoot, Archive: child})
	}

	merged, _, err := Merge(ctx, nested, oracle, endian, arc, comp, nil)
	if err != nil {
		return nil, err
	}

	encoded, err := arc.Encode(merged, endian)
	if err != nil {
		return nil, merrors.New(merrors.KindCodec, name, err)
	}

	if crn.IsCompressed(name) {
		compressed, err := comp.Compress(encoded)
		if err != nil {
			return nil, merrors.New(merrors.KindCodec, name, err)
		}
		return compressed, nil
	}
	return encoded, nil
}

// MergeSingle applied to a single archive returns an archive whose file
// set and payloads equal that archive's (spec §8 round-trip law).
// Exposed so the dispatcher and tests can merge a lone source without
// building a slice each time.
func MergeSingle(
	ctx context.Context,
	root string,
	archive *codec.Archive,
	oracle Oracle,
	endian platform.Endian,
	arc codec.ArchiveCodec,
	comp codec.CompressionCodec,
) (*codec.Archive, []merrors.Warning, error) {
	return Merge(ctx, []Source{{ModRoot: root, Archive: archive}}, oracle, endian, arc, comp, nil)
}
