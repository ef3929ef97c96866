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

// Package textmerge implements the Text Merger (spec §4.6): a per-
// language, per-message-file diff/merge over localized text archives
// nested inside Bootup_<L>.pack. Grounded on the BCML original's
// diff_language/merge_language (original_source/src/mergers/texts.rs),
// generalized from its IndexMap<String, msyt::Entry> and rayon
// par_iter into paramtree Mappings and an errgroup-bounded fan-out.
package textmerge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/modforge/mergecore/internal/codec"
	"github.com/modforge/mergecore/pkg/merrors"
	"github.com/modforge/mergecore/pkg/paramtree"
	"github.com/modforge/mergecore/pkg/platform"
)

const msbtSuffix = ".msbt"
const msytSuffix = ".msyt"

// messagePath is the CRN of the per-language nested message archive
// inside a Bootup_<L>.pack (spec §4.6).
func messagePath(language string) string {
	return fmt.Sprintf("Message/Msg_%s.product.ssarc", language)
}

// LanguageDiff maps a .msyt file path to the subset of its message
// entries the diff contributes, keyed by message id (spec §3 "Text
// Diff").
type LanguageDiff map[string]*paramtree.Tree

const fanOut = 8

// DiffLanguage compares the mod and stock message archives for one
// language and returns the per-file diffs (spec §4.6 "Diff").
func DiffLanguage(
	ctx context.Context,
	language string,
	modBootup, stockBootup *codec.Archive,
	arc codec.ArchiveCodec,
	comp codec.CompressionCodec,
	msg codec.MsgCodec,
	onlyNewKeys bool,
) (LanguageDiff, error) {
	path := messagePath(language)
	modMessage, err := openNestedArchive(modBootup, path, arc, comp)
	if err != nil {
		return nil, merrors.New(merrors.KindNotFound, path, err)
	}
	stockMessage, err := openNestedArchive(stockBootup, path, arc, comp)
	if err != nil {
		return nil, merrors.New(merrors.KindNotFound, path, err)
	}

	var msbtEntries []codec.ArchiveEntry
	for _, e := range modMessage.Entries {
		if strings.HasSuffix(e.Name, msbtSuffix) {
			msbtEntries = append(msbtEntries, e)
		}
	}

	results := make([]*struct {
		path string
		diff *paramtree.Tree
	}, len(msbtEntries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for i, entry := range msbtEntries {
		i, entry := i, entry
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			modFile, err := msg.Decode(entry.Data)
			if err != nil {
				return merrors.New(merrors.KindCodec, entry.Name, err)
			}

			stockData, hasStock := stockMessage.Get(entry.Name)
			if !hasStock {
				results[i] = &struct {
					path string
					diff *paramtree.Tree
				}{renameToMsyt(entry.Name), modFile.Entries}
				return nil
			}
			stockFile, err := msg.Decode(stockData)
			if err != nil {
				results[i] = &struct {
					path string
					diff *paramtree.Tree
				}{renameToMsyt(entry.Name), modFile.Entries}
				return nil
			}
			if paramtree.Equal(modFile.Entries, stockFile.Entries) {
				return nil
			}
			diff := diffEntries(modFile.Entries, stockFile.Entries, onlyNewKeys)
			if len(diff.Keys()) == 0 {
				return nil
			}
			results[i] = &struct {
				path string
				diff *paramtree.Tree
			}{renameToMsyt(entry.Name), diff}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(LanguageDiff)
	for _, r := range results {
		if r != nil {
			out[r.path] = r.diff
		}
	}
	return out, nil
}

func renameToMsyt(name string) string {
	return strings.TrimSuffix(name, msbtSuffix) + msytSuffix
}

func renameToMsbt(name string) string {
	return strings.TrimSuffix(name, msytSuffix) + msbtSuffix
}

// diffEntries returns the mod entries that differ from stock, in mod
// order. When onlyNewKeys is set, entries whose id already exists in
// stock (even with a different value) are excluded (spec §4.6: "under
// an only_new_keys flag: restrict to keys absent in stock").
func diffEntries(mod, stock *paramtree.Tree, onlyNewKeys bool) *paramtree.Tree {
	var keys []string
	var vals []*paramtree.Tree
	for _, k := range mod.Keys() {
		stockVal := stock.Get(k)
		if stockVal == nil {
			keys = append(keys, k)
			vals = append(vals, mod.Get(k))
			continue
		}
		if onlyNewKeys {
			continue
		}
		if !paramtree.Equal(stockVal, mod.Get(k)) {
			keys = append(keys, k)
			vals = append(vals, mod.Get(k))
		}
	}
	return paramtree.NewMapping(keys, vals)
}

// extendEntries clones base and overwrites/adds every key from diff,
// diff winning on conflict (spec §4.6 merge: "extend entries by the
// diff (diff wins)").
func extendEntries(base, diff *paramtree.Tree) *paramtree.Tree {
	merged := base.Clone()
	for _, k := range diff.Keys() {
		merged.Set(k, diff.Get(k))
	}
	return merged
}

// MergeLanguage rebuilds a single Bootup_<L>.pack containing the
// recompressed message archive with diffs folded in (spec §4.6
// "Merge").
func MergeLanguage(
	ctx context.Context,
	language string,
	diffs LanguageDiff,
	stockBootup *codec.Archive,
	endian platform.Endian,
	arc codec.ArchiveCodec,
	comp codec.CompressionCodec,
	msg codec.MsgCodec,
) (*codec.Archive, error) {
	path := messagePath(language)
	stockMessage, err := openNestedArchive(stockBootup, path, arc, comp)
	if err != nil {
		return nil, merrors.New(merrors.KindNotFound, path, err)
	}

	files := make([]string, 0, len(diffs))
	for f := range diffs {
		files = append(files, f)
	}
	sort.Strings(files)

	mergedEntries := make([]codec.ArchiveEntry, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for idx, msytFile := range files {
		idx, msytFile := idx, msytFile
		diff := diffs[msytFile]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			msbtFile := renameToMsbt(msytFile)
			var built *codec.MsgFile
			if stockData, ok := stockMessage.Get(msbtFile); ok {
				stockFile, err := msg.Decode(stockData)
				if err != nil {
					return merrors.New(merrors.KindCodec, msbtFile, err)
				}
				built = &codec.MsgFile{
					GroupCount:  stockFile.GroupCount,
					Atr1Unknown: stockFile.Atr1Unknown,
					Opaque:      stockFile.Opaque,
					Entries:     extendEntries(stockFile.Entries, diff),
				}
			} else {
				atr1 := uint32(4)
				if strings.Contains(msbtFile, "EventFlowMsg") {
					atr1 = 0
				}
				built = &codec.MsgFile{
					GroupCount:  uint32(len(diff.Keys())),
					Atr1Unknown: atr1,
					Entries:     diff,
				}
			}
			data, err := msg.Encode(built, endian)
			if err != nil {
				return merrors.New(merrors.KindCodec, msbtFile, err)
			}
			mergedEntries[idx] = codec.ArchiveEntry{Name: msbtFile, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	newMessage := &codec.Archive{Entries: append([]codec.ArchiveEntry{}, stockMessage.Entries...)}
	for _, e := range mergedEntries {
		replaceOrAppend(newMessage, e)
	}

	messageRaw, err := arc.Encode(newMessage, endian)
	if err != nil {
		return nil, merrors.New(merrors.KindCodec, path, err)
	}
	messageCompressed, err := comp.Compress(messageRaw)
	if err != nil {
		return nil, merrors.New(merrors.KindCodec, path, err)
	}

	return &codec.Archive{Entries: []codec.ArchiveEntry{{Name: path, Data: messageCompressed}}}, nil
}

func replaceOrAppend(archive *codec.Archive, entry codec.ArchiveEntry) {
	for i, e := range archive.Entries {
		if e.Name == entry.Name {
			archive.Entries[i] = entry
			return
		}
	}
	archive.Entries = append(archive.Entries, entry)
}

func openNestedArchive(bootup *codec.Archive, path string, arc codec.ArchiveCodec, comp codec.CompressionCodec) (*codec.Archive, error) {
	compressed, ok := bootup.Get(path)
	if !ok {
		return nil, fmt.Errorf("%s missing from bootup pack", path)
	}
	raw, err := comp.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	return arc.Decode(raw)
}
