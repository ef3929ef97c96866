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

// Package mapmerge implements the Map Merger (spec §4.5): per-unit
// application of a Map Diff to the Objs/Rails entry arrays of a stock
// map unit, followed by an RSTB size estimate of the re-encoded result.
// Grounded on the BCML original's merge_entries/merge_map
// (original_source/src/mergers/maps.rs), generalized from its
// Vec<Byml>+BTreeSet-of-indices approach into paramtree array
// operations.
package mapmerge

import (
	"fmt"
	"sort"

	"github.com/modforge/mergecore/internal/codec"
	"github.com/modforge/mergecore/pkg/merrors"
	"github.com/modforge/mergecore/pkg/paramtree"
	"github.com/modforge/mergecore/pkg/platform"
)

// Unit identifies a Map Unit (spec §3): its on-disk CRN is
// Map/{MainField|AocField}/{Unit}/{Unit}_{Kind}.mubin.
type Unit struct {
	Name     string
	Kind     string // "Static" or "Dynamic"
	AocField bool
}

func (u Unit) fieldDir() string {
	if u.AocField {
		return "AocField"
	}
	return "MainField"
}

// CompressedPath is the on-disk compressed CRN for this unit, as found
// under a mod or game root.
func (u Unit) CompressedPath() string {
	return fmt.Sprintf("Map/%s/%s/%s_%s.smubin", u.fieldDir(), u.Name, u.Name, u.Kind)
}

// ResourcePath is the CRN this unit's merged output is reported under
// in the base game location.
func (u Unit) ResourcePath() string {
	return fmt.Sprintf("Map/%s/%s/%s_%s.mubin", u.fieldDir(), u.Name, u.Name, u.Kind)
}

// AocResourcePath is the CRN this unit's merged output is reported
// under when resolved from the DLC tree.
func (u Unit) AocResourcePath() string {
	return "Aoc/0010/" + u.ResourcePath()
}

// Diff is a three-part per-unit diff (spec §3 "Map Diff"):
// Add entries are inserted if their HashId is absent; Mod entries
// replace matching stock entries; Del hash IDs are removed.
type Diff struct {
	Add []*paramtree.Tree
	Mod map[uint32]*paramtree.Tree
	Del []uint32
}

const hashIDField = "HashId"

func hashIDOf(entry *paramtree.Tree) (uint32, bool) {
	return entry.Get(hashIDField).AsHashID()
}

// DiffEntries computes the per-unit Diff a mod contributes by comparing
// its Objs/Rails entries against the stock array, keyed by HashId: a
// mod entry absent from stock is an Add, one present in stock but
// structurally different is a Mod, and a stock entry missing from the
// mod's array is a Del. This is the natural three-way counterpart to
// MergeEntries, filling the "Map Diff" input spec §4.5 assumes is
// already computed (the original's own diff step lives in its Python
// frontend's interactive merge editor, outside this core's Rust
// mergers; this Go rendering computes it automatically instead, since
// nothing about HashId-keyed comparison requires user interaction).
func DiffEntries(stock, modded []*paramtree.Tree) Diff {
	stockByHash := make(map[uint32]*paramtree.Tree, len(stock))
	for _, e := range stock {
		if h, ok := hashIDOf(e); ok {
			stockByHash[h] = e
		}
	}

	diff := Diff{Mod: make(map[uint32]*paramtree.Tree)}
	moddedHashes := make(map[uint32]bool, len(modded))
	for _, e := range modded {
		h, ok := hashIDOf(e)
		if !ok {
			continue
		}
		moddedHashes[h] = true
		stockEntry, known := stockByHash[h]
		if !known {
			diff.Add = append(diff.Add, e)
			continue
		}
		if !paramtree.Equal(stockEntry, e) {
			diff.Mod[h] = e
		}
	}
	for h := range stockByHash {
		if !moddedHashes[h] {
			diff.Del = append(diff.Del, h)
		}
	}
	sort.Slice(diff.Del, func(i, j int) bool { return diff.Del[i] < diff.Del[j] })
	return diff
}

// MergeEntries applies diff to entries in place following spec §4.5
// steps 1-5, returning the new slice (callers should replace their
// stored array with the result rather than assume in-place mutation,
// since deletions and appends change length).
func MergeEntries(diff Diff, entries []*paramtree.Tree) []*paramtree.Tree {
	stockHashes := make([]uint32, len(entries))
	indexByHash := make(map[uint32]int, len(entries))
	for i, e := range entries {
		h, _ := hashIDOf(e)
		stockHashes[i] = h
		indexByHash[h] = i
	}

	var orphans []*paramtree.Tree
	for h, entry := range diff.Mod {
		if idx, ok := indexByHash[h]; ok {
			entries[idx] = entry
		} else {
			orphans = append(orphans, entry)
		}
	}

	toDelete := make(map[int]bool)
	for _, h := range diff.Del {
		if idx, ok := indexByHash[h]; ok {
			toDelete[idx] = true
		}
	}
	if len(toDelete) > 0 {
		kept := entries[:0:0]
		for i, e := range entries {
			if !toDelete[i] {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	present := make(map[uint32]bool, len(entries))
	for _, e := range entries {
		if h, ok := hashIDOf(e); ok {
			present[h] = true
		}
	}

	for _, candidates := range [][]*paramtree.Tree{diff.Add, orphans} {
		for _, e := range candidates {
			h, ok := hashIDOf(e)
			if ok && present[h] {
				continue
			}
			entries = append(entries, e)
			if ok {
				present[h] = true
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		hi, _ := hashIDOf(entries[i])
		hj, _ := hashIDOf(entries[j])
		return hi < hj
	})
	return entries
}

// MergeUnit applies diff's Objs/Rails diffs to stockMap's corresponding
// arrays and returns the mutated tree ready for re-encoding (spec §4.5
// "per-unit merge").
func MergeUnit(stockMap *paramtree.Tree, objsDiff, railsDiff Diff) *paramtree.Tree {
	merged := stockMap.Clone()
	if objs, ok := merged.Get("Objs").AsArray(); ok {
		merged.Set("Objs", paramtree.Array(MergeEntries(objsDiff, objs)...))
	}
	if rails, ok := merged.Get("Rails").AsArray(); ok {
		merged.Set("Rails", paramtree.Array(MergeEntries(railsDiff, rails)...))
	}
	return merged
}

// Result is one unit's merge output: the encoded bytes and the CRN +
// RSTB size estimate to report back to the orchestrator's global
// resource-size table (spec §4.5 "RSTB reporting").
type Result struct {
	CRN          string
	Data         []byte
	EstimateSize uint32
}

// Encode re-encodes mergedMap to the platform endian, compresses it,
// and computes its RSTB size estimate under the pseudo-filename
// "dummy.mubin" (spec §4.5).
func Encode(
	unit Unit,
	mergedMap *paramtree.Tree,
	hasDLC bool,
	endian platform.Endian,
	pt codec.ParamTreeCodec,
	comp codec.CompressionCodec,
	estimator codec.SizeEstimator,
) (Result, error) {
	raw, err := pt.Encode(mergedMap, endian)
	if err != nil {
		return Result{}, merrors.New(merrors.KindCodec, unit.ResourcePath(), err)
	}
	size := estimator.Estimate(len(raw), "dummy.mubin", endian)

	compressed, err := comp.Compress(raw)
	if err != nil {
		return Result{}, merrors.New(merrors.KindCodec, unit.ResourcePath(), err)
	}

	crn := unit.ResourcePath()
	if hasDLC {
		crn = unit.AocResourcePath()
	}
	return Result{CRN: crn, Data: compressed, EstimateSize: size}, nil
}
