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

// Package actorinfo implements the ActorInfo Merger (spec §4.4): diffing
// a mod's Actor Catalog against stock, then merging every active mod's
// diff back into a cloned stock catalog. Grounded on the BCML original's
// diff_actorinfo/merge_actorinfo and merge_actormap
// (original_source/src/mergers/actorinfo.rs), generalized from its
// BTreeMap<u32, Byml> into paramtree's typed Mapping and from rayon's
// par_iter into an errgroup-bounded fan-out for per-mod diff parsing.
package actorinfo

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/modforge/mergecore/internal/codec"
	"github.com/modforge/mergecore/pkg/merrors"
	"github.com/modforge/mergecore/pkg/paramtree"
	"github.com/modforge/mergecore/pkg/platform"
)

var (
	errMissingArrays    = errors.New("actor catalog missing Hashes or Actors array")
	errNotArray         = errors.New("actor catalog field is not an array")
	errMismatchedArrays = errors.New("actor catalog Hashes/Actors arrays are not index-aligned")
)

const actorsKey = "Actors"
const hashesKey = "Hashes"
const nameField = "name"

// int32Ceiling is the first hash value that must be encoded as Uint32
// rather than Int32 (spec §4.4: "emitting Int32 for h < 2^31 and UInt32
// otherwise").
const int32Ceiling = uint32(1) << 31

// Catalog is an Actor Catalog decoded into hash-keyed records, the
// working representation every diff/merge step in this package operates
// on. ToTree/FromTree convert to and from the index-aligned Hashes/
// Actors wire shape (spec §3).
type Catalog map[uint32]*paramtree.Tree

// Decode decompresses and decodes a catalog's compressed binary form.
func Decode(data []byte, comp codec.CompressionCodec, pt codec.ParamTreeCodec) (Catalog, error) {
	raw, err := comp.Decompress(data)
	if err != nil {
		return nil, merrors.New(merrors.KindCodec, "", err)
	}
	tree, err := pt.Decode(raw)
	if err != nil {
		return nil, merrors.New(merrors.KindCodec, "", err)
	}
	return FromTree(tree)
}

// Encode re-splits a catalog into index-aligned arrays, encodes to the
// platform endian, and compresses.
func Encode(cat Catalog, endian platform.Endian, comp codec.CompressionCodec, pt codec.ParamTreeCodec) ([]byte, error) {
	tree := cat.ToTree()
	raw, err := pt.Encode(tree, endian)
	if err != nil {
		return nil, merrors.New(merrors.KindCodec, "", err)
	}
	out, err := comp.Compress(raw)
	if err != nil {
		return nil, merrors.New(merrors.KindCodec, "", err)
	}
	return out, nil
}

// FromTree unpacks the wire shape { Hashes: [...], Actors: [...] } into a
// hash-keyed Catalog, zipping the two index-aligned arrays together
// (spec §3: "index-aligned... sorted ascending by hash").
func FromTree(tree *paramtree.Tree) (Catalog, error) {
	hashesNode := tree.Get(hashesKey)
	actorsNode := tree.Get(actorsKey)
	if hashesNode == nil || actorsNode == nil {
		return nil, merrors.New(merrors.KindSchema, "", errMissingArrays)
	}
	hashes, ok := hashesNode.AsArray()
	if !ok {
		return nil, merrors.New(merrors.KindSchema, hashesKey, errNotArray)
	}
	actors, ok := actorsNode.AsArray()
	if !ok {
		return nil, merrors.New(merrors.KindSchema, actorsKey, errNotArray)
	}
	if len(hashes) != len(actors) {
		return nil, merrors.New(merrors.KindSchema, "", errMismatchedArrays)
	}

	cat := make(Catalog, len(hashes))
	for i, h := range hashes {
		hash, ok := h.AsHashID()
		if !ok {
			continue
		}
		cat[hash] = actors[i]
	}
	return cat, nil
}

// ToTree re-splits the catalog into the sorted, index-aligned wire shape.
func (cat Catalog) ToTree() *paramtree.Tree {
	hashes := make([]uint32, 0, len(cat))
	for h := range cat {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	hashNodes := make([]*paramtree.Tree, len(hashes))
	actorNodes := make([]*paramtree.Tree, len(hashes))
	for i, h := range hashes {
		if h < int32Ceiling {
			hashNodes[i] = paramtree.Int32(int32(h)) //nolint:gosec // bounded by int32Ceiling check above
		} else {
			hashNodes[i] = paramtree.Uint32(h)
		}
		actorNodes[i] = cat[h]
	}
	return paramtree.NewMapping(
		[]string{hashesKey, actorsKey},
		[]*paramtree.Tree{paramtree.Array(hashNodes...), paramtree.Array(actorNodes...)},
	)
}

// Clone deep-copies a catalog.
func (cat Catalog) Clone() Catalog {
	out := make(Catalog, len(cat))
	for h, rec := range cat {
		out[h] = rec.Clone()
	}
	return out
}

// Diff computes the per-mod diff: full records for actors unknown to
// stock, sparse (field-level) records for actors that differ, nothing
// for actors identical to stock (spec §4.4 diff operation).
func Diff(stock, modded Catalog) Catalog {
	out := make(Catalog)
	for h, rec := range modded {
		stockRec, known := stock[h]
		if !known {
			out[h] = rec.Clone()
			continue
		}
		if paramtree.Equal(stockRec, rec) {
			continue
		}
		out[h] = paramtree.SparseDiff(stockRec, rec)
	}
	return out
}

// DiffAll decodes and diffs n mods' catalogs concurrently against the
// same immutable stock catalog (spec §4.4 concurrency: "per-diff
// parsing is parallelized").
func DiffAll(ctx context.Context, stock Catalog, moddedBlobs [][]byte, comp codec.CompressionCodec, pt codec.ParamTreeCodec) ([]Catalog, error) {
	diffs := make([]Catalog, len(moddedBlobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, blob := range moddedBlobs {
		i, blob := i, blob
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			modded, err := Decode(blob, comp, pt)
			if err != nil {
				return err
			}
			diffs[i] = Diff(stock, modded)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return diffs, nil
}

// CombineDiffs folds per-mod diffs together in priority order (lowest
// first) so later (higher priority) diffs overwrite earlier ones at the
// field level — "concatenated diffs from all active mods (already
// union-merged pairwise with later mods overwriting earlier at the
// field level)" (spec §4.4).
func CombineDiffs(diffsLowToHigh []Catalog) Catalog {
	combined := make(Catalog)
	for _, diff := range diffsLowToHigh {
		for h, rec := range diff {
			base, ok := combined[h]
			if ok && base.Kind() == paramtree.KindMapping && rec.Kind() == paramtree.KindMapping {
				merged := base.Clone()
				paramtree.DeepMerge(merged, rec)
				combined[h] = merged
				continue
			}
			combined[h] = rec.Clone()
		}
	}
	return combined
}

// Merge clones stock and folds the combined diff into it: deep-merging
// where both sides are Mappings, inserting/replacing otherwise (spec
// §4.4 merge operation; merge_actormap in original_source).
func Merge(stock, combinedDiff Catalog) Catalog {
	merged := stock.Clone()
	for h, rec := range combinedDiff {
		base, ok := merged[h]
		if ok && base.Kind() == paramtree.KindMapping && rec.Kind() == paramtree.KindMapping {
			paramtree.DeepMerge(base, rec)
			continue
		}
		merged[h] = rec.Clone()
	}
	return merged
}

// HashName returns the Actor Catalog key for an actor record, i.e. the
// name hash service applied to its "name" field (spec §3: "Actor
// Record... its canonical key in the Actor Catalog is
// crc32-style(name)").
func HashName(rec *paramtree.Tree, svc codec.NameHashService) (uint32, bool) {
	name, ok := rec.Get(nameField).AsString()
	if !ok {
		return 0, false
	}
	return svc.HashName(name), true
}
