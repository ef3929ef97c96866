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

	"github.com/modforge/mergecore/pkg/actorinfo"
	"github.com/modforge/mergecore/pkg/config"
	"github.com/modforge/mergecore/pkg/merrors"
)

// actorInfoRel is the single global Actor Catalog's path, relative to
// the content subtree (grounded on STOCK_ACTORINFO in
// original_source/src/mergers/actorinfo.rs: "Actor/ActorInfo.product.sbyml").
const actorInfoRel = "Actor/ActorInfo.product.sbyml"

// runActorInfo dispatches the single global Actor Catalog (spec §4.4).
// If no enabled mod ships the file at all, nothing is written (spec §8
// scenario 1: "no-op diff... Merged Tree contains no actor-info file").
func (o *Orchestrator) runActorInfo(
	ctx context.Context,
	snap config.Snapshot,
	layers []string,
	merged map[string][]byte,
	report *merrors.Report,
	wins map[string]string,
) error {
	type modBlob struct {
		root string
		data []byte
	}
	var blobs []modBlob
	for _, layer := range layers {
		if data, ok := o.readLayerFile(layer, actorInfoRel); ok {
			blobs = append(blobs, modBlob{root: layer, data: data})
		}
	}
	if len(blobs) == 0 {
		return nil
	}

	stockRaw, err := o.readStock(snap, actorInfoRel, false)
	if err != nil {
		return err
	}
	stock, err := actorinfo.Decode(stockRaw, o.deps.Compression, o.deps.ParamTree)
	if err != nil {
		return err
	}

	// diffsLowToHigh is built directly (rather than via DiffAll, which
	// assumes every blob is well-formed) so a single malformed mod
	// catalog degrades to a scoped warning instead of aborting the
	// whole dispatch (spec §7 propagation policy).
	var diffsLowToHigh []actorinfo.Catalog
	var wonBy string
	for i := len(blobs) - 1; i >= 0; i-- {
		b := blobs[i]
		modded, err := actorinfo.Decode(b.data, o.deps.Compression, o.deps.ParamTree)
		if err != nil {
			logScoped(merrors.KindCodec, actorInfoRel, err, report)
			continue
		}
		diff := actorinfo.Diff(stock, modded)
		if len(diff) > 0 {
			diffsLowToHigh = append(diffsLowToHigh, diff)
			wonBy = b.root
		}
	}
	if len(diffsLowToHigh) == 0 {
		return nil
	}

	combined := actorinfo.CombineDiffs(diffsLowToHigh)
	mergedCat := actorinfo.Merge(stock, combined)

	out, err := actorinfo.Encode(mergedCat, snap.Variant().Endian(), o.deps.Compression, o.deps.ParamTree)
	if err != nil {
		return err
	}

	rel := destPath(snap.Variant(), actorInfoRel)
	merged[rel] = out
	report.AddTouched(rel)
	wins[rel] = wonBy
	return nil
}
