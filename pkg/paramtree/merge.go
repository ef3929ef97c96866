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

package paramtree

// DeepMerge merges other into base in place: for every key in other,
// if base already holds a Mapping at that key and other's value is also
// a Mapping, the two are merged recursively key-by-key; any other kind
// simply replaces the base value. This is the field-level merge spec
// §4.4 describes for ActorInfo records: "Mappings merge by key;
// non-Mapping leaves replace."
//
// base and other must both be Mapping nodes.
func DeepMerge(base, other *Tree) {
	if base.Kind() != KindMapping || other.Kind() != KindMapping {
		return
	}
	for _, key := range other.Keys() {
		otherVal := other.Get(key)
		baseVal := base.Get(key)
		if baseVal != nil && baseVal.Kind() == KindMapping && otherVal.Kind() == KindMapping {
			merged := baseVal.Clone()
			DeepMerge(merged, otherVal)
			base.Set(key, merged)
			continue
		}
		base.Set(key, otherVal.Clone())
	}
}

// SparseDiff returns a Mapping containing only the top-level fields of
// modded that differ from stock, per spec §4.4's diff operation. Both
// arguments must be Mapping nodes.
func SparseDiff(stock, modded *Tree) *Tree {
	out := EmptyMapping()
	for _, key := range modded.Keys() {
		if !Equal(stock.Get(key), modded.Get(key)) {
			out.Set(key, modded.Get(key))
		}
	}
	return out
}
