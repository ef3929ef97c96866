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

// Package paramtree implements the recursive tagged Parameter Tree value
// described in spec §3: Null, Boolean, Signed32, Unsigned32, Float,
// String, Array, Vec4, and an order-preserving Mapping. It is the one
// data model every merger (ActorInfo, Map, Text) walks and diffs, so the
// merge logic is written once here and dispatched on Kind, instead of
// scattering ad-hoc untyped-map merges through each merger package.
package paramtree

import "fmt"

// Kind discriminates the variant a Tree currently holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindUint32
	KindFloat
	KindString
	KindArray
	KindVec4
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindUint32:
		return "uint32"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindVec4:
		return "vec4"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Vec4 is a four-component float vector. The original BCML-derived
// source wrote field z twice by apparent oversight instead of z then w;
// this implementation always encodes all four named fields (spec §9
// open question — explicitly not reproduced).
type Vec4 struct {
	X, Y, Z, W float32
}

// Tree is a single node of the Parameter Tree sum type. Only the field
// matching Kind is meaningful; the zero value is KindNull.
type Tree struct {
	str      string
	array    []*Tree
	mapVals  []*Tree
	mapKeys  []string
	vec4     Vec4
	f        float64
	i        int64
	u        uint64
	kind     Kind
	booleanV bool
}

// Null returns a KindNull node.
func Null() *Tree { return &Tree{kind: KindNull} }

// Bool wraps a boolean leaf.
func Bool(b bool) *Tree { return &Tree{kind: KindBool, booleanV: b} }

// Int32 wraps a signed 32-bit leaf.
func Int32(v int32) *Tree { return &Tree{kind: KindInt32, i: int64(v)} }

// Uint32 wraps an unsigned 32-bit leaf.
func Uint32(v uint32) *Tree { return &Tree{kind: KindUint32, u: uint64(v)} }

// Float wraps a floating-point leaf.
func Float(v float64) *Tree { return &Tree{kind: KindFloat, f: v} }

// String wraps a string leaf.
func String(v string) *Tree { return &Tree{kind: KindString, str: v} }

// NewVec4 wraps a four-component vector leaf.
func NewVec4(v Vec4) *Tree { return &Tree{kind: KindVec4, vec4: v} }

// Array wraps an ordered list of child nodes.
func Array(items ...*Tree) *Tree { return &Tree{kind: KindArray, array: items} }

// NewMapping builds an order-preserving mapping from the given keys and
// values, which must be the same length.
func NewMapping(keys []string, vals []*Tree) *Tree {
	if len(keys) != len(vals) {
		panic("paramtree: mismatched key/value count")
	}
	return &Tree{kind: KindMapping, mapKeys: keys, mapVals: vals}
}

// EmptyMapping returns a new, empty Mapping node.
func EmptyMapping() *Tree {
	return &Tree{kind: KindMapping}
}

func (t *Tree) Kind() Kind { return t.kind }

func (t *Tree) AsBool() (bool, bool) {
	if t == nil || t.kind != KindBool {
		return false, false
	}
	return t.booleanV, true
}

func (t *Tree) AsInt32() (int32, bool) {
	if t == nil || t.kind != KindInt32 {
		return 0, false
	}
	return int32(t.i), true
}

func (t *Tree) AsUint32() (uint32, bool) {
	if t == nil || t.kind != KindUint32 {
		return 0, false
	}
	return uint32(t.u), true
}

// AsHashID reads a HashId leaf that may have been encoded as either
// Int32 or Uint32 depending on codec version, reinterpreting a signed
// value as unsigned for comparison (spec §4.5 step 5, §9 open question:
// unsigned first, then signed reinterpret, never abort on a missing
// HashId — treat it as unmatched instead).
func (t *Tree) AsHashID() (uint32, bool) {
	if t == nil {
		return 0, false
	}
	switch t.kind {
	case KindUint32:
		return uint32(t.u), true
	case KindInt32:
		return uint32(int32(t.i)), true
	default:
		return 0, false
	}
}

func (t *Tree) AsFloat() (float64, bool) {
	if t == nil || t.kind != KindFloat {
		return 0, false
	}
	return t.f, true
}

func (t *Tree) AsString() (string, bool) {
	if t == nil || t.kind != KindString {
		return "", false
	}
	return t.str, true
}

func (t *Tree) AsVec4() (Vec4, bool) {
	if t == nil || t.kind != KindVec4 {
		return Vec4{}, false
	}
	return t.vec4, true
}

func (t *Tree) AsArray() ([]*Tree, bool) {
	if t == nil || t.kind != KindArray {
		return nil, false
	}
	return t.array, true
}

// SetArray replaces the array contents in place (used by mergers that
// mutate a cloned stock tree rather than rebuild it).
func (t *Tree) SetArray(items []*Tree) {
	t.kind = KindArray
	t.array = items
}

// Keys returns the mapping's keys in insertion order. Returns nil if t
// is not a Mapping.
func (t *Tree) Keys() []string {
	if t == nil || t.kind != KindMapping {
		return nil
	}
	return t.mapKeys
}

// Get looks up key in a Mapping node, returning nil if absent or if t is
// not a Mapping.
func (t *Tree) Get(key string) *Tree {
	if t == nil || t.kind != KindMapping {
		return nil
	}
	for i, k := range t.mapKeys {
		if k == key {
			return t.mapVals[i]
		}
	}
	return nil
}

// Set inserts or replaces key in a Mapping node, preserving the existing
// position on replace and appending on insert.
func (t *Tree) Set(key string, val *Tree) {
	if t.kind != KindMapping {
		panic(fmt.Sprintf("paramtree: Set on non-mapping kind %s", t.kind))
	}
	for i, k := range t.mapKeys {
		if k == key {
			t.mapVals[i] = val
			return
		}
	}
	t.mapKeys = append(t.mapKeys, key)
	t.mapVals = append(t.mapVals, val)
}

// Clone performs a deep copy of t.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	clone := &Tree{
		kind:     t.kind,
		str:      t.str,
		booleanV: t.booleanV,
		i:        t.i,
		u:        t.u,
		f:        t.f,
		vec4:     t.vec4,
	}
	if t.array != nil {
		clone.array = make([]*Tree, len(t.array))
		for i, v := range t.array {
			clone.array[i] = v.Clone()
		}
	}
	if t.mapKeys != nil {
		clone.mapKeys = append([]string(nil), t.mapKeys...)
		clone.mapVals = make([]*Tree, len(t.mapVals))
		for i, v := range t.mapVals {
			clone.mapVals[i] = v.Clone()
		}
	}
	return clone
}

// Equal performs a deep structural comparison, per spec §3 ("equality is
// deep structural").
func Equal(a, b *Tree) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.booleanV == b.booleanV
	case KindInt32, KindUint32:
		return a.i == b.i && a.u == b.u
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.str == b.str
	case KindVec4:
		return a.vec4 == b.vec4
	case KindArray:
		if len(a.array) != len(b.array) {
			return false
		}
		for i := range a.array {
			if !Equal(a.array[i], b.array[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(a.mapKeys) != len(b.mapKeys) {
			return false
		}
		for _, k := range a.mapKeys {
			if !Equal(a.Get(k), b.Get(k)) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
