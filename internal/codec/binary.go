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

package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/modforge/mergecore/pkg/paramtree"
	"github.com/modforge/mergecore/pkg/platform"
)

// No library in the retrieval pack implements the game's proprietary
// archive, parameter-tree, or message-file binary formats (they are not
// general-purpose formats any ecosystem package targets); the
// BinaryArchiveCodec, BinaryParamTreeCodec, and BinaryMsgCodec default
// adapters below are therefore hand-rolled against the standard
// library's encoding/binary, satisfying the ArchiveCodec/ParamTreeCodec/
// MsgCodec contracts so the rest of the pipeline never depends on the
// concrete wire format. See DESIGN.md for the per-adapter justification.

var archiveMagic = [4]byte{'S', 'A', 'R', 'C'}

// LooksLikeArchive reports whether data's header matches the archive
// magic at its expected offset or at the outer-wrapper offset 0x11..0x15
// (spec §4.3 condition ii), without attempting a full decode. The
// Archive Walker uses this as a cheap pre-check before recursing into a
// child entry.
func LooksLikeArchive(data []byte) bool {
	if len(data) >= 8 && bytes.Equal(data[:4], archiveMagic[:]) {
		return true
	}
	if len(data) >= 0x15 && bytes.Equal(data[0x11:0x15], archiveMagic[:]) {
		return true
	}
	return false
}

func byteOrder(e platform.Endian) binary.ByteOrder {
	if e == platform.Big {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// BinaryArchiveCodec is the default ArchiveCodec adapter.
type BinaryArchiveCodec struct{}

func (BinaryArchiveCodec) Decode(data []byte) (*Archive, error) {
	if len(data) < 8 || !bytes.Equal(data[:4], archiveMagic[:]) {
		if len(data) >= 0x15 && bytes.Equal(data[0x11:0x15], archiveMagic[:]) {
			// Outer wrapper variant: the real SARC payload starts after
			// a fixed-size header; skip it and decode the remainder.
			return BinaryArchiveCodec{}.Decode(data[0x11:])
		}
		return nil, fmt.Errorf("codec: not an archive (bad magic)")
	}
	var order binary.ByteOrder = binary.BigEndian
	endianMarker := data[4]
	if endianMarker == 1 {
		order = binary.LittleEndian //nolint:staticcheck // explicit per-archive marker, not a constant swap
	}
	r := bytes.NewReader(data[8:])
	var count uint32
	if err := binary.Read(r, order, &count); err != nil {
		return nil, fmt.Errorf("codec: truncated archive header: %w", err)
	}
	// Each entry needs at least a 2-byte name length and a 4-byte data
	// length; reject a count that could not possibly fit in what is
	// left, rather than pre-allocating a slice sized from untrusted
	// input (a malformed archive must fail cleanly, not exhaust memory).
	const minEntryHeader = 6
	if int64(count)*minEntryHeader > int64(r.Len()) {
		return nil, fmt.Errorf("codec: archive entry count %d implausible for %d remaining bytes", count, r.Len())
	}
	archive := &Archive{Entries: make([]ArchiveEntry, 0, count)}
	for i := uint32(0); i < count; i++ {
		var nameLen uint16
		if err := binary.Read(r, order, &nameLen); err != nil {
			return nil, fmt.Errorf("codec: truncated entry %d name length: %w", i, err)
		}
		if int(nameLen) > r.Len() {
			return nil, fmt.Errorf("codec: entry %d name length %d exceeds remaining data", i, nameLen)
		}
		nameBytes := make([]byte, nameLen)
		if _, err := r.Read(nameBytes); err != nil {
			return nil, fmt.Errorf("codec: truncated entry %d name: %w", i, err)
		}
		var dataLen uint32
		if err := binary.Read(r, order, &dataLen); err != nil {
			return nil, fmt.Errorf("codec: truncated entry %d data length: %w", i, err)
		}
		if int64(dataLen) > int64(r.Len()) {
			return nil, fmt.Errorf("codec: entry %d data length %d exceeds remaining data", i, dataLen)
		}
		entryData := make([]byte, dataLen)
		if _, err := r.Read(entryData); err != nil {
			return nil, fmt.Errorf("codec: truncated entry %d data: %w", i, err)
		}
		archive.Entries = append(archive.Entries, ArchiveEntry{Name: string(nameBytes), Data: entryData})
	}
	return archive, nil
}

func (BinaryArchiveCodec) Encode(archive *Archive, endian platform.Endian) ([]byte, error) {
	order := byteOrder(endian)
	var buf bytes.Buffer
	buf.Write(archiveMagic[:])
	if endian == platform.Big {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
	}
	buf.WriteByte(0) // reserved
	buf.WriteByte(0) // reserved
	buf.WriteByte(0) // reserved
	if err := binary.Write(&buf, order, uint32(len(archive.Entries))); err != nil {
		return nil, err
	}
	for _, e := range archive.Entries {
		if err := binary.Write(&buf, order, uint16(len(e.Name))); err != nil {
			return nil, err
		}
		buf.WriteString(e.Name)
		if err := binary.Write(&buf, order, uint32(len(e.Data))); err != nil {
			return nil, err
		}
		buf.Write(e.Data)
	}
	return buf.Bytes(), nil
}

// Parameter tree tag bytes, one per paramtree.Kind.
const (
	tagNull uint8 = iota
	tagBool
	tagInt32
	tagUint32
	tagFloat
	tagString
	tagArray
	tagVec4
	tagMapping
)

// BinaryParamTreeCodec is the default ParamTreeCodec adapter.
type BinaryParamTreeCodec struct{}

func (BinaryParamTreeCodec) Encode(tree *paramtree.Tree, endian platform.Endian) ([]byte, error) {
	order := byteOrder(endian)
	var buf bytes.Buffer
	if endian == platform.Big {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
	}
	if err := encodeNode(&buf, order, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeNode(buf *bytes.Buffer, order binary.ByteOrder, t *paramtree.Tree) error {
	if t == nil {
		buf.WriteByte(tagNull)
		return nil
	}
	switch t.Kind() {
	case paramtree.KindNull:
		buf.WriteByte(tagNull)
	case paramtree.KindBool:
		buf.WriteByte(tagBool)
		v, _ := t.AsBool()
		if v {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case paramtree.KindInt32:
		buf.WriteByte(tagInt32)
		v, _ := t.AsInt32()
		return binary.Write(buf, order, v)
	case paramtree.KindUint32:
		buf.WriteByte(tagUint32)
		v, _ := t.AsUint32()
		return binary.Write(buf, order, v)
	case paramtree.KindFloat:
		buf.WriteByte(tagFloat)
		v, _ := t.AsFloat()
		return binary.Write(buf, order, math.Float64bits(v))
	case paramtree.KindString:
		buf.WriteByte(tagString)
		v, _ := t.AsString()
		if err := binary.Write(buf, order, uint32(len(v))); err != nil {
			return err
		}
		buf.WriteString(v)
	case paramtree.KindVec4:
		buf.WriteByte(tagVec4)
		v, _ := t.AsVec4()
		for _, f := range []float32{v.X, v.Y, v.Z, v.W} {
			if err := binary.Write(buf, order, math.Float32bits(f)); err != nil {
				return err
			}
		}
	case paramtree.KindArray:
		buf.WriteByte(tagArray)
		items, _ := t.AsArray()
		if err := binary.Write(buf, order, uint32(len(items))); err != nil {
			return err
		}
		for _, item := range items {
			if err := encodeNode(buf, order, item); err != nil {
				return err
			}
		}
	case paramtree.KindMapping:
		buf.WriteByte(tagMapping)
		keys := t.Keys()
		if err := binary.Write(buf, order, uint32(len(keys))); err != nil {
			return err
		}
		for _, k := range keys {
			if err := binary.Write(buf, order, uint32(len(k))); err != nil {
				return err
			}
			buf.WriteString(k)
			if err := encodeNode(buf, order, t.Get(k)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("codec: unknown tree kind %v", t.Kind())
	}
	return nil
}

func (BinaryParamTreeCodec) Decode(data []byte) (*paramtree.Tree, error) {
	// Encode writes a one-byte byte-order marker (0 big endian, 1 little
	// endian) ahead of the root node, so the order is detected here.
	if len(data) == 0 {
		return nil, errors.New("codec: empty parameter tree")
	}
	var order binary.ByteOrder = binary.BigEndian
	if data[0] == 1 {
		order = binary.LittleEndian
	}
	node, err := decodeNode(bytes.NewReader(data[1:]), order)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	return node, nil
}

// DecodeWithEndian decodes a tree encoded with a known byte order,
// skipping the byte-order marker Encode writes.
func (BinaryParamTreeCodec) DecodeWithEndian(data []byte, endian platform.Endian) (*paramtree.Tree, error) {
	if len(data) == 0 {
		return nil, errors.New("codec: empty parameter tree")
	}
	r := bytes.NewReader(data[1:])
	return decodeNode(r, byteOrder(endian))
}

func decodeNode(r *bytes.Reader, order binary.ByteOrder) (*paramtree.Tree, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNull:
		return paramtree.Null(), nil
	case tagBool:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return paramtree.Bool(b != 0), nil
	case tagInt32:
		var v int32
		if err := binary.Read(r, order, &v); err != nil {
			return nil, err
		}
		return paramtree.Int32(v), nil
	case tagUint32:
		var v uint32
		if err := binary.Read(r, order, &v); err != nil {
			return nil, err
		}
		return paramtree.Uint32(v), nil
	case tagFloat:
		var bits uint64
		if err := binary.Read(r, order, &bits); err != nil {
			return nil, err
		}
		return paramtree.Float(math.Float64frombits(bits)), nil
	case tagString:
		var n uint32
		if err := binary.Read(r, order, &n); err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if _, err := r.Read(buf); err != nil {
			return nil, err
		}
		return paramtree.String(string(buf)), nil
	case tagVec4:
		var comps [4]float32
		for i := range comps {
			var bits uint32
			if err := binary.Read(r, order, &bits); err != nil {
				return nil, err
			}
			comps[i] = math.Float32frombits(bits)
		}
		return paramtree.NewVec4(paramtree.Vec4{X: comps[0], Y: comps[1], Z: comps[2], W: comps[3]}), nil
	case tagArray:
		var n uint32
		if err := binary.Read(r, order, &n); err != nil {
			return nil, err
		}
		items := make([]*paramtree.Tree, n)
		for i := range items {
			item, err := decodeNode(r, order)
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		return paramtree.Array(items...), nil
	case tagMapping:
		var n uint32
		if err := binary.Read(r, order, &n); err != nil {
			return nil, err
		}
		keys := make([]string, n)
		vals := make([]*paramtree.Tree, n)
		for i := uint32(0); i < n; i++ {
			var klen uint32
			if err := binary.Read(r, order, &klen); err != nil {
				return nil, err
			}
			kbuf := make([]byte, klen)
			if _, err := r.Read(kbuf); err != nil {
				return nil, err
			}
			v, err := decodeNode(r, order)
			if err != nil {
				return nil, err
			}
			keys[i] = string(kbuf)
			vals[i] = v
		}
		return paramtree.NewMapping(keys, vals), nil
	default:
		return nil, errors.New("codec: unknown parameter tree tag")
	}
}

// RSTBEstimator is the default SizeEstimator adapter. No corpus library
// implements the game's resource-size-table format, so this is a
// deterministic stdlib formula: the given payload size rounded up
// to the next 32-byte boundary, plus a per-character filename overhead,
// which is the same shape (size bucket plus name-length fudge) as the
// real resource-size estimator without claiming byte-for-byte parity
// with it.
type RSTBEstimator struct{}

func (RSTBEstimator) Estimate(sizeBytes int, pseudoFilename string, _ platform.Endian) uint32 {
	const align = 32
	rounded := ((sizeBytes + align - 1) / align) * align
	return uint32(rounded) + uint32(len(pseudoFilename))*4 //nolint:gosec // bounded by archive size, no overflow risk in practice
}

// BinaryMsgCodec is the default MsgCodec adapter, built on
// BinaryParamTreeCodec for its entries block.
type BinaryMsgCodec struct {
	Trees BinaryParamTreeCodec
}

func (c BinaryMsgCodec) Encode(msg *MsgFile, endian platform.Endian) ([]byte, error) {
	order := byteOrder(endian)
	var buf bytes.Buffer
	if endian == platform.Big {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
	}
	if err := binary.Write(&buf, order, msg.GroupCount); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, order, msg.Atr1Unknown); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, order, uint32(len(msg.Opaque))); err != nil {
		return nil, err
	}
	for name, data := range msg.Opaque {
		if err := binary.Write(&buf, order, uint32(len(name))); err != nil {
			return nil, err
		}
		buf.WriteString(name)
		if err := binary.Write(&buf, order, uint32(len(data))); err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	entries := msg.Entries
	if entries == nil {
		entries = paramtree.EmptyMapping()
	}
	if err := encodeNode(&buf, order, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c BinaryMsgCodec) Decode(data []byte) (*MsgFile, error) {
	// Encode writes a one-byte byte-order marker (0 big endian, 1 little
	// endian) ahead of the header fields.
	if len(data) == 0 {
		return nil, errors.New("codec: empty message file")
	}
	var order binary.ByteOrder = binary.BigEndian
	if data[0] == 1 {
		order = binary.LittleEndian
	}
	r := bytes.NewReader(data[1:])
	msg := &MsgFile{Opaque: map[string][]byte{}}
	if err := binary.Read(r, order, &msg.GroupCount); err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	if err := binary.Read(r, order, &msg.Atr1Unknown); err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	var blockCount uint32
	if err := binary.Read(r, order, &blockCount); err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	for i := uint32(0); i < blockCount; i++ {
		var nameLen uint32
		if err := binary.Read(r, order, &nameLen); err != nil {
			return nil, fmt.Errorf("codec: %w", err)
		}
		name := make([]byte, nameLen)
		if _, err := r.Read(name); err != nil {
			return nil, fmt.Errorf("codec: %w", err)
		}
		var dataLen uint32
		if err := binary.Read(r, order, &dataLen); err != nil {
			return nil, fmt.Errorf("codec: %w", err)
		}
		block := make([]byte, dataLen)
		if _, err := r.Read(block); err != nil {
			return nil, fmt.Errorf("codec: %w", err)
		}
		msg.Opaque[string(name)] = block
	}
	entries, err := decodeNode(r, order)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	msg.Entries = entries
	return msg, nil
}
