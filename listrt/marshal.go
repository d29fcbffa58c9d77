// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package listrt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Marshal produces a self-contained, position-independent blob encoding
// v: every reference is flattened into the byte stream rather than left
// as a live pointer, so the blob can cross a worker boundary and be
// reconstructed independently (spec.md §4.3.3). String fields are
// deep-copied into the blob; nested lists are encoded recursively.
func Marshal(v Value) []byte {
	var buf bytes.Buffer
	writeValue(&buf, v)
	return buf.Bytes()
}

func writeValue(buf *bytes.Buffer, v Value) {
	buf.WriteByte(byte(v.Kind))
	switch v.Kind {
	case KindInt:
		binary.Write(buf, binary.LittleEndian, v.I)
	case KindFloat:
		binary.Write(buf, binary.LittleEndian, v.F)
	case KindString:
		data := v.S.Data()
		binary.Write(buf, binary.LittleEndian, uint32(len(data)))
		buf.WriteString(data)
	case KindList:
		elems := flattenList(v.L)
		binary.Write(buf, binary.LittleEndian, uint32(len(elems)))
		for _, e := range elems {
			writeValue(buf, e)
		}
	case KindObject:
		// Object payloads carry a vtable-dispatched destructor owned by
		// the codegen collaborator; listrt only ever sees them as an
		// opaque pointer and does not attempt to serialize what they
		// point to.
	}
}

func flattenList(l *List) []Value {
	if l == nil {
		return nil
	}
	out := make([]Value, 0, l.length)
	for a := l.head; a != nil; a = a.next {
		out = append(out, atomValue(a))
	}
	return out
}

// Unmarshal reverses Marshal, allocating fresh string descriptors and
// list headers/atoms through rt's pools for every reference the blob
// contained. The blob itself is an ordinary Go byte slice, reclaimed by
// the garbage collector rather than requiring an explicit free. Object
// values, which Marshal writes as a bare kind byte, are not read back:
// Unmarshal returns an unknown-kind error for them.
func (rt *Runtime) Unmarshal(blob []byte) (Value, error) {
	r := bytes.NewReader(blob)
	v, err := rt.readValue(r)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

func (rt *Runtime) readValue(r *bytes.Reader) (Value, error) {
	kindByte, err := r.ReadByte()
	if err != nil {
		return Value{}, fmt.Errorf("listrt: truncated blob: %w", err)
	}
	switch ValueKind(kindByte) {
	case KindNil:
		return Value{}, nil
	case KindInt:
		var i int64
		if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
			return Value{}, err
		}
		return IntValue(i), nil
	case KindFloat:
		var f float64
		if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
			return Value{}, err
		}
		return FloatValue(f), nil
	case KindString:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return Value{}, err
		}
		return StringValue(rt.newStringDesc(string(data))), nil
	case KindList:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		list := rt.Create(KindNil)
		for i := uint32(0); i < n; i++ {
			elem, err := rt.readValue(r)
			if err != nil {
				return Value{}, err
			}
			rt.Append(list, elem)
		}
		return ListValue(list), nil
	default:
		return Value{}, fmt.Errorf("listrt: unknown value kind byte %d in blob", kindByte)
	}
}
