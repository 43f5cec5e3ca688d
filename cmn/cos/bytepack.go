// Package cos provides common low-level types and utilities for all hsort packages.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"encoding/binary"
	"errors"

	"github.com/NVIDIA/hsort/cmn/debug"
)

// Fixed-layout big-endian encoding of everything that travels between nodes.
// Fields are written and read in declaration order, without tags or length
// prefixes other than the ones a message defines for itself. PackedSize must
// equal the number of bytes Pack writes (asserted in debug builds). Readers
// never panic on short input: they return ErrBufferUnderrun.

type (
	BytePack struct {
		b   []byte
		off int
	}
	ByteUnpack struct {
		b   []byte
		off int
	}

	Packer interface {
		Pack(*BytePack)
		PackedSize() int
	}
	Unpacker interface {
		Unpack(*ByteUnpack) error
	}
)

var ErrBufferUnderrun = errors.New("buffer underrun")

func NewPacker(size int) *BytePack        { return &BytePack{b: make([]byte, size)} }
func NewUnpacker(buf []byte) *ByteUnpack { return &ByteUnpack{b: buf} }

//
// BytePack
//

func (bp *BytePack) WriteByte(c byte) {
	bp.b[bp.off] = c
	bp.off++
}

func (bp *BytePack) WriteBool(v bool) {
	var c byte
	if v {
		c = 1
	}
	bp.WriteByte(c)
}

func (bp *BytePack) WriteUint32(v uint32) {
	binary.BigEndian.PutUint32(bp.b[bp.off:], v)
	bp.off += SizeofI32
}

func (bp *BytePack) WriteUint64(v uint64) {
	binary.BigEndian.PutUint64(bp.b[bp.off:], v)
	bp.off += SizeofI64
}

func (bp *BytePack) WriteInt64(v int64) { bp.WriteUint64(uint64(v)) }

func (bp *BytePack) WriteAny(p Packer) {
	prev := bp.off
	p.Pack(bp)
	debug.Assertf(bp.off-prev == p.PackedSize(), "%T: declared %d, packed %d", p, p.PackedSize(), bp.off-prev)
}

func (bp *BytePack) Bytes() []byte { return bp.b[:bp.off] }

//
// ByteUnpack
//

// Len returns the number of unread bytes.
func (bu *ByteUnpack) Len() int { return len(bu.b) - bu.off }

func (bu *ByteUnpack) ReadByte() (byte, error) {
	if bu.Len() < 1 {
		return 0, ErrBufferUnderrun
	}
	c := bu.b[bu.off]
	bu.off++
	return c, nil
}

func (bu *ByteUnpack) ReadBool() (bool, error) {
	c, err := bu.ReadByte()
	return c != 0, err
}

func (bu *ByteUnpack) ReadUint32() (uint32, error) {
	if bu.Len() < SizeofI32 {
		return 0, ErrBufferUnderrun
	}
	v := binary.BigEndian.Uint32(bu.b[bu.off:])
	bu.off += SizeofI32
	return v, nil
}

func (bu *ByteUnpack) ReadUint64() (uint64, error) {
	if bu.Len() < SizeofI64 {
		return 0, ErrBufferUnderrun
	}
	v := binary.BigEndian.Uint64(bu.b[bu.off:])
	bu.off += SizeofI64
	return v, nil
}

func (bu *ByteUnpack) ReadInt64() (int64, error) {
	v, err := bu.ReadUint64()
	return int64(v), err
}

func (bu *ByteUnpack) ReadAny(u Unpacker) error { return u.Unpack(bu) }
