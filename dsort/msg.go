// Package dsort implements histogram-driven distributed sort: coordinator-side partition
// resolution over per-source histograms, and the source and destination node roles.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package dsort

import (
	"fmt"

	"github.com/NVIDIA/hsort/cmn/cos"
	"github.com/NVIDIA/hsort/hist"
	"github.com/NVIDIA/hsort/transport"
)

// opcodes
const (
	OpHistogram uint8 = iota + 1
	OpDetailRequest
	OpRangeBatch
	OpFragment
	OpAck
	OpNodeResult
)

// transport names
const (
	trnameHist   = "hist"   // coordinator: push/pull, coarse histograms
	trnameDetail = "detail" // source: request/reply, detailed histograms
	trnameRanges = "ranges" // source: push/pull, RangeBatch
	trnameFrag   = "frag"   // destination: request/reply, fragments
	trnameResult = "result" // coordinator: push/pull, NodeResult
)

const (
	sizeEntry      = cos.SizeofI32 + 2*cos.SizeofI64
	sizeDetailReq  = 2*cos.SizeofI64 + 2*cos.SizeofI32 + 1
	sizeRange      = 2*cos.SizeofI32 + 2*cos.SizeofI64
	sizeNodeResult = 4*cos.SizeofI32 + cos.SizeofI64
	ackByte        = 1
)

type (
	// coarse (or detailed) histogram plus source-side summary
	HistogramMsg struct {
		hist.Histogram
		Length int64  // source sequence length
		Cksum  uint32 // source checksum (see ksort.Checksum)
	}
	DetailReq struct {
		First int64 // inclusive
		Last  int64 // inclusive; Last < First: empty
		SID   uint32
		DID   uint32
		Final bool // the source stops serving detail requests after replying
	}
	// contribution of source SID to destination DID: [First, Last]
	Range struct {
		SID   uint32
		DID   uint32
		First int64
		Last  int64 // First-1 when empty
	}
	RangeBatch struct {
		Ranges []Range
	}
	Fragment struct {
		Keys  []uint32
		First int64
		SID   uint32
		DID   uint32
	}
	NodeResult struct {
		Count int64  `json:"count,string"`
		NID   uint32 `json:"node"`
		Min   uint32 `json:"min"`
		Max   uint32 `json:"max"`
		Cksum uint32 `json:"cksum"`
	}
)

// interface guard
var (
	_ cos.Packer   = (*HistogramMsg)(nil)
	_ cos.Unpacker = (*HistogramMsg)(nil)
	_ cos.Packer   = (*DetailReq)(nil)
	_ cos.Unpacker = (*DetailReq)(nil)
	_ cos.Packer   = (*RangeBatch)(nil)
	_ cos.Unpacker = (*RangeBatch)(nil)
	_ cos.Packer   = (*Fragment)(nil)
	_ cos.Unpacker = (*Fragment)(nil)
	_ cos.Packer   = (*NodeResult)(nil)
	_ cos.Unpacker = (*NodeResult)(nil)
)

//
// logical node IDs: coordinator, then N sources, then N destinations
//

const CoordID transport.NodeID = 0

func SrcID(i int) transport.NodeID    { return transport.NodeID(1 + i) }
func DstID(n, i int) transport.NodeID { return transport.NodeID(1 + n + i) }

func coordAddr(trname string) transport.Addr { return transport.Addr{Node: CoordID, Trname: trname} }

//
// encode/decode
//

func encode(sid transport.NodeID, opcode uint8, p cos.Packer) *transport.Msg {
	bp := cos.NewPacker(p.PackedSize())
	bp.WriteAny(p)
	return &transport.Msg{SID: sid, Opcode: opcode, Body: bp.Bytes()}
}

func decode(msg *transport.Msg, opcode uint8, u cos.Unpacker) error {
	where := fmt.Sprintf("opcode %d from %s", opcode, msg.SID)
	if msg.Opcode != opcode {
		return newErrProtocol(where, fmt.Errorf("unexpected opcode %d", msg.Opcode))
	}
	br := cos.NewUnpacker(msg.Body)
	if err := br.ReadAny(u); err != nil {
		return newErrProtocol(where, err)
	}
	if br.Len() != 0 {
		return newErrProtocol(where, fmt.Errorf("%d trailing bytes", br.Len()))
	}
	return nil
}

func ackMsg(sid transport.NodeID) *transport.Msg {
	return &transport.Msg{SID: sid, Opcode: OpAck, Body: []byte{ackByte}}
}

func checkAck(msg *transport.Msg) error {
	if msg.Opcode != OpAck || len(msg.Body) != 1 || msg.Body[0] != ackByte {
		return newErrProtocol("ack from "+msg.SID.String(), fmt.Errorf("bad ack (opcode %d, %d bytes)", msg.Opcode, len(msg.Body)))
	}
	return nil
}

// check that n fixed-size records fit in what's left
func checkCount(br *cos.ByteUnpack, n uint32, size int) error {
	if int64(n)*int64(size) > int64(br.Len()) {
		return cos.ErrBufferUnderrun
	}
	return nil
}

//////////////////
// HistogramMsg //
//////////////////

func (m *HistogramMsg) PackedSize() int {
	return 2*cos.SizeofI32 + cos.SizeofI64 + cos.SizeofI32 + len(m.Entries)*sizeEntry
}

func (m *HistogramMsg) Pack(bp *cos.BytePack) {
	bp.WriteUint32(m.SID)
	bp.WriteUint32(m.Cksum)
	bp.WriteInt64(m.Length)
	bp.WriteUint32(uint32(len(m.Entries)))
	for i := range m.Entries {
		e := &m.Entries[i]
		bp.WriteUint32(e.Value)
		bp.WriteInt64(e.Start)
		bp.WriteInt64(e.Last)
	}
}

func (m *HistogramMsg) Unpack(br *cos.ByteUnpack) (err error) {
	var n uint32
	if m.SID, err = br.ReadUint32(); err != nil {
		return
	}
	if m.Cksum, err = br.ReadUint32(); err != nil {
		return
	}
	if m.Length, err = br.ReadInt64(); err != nil {
		return
	}
	if n, err = br.ReadUint32(); err != nil {
		return
	}
	if err = checkCount(br, n, sizeEntry); err != nil {
		return
	}
	m.Entries = make([]hist.Entry, n)
	for i := range m.Entries {
		e := &m.Entries[i]
		e.Value, _ = br.ReadUint32()
		e.Start, _ = br.ReadInt64()
		e.Last, err = br.ReadInt64()
	}
	return
}

///////////////
// DetailReq //
///////////////

func (*DetailReq) PackedSize() int { return sizeDetailReq }

func (r *DetailReq) Pack(bp *cos.BytePack) {
	bp.WriteInt64(r.First)
	bp.WriteInt64(r.Last)
	bp.WriteUint32(r.SID)
	bp.WriteUint32(r.DID)
	bp.WriteBool(r.Final)
}

func (r *DetailReq) Unpack(br *cos.ByteUnpack) (err error) {
	if r.First, err = br.ReadInt64(); err != nil {
		return
	}
	if r.Last, err = br.ReadInt64(); err != nil {
		return
	}
	if r.SID, err = br.ReadUint32(); err != nil {
		return
	}
	if r.DID, err = br.ReadUint32(); err != nil {
		return
	}
	r.Final, err = br.ReadBool()
	return
}

func (r *DetailReq) String() string {
	s := fmt.Sprintf("detail-req[src %d, dst %d: %d..%d]", r.SID, r.DID, r.First, r.Last)
	if r.Final {
		s += "(final)"
	}
	return s
}

///////////
// Range //
///////////

func (r *Range) Len() int64     { return r.Last - r.First + 1 }
func (r *Range) End() int64     { return r.Last + 1 }
func (r *Range) String() string { return fmt.Sprintf("src %d => dst %d: [%d, %d)", r.SID, r.DID, r.First, r.End()) }

////////////////
// RangeBatch //
////////////////

func (b *RangeBatch) PackedSize() int { return cos.SizeofI32 + len(b.Ranges)*sizeRange }

func (b *RangeBatch) Pack(bp *cos.BytePack) {
	bp.WriteUint32(uint32(len(b.Ranges)))
	for i := range b.Ranges {
		r := &b.Ranges[i]
		bp.WriteUint32(r.SID)
		bp.WriteUint32(r.DID)
		bp.WriteInt64(r.First)
		bp.WriteInt64(r.Last)
	}
}

func (b *RangeBatch) Unpack(br *cos.ByteUnpack) (err error) {
	var n uint32
	if n, err = br.ReadUint32(); err != nil {
		return
	}
	if err = checkCount(br, n, sizeRange); err != nil {
		return
	}
	b.Ranges = make([]Range, n)
	for i := range b.Ranges {
		r := &b.Ranges[i]
		r.SID, _ = br.ReadUint32()
		r.DID, _ = br.ReadUint32()
		r.First, _ = br.ReadInt64()
		r.Last, err = br.ReadInt64()
	}
	return
}

//////////////
// Fragment //
//////////////

func (f *Fragment) PackedSize() int {
	return 2*cos.SizeofI32 + cos.SizeofI64 + cos.SizeofI32 + len(f.Keys)*cos.SizeofI32
}

func (f *Fragment) Pack(bp *cos.BytePack) {
	bp.WriteUint32(f.SID)
	bp.WriteUint32(f.DID)
	bp.WriteInt64(f.First)
	bp.WriteUint32(uint32(len(f.Keys)))
	for _, k := range f.Keys {
		bp.WriteUint32(k)
	}
}

func (f *Fragment) Unpack(br *cos.ByteUnpack) (err error) {
	var n uint32
	if f.SID, err = br.ReadUint32(); err != nil {
		return
	}
	if f.DID, err = br.ReadUint32(); err != nil {
		return
	}
	if f.First, err = br.ReadInt64(); err != nil {
		return
	}
	if n, err = br.ReadUint32(); err != nil {
		return
	}
	if err = checkCount(br, n, cos.SizeofI32); err != nil {
		return
	}
	f.Keys = make([]uint32, n)
	for i := range f.Keys {
		f.Keys[i], err = br.ReadUint32()
	}
	return
}

////////////////
// NodeResult //
////////////////

func (*NodeResult) PackedSize() int { return sizeNodeResult }

func (r *NodeResult) Pack(bp *cos.BytePack) {
	bp.WriteUint32(r.NID)
	bp.WriteUint32(r.Min)
	bp.WriteUint32(r.Max)
	bp.WriteUint32(r.Cksum)
	bp.WriteInt64(r.Count)
}

func (r *NodeResult) Unpack(br *cos.ByteUnpack) (err error) {
	if r.NID, err = br.ReadUint32(); err != nil {
		return
	}
	if r.Min, err = br.ReadUint32(); err != nil {
		return
	}
	if r.Max, err = br.ReadUint32(); err != nil {
		return
	}
	if r.Cksum, err = br.ReadUint32(); err != nil {
		return
	}
	r.Count, err = br.ReadInt64()
	return
}

func (r *NodeResult) String() string {
	return fmt.Sprintf("node %d: min %d, max %d, cksum %d, count %d", r.NID, r.Min, r.Max, r.Cksum, r.Count)
}
