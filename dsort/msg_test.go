// Package dsort implements histogram-driven distributed sort: coordinator-side partition
// resolution over per-source histograms, and the source and destination node roles.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package dsort

import (
	"encoding/binary"

	"github.com/NVIDIA/hsort/hist"
	"github.com/NVIDIA/hsort/ksort"
	"github.com/NVIDIA/hsort/transport"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Messages", func() {
	It("should lay out fixed-size records bit-exactly", func() {
		req := &DetailReq{First: 1, Last: 2, SID: 3, DID: 4, Final: true}
		msg := encode(CoordID, OpDetailRequest, req)
		Expect(msg.Body).To(HaveLen(sizeDetailReq))
		Expect(binary.BigEndian.Uint64(msg.Body[0:])).To(Equal(uint64(1)))
		Expect(binary.BigEndian.Uint64(msg.Body[8:])).To(Equal(uint64(2)))
		Expect(binary.BigEndian.Uint32(msg.Body[16:])).To(Equal(uint32(3)))
		Expect(binary.BigEndian.Uint32(msg.Body[20:])).To(Equal(uint32(4)))
		Expect(msg.Body[24]).To(Equal(byte(1)))

		res := &NodeResult{NID: 7, Min: 1, Max: 9, Cksum: 5, Count: 100}
		Expect(encode(DstID(3, 0), OpNodeResult, res).Body).To(HaveLen(sizeNodeResult))
	})

	It("should carry histograms and fragments", func() {
		keys := ksort.Seq(10, 5, 25)
		h := hist.Build(2, keys, 0, 25, 10)
		in := &HistogramMsg{Histogram: *h, Length: 25, Cksum: ksort.Checksum(keys)}
		out := &HistogramMsg{}
		Expect(decode(encode(SrcID(2), OpHistogram, in), OpHistogram, out)).To(Succeed())
		Expect(out).To(Equal(in))

		frag := &Fragment{Keys: keys[5:15], First: 5, SID: 2, DID: 1}
		got := &Fragment{}
		Expect(decode(encode(SrcID(2), OpFragment, frag), OpFragment, got)).To(Succeed())
		Expect(got).To(Equal(frag))

		empty := &Fragment{Keys: []uint32{}, SID: 0, DID: 0}
		got = &Fragment{}
		Expect(decode(encode(SrcID(0), OpFragment, empty), OpFragment, got)).To(Succeed())
		Expect(got.Keys).To(BeEmpty())
	})

	Describe("protocol violations", func() {
		var good *transport.Msg

		BeforeEach(func() {
			batch := &RangeBatch{Ranges: []Range{{SID: 0, DID: 0, First: 0, Last: 9}, {SID: 0, DID: 1, First: 10, Last: 9}}}
			good = encode(CoordID, OpRangeBatch, batch)
		})

		It("should reject an unexpected opcode", func() {
			err := decode(good, OpHistogram, &HistogramMsg{})
			Expect(IsErrProtocol(err)).To(BeTrue())
		})

		It("should reject a truncated body", func() {
			good.Body = good.Body[:len(good.Body)-1]
			err := decode(good, OpRangeBatch, &RangeBatch{})
			Expect(IsErrProtocol(err)).To(BeTrue())
		})

		It("should reject trailing bytes", func() {
			good.Body = append(good.Body, 0)
			err := decode(good, OpRangeBatch, &RangeBatch{})
			Expect(IsErrProtocol(err)).To(BeTrue())
		})

		It("should reject a count that exceeds the body", func() {
			binary.BigEndian.PutUint32(good.Body, 1<<30)
			err := decode(good, OpRangeBatch, &RangeBatch{})
			Expect(IsErrProtocol(err)).To(BeTrue())
		})

		It("should validate acks", func() {
			Expect(checkAck(ackMsg(DstID(2, 1)))).To(Succeed())
			Expect(IsErrProtocol(checkAck(&transport.Msg{Opcode: OpAck, Body: []byte{0}}))).To(BeTrue())
			Expect(IsErrProtocol(checkAck(&transport.Msg{Opcode: OpAck}))).To(BeTrue())
			Expect(IsErrProtocol(checkAck(&transport.Msg{Opcode: OpFragment, Body: []byte{ackByte}}))).To(BeTrue())
		})
	})

	It("should number nodes coordinator first, then sources, then destinations", func() {
		Expect(CoordID).To(Equal(transport.NodeID(0)))
		Expect(SrcID(0)).To(Equal(transport.NodeID(1)))
		Expect(SrcID(4)).To(Equal(transport.NodeID(5)))
		Expect(DstID(5, 0)).To(Equal(transport.NodeID(6)))
		Expect(DstID(5, 4)).To(Equal(transport.NodeID(10)))
	})
})
