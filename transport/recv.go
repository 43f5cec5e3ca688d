// Package transport provides addressable in-process endpoints for intra-cluster
// communications: push/pull queues and request/reply exchanges between logical nodes.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"bytes"
	"context"
	"io"

	"github.com/NVIDIA/hsort/cmn/cos"

	"github.com/pierrec/lz4/v4"
)

func (n *Network) recv(ctx context.Context, op string, ep *endpoint) (*frame, error) {
	select {
	case fr := <-ep.ch:
		return fr, nil
	case <-ctx.Done():
		return nil, n.ctxErr(ctx, op, ep.addr)
	}
}

// unpack validates the header, decompresses, and checks the body checksum;
// ep is nil for replies (not counted)
func (n *Network) unpack(ep *endpoint, wire []byte) (*Msg, error) {
	var (
		msg   = &Msg{}
		where = "reply"
	)
	if ep != nil {
		where = ep.addr.String()
	}
	if len(wire) < sizeHdr {
		return nil, n.errHdr(where, cos.ErrBufferUnderrun)
	}
	br := cos.NewUnpacker(wire[:sizeHdr])
	opcode, _ := br.ReadByte()
	sid, _ := br.ReadUint32()
	flags, _ := br.ReadByte()
	size, _ := br.ReadUint32()
	cksum, err := br.ReadUint64()
	if err != nil {
		return nil, n.errHdr(where, err)
	}
	msg.Opcode, msg.SID = opcode, NodeID(sid)

	body := wire[sizeHdr:]
	if flags&flagCompressed != 0 {
		raw := make([]byte, size)
		zr := lz4.NewReader(bytes.NewReader(body))
		if _, err := io.ReadFull(zr, raw); err != nil {
			return nil, n.errHdr(where, err)
		}
		body = raw
	}
	if len(body) != int(size) {
		return nil, &ErrBadSize{where: where, expected: int(size), actual: len(body)}
	}
	if flags&flagChecksum != 0 {
		if actual := cos.ChecksumB64(body); actual != cksum {
			return nil, cos.NewErrDataCksum(cksum, actual, n.String()+": "+where)
		}
	}
	msg.Body = body
	if ep != nil {
		ep.stats.Num.Add(1)
		ep.stats.Size.Add(int64(size))
		ep.stats.CompressedSize.Add(int64(len(wire)))
	}
	return msg, nil
}
