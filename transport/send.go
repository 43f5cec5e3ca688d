// Package transport provides addressable in-process endpoints for intra-cluster
// communications: push/pull queues and request/reply exchanges between logical nodes.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"bytes"
	"context"

	"github.com/NVIDIA/hsort/cmn/cos"
	"github.com/NVIDIA/hsort/cmn/debug"

	"github.com/pierrec/lz4/v4"
)

// message header:
// [ opcode u8 | sender u32 | flags u8 | body size u32 | xxhash u64 ]
const (
	sizeHdr = 1 + cos.SizeofI32 + 1 + cos.SizeofI32 + cos.SizeofI64

	flagCompressed = 1 << 0
	flagChecksum   = 1 << 1
)

func (n *Network) endpoint(addr Addr) *endpoint {
	n.mu.Lock()
	ep, ok := n.endpoints[addr]
	if !ok {
		ep = &endpoint{addr: addr, ch: make(chan *frame, n.extra.Burst)}
		n.endpoints[addr] = ep
	}
	n.mu.Unlock()
	return ep
}

func (n *Network) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if n.extra.Timeout > 0 {
		return context.WithTimeout(ctx, n.extra.Timeout)
	}
	return ctx, func() {}
}

func (n *Network) send(ctx context.Context, op string, to Addr, fr *frame) error {
	ep := n.endpoint(to)
	select {
	case ep.ch <- fr:
		return nil
	case <-ctx.Done():
		return n.ctxErr(ctx, op, to)
	}
}

func (n *Network) pack(msg *Msg) []byte {
	var (
		flags byte
		cksum uint64
		body  = msg.Body
	)
	if n.extra.Checksum {
		flags |= flagChecksum
		cksum = cos.ChecksumB64(msg.Body)
	}
	if n.extra.Compressed() && len(msg.Body) > 0 {
		flags |= flagCompressed
		body = compress(msg.Body)
	}
	bp := cos.NewPacker(sizeHdr+len(body))
	bp.WriteByte(msg.Opcode)
	bp.WriteUint32(uint32(msg.SID))
	bp.WriteByte(flags)
	bp.WriteUint32(uint32(len(msg.Body)))
	bp.WriteUint64(cksum)
	wire := bp.Bytes()
	wire = wire[:sizeHdr+len(body)]
	copy(wire[sizeHdr:], body)
	return wire
}

func compress(b []byte) []byte {
	var (
		buf = bytes.NewBuffer(make([]byte, 0, len(b)/2+64))
		zw  = lz4.NewWriter(buf)
	)
	_, err := zw.Write(b)
	debug.AssertNoErr(err)
	err = zw.Close()
	debug.AssertNoErr(err)
	return buf.Bytes()
}
