// Package transport provides addressable in-process endpoints for intra-cluster
// communications: push/pull queues and request/reply exchanges between logical nodes.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NVIDIA/hsort/cmn"
)

const (
	CompressNever  = cmn.CompressNever
	CompressAlways = cmn.CompressAlways
)

type (
	// logical node identifier (not a process or network address)
	NodeID uint32

	// endpoint address: node + transport name (e.g. "hist", "detail", "frag")
	Addr struct {
		Trname string
		Node   NodeID
	}

	// advanced usage: additional endpoint control
	Extra struct {
		Compression string        // see CompressAlways, etc. enum
		Timeout     time.Duration // bounded wait for every blocking call; 0 (zero) - wait forever
		Burst       int           // num messages a pull endpoint queues before producers block
		Checksum    bool          // xxhash every message body
	}

	// message to transmit
	Msg struct {
		Body   []byte
		SID    NodeID // sender
		Opcode uint8  // custom opcode
	}

	// server side of a request/reply exchange (see Accept)
	Request struct {
		Msg
		net   *Network
		reply chan []byte
		to    Addr
	}

	// stream stats
	Stats struct {
		Num            atomic.Int64 // number of received messages
		Size           atomic.Int64 // message body size (does not include transport headers)
		CompressedSize atomic.Int64 // bytes on the wire, headers included
	}

	// Network is a set of endpoints with shared options; endpoints are created on first use
	// by either side so a producer never races its consumer's bind.
	Network struct {
		endpoints map[Addr]*endpoint
		name      string
		extra     Extra
		mu        sync.Mutex
	}
	endpoint struct {
		ch    chan *frame
		stats Stats
		addr  Addr
	}
	frame struct {
		reply chan []byte // nil for push
		wire  []byte      // packed header + (compressed) body
	}
)

func (a Addr) String() string   { return fmt.Sprintf("n%d/%s", a.Node, a.Trname) }
func (id NodeID) String() string { return fmt.Sprintf("n%d", id) }

func (extra *Extra) Compressed() bool { return extra.Compression == CompressAlways }

func NewNetwork(name string, extra *Extra) *Network {
	n := &Network{name: name, endpoints: make(map[Addr]*endpoint, 16)}
	if extra != nil {
		n.extra = *extra
	}
	if n.extra.Burst <= 0 {
		n.extra.Burst = cmn.DefaultBurst
	}
	if n.extra.Compression == "" {
		n.extra.Compression = CompressNever
	}
	return n
}

func (n *Network) String() string { return "transport[" + n.name + "]" }

//
// push/pull
//

// Push queues msg at the pull endpoint `to`; blocks only when the endpoint's queue is full.
func (n *Network) Push(ctx context.Context, to Addr, msg *Msg) error {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()
	return n.send(ctx, "push", to, &frame{wire: n.pack(msg)})
}

// Pull blocks until the next message arrives at `at`.
func (n *Network) Pull(ctx context.Context, at Addr) (*Msg, error) {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()
	ep := n.endpoint(at)
	fr, err := n.recv(ctx, "pull", ep)
	if err != nil {
		return nil, err
	}
	if fr.reply != nil {
		return nil, fmt.Errorf("%s: %s: unexpected request on a pull endpoint", n, at)
	}
	return n.unpack(ep, fr.wire)
}

//
// request/reply
//

// Request sends msg to the server endpoint `to` and blocks for exactly one reply.
func (n *Network) Request(ctx context.Context, to Addr, msg *Msg) (*Msg, error) {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()
	fr := &frame{wire: n.pack(msg), reply: make(chan []byte, 1)}
	if err := n.send(ctx, "request", to, fr); err != nil {
		return nil, err
	}
	select {
	case wire := <-fr.reply:
		return n.unpack(nil, wire)
	case <-ctx.Done():
		return nil, n.ctxErr(ctx, "request", to)
	}
}

// Accept blocks until the next request arrives at `at`; the caller must Reply.
func (n *Network) Accept(ctx context.Context, at Addr) (*Request, error) {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()
	ep := n.endpoint(at)
	fr, err := n.recv(ctx, "accept", ep)
	if err != nil {
		return nil, err
	}
	if fr.reply == nil {
		return nil, fmt.Errorf("%s: %s: unexpected push on a request endpoint", n, at)
	}
	msg, err := n.unpack(ep, fr.wire)
	if err != nil {
		return nil, err
	}
	return &Request{Msg: *msg, net: n, reply: fr.reply, to: at}, nil
}

// Reply never blocks: every request has room for exactly one reply.
func (r *Request) Reply(msg *Msg) error {
	select {
	case r.reply <- r.net.pack(msg):
		return nil
	default:
		return fmt.Errorf("%s: %s: duplicate reply to n%d", r.net, r.to, r.SID)
	}
}

//
// stats
//

// GetStats returns a snapshot of per-endpoint receive stats.
func (n *Network) GetStats() map[Addr]*Stats {
	n.mu.Lock()
	out := make(map[Addr]*Stats, len(n.endpoints))
	for addr, ep := range n.endpoints {
		s := &Stats{}
		s.Num.Store(ep.stats.Num.Load())
		s.Size.Store(ep.stats.Size.Load())
		s.CompressedSize.Store(ep.stats.CompressedSize.Load())
		out[addr] = s
	}
	n.mu.Unlock()
	return out
}

// Totals sums up the stats of all endpoints.
func (n *Network) Totals() (num, size, wire int64) {
	for _, s := range n.GetStats() {
		num += s.Num.Load()
		size += s.Size.Load()
		wire += s.CompressedSize.Load()
	}
	return
}
