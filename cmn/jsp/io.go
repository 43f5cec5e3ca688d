// Package jsp (JSON persistence) provides utilities to store and load arbitrary
// JSON-encoded structures with optional checksumming and compression.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package jsp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash"
	"io"

	"github.com/NVIDIA/hsort/cmn/cos"

	"github.com/OneOfOne/xxhash"
	jsoniter "github.com/json-iterator/go"
	"github.com/pierrec/lz4/v4"
)

const sizeXXHash64 = cos.SizeofI64

func EncodeBuf(v any, opts Options) []byte {
	buf := &bytes.Buffer{}
	err := Encode(buf, v, opts)
	cos.AssertNoErr(err)
	return buf.Bytes()
}

func Encode(writer io.Writer, v any, opts Options) (err error) {
	var (
		zw      *lz4.Writer
		encoder *jsoniter.Encoder
		h       hash.Hash64
		w       io.Writer
		prefix  [prefLen]byte
		buf     = &bytes.Buffer{}
	)
	w = buf
	if opts.Checksum {
		h = xxhash.New64()
		w = io.MultiWriter(h, buf)
	}
	if opts.Compress {
		zw = lz4.NewWriter(w)
		w = zw
	}
	encoder = cos.JSON.NewEncoder(w)
	if opts.Indent {
		encoder.SetIndent("", "  ")
	}
	if err = encoder.Encode(v); err != nil {
		return
	}
	if opts.Compress {
		if err = zw.Close(); err != nil {
			return
		}
	}
	if opts.Signature {
		// 1st 64-bit word
		copy(prefix[:], signature)
		l := len(signature)
		cos.Assert(l < prefLen/2)
		prefix[l] = Version

		// 2nd 64-bit word
		var packingInfo uint64
		if opts.Compress {
			packingInfo |= 1 << 0
		}
		if opts.Checksum {
			packingInfo |= 1 << 1
		}
		binary.BigEndian.PutUint64(prefix[cos.SizeofI64:], packingInfo)
		if _, err = writer.Write(prefix[:]); err != nil {
			return
		}
	}
	if opts.Checksum {
		var hsum [sizeXXHash64]byte
		binary.BigEndian.PutUint64(hsum[:], h.Sum64())
		if _, err = writer.Write(hsum[:]); err != nil {
			return
		}
	}
	_, err = writer.Write(buf.Bytes())
	return
}

// Decode reads what Encode wrote; with opts.Signature the remaining options
// are taken from the prefix.
func Decode(reader io.Reader, v any, opts Options, tag string) error {
	var (
		hsum   [sizeXXHash64]byte
		prefix [prefLen]byte
		r      = reader
	)
	if opts.Signature {
		if _, err := io.ReadFull(reader, prefix[:]); err != nil {
			return fmt.Errorf("failed to read %q prefix: %w", tag, err)
		}
		l := len(signature)
		if signature != string(prefix[:l]) {
			return fmt.Errorf("bad signature %q: %v", tag, prefix[:l])
		}
		if Version != prefix[l] {
			return fmt.Errorf("unsupported version %q: %v", tag, prefix[l])
		}
		packingInfo := binary.BigEndian.Uint64(prefix[cos.SizeofI64:])
		opts.Compress = packingInfo&(1<<0) != 0
		opts.Checksum = packingInfo&(1<<1) != 0
	}
	if opts.Checksum {
		if _, err := io.ReadFull(reader, hsum[:]); err != nil {
			return fmt.Errorf("failed to read %q checksum: %w", tag, err)
		}
		body, err := io.ReadAll(reader)
		if err != nil {
			return err
		}
		expected, actual := binary.BigEndian.Uint64(hsum[:]), xxhash.Checksum64(body)
		if expected != actual {
			return cos.NewErrDataCksum(expected, actual, tag)
		}
		r = bytes.NewReader(body)
	}
	if opts.Compress {
		r = lz4.NewReader(r)
	}
	return cos.JSON.NewDecoder(r).Decode(v)
}
