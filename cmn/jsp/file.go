// Package jsp (JSON persistence) provides utilities to store and load arbitrary
// JSON-encoded structures with optional checksumming and compression.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package jsp

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/NVIDIA/hsort/cmn/cos"
	"github.com/NVIDIA/hsort/cmn/debug"
	"github.com/NVIDIA/hsort/cmn/mono"
	"github.com/NVIDIA/hsort/cmn/nlog"
)

const (
	signature = "hsort" // file signature
	//                              0 ---------------- 63  64 --------------- 127
	prefLen = 2 * cos.SizeofI64 // [ signature | jsp ver |      bit flags      ]
	Version = 1
)

//////////////////
// main methods //
//////////////////

// Save writes v to a temp file in the same directory and renames it into place.
func Save(fpath string, v any, opts Options) (err error) {
	var (
		file *os.File
		tmp  = fpath + ".tmp." + strconv.FormatInt(mono.NanoTime(), 36)
	)
	if dir := filepath.Dir(fpath); dir != "" {
		if err = os.MkdirAll(dir, cos.PermRWXRX); err != nil {
			return
		}
	}
	if file, err = os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, cos.PermRWR); err != nil {
		return
	}
	defer func() {
		if err != nil {
			errRm := os.Remove(tmp)
			debug.AssertNoErr(errRm)
		}
	}()
	if err = Encode(file, v, opts); err != nil {
		file.Close()
		return
	}
	if err = file.Close(); err != nil {
		return
	}
	err = os.Rename(tmp, fpath)
	return
}

func Load(fpath string, v any, opts Options) error {
	file, err := os.Open(fpath)
	if err != nil {
		return err
	}
	defer file.Close()
	err = Decode(file, v, opts, fpath)
	if err != nil && cos.IsErrBadCksum(err) {
		nlog.Errorf("bad checksum: %s: %v", fpath, err)
	}
	return err
}
