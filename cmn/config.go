// Package cmn provides common low-level types and utilities for all hsort packages
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NVIDIA/hsort/cmn/cos"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	CompressNever  = "never"
	CompressAlways = "always"
)

const (
	DefaultNumNodes = 5
	DefaultShardLen = 1_000_000
	DefaultStride   = 1000
	DefaultTimeout  = time.Minute
	DefaultBurst    = 64
)

const maxConfigSize = cos.MiB

//
// CONFIGURATION
//

type (
	Config struct {
		NumNodes     int           `json:"num_nodes" yaml:"num_nodes"`
		ShardLen     int64         `json:"shard_len" yaml:"shard_len"`
		Stride       int64         `json:"stride" yaml:"stride"`
		Seed         int64         `json:"seed" yaml:"seed"` // 0: time-based
		Timeout      cos.Duration  `json:"timeout" yaml:"timeout"`
		ParallelSend bool          `json:"parallel_send" yaml:"parallel_send"`
		ParallelSort bool          `json:"parallel_sort" yaml:"parallel_sort"`
		Transport    TransportConf `json:"transport" yaml:"transport"`
		Metrics      MetricsConf   `json:"metrics" yaml:"metrics"`
		Tracing      TracingConf   `json:"tracing" yaml:"tracing"`
		Log          LogConf       `json:"log" yaml:"log"`
	}
	TransportConf struct {
		Compression string `json:"compression" yaml:"compression"` // enum { CompressNever, ... }
		Checksum    bool   `json:"checksum" yaml:"checksum"`       // xxhash the payloads
		Burst       int    `json:"burst" yaml:"burst"`             // pull endpoint queue depth
	}
	MetricsConf struct {
		Listen string `json:"listen" yaml:"listen"` // Prometheus listen address; empty disables
	}
	TracingConf struct {
		ExporterEndpoint   string  `json:"exporter_endpoint" yaml:"exporter_endpoint"`
		SamplerProbability float64 `json:"sampler_probability" yaml:"sampler_probability"`
		Enabled            bool    `json:"enabled" yaml:"enabled"`
		SkipVerify         bool    `json:"insecure" yaml:"insecure"`
	}
	LogConf struct {
		Dir      string `json:"dir" yaml:"dir"`
		ToStderr bool   `json:"to_stderr" yaml:"to_stderr"`
	}
)

func DefaultConfig() *Config {
	return &Config{
		NumNodes: DefaultNumNodes,
		ShardLen: DefaultShardLen,
		Stride:   DefaultStride,
		Timeout:  cos.Duration(DefaultTimeout),
		Transport: TransportConf{
			Compression: CompressNever,
			Burst:       DefaultBurst,
		},
		Tracing: TracingConf{SamplerProbability: 1.0},
	}
}

// LoadConfig reads JSON or YAML (by file extension) over the defaults;
// when the extension is ambiguous both decoders are tried.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %q", path)
	}
	if len(b) > maxConfigSize {
		return nil, fmt.Errorf("config %q is too large (%s > %s)", path,
			cos.ToSizeIEC(int64(len(b)), 0), cos.ToSizeIEC(maxConfigSize, 0))
	}
	config := DefaultConfig()
	if err := config.decode(b, strings.ToLower(filepath.Ext(path))); err != nil {
		return nil, errors.Wrapf(err, "config %q", path)
	}
	return config, nil
}

func (c *Config) decode(b []byte, ext string) error {
	if ext == ".json" || ext == ".jsonc" || ext == ".js" {
		if errj := cos.JSON.Unmarshal(b, c); errj != nil {
			if erry := yaml.Unmarshal(b, c); erry != nil {
				return fmt.Errorf("failed to parse, errs: (%v, %v)", errj, erry)
			}
		}
		return nil
	}
	if erry := yaml.Unmarshal(b, c); erry != nil {
		if errj := cos.JSON.Unmarshal(b, c); errj != nil {
			return fmt.Errorf("failed to parse, errs: (%v, %v)", erry, errj)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.NumNodes < 1 {
		return fmt.Errorf("invalid num_nodes %d (expecting >= 1)", c.NumNodes)
	}
	if c.ShardLen < 0 {
		return fmt.Errorf("invalid shard_len %d (expecting >= 0)", c.ShardLen)
	}
	if c.Stride < 1 {
		return fmt.Errorf("invalid stride %d (expecting >= 1)", c.Stride)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid negative timeout %v", c.Timeout)
	}
	switch c.Transport.Compression {
	case "":
		c.Transport.Compression = CompressNever
	case CompressNever, CompressAlways:
	default:
		return fmt.Errorf("invalid transport.compression %q (expecting %q or %q)",
			c.Transport.Compression, CompressNever, CompressAlways)
	}
	if c.Transport.Burst <= 0 {
		c.Transport.Burst = DefaultBurst
	}
	if p := c.Tracing.SamplerProbability; p < 0 || p > 1 {
		return fmt.Errorf("invalid tracing.sampler_probability %v (expecting [0, 1])", p)
	}
	return nil
}

// SeedOrNow returns the configured seed or, when zero, a time-based one.
func (c *Config) SeedOrNow() int64 {
	if c.Seed != 0 {
		return c.Seed
	}
	return time.Now().UnixNano()
}

func (c *Config) String() string {
	return fmt.Sprintf("nodes=%d, shard=%d, stride=%d, timeout=%v, compression=%s",
		c.NumNodes, c.ShardLen, c.Stride, c.Timeout, c.Transport.Compression)
}
