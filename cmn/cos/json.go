// Package cos provides common low-level types and utilities for all hsort packages.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import jsoniter "github.com/json-iterator/go"

// JSON decodes configs and reports strictly: unknown fields are an error.
var JSON = jsoniter.Config{
	EscapeHTML:            false,
	DisallowUnknownFields: true,
	SortMapKeys:           true,
}.Froze()
