// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package keypoint implements the pixel-packed wire format
// that carries a variable-length list of feature points
// through a fixed-size GPU texture: the sparse per-pixel
// encoding a detector kernel produces, the dense packed
// encoding the two-pass "find the q-th keypoint" encoder
// kernel produces from it, and the host-side decoder.
package keypoint

// MinKeypointSize is the fixed header every keypoint cell
// carries before its descriptor and extra bytes: two RGBA8
// pixels (position, then lod/orientation/score).
const MinKeypointSize = 8

// FixResolution is the denominator of the fixed-point
// sub-pixel position encoding: a 16-bit raw coordinate of v
// represents the float position v/FixResolution. 16 total
// fixed-point bits split 12.4 (4 fractional bits) cover image
// sizes up to 4096 pixels per axis at 1/16-pixel precision,
// which comfortably covers every scenario in this package's
// tests and is a conservative default for a vision pipeline
// that does not target gigapixel imagery.
const FixResolution = 16

// LogPyramidMaxScale (m) and PyramidMaxLevels (h) parameterize
// the lod byte <-> float mapping: lod = -m + (m+h)*lodByte/255
// for lodByte < 255.
const (
	LogPyramidMaxScale = 4
	PyramidMaxLevels   = 8
)

// sentinelByte fills all 4 bytes of a cell's first pixel to
// mark the end of the keypoint list: both raw x and raw y
// equal 0xFFFF.
const sentinelByte = 0xFF
