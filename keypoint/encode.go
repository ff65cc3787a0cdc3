// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package keypoint

import (
	"errors"
	"math"
	"sort"
)

// EncodeSparse writes the sparse raw encoding of kps into pix,
// a zeroed RGBA8 buffer of w*h*4 bytes. Pixels not occupied by
// a keypoint are left at their zero value (R=0 means "not a
// keypoint"), which is the required default.
//
// kps need not be sorted; EncodeSparse sorts a copy by
// row-major pixel order to compute each keypoint's B-channel
// skip-offset hint.
func EncodeSparse(pix []byte, w, h int, kps []SparseKeypoint) error {
	if len(pix) != w*h*4 {
		return errors.New("keypoint: pix size does not match w*h*4")
	}
	sorted := append([]SparseKeypoint(nil), kps...)
	sort.Slice(sorted, func(i, j int) bool {
		return flatIndex(sorted[i], w) < flatIndex(sorted[j], w)
	})

	for i, kp := range sorted {
		if kp.X < 0 || kp.X >= w || kp.Y < 0 || kp.Y >= h {
			return errors.New("keypoint: sparse keypoint out of bounds")
		}
		if kp.Score == 0 {
			return errors.New("keypoint: sparse keypoint score must be nonzero")
		}
		skip := 0
		if i > 0 {
			skip = flatIndex(kp, w) - flatIndex(sorted[i-1], w) - 1
		}
		b := float64(skip) / 255
		if b > 1 {
			b = 1
		}

		off := (kp.Y*w + kp.X) * 4
		pix[off+0] = kp.Score
		pix[off+1] = kp.Intensity
		pix[off+2] = byte(math.Round(b * 255))
		pix[off+3] = kp.Scale
	}
	return nil
}

func flatIndex(kp SparseKeypoint, w int) int { return kp.Y*w + kp.X }

// writeCell writes a single keypoint (or, if kp is nil, the
// null sentinel) into pix at the given cell index. cellSize is
// in pixels; pix must have room for at least (cell+1)*cellSize
// pixels.
func writeCell(pix []byte, cell, cellSize int, kp *Keypoint, descriptorSize, extraSize int) {
	off := cell * cellSize * 4
	if kp == nil {
		for i := 0; i < 4; i++ {
			pix[off+i] = sentinelByte
		}
		return
	}

	xRaw := clampUint16(kp.X * FixResolution)
	yRaw := clampUint16(kp.Y * FixResolution)
	pix[off+0] = byte(xRaw)
	pix[off+1] = byte(xRaw >> 8)
	pix[off+2] = byte(yRaw)
	pix[off+3] = byte(yRaw >> 8)

	pix[off+4] = lodToByte(kp.LOD)
	pix[off+5] = orientationToByte(kp.Orientation)
	pix[off+6] = byte(kp.Score)
	pix[off+7] = byte(kp.Score >> 8)

	rest := pix[off+8 : off+cellSize*4]
	n := copy(rest, kp.Descriptor[:min(len(kp.Descriptor), descriptorSize)])
	copy(rest[n:], kp.Extra[:min(len(kp.Extra), extraSize)])
}

func clampUint16(v float32) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

// EncodeKeypoints packs kps directly into the dense format,
// one cell per keypoint in the order given, followed by a
// single null-sentinel cell if room remains. It returns an
// error if kps does not fit within the texture's capacity.
//
// This is the construction path used when a keypoint list is
// already materialized on the host (e.g. a Keypoint.Buffer or
// Keypoint.Mixer node re-packing a processed list for a
// downstream Portal), as opposed to EncodeDense's simulation
// of the GPU two-pass scan over a detector's sparse output.
func EncodeKeypoints(encoderLength, descriptorSize, extraSize int, kps []Keypoint) ([]byte, error) {
	cellSize := CellSize(descriptorSize, extraSize)
	capacity := Capacity(encoderLength, descriptorSize, extraSize)
	if len(kps) > capacity {
		return nil, errors.New("keypoint: keypoint list exceeds texture capacity")
	}
	pix := make([]byte, encoderLength*encoderLength*4)
	for i := range kps {
		writeCell(pix, i, cellSize, &kps[i], descriptorSize, extraSize)
	}
	if len(kps) < capacity {
		writeCell(pix, len(kps), cellSize, nil, descriptorSize, extraSize)
	}
	return pix, nil
}

// DefaultTileSize returns the largest power of two, no
// greater than 64, that evenly divides encoderLength*encoderLength
// (the total q-index space EncodeDense must tile over). It is
// a convenience default; callers needing a specific tiling
// granularity should pass their own tileSize to EncodeDense.
func DefaultTileSize(encoderLength int) int {
	total := encoderLength * encoderLength
	for t := 64; t > 1; t >>= 1 {
		if total%t == 0 {
			return t
		}
	}
	return 1
}

// EncodeDense simulates the GPU encoder kernel's tile
// tileIndex (of tileCount total tiles, each tileSize q-values
// wide) against the sparse raw encoding in sparse (a w*h*4
// RGBA8 buffer), writing the resulting keypoint cells into
// dense (an encoderLength x encoderLength RGBA8 buffer already
// allocated by the caller). encoderLength*encoderLength must
// be divisible by tileSize.
//
// descriptor, if non-nil, is consulted for each keypoint found
// in this tile to supply its descriptor/extra bytes, keyed by
// the keypoint's integer pixel position; it stands in for a
// separate descriptor-producing kernel's output texture.
func EncodeDense(dense []byte, encoderLength int, sparse []byte, w, h int, tileIndex, tileCount, tileSize int, descriptorSize, extraSize int, descriptor func(x, y int) (desc, extra []byte)) error {
	cellSize := CellSize(descriptorSize, extraSize)
	total := encoderLength * encoderLength
	if total%tileSize != 0 {
		return errors.New("keypoint: tileSize does not divide encoderLength^2")
	}
	if len(dense) != total*4 {
		return errors.New("keypoint: dense buffer size mismatch")
	}
	if len(sparse) != w*h*4 {
		return errors.New("keypoint: sparse buffer size mismatch")
	}
	if tileIndex < 0 || tileIndex >= tileCount {
		return errors.New("keypoint: tileIndex out of range")
	}

	qStart := tileIndex * tileSize
	qEnd := qStart + tileSize
	if qEnd > total/cellSize {
		qEnd = total / cellSize
	}

	for q := qStart; q < qEnd; q++ {
		kp, ok := nthSparseKeypoint(sparse, w, h, q)
		if !ok {
			writeCell(dense, q, cellSize, nil, descriptorSize, extraSize)
			continue
		}
		full := Keypoint{
			X:     float32(kp.X),
			Y:     float32(kp.Y),
			LOD:   byteToLOD(kp.Scale),
			Score: uint16(kp.Score) * 257,
		}
		if descriptor != nil {
			full.Descriptor, full.Extra = descriptor(kp.X, kp.Y)
		}
		writeCell(dense, q, cellSize, &full, descriptorSize, extraSize)
	}
	return nil
}

// nthSparseKeypoint counts keypoints in row-major order across
// the sparse image, returning the q-th one (0-indexed). A
// linear scan is sufficient for a host-side simulation; the
// real GPU kernel additionally consults each pixel's B-channel
// skip offset to shorten the scan, which is a performance
// optimization this implementation does not need to replicate
// for correctness.
func nthSparseKeypoint(sparse []byte, w, h, q int) (SparseKeypoint, bool) {
	var count int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := (y*w + x) * 4
			if sparse[off+0] == 0 {
				continue
			}
			if count == q {
				return SparseKeypoint{
					X: x, Y: y,
					Score:     sparse[off+0],
					Intensity: sparse[off+1],
					Scale:     sparse[off+3],
				}, true
			}
			count++
		}
	}
	return SparseKeypoint{}, false
}
