// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package media

import "github.com/gviegas/vision/driver"

// Synthetic is a Media that generates a procedural RGBA8
// frame on construction, for scenario-driven tests that need
// a precise pixel layout rather than a decoded file (a solid
// fill, a single bright corner against a flat background).
type Synthetic struct {
	w, h int
	pix  []byte
}

// NewSolid returns a Synthetic whose every pixel is color.
func NewSolid(w, h int, color [4]byte) *Synthetic {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		copy(pix[i:i+4], color[:])
	}
	return &Synthetic{w: w, h: h, pix: pix}
}

// NewSingleCorner returns a Synthetic that is background
// everywhere except a single brighter pixel at (x, y),
// intended to drive a corner detector's threshold.
func NewSingleCorner(w, h, x, y int, background, corner byte) *Synthetic {
	s := NewSolid(w, h, [4]byte{background, background, background, 255})
	off := (y*w + x) * 4
	s.pix[off+0] = corner
	s.pix[off+1] = corner
	s.pix[off+2] = corner
	s.pix[off+3] = 255
	return s
}

func (m *Synthetic) Width() int  { return m.w }
func (m *Synthetic) Height() int { return m.h }

func (m *Synthetic) Upload(gpu driver.GPU, dst driver.Texture) error {
	return upload(gpu, m.pix, dst)
}
