// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package softbackend

import "github.com/gviegas/vision/driver"

// texture is a host-memory-backed driver.Texture.
type texture struct {
	format driver.PixelFmt
	w, h   int
	levels int
	pix    []byte
}

func (t *texture) Destroy()              { t.pix = nil }
func (t *texture) Format() driver.PixelFmt { return t.format }
func (t *texture) Width() int            { return t.w }
func (t *texture) Height() int           { return t.h }
func (t *texture) Levels() int           { return t.levels }

// Pix exposes the texture's level-0 pixel storage directly.
// It is not part of driver.Texture: only softbackend's own
// command execution and kernels use it (through the unexported
// interface below), since a host-simulated device has no
// separate device memory to copy out of. The texture package's
// reader copies pixels out through CmdBuffer.ReadTexture.
func (t *texture) Pix() []byte { return t.pix }

// hostTexture is implemented by textures that expose their
// pixel storage directly, which softbackend's textures and
// its read-back path rely on.
type hostTexture interface {
	Pix() []byte
}

var _ hostTexture = (*texture)(nil)
