// Copyright 2024 Gustavo C. Viegas. All rights reserved.

//go:build gl

package glbackend

import (
	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/soypat/glgl/v4.6-core/glgl"

	"github.com/gviegas/vision/driver"
)

// texture wraps a glgl.Texture bound to a dedicated image
// unit, readable and writable from a compute shader.
type texture struct {
	tex    glgl.Texture
	cfg    glgl.TextureImgConfig
	format driver.PixelFmt
	w, h   int
	levels int
}

func newTexture(pf driver.PixelFmt, w, h, levels, unit int, usg driver.Usage) (*texture, error) {
	cfg := glgl.TextureImgConfig{
		Type:        glgl.Texture2D,
		Width:       w,
		Height:      h,
		TextureUnit: unit,
		ImageUnit:   uint32(unit),
		Access:      glgl.ReadOrWrite,
		MinFilter:   gl.NEAREST,
		MagFilter:   gl.NEAREST,
	}
	switch pf {
	case driver.RGBA8:
		cfg.Format = gl.RGBA
		cfg.Xtype = gl.FLOAT
		cfg.InternalFormat = gl.RGBA8
	case driver.RGBA32F:
		cfg.Format = gl.RGBA
		cfg.Xtype = gl.FLOAT
		cfg.InternalFormat = gl.RGBA32F
	}
	t, err := glgl.NewTextureFromImage[float32](cfg, nil)
	if err != nil {
		return nil, err
	}
	return &texture{tex: t, cfg: cfg, format: pf, w: w, h: h, levels: levels}, nil
}

func (t *texture) Destroy()                { t.tex.Delete() }
func (t *texture) Format() driver.PixelFmt { return t.format }
func (t *texture) Width() int              { return t.w }
func (t *texture) Height() int             { return t.h }
func (t *texture) Levels() int             { return t.levels }
