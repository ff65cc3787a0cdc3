// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import (
	"github.com/gviegas/vision/driver"
	"github.com/gviegas/vision/media"
	"github.com/gviegas/vision/node"
)

// ImageSource is the Image.Source node kind: it has no
// inputs and uploads a Media's current frame onto a fresh
// scratch texture on every run.
type ImageSource struct {
	media media.Media
}

// NewImageSource returns an Image.Source node wrapping m.
func NewImageSource(m media.Media) *ImageSource {
	return &ImageSource{media: m}
}

func (n *ImageSource) DeclarePorts() (ins, outs []node.Port) {
	return nil, []node.Port{{Name: "out", Dir: node.Out, Type: node.ImageType}}
}

func (n *ImageSource) Init(ctx *node.Context) error { return nil }

func (n *ImageSource) Run(ctx *node.Context) error {
	tex, err := ctx.Pool().Acquire(n.media.Width(), n.media.Height(), driver.RGBA8)
	if err != nil {
		return err
	}
	if err := n.media.Upload(ctx.GPU(), tex); err != nil {
		return err
	}
	ctx.SetOutput("out", node.ImageMessage{Texture: tex, Format: driver.RGBA8})
	return nil
}

func (n *ImageSource) Release() {}
