// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import (
	"sync"

	"github.com/gviegas/vision/node"
)

// ImageSink is the Image.Sink node kind: the pipeline's sole
// permitted sink when the last stage is an image. It reads
// its input texture back to the host on every run; the
// result is retrieved afterwards through Result, not through
// any declared output port (a sink declares none).
type ImageSink struct {
	mu   sync.Mutex
	pix  []byte
	w, h int
}

// NewImageSink returns an Image.Sink node.
func NewImageSink() *ImageSink { return &ImageSink{} }

func (n *ImageSink) DeclarePorts() (ins, outs []node.Port) {
	return []node.Port{{Name: "in", Dir: node.In, Type: node.ImageType}}, nil
}

func (n *ImageSink) Init(ctx *node.Context) error { return nil }

func (n *ImageSink) Run(ctx *node.Context) error {
	msg, err := ctx.Input("in")
	if err != nil {
		return err
	}
	im := msg.(node.ImageMessage)
	pix, err := readback(ctx, im.Texture)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.pix = pix
	n.w, n.h = im.Texture.Width(), im.Texture.Height()
	n.mu.Unlock()
	return nil
}

func (n *ImageSink) Release() {}

// Result returns the pixels read back by the most recent run,
// as a flat RGBA8 buffer, along with the frame's dimensions.
func (n *ImageSink) Result() (pix []byte, w, h int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pix, n.w, n.h
}
