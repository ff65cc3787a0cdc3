// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import (
	"sync"

	"github.com/gviegas/vision/driver"
	"github.com/gviegas/vision/node"
)

// ImagePortalSink is the Image.Portal.Sink node kind: it
// caches the last image it received, on the host, for a
// Portal.Source in another pipeline to pick up. It never
// hands out its own device texture, since the producing
// pipeline may release that texture the moment this node's
// Run returns; the cache is a plain byte copy instead.
type ImagePortalSink struct {
	mu       sync.Mutex
	pix      []byte
	w, h     int
	produced bool
}

// NewImagePortalSink returns an Image.Portal.Sink node.
func NewImagePortalSink() *ImagePortalSink { return &ImagePortalSink{} }

func (n *ImagePortalSink) DeclarePorts() (ins, outs []node.Port) {
	return []node.Port{{Name: "in", Dir: node.In, Type: node.ImageType}}, nil
}

func (n *ImagePortalSink) Init(ctx *node.Context) error { return nil }

func (n *ImagePortalSink) Run(ctx *node.Context) error {
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
	n.pix, n.w, n.h, n.produced = pix, im.Texture.Width(), im.Texture.Height(), true
	n.mu.Unlock()
	return nil
}

func (n *ImagePortalSink) Release() {}

// Snapshot returns the sink's most recently cached frame, and
// whether it has produced one yet.
func (n *ImagePortalSink) Snapshot() (pix []byte, w, h int, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pix, n.w, n.h, n.produced
}

// ImagePortalSource is the Image.Portal.Source node kind: a
// weak, lookup-only reference to an ImagePortalSink, possibly
// owned by a different pipeline. It fails with an
// IllegalOperationError-class error (via the plain error it
// returns, which the owning pipeline wraps) if sink has not
// produced a frame yet.
type ImagePortalSource struct {
	sink *ImagePortalSink
}

// NewImagePortalSource returns an Image.Portal.Source node
// that republishes sink's most recently cached frame.
func NewImagePortalSource(sink *ImagePortalSink) *ImagePortalSource {
	return &ImagePortalSource{sink: sink}
}

func (n *ImagePortalSource) DeclarePorts() (ins, outs []node.Port) {
	return nil, []node.Port{{Name: "out", Dir: node.Out, Type: node.ImageType}}
}

func (n *ImagePortalSource) Init(ctx *node.Context) error { return nil }

func (n *ImagePortalSource) Run(ctx *node.Context) error {
	pix, w, h, ok := n.sink.Snapshot()
	if !ok {
		return errPortalNotProduced
	}
	tex, err := ctx.Pool().Acquire(w, h, driver.RGBA8)
	if err != nil {
		return err
	}
	if err := upload(ctx.GPU(), tex, pix); err != nil {
		return err
	}
	ctx.SetOutput("out", node.ImageMessage{Texture: tex, Format: driver.RGBA8})
	return nil
}

func (n *ImagePortalSource) Release() {}
