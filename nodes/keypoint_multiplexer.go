// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import "github.com/gviegas/vision/node"

// Multiplexer is the Keypoint.Multiplexer node kind: a
// build-time two-way switch between two upstream keypoint
// lists. The pipeline's topology (and therefore which input
// feeds the output) is fixed at Init, so selection is a
// construction-time config rather than a per-run decision.
type Multiplexer struct {
	selectB bool
}

// NewMultiplexer returns a Keypoint.Multiplexer node that
// republishes input "a" on every run, or "b" if selectB.
func NewMultiplexer(selectB bool) *Multiplexer { return &Multiplexer{selectB: selectB} }

func (n *Multiplexer) DeclarePorts() (ins, outs []node.Port) {
	ins = []node.Port{
		{Name: "a", Dir: node.In, Type: node.KeypointType},
		{Name: "b", Dir: node.In, Type: node.KeypointType},
	}
	return ins, []node.Port{{Name: "keypoints", Dir: node.Out, Type: node.KeypointType}}
}

func (n *Multiplexer) Init(ctx *node.Context) error { return nil }
func (n *Multiplexer) Release()                     {}

func (n *Multiplexer) Run(ctx *node.Context) error {
	port := "a"
	if n.selectB {
		port = "b"
	}
	// Re-encode into a texture of this node's own rather than
	// republishing the selected input's message verbatim: the
	// scheduler releases a node's outputs back to the pool once
	// its own consumers are done with them, and that node's
	// output must therefore own a texture no other node also
	// owns.
	kps, km, err := decodeInput(ctx, port)
	if err != nil {
		return err
	}
	tex, err := encodeAndUpload(ctx, km.EncoderLength, km.DescriptorSize, km.ExtraSize, kps)
	if err != nil {
		return err
	}
	ctx.SetOutput("keypoints", node.KeypointMessage{
		EncodedKeypoints: tex,
		DescriptorSize:   km.DescriptorSize,
		ExtraSize:        km.ExtraSize,
		EncoderLength:    km.EncoderLength,
	})
	return nil
}
