// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import "github.com/gviegas/vision/node"

// Transformer is the Keypoint.Transformer node kind: it
// applies a 2x2 linear transform to every keypoint's (x, y)
// position, leaving score, lod, orientation and descriptor/
// extra bytes untouched. The transform itself arrives as a
// Matrix2DMessage, typically produced upstream by a geometric
// estimator.
type Transformer struct{}

// NewTransformer returns a Keypoint.Transformer node.
func NewTransformer() *Transformer { return &Transformer{} }

func (n *Transformer) DeclarePorts() (ins, outs []node.Port) {
	ins = []node.Port{
		{Name: "keypoints", Dir: node.In, Type: node.KeypointType},
		{Name: "transform", Dir: node.In, Type: node.Matrix2DType},
	}
	return ins, []node.Port{{Name: "keypoints", Dir: node.Out, Type: node.KeypointType}}
}

func (n *Transformer) Init(ctx *node.Context) error { return nil }
func (n *Transformer) Release()                     {}

func (n *Transformer) Run(ctx *node.Context) error {
	tm, err := ctx.Input("transform")
	if err != nil {
		return err
	}
	m := tm.(node.Matrix2DMessage).M

	kps, km, err := decodeInput(ctx, "keypoints")
	if err != nil {
		return err
	}
	for i := range kps {
		x, y := kps[i].X, kps[i].Y
		kps[i].X = m[0][0]*x + m[1][0]*y
		kps[i].Y = m[0][1]*x + m[1][1]*y
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
