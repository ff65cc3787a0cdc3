// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import "github.com/gviegas/vision/node"

// SubpixelRefiner is the Keypoint.SubpixelRefiner node kind:
// it nudges each keypoint's integer-pixel position towards
// the intensity-weighted centroid of a small window around
// it, giving a continuous, sub-pixel-accurate estimate. Score,
// lod, orientation and descriptor/extra bytes pass through
// unchanged.
type SubpixelRefiner struct{}

// NewSubpixelRefiner returns a Keypoint.SubpixelRefiner node.
func NewSubpixelRefiner() *SubpixelRefiner { return &SubpixelRefiner{} }

const subpixelWindow = 1 // radius, in pixels

func (n *SubpixelRefiner) DeclarePorts() (ins, outs []node.Port) {
	ins = []node.Port{
		{Name: "image", Dir: node.In, Type: node.ImageType},
		{Name: "keypoints", Dir: node.In, Type: node.KeypointType},
	}
	return ins, []node.Port{{Name: "keypoints", Dir: node.Out, Type: node.KeypointType}}
}

func (n *SubpixelRefiner) Init(ctx *node.Context) error { return nil }
func (n *SubpixelRefiner) Release()                     {}

func (n *SubpixelRefiner) Run(ctx *node.Context) error {
	imsg, err := ctx.Input("image")
	if err != nil {
		return err
	}
	im := imsg.(node.ImageMessage)
	pix, err := readback(ctx, im.Texture)
	if err != nil {
		return err
	}
	w, h := im.Texture.Width(), im.Texture.Height()

	kps, km, err := decodeInput(ctx, "keypoints")
	if err != nil {
		return err
	}
	for i := range kps {
		kps[i].X, kps[i].Y = refineCentroid(pix, w, h, kps[i].X, kps[i].Y)
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

func refineCentroid(pix []byte, w, h int, x, y float32) (nx, ny float32) {
	cx, cy := int(x+0.5), int(y+0.5)
	x0, x1 := cx-subpixelWindow, cx+subpixelWindow
	y0, y1 := cy-subpixelWindow, cy+subpixelWindow
	if x0 < 0 || y0 < 0 || x1 >= w || y1 >= h {
		return x, y
	}
	var sumW, sumX, sumY float32
	for yy := y0; yy <= y1; yy++ {
		for xx := x0; xx <= x1; xx++ {
			weight := float32(grey(pix, w, xx, yy))
			sumW += weight
			sumX += weight * float32(xx)
			sumY += weight * float32(yy)
		}
	}
	if sumW == 0 {
		return x, y
	}
	return sumX / sumW, sumY / sumW
}
