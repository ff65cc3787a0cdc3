// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import (
	"github.com/gviegas/vision/node"
)

// DescriptorConfig holds the fixed byte length of the binary
// descriptor an ORB node attaches to each keypoint.
type DescriptorConfig struct {
	Size int
}

// orbSamplePattern is a small, fixed set of pixel offsets
// around a keypoint, each pair defining one bit of the binary
// descriptor: bit i is set if the first pixel of pair i is
// brighter than the second. A real ORB uses a much larger,
// orientation-steered, trained sampling pattern; this package
// only needs a deterministic, reproducible binary test per
// bit, since the detector/descriptor shader source itself is
// out of scope here.
var orbSamplePattern = [...][4]int{
	{-2, -2, 2, 2}, {-2, 2, 2, -2}, {-3, 0, 3, 0}, {0, -3, 0, 3},
	{-1, -3, 1, 3}, {-3, -1, 3, 1}, {-3, 1, 3, -1}, {1, -3, -1, 3},
}

// ORBDescriptor is the Keypoint.Descriptor.ORB node kind: it
// reads back the source image and the upstream keypoint list
// and attaches a fixed-length binary descriptor to every
// keypoint, built from a small set of local intensity
// comparisons.
type ORBDescriptor struct {
	cfg DescriptorConfig
}

// NewORBDescriptor returns a Keypoint.Descriptor.ORB node.
func NewORBDescriptor(cfg DescriptorConfig) *ORBDescriptor { return &ORBDescriptor{cfg: cfg} }

func (n *ORBDescriptor) DeclarePorts() (ins, outs []node.Port) {
	ins = []node.Port{
		{Name: "image", Dir: node.In, Type: node.ImageType},
		{Name: "keypoints", Dir: node.In, Type: node.KeypointType},
	}
	outs = []node.Port{{Name: "keypoints", Dir: node.Out, Type: node.KeypointType}}
	return
}

func (n *ORBDescriptor) Init(ctx *node.Context) error { return nil }
func (n *ORBDescriptor) Release()                     {}

func (n *ORBDescriptor) Run(ctx *node.Context) error {
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
		kps[i].Descriptor = orbDescribe(pix, w, h, int(kps[i].X+0.5), int(kps[i].Y+0.5), n.cfg.Size)
	}

	tex, err := encodeAndUpload(ctx, km.EncoderLength, n.cfg.Size, km.ExtraSize, kps)
	if err != nil {
		return err
	}
	ctx.SetOutput("keypoints", node.KeypointMessage{
		EncodedKeypoints: tex,
		DescriptorSize:   n.cfg.Size,
		ExtraSize:        km.ExtraSize,
		EncoderLength:    km.EncoderLength,
	})
	return nil
}

// orbDescribe builds a size-byte binary descriptor for the
// keypoint at (x, y), cycling through orbSamplePattern for as
// many bits as are needed.
func orbDescribe(pix []byte, w, h, x, y, size int) []byte {
	desc := make([]byte, size)
	bit := 0
	for i := 0; i < size*8; i++ {
		p := orbSamplePattern[bit%len(orbSamplePattern)]
		bit++
		ax, ay := clampCoord(x+p[0], w), clampCoord(y+p[1], h)
		bx, by := clampCoord(x+p[2], w), clampCoord(y+p[3], h)
		if grey(pix, w, ax, ay) > grey(pix, w, bx, by) {
			desc[i/8] |= 1 << uint(i%8)
		}
	}
	return desc
}

func clampCoord(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v >= limit {
		return limit - 1
	}
	return v
}
