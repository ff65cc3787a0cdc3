// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import (
	"sort"

	"github.com/gviegas/vision/node"
)

// ClipperConfig holds the Keypoint.Clipper node's Size knob:
// the maximum number of keypoints retained per run.
type ClipperConfig struct {
	Size int
}

// Clipper is the Keypoint.Clipper node kind: when its input
// list exceeds Size, it keeps the Size highest-scoring
// keypoints and drops the rest.
type Clipper struct {
	cfg ClipperConfig
}

// NewClipper returns a Keypoint.Clipper node.
func NewClipper(cfg ClipperConfig) *Clipper { return &Clipper{cfg: cfg} }

func (n *Clipper) DeclarePorts() (ins, outs []node.Port) {
	p := []node.Port{{Name: "keypoints", Dir: node.In, Type: node.KeypointType}}
	return p, []node.Port{{Name: "keypoints", Dir: node.Out, Type: node.KeypointType}}
}

func (n *Clipper) Init(ctx *node.Context) error { return nil }
func (n *Clipper) Release()                     {}

func (n *Clipper) Run(ctx *node.Context) error {
	kps, km, err := decodeInput(ctx, "keypoints")
	if err != nil {
		return err
	}
	if len(kps) > n.cfg.Size {
		sort.Slice(kps, func(i, j int) bool { return kps[i].Score > kps[j].Score })
		kps = kps[:n.cfg.Size]
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
