// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import (
	"github.com/gviegas/vision/keypoint"
	"github.com/gviegas/vision/node"
)

// KeypointMixer is the Keypoint.Mixer node kind: unlike
// Image.Mixer's per-pixel blend, mixing two keypoint lists
// means concatenating them (a union of feature points, not an
// arithmetic combination), truncated to whichever operand's
// dense texture is larger if the combined list would not fit.
type KeypointMixer struct{}

// NewKeypointMixer returns a Keypoint.Mixer node.
func NewKeypointMixer() *KeypointMixer { return &KeypointMixer{} }

func (n *KeypointMixer) DeclarePorts() (ins, outs []node.Port) {
	ins = []node.Port{
		{Name: "a", Dir: node.In, Type: node.KeypointType},
		{Name: "b", Dir: node.In, Type: node.KeypointType},
	}
	return ins, []node.Port{{Name: "keypoints", Dir: node.Out, Type: node.KeypointType}}
}

func (n *KeypointMixer) Init(ctx *node.Context) error { return nil }
func (n *KeypointMixer) Release()                     {}

func (n *KeypointMixer) Run(ctx *node.Context) error {
	a, akm, err := decodeInput(ctx, "a")
	if err != nil {
		return err
	}
	b, bkm, err := decodeInput(ctx, "b")
	if err != nil {
		return err
	}
	if akm.DescriptorSize != bkm.DescriptorSize || akm.ExtraSize != bkm.ExtraSize {
		return errMixerSizeMismatch
	}

	el := akm.EncoderLength
	if bkm.EncoderLength > el {
		el = bkm.EncoderLength
	}
	capacity := keypoint.Capacity(el, akm.DescriptorSize, akm.ExtraSize)

	merged := append(append([]keypoint.Keypoint(nil), a...), b...)
	if len(merged) > capacity {
		merged = merged[:capacity]
	}

	tex, err := encodeAndUpload(ctx, el, akm.DescriptorSize, akm.ExtraSize, merged)
	if err != nil {
		return err
	}
	ctx.SetOutput("keypoints", node.KeypointMessage{
		EncodedKeypoints: tex,
		DescriptorSize:   akm.DescriptorSize,
		ExtraSize:        akm.ExtraSize,
		EncoderLength:    el,
	})
	return nil
}
