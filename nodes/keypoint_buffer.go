// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import (
	"sync"

	"github.com/gviegas/vision/keypoint"
	"github.com/gviegas/vision/node"
)

// Buffer is the Keypoint.Buffer node kind: a one-run delay
// line. It outputs whatever list it received on the previous
// run (empty on the first run) and stashes the current run's
// input for the next one. A tracker wired to both a live
// detector and a Buffer fed from the same detector can
// therefore compare "this frame" against "last frame" without
// the graph needing an actual cycle, which the scheduler
// forbids.
type Buffer struct {
	mu       sync.Mutex
	kps      []keypoint.Keypoint
	km       node.KeypointMessage
	hasPrior bool
}

// NewBuffer returns a Keypoint.Buffer node.
func NewBuffer() *Buffer { return &Buffer{} }

func (n *Buffer) DeclarePorts() (ins, outs []node.Port) {
	p := []node.Port{{Name: "keypoints", Dir: node.In, Type: node.KeypointType}}
	return p, []node.Port{{Name: "keypoints", Dir: node.Out, Type: node.KeypointType}}
}

func (n *Buffer) Init(ctx *node.Context) error { return nil }
func (n *Buffer) Release()                     {}

func (n *Buffer) Run(ctx *node.Context) error {
	kps, km, err := decodeInput(ctx, "keypoints")
	if err != nil {
		return err
	}

	n.mu.Lock()
	prior, priorKM, hasPrior := n.kps, n.km, n.hasPrior
	n.kps, n.km, n.hasPrior = kps, km, true
	n.mu.Unlock()

	if !hasPrior {
		prior, priorKM = nil, km
	}

	tex, err := encodeAndUpload(ctx, priorKM.EncoderLength, priorKM.DescriptorSize, priorKM.ExtraSize, prior)
	if err != nil {
		return err
	}
	ctx.SetOutput("keypoints", node.KeypointMessage{
		EncodedKeypoints: tex,
		DescriptorSize:   priorKM.DescriptorSize,
		ExtraSize:        priorKM.ExtraSize,
		EncoderLength:    priorKM.EncoderLength,
	})
	return nil
}
