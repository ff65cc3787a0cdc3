// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import (
	"sync"

	"github.com/gviegas/vision/keypoint"
	"github.com/gviegas/vision/node"
)

// KeypointPortalSink is the Keypoint.Portal.Sink node kind:
// it caches the last keypoint list it received, decoded onto
// the host, for a Portal.Source elsewhere to pick up.
type KeypointPortalSink struct {
	mu       sync.Mutex
	kps      []keypoint.Keypoint
	km       node.KeypointMessage
	produced bool
}

// NewKeypointPortalSink returns a Keypoint.Portal.Sink node.
func NewKeypointPortalSink() *KeypointPortalSink { return &KeypointPortalSink{} }

func (n *KeypointPortalSink) DeclarePorts() (ins, outs []node.Port) {
	return []node.Port{{Name: "in", Dir: node.In, Type: node.KeypointType}}, nil
}

func (n *KeypointPortalSink) Init(ctx *node.Context) error { return nil }

func (n *KeypointPortalSink) Run(ctx *node.Context) error {
	kps, km, err := decodeInput(ctx, "in")
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.kps, n.km, n.produced = kps, km, true
	n.mu.Unlock()
	return nil
}

func (n *KeypointPortalSink) Release() {}

// Snapshot returns the sink's most recently cached keypoint
// list and its wire metadata, and whether it has produced one
// yet.
func (n *KeypointPortalSink) Snapshot() ([]keypoint.Keypoint, node.KeypointMessage, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.kps, n.km, n.produced
}

// KeypointPortalSource is the Keypoint.Portal.Source node
// kind: a weak, lookup-only reference to a
// KeypointPortalSink, possibly owned by a different pipeline.
type KeypointPortalSource struct {
	sink *KeypointPortalSink
}

// NewKeypointPortalSource returns a Keypoint.Portal.Source
// node that republishes sink's most recently cached list.
func NewKeypointPortalSource(sink *KeypointPortalSink) *KeypointPortalSource {
	return &KeypointPortalSource{sink: sink}
}

func (n *KeypointPortalSource) DeclarePorts() (ins, outs []node.Port) {
	return nil, []node.Port{{Name: "out", Dir: node.Out, Type: node.KeypointType}}
}

func (n *KeypointPortalSource) Init(ctx *node.Context) error { return nil }

func (n *KeypointPortalSource) Run(ctx *node.Context) error {
	kps, km, ok := n.sink.Snapshot()
	if !ok {
		return errPortalNotProduced
	}
	tex, err := encodeAndUpload(ctx, km.EncoderLength, km.DescriptorSize, km.ExtraSize, kps)
	if err != nil {
		return err
	}
	ctx.SetOutput("out", node.KeypointMessage{
		EncodedKeypoints: tex,
		DescriptorSize:   km.DescriptorSize,
		ExtraSize:        km.ExtraSize,
		EncoderLength:    km.EncoderLength,
	})
	return nil
}

func (n *KeypointPortalSource) Release() {}
