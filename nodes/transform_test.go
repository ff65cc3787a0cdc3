// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes_test

import (
	"context"
	"testing"

	"github.com/gviegas/vision/keypoint"
	"github.com/gviegas/vision/linear"
	"github.com/gviegas/vision/node"
	"github.com/gviegas/vision/nodes"
	"github.com/gviegas/vision/pipeline"
)

// matrixSource publishes a fixed linear.M2 as a
// Matrix2DMessage on every run.
type matrixSource struct{ m linear.M2 }

func (s *matrixSource) DeclarePorts() (ins, outs []node.Port) {
	return nil, []node.Port{{Name: "out", Dir: node.Out, Type: node.Matrix2DType}}
}
func (s *matrixSource) Init(ctx *node.Context) error { return nil }
func (s *matrixSource) Release()                     {}
func (s *matrixSource) Run(ctx *node.Context) error {
	ctx.SetOutput("out", node.Matrix2DMessage{M: s.m})
	return nil
}

// TestTransformerScales confirms a 2x scale matrix doubles
// every keypoint's position.
func TestTransformerScales(t *testing.T) {
	gpu := openGPU(t)
	p := pipeline.New(gpu)

	const el = 4
	kps := newFixedKeypointSource(el, 0, 0, []keypoint.Keypoint{{X: 2, Y: 3, Score: 7}})
	var m linear.M2
	m.I()
	m[0][0], m[1][1] = 2, 2
	mat := &matrixSource{m: m}
	tr := nodes.NewTransformer()
	sink := nodes.NewKeypointPortalSink()

	addNode(t, p, "kps", kps)
	addNode(t, p, "mat", mat)
	addNode(t, p, "tr", tr)
	addNode(t, p, "sink", sink)
	must(t, p.Connect("kps", "out", "tr", "keypoints"))
	must(t, p.Connect("mat", "out", "tr", "transform"))
	must(t, p.Connect("tr", "keypoints", "sink", "in"))
	must(t, p.Init())
	defer p.Release()

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, _, ok := sink.Snapshot()
	if !ok {
		t.Fatal("sink did not produce a result")
	}
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	if !approxEq(got[0].X, 4, 1.0/keypoint.FixResolution) || !approxEq(got[0].Y, 6, 1.0/keypoint.FixResolution) {
		t.Fatalf("position = (%v, %v), want ~(4, 6)", got[0].X, got[0].Y)
	}
}

// TestKeypointMixerConcatenates confirms Keypoint.Mixer unions
// two lists rather than blending them arithmetically.
func TestKeypointMixerConcatenates(t *testing.T) {
	gpu := openGPU(t)
	p := pipeline.New(gpu)

	const el = 4
	a := newFixedKeypointSource(el, 0, 0, []keypoint.Keypoint{{X: 1, Y: 1, Score: 1}})
	b := newFixedKeypointSource(el, 0, 0, []keypoint.Keypoint{{X: 2, Y: 2, Score: 2}})
	mix := nodes.NewKeypointMixer()
	sink := nodes.NewKeypointPortalSink()

	addNode(t, p, "a", a)
	addNode(t, p, "b", b)
	addNode(t, p, "mix", mix)
	addNode(t, p, "sink", sink)
	must(t, p.Connect("a", "out", "mix", "a"))
	must(t, p.Connect("b", "out", "mix", "b"))
	must(t, p.Connect("mix", "keypoints", "sink", "in"))
	must(t, p.Init())
	defer p.Release()

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, _, ok := sink.Snapshot()
	if !ok {
		t.Fatal("sink did not produce a result")
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
}
