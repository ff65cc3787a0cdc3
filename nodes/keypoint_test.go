// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes_test

import (
	"context"
	"testing"

	"github.com/gviegas/vision/driver"
	_ "github.com/gviegas/vision/driver/softbackend"
	"github.com/gviegas/vision/keypoint"
	"github.com/gviegas/vision/media"
	"github.com/gviegas/vision/node"
	"github.com/gviegas/vision/nodes"
	"github.com/gviegas/vision/pipeline"
)

func approxEq(a, b, eps float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func addNode(t *testing.T, p *pipeline.Pipeline, name string, n node.Interface) {
	t.Helper()
	if _, err := p.AddNode(name, n); err != nil {
		t.Fatalf("AddNode %s: %v", name, err)
	}
}

// detectKeypoints wires img through det into a
// KeypointPortalSink and returns the sink's cached result.
func detectKeypoints(t *testing.T, img media.Media, det node.Interface) []keypoint.Keypoint {
	t.Helper()
	gpu := openGPU(t)
	p := pipeline.New(gpu)

	src := nodes.NewImageSource(img)
	sink := nodes.NewKeypointPortalSink()

	addNode(t, p, "src", src)
	addNode(t, p, "det", det)
	addNode(t, p, "sink", sink)
	must(t, p.Connect("src", "out", "det", "image"))
	must(t, p.Connect("det", "keypoints", "sink", "in"))
	must(t, p.Init())
	defer p.Release()

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	kps, _, ok := sink.Snapshot()
	if !ok {
		t.Fatal("sink did not produce a result")
	}
	return kps
}

// TestFASTDetectorSingleCorner exercises scenario S2: an 8x8
// image with one synthetic corner at (3, 5) must decode to
// exactly one keypoint near that position.
func TestFASTDetectorSingleCorner(t *testing.T) {
	img := media.NewSingleCorner(8, 8, 3, 5, 0, 255)
	det := nodes.NewFASTDetector(nodes.DetectorConfig{Threshold: 100, Capacity: 16})
	kps := detectKeypoints(t, img, det)
	if len(kps) != 1 {
		t.Fatalf("len(kps) = %d, want 1", len(kps))
	}
	if !approxEq(kps[0].X, 3, 1.0/keypoint.FixResolution) || !approxEq(kps[0].Y, 5, 1.0/keypoint.FixResolution) {
		t.Fatalf("position = (%v, %v), want ~(3, 5)", kps[0].X, kps[0].Y)
	}
}

// TestFASTDetectorEmpty exercises scenario S3: a uniform image
// has no corners, so the detector must report zero keypoints.
func TestFASTDetectorEmpty(t *testing.T) {
	img := media.NewSolid(8, 8, [4]byte{128, 128, 128, 255})
	det := nodes.NewFASTDetector(nodes.DetectorConfig{Threshold: 100, Capacity: 16})
	kps := detectKeypoints(t, img, det)
	if len(kps) != 0 {
		t.Fatalf("len(kps) = %d, want 0", len(kps))
	}
}

// TestClipperTruncatesByScore exercises scenario S4: when a
// list exceeds a Clipper's Size, only the highest-scoring
// entries survive.
func TestClipperTruncatesByScore(t *testing.T) {
	gpu := openGPU(t)
	p := pipeline.New(gpu)

	const el = 4
	kps := []keypoint.Keypoint{
		{X: 0, Y: 0, Score: 10},
		{X: 1, Y: 0, Score: 90},
		{X: 2, Y: 0, Score: 50},
		{X: 3, Y: 0, Score: 70},
	}
	src := newFixedKeypointSource(el, 0, 0, kps)
	clip := nodes.NewClipper(nodes.ClipperConfig{Size: 2})
	sink := nodes.NewKeypointPortalSink()

	addNode(t, p, "src", src)
	addNode(t, p, "clip", clip)
	addNode(t, p, "sink", sink)
	must(t, p.Connect("src", "out", "clip", "keypoints"))
	must(t, p.Connect("clip", "keypoints", "sink", "in"))
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
	if got[0].Score != 90 || got[1].Score != 70 {
		t.Fatalf("scores = [%d %d], want [90 70]", got[0].Score, got[1].Score)
	}
}

// TestBufferDelaysByOneRun confirms Keypoint.Buffer outputs
// nothing on the first run and the first run's list on the
// second.
func TestBufferDelaysByOneRun(t *testing.T) {
	gpu := openGPU(t)
	p := pipeline.New(gpu)

	const el = 4
	frame1 := []keypoint.Keypoint{{X: 1, Y: 1, Score: 5}}
	src := newFixedKeypointSource(el, 0, 0, frame1)
	buf := nodes.NewBuffer()
	sink := nodes.NewKeypointPortalSink()

	addNode(t, p, "src", src)
	addNode(t, p, "buf", buf)
	addNode(t, p, "sink", sink)
	must(t, p.Connect("src", "out", "buf", "keypoints"))
	must(t, p.Connect("buf", "keypoints", "sink", "in"))
	must(t, p.Init())
	defer p.Release()

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run 1: %v", err)
	}
	got, _, ok := sink.Snapshot()
	if !ok {
		t.Fatal("sink did not produce a result")
	}
	if len(got) != 0 {
		t.Fatalf("first run len(got) = %d, want 0", len(got))
	}

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run 2: %v", err)
	}
	got, _, ok = sink.Snapshot()
	if !ok {
		t.Fatal("sink did not produce a result")
	}
	if len(got) != 1 || got[0].Score != 5 {
		t.Fatalf("second run got = %+v, want one keypoint with score 5", got)
	}
}

// TestMultiplexerSelectsB confirms a Multiplexer constructed
// with selectB republishes its "b" input, not "a".
func TestMultiplexerSelectsB(t *testing.T) {
	gpu := openGPU(t)
	p := pipeline.New(gpu)

	const el = 4
	a := newFixedKeypointSource(el, 0, 0, []keypoint.Keypoint{{X: 1, Y: 1, Score: 1}})
	b := newFixedKeypointSource(el, 0, 0, []keypoint.Keypoint{{X: 2, Y: 2, Score: 2}})
	mux := nodes.NewMultiplexer(true)
	sink := nodes.NewKeypointPortalSink()

	addNode(t, p, "a", a)
	addNode(t, p, "b", b)
	addNode(t, p, "mux", mux)
	addNode(t, p, "sink", sink)
	must(t, p.Connect("a", "out", "mux", "a"))
	must(t, p.Connect("b", "out", "mux", "b"))
	must(t, p.Connect("mux", "keypoints", "sink", "in"))
	must(t, p.Init())
	defer p.Release()

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, _, ok := sink.Snapshot()
	if !ok {
		t.Fatal("sink did not produce a result")
	}
	if len(got) != 1 || got[0].Score != 2 {
		t.Fatalf("got = %+v, want one keypoint with score 2", got)
	}
}

// TestPortalNotProducedYet confirms a Portal.Source fails
// before its Portal.Sink has run at least once.
func TestPortalNotProducedYet(t *testing.T) {
	gpu := openGPU(t)
	p := pipeline.New(gpu)

	sink := nodes.NewKeypointPortalSink()
	src := nodes.NewKeypointPortalSource(sink)
	out := nodes.NewKeypointPortalSink()

	addNode(t, p, "src", src)
	addNode(t, p, "out", out)
	must(t, p.Connect("src", "out", "out", "in"))
	must(t, p.Init())
	defer p.Release()

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded, want error from unproduced portal sink")
	}
}

// fixedKeypointSource republishes a pre-built keypoint list on
// every run, so Clipper/Buffer/Multiplexer tests can drive
// those nodes without a detector in front.
type fixedKeypointSource struct {
	el, descSize, extraSize int
	kps                     []keypoint.Keypoint
}

func newFixedKeypointSource(el, descSize, extraSize int, kps []keypoint.Keypoint) *fixedKeypointSource {
	return &fixedKeypointSource{el: el, descSize: descSize, extraSize: extraSize, kps: kps}
}

func (s *fixedKeypointSource) DeclarePorts() (ins, outs []node.Port) {
	return nil, []node.Port{{Name: "out", Dir: node.Out, Type: node.KeypointType}}
}

func (s *fixedKeypointSource) Init(ctx *node.Context) error { return nil }
func (s *fixedKeypointSource) Release()                     {}

func (s *fixedKeypointSource) Run(ctx *node.Context) error {
	dense, err := keypoint.EncodeKeypoints(s.el, s.descSize, s.extraSize, s.kps)
	if err != nil {
		return err
	}
	tex, err := ctx.Pool().Acquire(s.el, s.el, driver.RGBA8)
	if err != nil {
		return err
	}
	buf, err := ctx.GPU().NewBuffer(int64(len(dense)), true, driver.UGeneric)
	if err != nil {
		return err
	}
	defer buf.Destroy()
	copy(buf.Bytes(), dense)

	cb, err := ctx.GPU().NewCmdBuffer()
	if err != nil {
		return err
	}
	defer cb.Destroy()
	if err := cb.Begin(); err != nil {
		return err
	}
	if err := cb.WriteTexture(tex, buf); err != nil {
		return err
	}
	if err := cb.End(); err != nil {
		return err
	}
	ch := make(chan error, 1)
	ctx.GPU().Commit([]driver.CmdBuffer{cb}, ch)
	if err := <-ch; err != nil {
		return err
	}

	ctx.SetOutput("out", node.KeypointMessage{
		EncodedKeypoints: tex,
		DescriptorSize:   s.descSize,
		ExtraSize:        s.extraSize,
		EncoderLength:    s.el,
	})
	return nil
}
