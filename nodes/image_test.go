// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes_test

import (
	"context"
	"testing"

	"github.com/gviegas/vision/driver"
	_ "github.com/gviegas/vision/driver/softbackend"
	"github.com/gviegas/vision/media"
	"github.com/gviegas/vision/nodes"
	"github.com/gviegas/vision/pipeline"
)

func openGPU(t *testing.T) driver.GPU {
	t.Helper()
	for _, d := range driver.Drivers() {
		if d.Name() == "soft" {
			gpu, err := d.Open()
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			return gpu
		}
	}
	t.Fatal("soft driver not registered")
	return nil
}

// TestImageMixerBlend exercises scenario S1: two solid-color
// sources blended by an Image.Mixer with alpha=beta=0.5,
// gamma=0 must produce the exact midpoint color.
func TestImageMixerBlend(t *testing.T) {
	gpu := openGPU(t)
	p := pipeline.New(gpu)

	a := nodes.NewImageSource(media.NewSolid(4, 4, [4]byte{128, 128, 128, 255}))
	b := nodes.NewImageSource(media.NewSolid(4, 4, [4]byte{64, 64, 64, 255}))
	mix := nodes.NewImageMixer(nodes.MixerConfig{Alpha: 0.5, Beta: 0.5, Gamma: 0})
	sink := nodes.NewImageSink()

	if _, err := p.AddNode("a", a); err != nil {
		t.Fatalf("AddNode a: %v", err)
	}
	if _, err := p.AddNode("b", b); err != nil {
		t.Fatalf("AddNode b: %v", err)
	}
	if _, err := p.AddNode("mix", mix); err != nil {
		t.Fatalf("AddNode mix: %v", err)
	}
	if _, err := p.AddNode("sink", sink); err != nil {
		t.Fatalf("AddNode sink: %v", err)
	}
	must(t, p.Connect("a", "out", "mix", "a"))
	must(t, p.Connect("b", "out", "mix", "b"))
	must(t, p.Connect("mix", "out", "sink", "in"))
	must(t, p.Init())
	defer p.Release()

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	pix, w, h := sink.Result()
	if w != 4 || h != 4 {
		t.Fatalf("result size = %dx%d, want 4x4", w, h)
	}
	for i := 0; i < len(pix); i += 4 {
		if pix[i] != 96 || pix[i+1] != 96 || pix[i+2] != 96 || pix[i+3] != 255 {
			t.Fatalf("pixel %d = %v, want [96 96 96 255]", i/4, pix[i:i+4])
		}
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
