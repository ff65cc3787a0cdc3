// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package pipeline_test

import (
	"context"
	"testing"

	"github.com/gviegas/vision/driver"
	_ "github.com/gviegas/vision/driver/softbackend"
	"github.com/gviegas/vision/node"
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

// fnNode is a node.Interface whose behavior is supplied by a
// closure, so tests can assemble arbitrary graphs without a
// dedicated stub type per shape.
type fnNode struct {
	ins, outs []node.Port
	run       func(ctx *node.Context) error
}

func (n *fnNode) DeclarePorts() ([]node.Port, []node.Port) { return n.ins, n.outs }
func (n *fnNode) Init(ctx *node.Context) error             { return nil }
func (n *fnNode) Run(ctx *node.Context) error {
	if n.run != nil {
		return n.run(ctx)
	}
	return nil
}
func (n *fnNode) Release() {}

func source(out string) *fnNode {
	return &fnNode{
		outs: []node.Port{{Name: out, Dir: node.Out, Type: node.ImageType}},
		run:  func(ctx *node.Context) error { ctx.SetOutput(out, node.ImageMessage{}); return nil },
	}
}

func passthrough(in, out string) *fnNode {
	return &fnNode{
		ins:  []node.Port{{Name: in, Dir: node.In, Type: node.ImageType}},
		outs: []node.Port{{Name: out, Dir: node.Out, Type: node.ImageType}},
		run: func(ctx *node.Context) error {
			m, err := ctx.Input(in)
			if err != nil {
				return err
			}
			ctx.SetOutput(out, m)
			return nil
		},
	}
}

func sink(in string) *fnNode {
	return &fnNode{
		ins: []node.Port{{Name: in, Dir: node.In, Type: node.ImageType}},
		run: func(ctx *node.Context) error {
			m, err := ctx.Input(in)
			if err != nil {
				return err
			}
			ctx.SetOutput("result", m)
			return nil
		},
	}
}

// TestWiringValidity covers spec property 1: a cycle,
// unconnected input, or type mismatch fails Init (or, for a
// type mismatch, Connect itself) with the corresponding
// ValidationError; an otherwise valid graph succeeds.
func TestWiringValidity(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p := pipeline.New(nil)
		if _, err := p.AddNode("src", source("out")); err != nil {
			t.Fatalf("AddNode(src): %v", err)
		}
		if _, err := p.AddNode("mid", passthrough("in", "out")); err != nil {
			t.Fatalf("AddNode(mid): %v", err)
		}
		if _, err := p.AddNode("sink", sink("in")); err != nil {
			t.Fatalf("AddNode(sink): %v", err)
		}
		if err := p.Connect("src", "out", "mid", "in"); err != nil {
			t.Fatalf("Connect(src,mid): %v", err)
		}
		if err := p.Connect("mid", "out", "sink", "in"); err != nil {
			t.Fatalf("Connect(mid,sink): %v", err)
		}
		if err := p.Init(); err != nil {
			t.Fatalf("Init: %v", err)
		}
	})

	t.Run("unconnected input", func(t *testing.T) {
		p := pipeline.New(nil)
		p.AddNode("src", source("out"))
		p.AddNode("sink", sink("in"))
		// sink.in is never connected.
		err := p.Init()
		want := &pipeline.Error{Kind: pipeline.ValidationError, Reason: pipeline.UnconnectedInput}
		if err == nil || !want.Is(err) {
			t.Fatalf("Init: got %v, want UnconnectedInput", err)
		}
	})

	t.Run("no sink", func(t *testing.T) {
		p := pipeline.New(nil)
		p.AddNode("src", source("out"))
		p.AddNode("mid", passthrough("in", "out"))
		p.Connect("src", "out", "mid", "in")
		err := p.Init()
		want := &pipeline.Error{Kind: pipeline.ValidationError, Reason: pipeline.NoSink}
		if err == nil || !want.Is(err) {
			t.Fatalf("Init: got %v, want NoSink", err)
		}
	})

	t.Run("multiple sinks", func(t *testing.T) {
		p := pipeline.New(nil)
		p.AddNode("src", source("out"))
		p.AddNode("sinkA", sink("in"))
		p.AddNode("sinkB", sink("in"))
		p.Connect("src", "out", "sinkA", "in")
		p.Connect("src", "out", "sinkB", "in")
		err := p.Init()
		want := &pipeline.Error{Kind: pipeline.ValidationError, Reason: pipeline.MultipleSinks}
		if err == nil || !want.Is(err) {
			t.Fatalf("Init: got %v, want MultipleSinks", err)
		}
	})

	t.Run("type mismatch", func(t *testing.T) {
		p := pipeline.New(nil)
		p.AddNode("src", &fnNode{outs: []node.Port{{Name: "out", Dir: node.Out, Type: node.KeypointType}}})
		p.AddNode("sink", sink("in"))
		err := p.Connect("src", "out", "sink", "in")
		want := &pipeline.Error{Kind: pipeline.ValidationError, Reason: pipeline.TypeMismatch}
		if err == nil || !want.Is(err) {
			t.Fatalf("Connect: got %v, want TypeMismatch", err)
		}
	})

	t.Run("cycle", func(t *testing.T) {
		p := pipeline.New(nil)
		p.AddNode("a", passthrough("in", "out"))
		p.AddNode("b", passthrough("in", "out"))
		p.AddNode("sink", sink("in"))
		p.Connect("a", "out", "b", "in")
		p.Connect("b", "out", "a", "in")
		p.Connect("b", "out", "sink", "in")
		err := p.Init()
		want := &pipeline.Error{Kind: pipeline.ValidationError, Reason: pipeline.Cycle}
		if err == nil || !want.Is(err) {
			t.Fatalf("Init: got %v, want Cycle", err)
		}
	})
}

// TestSchedulerOrder covers spec property 2: every node runs
// exactly once per Run, and no node runs before all its
// transitive predecessors.
func TestSchedulerOrder(t *testing.T) {
	var order []string
	record := func(name string, n *fnNode) *fnNode {
		inner := n.run
		n.run = func(ctx *node.Context) error {
			order = append(order, name)
			if inner != nil {
				return inner(ctx)
			}
			return nil
		}
		return n
	}

	p := pipeline.New(nil)
	p.AddNode("src", record("src", source("out")))
	p.AddNode("a", record("a", passthrough("in", "out")))
	p.AddNode("b", record("b", passthrough("in", "out")))
	p.AddNode("sink", record("sink", sink("in")))
	must(t, p.Connect("src", "out", "a", "in"))
	must(t, p.Connect("src", "out", "b", "in"))
	must(t, p.Connect("a", "out", "sink", "in"))
	// sink only declares a single "in" port; wire b's output
	// through a itself is not needed here, b simply runs and
	// its output goes unconsumed, which is legal.
	must(t, p.Init())

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(order) != 4 {
		t.Fatalf("executed %d nodes, want 4: %v", len(order), order)
	}
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	if pos["src"] > pos["a"] || pos["src"] > pos["b"] {
		t.Fatalf("src must run before both its consumers: %v", order)
	}
	if pos["a"] > pos["sink"] {
		t.Fatalf("a must run before sink: %v", order)
	}
	if pos["sink"] != len(order)-1 {
		t.Fatalf("sink must run last: %v", order)
	}
}

// TestResourceConservation covers spec property 3: the
// texture pool's free count at run start equals its free
// count at run end, for both a successful run and a failing
// one.
func TestResourceConservation(t *testing.T) {
	gpu := openGPU(t)

	newGraph := func(fail bool) *pipeline.Pipeline {
		p := pipeline.New(gpu)
		p.AddNode("src", &fnNode{
			outs: []node.Port{{Name: "out", Dir: node.Out, Type: node.ImageType}},
			run: func(ctx *node.Context) error {
				tex, err := ctx.Pool().Acquire(4, 4, driver.RGBA8)
				if err != nil {
					return err
				}
				ctx.SetOutput("out", node.ImageMessage{Texture: tex, Format: driver.RGBA8})
				return nil
			},
		})
		p.AddNode("mid", &fnNode{
			ins:  []node.Port{{Name: "in", Dir: node.In, Type: node.ImageType}},
			outs: []node.Port{{Name: "out", Dir: node.Out, Type: node.ImageType}},
			run: func(ctx *node.Context) error {
				if fail {
					return errIntentional
				}
				if _, err := ctx.Input("in"); err != nil {
					return err
				}
				tex, err := ctx.Pool().Acquire(4, 4, driver.RGBA8)
				if err != nil {
					return err
				}
				ctx.SetOutput("out", node.ImageMessage{Texture: tex, Format: driver.RGBA8})
				return nil
			},
		})
		p.AddNode("sink", sink("in"))
		must(t, p.Connect("src", "out", "mid", "in"))
		must(t, p.Connect("mid", "out", "sink", "in"))
		must(t, p.Init())
		return p
	}

	for _, fail := range []bool{false, true} {
		p := newGraph(fail)
		// The pool's bucket grows on first use; run once to
		// reach steady state before measuring conservation.
		p.Run(context.Background())

		before := p.Pool().Free()
		_, err := p.Run(context.Background())
		if fail && err == nil {
			t.Fatal("Run: want error, got nil")
		}
		if !fail && err != nil {
			t.Fatalf("Run: %v", err)
		}
		after := p.Pool().Free()
		if before != after {
			t.Fatalf("fail=%v: free count before=%d after=%d", fail, before, after)
		}
		if p.Pool().Outstanding() != 0 {
			t.Fatalf("fail=%v: %d textures still outstanding after run", fail, p.Pool().Outstanding())
		}
	}
}

var errIntentional = &testError{"intentional failure"}

type testError struct{ s string }

func (e *testError) Error() string { return e.s }

// TestRunCancellation covers spec property 7: a run whose
// context is already cancelled resolves with a Cancelled
// error and leaves no scratch texture outstanding.
func TestRunCancellation(t *testing.T) {
	gpu := openGPU(t)
	p := pipeline.New(gpu)
	p.AddNode("src", &fnNode{
		outs: []node.Port{{Name: "out", Dir: node.Out, Type: node.ImageType}},
		run: func(ctx *node.Context) error {
			tex, err := ctx.Pool().Acquire(4, 4, driver.RGBA8)
			if err != nil {
				return err
			}
			ctx.SetOutput("out", node.ImageMessage{Texture: tex, Format: driver.RGBA8})
			return nil
		},
	})
	p.AddNode("sink", sink("in"))
	must(t, p.Connect("src", "out", "sink", "in"))
	must(t, p.Init())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx)
	want := &pipeline.Error{Kind: pipeline.CancelledError, Reason: pipeline.Torndown}
	if err == nil || !want.Is(err) {
		t.Fatalf("Run: got %v, want Cancelled", err)
	}
	if p.Pool().Outstanding() != 0 {
		t.Fatalf("%d textures still outstanding after cancelled run", p.Pool().Outstanding())
	}
}

// TestOnBusyReject exercises Config.OnBusy = Reject: a Run
// invoked while another is genuinely in flight fails
// immediately with Busy, and a Run invoked after the prior one
// has resolved succeeds normally.
func TestOnBusyReject(t *testing.T) {
	hold := make(chan struct{})
	proceed := make(chan struct{})

	p := pipeline.New(nil)
	p.Configure(pipeline.Config{OnBusy: pipeline.Reject})
	p.AddNode("src", &fnNode{
		outs: []node.Port{{Name: "out", Dir: node.Out, Type: node.ImageType}},
		run: func(ctx *node.Context) error {
			select {
			case <-hold:
			default:
				close(hold)
			}
			<-proceed
			ctx.SetOutput("out", node.ImageMessage{})
			return nil
		},
	})
	p.AddNode("sink", sink("in"))
	must(t, p.Connect("src", "out", "sink", "in"))
	must(t, p.Init())

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background())
		done <- err
	}()

	<-hold // the first Run is now blocked inside src's node
	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("concurrent Run: want Busy, got nil")
	} else {
		want := &pipeline.Error{Kind: pipeline.IllegalOperationError, Reason: pipeline.Busy}
		if !want.Is(err) {
			t.Fatalf("concurrent Run: got %v, want Busy", err)
		}
	}

	close(proceed)
	if err := <-done; err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// A Run after the first has resolved must succeed, not
	// report Busy: the guard only rejects overlapping runs.
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
