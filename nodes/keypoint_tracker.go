// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import (
	"github.com/gviegas/vision/linear"
	"github.com/gviegas/vision/matrix"
	"github.com/gviegas/vision/node"
)

// TrackerConfig holds the Keypoint.Tracker.LK node's tunable
// knobs: Window is the side length of the patch centered on
// each tracked point, Iterations bounds the Newton refinement
// steps run at each pyramid level, PyramidDepth is the number
// of coarse-to-fine passes (each widening the search window
// by one level, coarsest first).
type TrackerConfig struct {
	Window       int
	Iterations   int
	PyramidDepth int
}

// LKTracker is the Keypoint.Tracker.LK node kind: it carries
// each input keypoint's position from prev to curr by solving
// the Lucas-Kanade optical flow normal equations over a local
// patch, using the matrix package's op-code VM for the
// Jacobian reductions (AᵀA, Aᵀb) and linear.M2 to invert and
// solve the resulting 2x2 system.
type LKTracker struct {
	cfg TrackerConfig
}

// NewLKTracker returns a Keypoint.Tracker.LK node.
func NewLKTracker(cfg TrackerConfig) *LKTracker { return &LKTracker{cfg: cfg} }

func (n *LKTracker) DeclarePorts() (ins, outs []node.Port) {
	ins = []node.Port{
		{Name: "prev", Dir: node.In, Type: node.ImageType},
		{Name: "curr", Dir: node.In, Type: node.ImageType},
		{Name: "keypoints", Dir: node.In, Type: node.KeypointType},
	}
	outs = []node.Port{
		{Name: "keypoints", Dir: node.Out, Type: node.KeypointType},
		{Name: "displacement", Dir: node.Out, Type: node.Vector2DType},
	}
	return
}

func (n *LKTracker) Init(ctx *node.Context) error { return nil }
func (n *LKTracker) Release()                     {}

func (n *LKTracker) Run(ctx *node.Context) error {
	pm, err := ctx.Input("prev")
	if err != nil {
		return err
	}
	cm, err := ctx.Input("curr")
	if err != nil {
		return err
	}
	prevIm := pm.(node.ImageMessage)
	currIm := cm.(node.ImageMessage)
	prevPix, err := readback(ctx, prevIm.Texture)
	if err != nil {
		return err
	}
	currPix, err := readback(ctx, currIm.Texture)
	if err != nil {
		return err
	}
	w, h := prevIm.Texture.Width(), prevIm.Texture.Height()

	kps, km, err := decodeInput(ctx, "keypoints")
	if err != nil {
		return err
	}

	var sum linear.V2
	var tracked int
	out := kps[:0]
	for _, kp := range kps {
		nx, ny, ok := n.track(prevPix, currPix, w, h, kp.X, kp.Y)
		if !ok {
			continue
		}
		d := linear.V2{nx - kp.X, ny - kp.Y}
		sum.Add(&sum, &d)
		tracked++
		kp.X, kp.Y = nx, ny
		out = append(out, kp)
	}
	if tracked > 0 {
		sum.Scale(1/float32(tracked), &sum)
	}

	tex, err := encodeAndUpload(ctx, km.EncoderLength, km.DescriptorSize, km.ExtraSize, out)
	if err != nil {
		return err
	}
	ctx.SetOutput("keypoints", node.KeypointMessage{
		EncodedKeypoints: tex,
		DescriptorSize:   km.DescriptorSize,
		ExtraSize:        km.ExtraSize,
		EncoderLength:    km.EncoderLength,
	})
	ctx.SetOutput("displacement", node.Vector2DMessage{V: sum})
	return nil
}

// track runs the coarse-to-fine Lucas-Kanade refinement
// described by TrackerConfig for a single point, returning
// its estimated position in curr and whether it remained
// trackable (every level's normal system stayed solvable and
// its search window stayed within the image).
func (n *LKTracker) track(prev, curr []byte, w, h int, x, y float32) (nx, ny float32, ok bool) {
	levels := n.cfg.PyramidDepth
	if levels < 1 {
		levels = 1
	}
	iters := n.cfg.Iterations
	if iters < 1 {
		iters = 1
	}
	px, py := x, y
	for lvl := levels - 1; lvl >= 0; lvl-- {
		window := n.cfg.Window * (lvl + 1)
		var trackedOK bool
		px, py, trackedOK = lucasKanade(prev, curr, w, h, px, py, window, iters)
		if !trackedOK {
			return x, y, false
		}
	}
	return px, py, true
}

// lucasKanade runs iters Newton refinement steps of the
// single-resolution Lucas-Kanade equations over a window x
// window patch centered on (x, y).
func lucasKanade(prev, curr []byte, w, h int, x, y float32, window, iters int) (nx, ny float32, ok bool) {
	half := window / 2
	if half < 1 {
		half = 1
	}
	px, py := x, y
	for i := 0; i < iters; i++ {
		cx, cy := int(px+0.5), int(py+0.5)
		x0, x1 := cx-half, cx+half
		y0, y1 := cy-half, cy+half
		if x0 < 1 || y0 < 1 || x1 >= w-1 || y1 >= h-1 {
			return x, y, false
		}

		n := (x1 - x0 + 1) * (y1 - y0 + 1)
		a := matrix.New[float32](n, 2)
		b := matrix.New[float32](n, 1)
		row := 0
		for yy := y0; yy <= y1; yy++ {
			for xx := x0; xx <= x1; xx++ {
				ix := float32(grey(prev, w, xx+1, yy)) - float32(grey(prev, w, xx-1, yy))
				iy := float32(grey(prev, w, xx, yy+1)) - float32(grey(prev, w, xx, yy-1))
				it := float32(grey(curr, w, xx, yy)) - float32(grey(prev, w, xx, yy))
				a.Set(row, 0, ix)
				a.Set(row, 1, iy)
				b.Set(row, 0, -it)
				row++
			}
		}

		ata := matrix.New[float32](2, 2)
		atb := matrix.New[float32](2, 1)
		if err := matrix.Exec(matrix.MULLT, &ata, &a, &a, 0); err != nil {
			return x, y, false
		}
		if err := matrix.Exec(matrix.MULLT, &atb, &a, &b, 0); err != nil {
			return x, y, false
		}

		var m linear.M2
		m[0][0] = ata.At(0, 0)
		m[0][1] = ata.At(1, 0)
		m[1][0] = ata.At(0, 1)
		m[1][1] = ata.At(1, 1)
		det := m[0][0]*m[1][1] - m[1][0]*m[0][1]
		if det > -1e-3 && det < 1e-3 {
			return x, y, false
		}
		var inv linear.M2
		inv.Invert(&m)

		rhs := linear.V2{atb.At(0, 0), atb.At(1, 0)}
		var d linear.V2
		d.Mul(&inv, &rhs)
		px += d[0]
		py += d[1]
	}
	return px, py, true
}
