// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import (
	"github.com/gviegas/vision/driver"
	"github.com/gviegas/vision/keypoint"
	"github.com/gviegas/vision/node"
)

// DetectorConfig holds a detector node's tunable knobs:
// Threshold gates a pixel's corner response, Capacity bounds
// how many keypoints the output texture can hold (it sizes
// the dense texture via encoderLengthFor).
type DetectorConfig struct {
	Threshold float32
	Capacity  int
}

// cornerScore scores the pixel at (x, y) in a w x h greyscale
// image; a higher value means a stronger corner response.
type cornerScore func(pix []byte, w, h, x, y int) float32

// scanCorners evaluates score at every interior pixel (a
// 1-pixel border is excluded since every score function here
// reads the immediate neighborhood), keeping those at or
// above threshold as sparse keypoints. The raw score is
// clamped into the sparse encoding's 1-255 range; LOD is left
// at the base pyramid level (Scale 255), since detection runs
// on a single image, not a pyramid.
func scanCorners(pix []byte, w, h int, threshold float32, score cornerScore) []keypoint.SparseKeypoint {
	var kps []keypoint.SparseKeypoint
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			s := score(pix, w, h, x, y)
			if s < threshold {
				continue
			}
			if s > 255 {
				s = 255
			}
			b := byte(s)
			if b == 0 {
				b = 1
			}
			kps = append(kps, keypoint.SparseKeypoint{
				X:         x,
				Y:         y,
				Score:     b,
				Intensity: grey(pix, w, x, y),
				Scale:     255,
			})
		}
	}
	return kps
}

// runDetector is the Run body shared by FASTDetector and
// HarrisDetector: readback the input image, score every
// pixel, pack the survivors into a fresh dense keypoint
// texture sized by cfg.Capacity.
func runDetector(ctx *node.Context, cfg DetectorConfig, score cornerScore) error {
	msg, err := ctx.Input("image")
	if err != nil {
		return err
	}
	im := msg.(node.ImageMessage)
	pix, err := readback(ctx, im.Texture)
	if err != nil {
		return err
	}
	w, h := im.Texture.Width(), im.Texture.Height()

	sparse := make([]byte, w*h*4)
	kps := scanCorners(pix, w, h, cfg.Threshold, score)
	if len(kps) > cfg.Capacity {
		kps = kps[:cfg.Capacity]
	}
	if err := keypoint.EncodeSparse(sparse, w, h, kps); err != nil {
		return err
	}

	el := encoderLengthFor(cfg.Capacity, 0, 0)
	dense := make([]byte, el*el*4)
	tileSize := keypoint.DefaultTileSize(el)
	tileCount := (el * el) / tileSize
	for t := 0; t < tileCount; t++ {
		if err := keypoint.EncodeDense(dense, el, sparse, w, h, t, tileCount, tileSize, 0, 0, nil); err != nil {
			return err
		}
	}

	tex, err := ctx.Pool().Acquire(el, el, driver.RGBA8)
	if err != nil {
		return err
	}
	if err := upload(ctx.GPU(), tex, dense); err != nil {
		return err
	}
	ctx.SetOutput("keypoints", node.KeypointMessage{
		EncodedKeypoints: tex,
		DescriptorSize:   0,
		ExtraSize:        0,
		EncoderLength:    el,
	})
	return nil
}

func detectorPorts() (ins, outs []node.Port) {
	ins = []node.Port{{Name: "image", Dir: node.In, Type: node.ImageType}}
	outs = []node.Port{{Name: "keypoints", Dir: node.Out, Type: node.KeypointType}}
	return
}

// FASTDetector is the Keypoint.Detector.FAST node kind: a
// pixel is a corner if its intensity differs sharply, on
// average, from its 8 immediate neighbors.
type FASTDetector struct {
	cfg DetectorConfig
}

// NewFASTDetector returns a Keypoint.Detector.FAST node.
func NewFASTDetector(cfg DetectorConfig) *FASTDetector { return &FASTDetector{cfg: cfg} }

func (n *FASTDetector) DeclarePorts() (ins, outs []node.Port) { return detectorPorts() }
func (n *FASTDetector) Init(ctx *node.Context) error          { return nil }
func (n *FASTDetector) Release()                     {}

func (n *FASTDetector) Run(ctx *node.Context) error {
	return runDetector(ctx, n.cfg, fastScore)
}

func fastScore(pix []byte, w, h, x, y int) float32 {
	c := int(grey(pix, w, x, y))
	var sum int
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := int(grey(pix, w, x+dx, y+dy))
			d := c - n
			if d < 0 {
				d = -d
			}
			sum += d
		}
	}
	return float32(sum) / 8
}

// HarrisDetector is the Keypoint.Detector.Harris node kind:
// a pixel is a corner if its local structure tensor, summed
// over a 3x3 window of central-difference gradients, has a
// large determinant relative to its trace (the classic
// Harris corner response, R = det(M) - k*trace(M)^2).
type HarrisDetector struct {
	cfg DetectorConfig
}

// NewHarrisDetector returns a Keypoint.Detector.Harris node.
func NewHarrisDetector(cfg DetectorConfig) *HarrisDetector { return &HarrisDetector{cfg: cfg} }

func (n *HarrisDetector) DeclarePorts() (ins, outs []node.Port) { return detectorPorts() }
func (n *HarrisDetector) Init(ctx *node.Context) error          { return nil }
func (n *HarrisDetector) Release()                     {}

func (n *HarrisDetector) Run(ctx *node.Context) error {
	return runDetector(ctx, n.cfg, harrisScore)
}

const harrisK = 0.04

func harrisScore(pix []byte, w, h, x, y int) float32 {
	var ixx, iyy, ixy float32
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			px, py := x+dx, y+dy
			if px < 1 || px >= w-1 || py < 1 || py >= h-1 {
				continue
			}
			ix := float32(grey(pix, w, px+1, py)) - float32(grey(pix, w, px-1, py))
			iy := float32(grey(pix, w, px, py+1)) - float32(grey(pix, w, px, py-1))
			ixx += ix * ix
			iyy += iy * iy
			ixy += ix * iy
		}
	}
	det := ixx*iyy - ixy*ixy
	trace := ixx + iyy
	r := det - harrisK*trace*trace
	if r < 0 {
		return 0
	}
	// Scale down: raw Harris response grows with the fourth
	// power of intensity difference, far past the sparse
	// encoding's byte range.
	return r / 4096
}
