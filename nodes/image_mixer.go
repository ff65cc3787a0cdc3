// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import (
	"errors"

	"github.com/gviegas/vision/driver"
	"github.com/gviegas/vision/driver/softbackend"
	"github.com/gviegas/vision/node"
)

const mixerKernel = "image.mixer"

func init() {
	softbackend.RegisterKernel(mixerKernel, mixerFunc)
}

// mixerFunc is the host simulation of the Image.Mixer kernel:
// out = alpha*a + beta*b + gamma, per channel, clamped to
// [0, 255]. It runs once over out's full extent, as every
// dispatched kernel does.
func mixerFunc(out driver.Texture, uniforms []driver.Uniform, tileIndex, tileCount int) error {
	a, ok := softbackend.Texture(uniforms, "a")
	if !ok {
		return errors.New("nodes: image.mixer missing uniform a")
	}
	b, ok := softbackend.Texture(uniforms, "b")
	if !ok {
		return errors.New("nodes: image.mixer missing uniform b")
	}
	alpha, _ := softbackend.Float32(uniforms, "alpha")
	beta, _ := softbackend.Float32(uniforms, "beta")
	gamma, _ := softbackend.Float32(uniforms, "gamma")

	op, err := softbackend.Pixels(out)
	if err != nil {
		return err
	}
	ap, err := softbackend.Pixels(a)
	if err != nil {
		return err
	}
	bp, err := softbackend.Pixels(b)
	if err != nil {
		return err
	}
	if len(ap) != len(op) || len(bp) != len(op) {
		return errors.New("nodes: image.mixer operand size mismatch")
	}

	for i := range op {
		v := alpha*float32(ap[i]) + beta*float32(bp[i]) + gamma
		switch {
		case v <= 0:
			op[i] = 0
		case v >= 255:
			op[i] = 255
		default:
			op[i] = byte(v + 0.5)
		}
	}
	return nil
}

// MixerConfig holds an Image.Mixer node's blend coefficients:
// out = alpha*a + beta*b + gamma.
type MixerConfig struct {
	Alpha, Beta, Gamma float32
}

// ImageMixer is the Image.Mixer node kind.
type ImageMixer struct {
	cfg MixerConfig
}

// NewImageMixer returns an Image.Mixer node configured with cfg.
func NewImageMixer(cfg MixerConfig) *ImageMixer {
	return &ImageMixer{cfg: cfg}
}

func (n *ImageMixer) DeclarePorts() (ins, outs []node.Port) {
	ins = []node.Port{
		{Name: "a", Dir: node.In, Type: node.ImageType},
		{Name: "b", Dir: node.In, Type: node.ImageType},
	}
	outs = []node.Port{{Name: "out", Dir: node.Out, Type: node.ImageType}}
	return
}

func (n *ImageMixer) Init(ctx *node.Context) error { return nil }

func (n *ImageMixer) Run(ctx *node.Context) error {
	am, err := ctx.Input("a")
	if err != nil {
		return err
	}
	bm, err := ctx.Input("b")
	if err != nil {
		return err
	}
	a := am.(node.ImageMessage)
	b := bm.(node.ImageMessage)
	if a.Texture.Width() != b.Texture.Width() || a.Texture.Height() != b.Texture.Height() {
		return errors.New("nodes: Image.Mixer operands have different dimensions")
	}

	out, err := ctx.Pool().Acquire(a.Texture.Width(), a.Texture.Height(), driver.RGBA8)
	if err != nil {
		return err
	}
	uniforms := []driver.Uniform{
		{Name: "a", Value: a.Texture},
		{Name: "b", Value: b.Texture},
		{Name: "alpha", Value: n.cfg.Alpha},
		{Name: "beta", Value: n.cfg.Beta},
		{Name: "gamma", Value: n.cfg.Gamma},
	}
	if err := dispatch(ctx.GPU(), mixerKernel, out, uniforms); err != nil {
		return err
	}
	ctx.SetOutput("out", node.ImageMessage{Texture: out, Format: driver.RGBA8})
	return nil
}

func (n *ImageMixer) Release() {}
