// Copyright 2024 Gustavo C. Viegas. All rights reserved.

//go:build gl

package glbackend

import (
	"errors"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/soypat/glgl/v4.6-core/glgl"

	"github.com/gviegas/vision/driver"
)

type dispatchCmd struct {
	k         *kernel
	out       *texture
	uniforms  []driver.Uniform
	tileIndex int
	tileCount int
}

type copyCmd struct{ dst, src *texture }
type readCmd struct {
	dst *buffer
	src *texture
}
type writeCmd struct {
	dst *texture
	src *buffer
}

type cmdBuffer struct {
	gpu       *gpu
	disp      []dispatchCmd
	cps       []copyCmd
	reads     []readCmd
	writes    []writeCmd
	order     []byte // 'd', 'c', 'r' or 'w', recorded in submission order
	recording bool
}

func (b *cmdBuffer) Destroy() {}

func (b *cmdBuffer) Begin() error {
	if b.recording {
		return errors.New("glbackend: Begin called while already recording")
	}
	b.disp, b.cps, b.reads, b.writes, b.order = nil, nil, nil, nil, nil
	b.recording = true
	return nil
}

func (b *cmdBuffer) Dispatch(k driver.Kernel, out driver.Texture, uniforms []driver.Uniform, tileIndex, tileCount int) error {
	kk, ok1 := k.(*kernel)
	t, ok2 := out.(*texture)
	if !b.recording || !ok1 || !ok2 {
		return errors.New("glbackend: invalid Dispatch call")
	}
	b.disp = append(b.disp, dispatchCmd{k: kk, out: t, uniforms: uniforms, tileIndex: tileIndex, tileCount: tileCount})
	b.order = append(b.order, 'd')
	return nil
}

func (b *cmdBuffer) Copy(dst, src driver.Texture) error {
	d, ok1 := dst.(*texture)
	s, ok2 := src.(*texture)
	if !b.recording || !ok1 || !ok2 {
		return errors.New("glbackend: invalid Copy call")
	}
	b.cps = append(b.cps, copyCmd{dst: d, src: s})
	b.order = append(b.order, 'c')
	return nil
}

func (b *cmdBuffer) ReadTexture(dst driver.Buffer, src driver.Texture) error {
	d, ok1 := dst.(*buffer)
	s, ok2 := src.(*texture)
	if !b.recording || !ok1 || !ok2 {
		return errors.New("glbackend: invalid ReadTexture call")
	}
	b.reads = append(b.reads, readCmd{dst: d, src: s})
	b.order = append(b.order, 'r')
	return nil
}

func (b *cmdBuffer) WriteTexture(dst driver.Texture, src driver.Buffer) error {
	d, ok1 := dst.(*texture)
	s, ok2 := src.(*buffer)
	if !b.recording || !ok1 || !ok2 {
		return errors.New("glbackend: invalid WriteTexture call")
	}
	b.writes = append(b.writes, writeCmd{dst: d, src: s})
	b.order = append(b.order, 'w')
	return nil
}

func (b *cmdBuffer) End() error {
	if !b.recording {
		return errors.New("glbackend: End called without a matching Begin")
	}
	b.recording = false
	return nil
}

func (b *cmdBuffer) Reset() {
	b.disp, b.cps, b.reads, b.writes, b.order = nil, nil, nil, nil, nil
	b.recording = false
}

func (b *cmdBuffer) IsRecording() bool { return b.recording }

// exec replays recorded commands in submission order on the
// current GL context, inserting a compute-shader memory
// barrier after every dispatch so that a later command
// observes the write, matching the ordering guarantee
// driver.CmdBuffer documents.
func (b *cmdBuffer) exec() error {
	var di, ci, ri, wi int
	for _, kind := range b.order {
		switch kind {
		case 'd':
			d := b.disp[di]
			di++
			d.k.prog.Bind()
			for _, u := range d.uniforms {
				if f, ok := u.Value.(float32); ok {
					loc, err := d.k.prog.UniformLocation(u.Name + "\x00")
					if err != nil {
						return err
					}
					if err := d.k.prog.SetUniformf(loc, f); err != nil {
						return err
					}
				}
			}
			if err := d.k.prog.RunCompute(d.out.w, d.out.h, 1); err != nil {
				return err
			}
			gl.MemoryBarrier(gl.SHADER_IMAGE_ACCESS_BARRIER_BIT | gl.TEXTURE_FETCH_BARRIER_BIT)
		case 'c':
			cp := b.cps[ci]
			ci++
			tmp := make([]float32, cp.src.w*cp.src.h*4)
			if err := glgl.GetImage(tmp, cp.src.tex, cp.src.cfg); err != nil {
				return err
			}
			if err := glgl.SetImage2D(cp.dst.tex, cp.dst.cfg, tmp); err != nil {
				return err
			}
		case 'r':
			rd := b.reads[ri]
			ri++
			tmp := make([]float32, rd.src.w*rd.src.h*4)
			if err := glgl.GetImage(tmp, rd.src.tex, rd.src.cfg); err != nil {
				return err
			}
			packFloatsToBytes(tmp, rd.dst.data)
		case 'w':
			wr := b.writes[wi]
			wi++
			tmp := make([]float32, wr.dst.w*wr.dst.h*4)
			unpackBytesToFloats(wr.src.data, tmp)
			if err := glgl.SetImage2D(wr.dst.tex, wr.dst.cfg, tmp); err != nil {
				return err
			}
		}
	}
	return nil
}

// packFloatsToBytes quantizes float32 RGBA channel values in
// [0,1] into the flat byte buffer the rest of the engine
// (texture.Reader, the keypoint codec) expects, per the pixel
// read-back format in the external interfaces section.
func packFloatsToBytes(src []float32, dst []byte) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		v := src[i]
		switch {
		case v <= 0:
			dst[i] = 0
		case v >= 1:
			dst[i] = 255
		default:
			dst[i] = byte(v*255 + 0.5)
		}
	}
}

// unpackBytesToFloats is the inverse of packFloatsToBytes: it
// normalizes byte channel values into the [0,1] range glgl's
// image upload expects.
func unpackBytesToFloats(src []byte, dst []float32) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] = float32(src[i]) / 255
	}
}
