// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nodes

import (
	"context"
	"errors"

	"github.com/gviegas/vision/driver"
	"github.com/gviegas/vision/keypoint"
	"github.com/gviegas/vision/node"
)

// errPortalNotProduced is returned by a Portal.Source when
// its referenced Portal.Sink has not produced a message yet.
var errPortalNotProduced = errors.New("nodes: portal sink has not produced a message")

// errMixerSizeMismatch is returned by Keypoint.Mixer when its
// two operand lists were encoded with different
// descriptor/extra byte sizes, which would make their cells
// incompatible.
var errMixerSizeMismatch = errors.New("nodes: Keypoint.Mixer operands have different descriptor/extra sizes")

// dispatch runs the named registered kernel once against out,
// with uniforms bound, and blocks until the device reports
// completion. It is the shape every single-pass image node in
// this package records: NewKernel, Begin, Dispatch, End,
// Commit.
func dispatch(gpu driver.GPU, kernelName string, out driver.Texture, uniforms []driver.Uniform) error {
	k, err := gpu.NewKernel(driver.KernelSource{Name: kernelName})
	if err != nil {
		return err
	}
	defer k.Destroy()

	cb, err := gpu.NewCmdBuffer()
	if err != nil {
		return err
	}
	defer cb.Destroy()

	if err := cb.Begin(); err != nil {
		return err
	}
	if err := cb.Dispatch(k, out, uniforms, 0, 1); err != nil {
		return err
	}
	if err := cb.End(); err != nil {
		return err
	}

	ch := make(chan error, 1)
	gpu.Commit([]driver.CmdBuffer{cb}, ch)
	return <-ch
}

// readback reads tex's pixels back to the host, synchronously.
// Several node kinds (the detectors, the descriptor, the
// tracker) need to inspect an image's pixels directly rather
// than through a kernel, since their work is a multi-stage
// host-side scan the soft-backend kernel model does not fit.
func readback(ctx *node.Context, tex driver.Texture) ([]byte, error) {
	f, err := ctx.Reader().ReadPixels(context.Background(), tex)
	if err != nil {
		return nil, err
	}
	return f.Wait(context.Background())
}

// upload writes pix into tex, synchronously, the inverse of
// readback. It is how a node that computed a result on the
// host (a packed keypoint texture, a re-encoded portal frame)
// gets it back onto the device.
func upload(gpu driver.GPU, tex driver.Texture, pix []byte) error {
	buf, err := gpu.NewBuffer(int64(len(pix)), true, driver.UGeneric)
	if err != nil {
		return err
	}
	defer buf.Destroy()
	copy(buf.Bytes(), pix)

	cb, err := gpu.NewCmdBuffer()
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
	gpu.Commit([]driver.CmdBuffer{cb}, ch)
	return <-ch
}

// encoderLengthFor returns the smallest power-of-two square
// dense texture side that can hold capacity keypoints of the
// given descriptor/extra size, so a detector's capacity knob
// translates into a concrete KeypointMessage.EncoderLength.
func encoderLengthFor(capacity, descriptorSize, extraSize int) int {
	el := 2
	for keypoint.Capacity(el, descriptorSize, extraSize) < capacity {
		el *= 2
	}
	return el
}

// encodeAndUpload packs kps into the dense format for an
// encoderLength x encoderLength texture of the given
// descriptor/extra size, acquires a scratch texture from the
// pipeline's pool, and uploads the packed bytes into it.
func encodeAndUpload(ctx *node.Context, encoderLength, descriptorSize, extraSize int, kps []keypoint.Keypoint) (driver.Texture, error) {
	dense, err := keypoint.EncodeKeypoints(encoderLength, descriptorSize, extraSize, kps)
	if err != nil {
		return nil, err
	}
	tex, err := ctx.Pool().Acquire(encoderLength, encoderLength, driver.RGBA8)
	if err != nil {
		return nil, err
	}
	if err := upload(ctx.GPU(), tex, dense); err != nil {
		return nil, err
	}
	return tex, nil
}

// decodeInput reads the KeypointMessage on the named input
// port back to the host and decodes it into a Keypoint list,
// for nodes whose work is naturally expressed over the
// decoded list rather than the packed bytes directly.
func decodeInput(ctx *node.Context, portName string) ([]keypoint.Keypoint, node.KeypointMessage, error) {
	msg, err := ctx.Input(portName)
	if err != nil {
		return nil, node.KeypointMessage{}, err
	}
	km := msg.(node.KeypointMessage)
	pix, err := readback(ctx, km.EncodedKeypoints)
	if err != nil {
		return nil, node.KeypointMessage{}, err
	}
	return keypoint.Decode(pix, km.EncoderLength, km.DescriptorSize, km.ExtraSize), km, nil
}

// grey returns the single-byte greyscale intensity of the
// RGBA8 pixel at (x, y) in an image of width w, averaging the
// three color channels; every detector and the subpixel
// refiner work on this scalar field rather than full color.
func grey(pix []byte, w, x, y int) byte {
	off := (y*w + x) * 4
	return byte((int(pix[off]) + int(pix[off+1]) + int(pix[off+2])) / 3)
}
