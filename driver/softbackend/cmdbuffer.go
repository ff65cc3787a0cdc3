// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package softbackend

import (
	"errors"

	"github.com/gviegas/vision/driver"
)

// command is a single recorded operation. Exactly one of the
// fields other than kind is meaningful, selected by kind.
type command struct {
	kind cmdKind
	disp dispatchCmd
	cp   copyCmd
	rd   readCmd
	wr   writeCmd
}

type cmdKind int

const (
	cmdDispatch cmdKind = iota
	cmdCopy
	cmdRead
	cmdWrite
)

type dispatchCmd struct {
	kernel    *kernel
	out       driver.Texture
	uniforms  []driver.Uniform
	tileIndex int
	tileCount int
}

type copyCmd struct {
	dst, src driver.Texture
}

type readCmd struct {
	dst driver.Buffer
	src driver.Texture
}

type writeCmd struct {
	dst driver.Texture
	src driver.Buffer
}

// cmdBuffer implements driver.CmdBuffer. Recording only
// appends to cmds; the work itself runs at exec time (called
// from gpu.Commit), so dispatches observe every write
// recorded before them in program order, per the ordering
// guarantee driver.CmdBuffer documents.
type cmdBuffer struct {
	gpu       *gpu
	cmds      []command
	recording bool
}

func (b *cmdBuffer) Destroy() { b.cmds = nil }

func (b *cmdBuffer) Begin() error {
	if b.recording {
		return errors.New("softbackend: Begin called while already recording")
	}
	b.cmds = b.cmds[:0]
	b.recording = true
	return nil
}

func (b *cmdBuffer) Dispatch(k driver.Kernel, out driver.Texture, uniforms []driver.Uniform, tileIndex, tileCount int) error {
	if !b.recording {
		return errors.New("softbackend: Dispatch called outside Begin/End")
	}
	kk, ok := k.(*kernel)
	if !ok {
		return errors.New("softbackend: foreign kernel")
	}
	b.cmds = append(b.cmds, command{
		kind: cmdDispatch,
		disp: dispatchCmd{kernel: kk, out: out, uniforms: uniforms, tileIndex: tileIndex, tileCount: tileCount},
	})
	return nil
}

func (b *cmdBuffer) Copy(dst, src driver.Texture) error {
	if !b.recording {
		return errors.New("softbackend: Copy called outside Begin/End")
	}
	b.cmds = append(b.cmds, command{kind: cmdCopy, cp: copyCmd{dst: dst, src: src}})
	return nil
}

func (b *cmdBuffer) ReadTexture(dst driver.Buffer, src driver.Texture) error {
	if !b.recording {
		return errors.New("softbackend: ReadTexture called outside Begin/End")
	}
	b.cmds = append(b.cmds, command{kind: cmdRead, rd: readCmd{dst: dst, src: src}})
	return nil
}

func (b *cmdBuffer) WriteTexture(dst driver.Texture, src driver.Buffer) error {
	if !b.recording {
		return errors.New("softbackend: WriteTexture called outside Begin/End")
	}
	b.cmds = append(b.cmds, command{kind: cmdWrite, wr: writeCmd{dst: dst, src: src}})
	return nil
}

func (b *cmdBuffer) End() error {
	if !b.recording {
		return errors.New("softbackend: End called without a matching Begin")
	}
	b.recording = false
	return nil
}

func (b *cmdBuffer) Reset() {
	b.cmds = b.cmds[:0]
	b.recording = false
}

func (b *cmdBuffer) IsRecording() bool { return b.recording }

// exec runs every recorded command in order, stopping at the
// first error.
func (b *cmdBuffer) exec() error {
	for _, c := range b.cmds {
		var err error
		switch c.kind {
		case cmdDispatch:
			err = c.disp.kernel.fn(c.disp.out, c.disp.uniforms, c.disp.tileIndex, c.disp.tileCount)
		case cmdCopy:
			err = execCopy(c.cp.dst, c.cp.src)
		case cmdRead:
			err = execRead(c.rd.dst, c.rd.src)
		case cmdWrite:
			err = execWrite(c.wr.dst, c.wr.src)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func execCopy(dst, src driver.Texture) error {
	dp, err := pix(dst)
	if err != nil {
		return err
	}
	sp, err := pix(src)
	if err != nil {
		return err
	}
	if len(dp) != len(sp) {
		return errors.New("softbackend: Copy size mismatch")
	}
	copy(dp, sp)
	return nil
}

func execRead(dst driver.Buffer, src driver.Texture) error {
	sp, err := pix(src)
	if err != nil {
		return err
	}
	db := dst.Bytes()
	if db == nil {
		return errors.New("softbackend: ReadTexture destination is not host visible")
	}
	if len(db) < len(sp) {
		return errors.New("softbackend: ReadTexture destination too small")
	}
	copy(db, sp)
	return nil
}

func execWrite(dst driver.Texture, src driver.Buffer) error {
	dp, err := pix(dst)
	if err != nil {
		return err
	}
	sb := src.Bytes()
	if sb == nil {
		return errors.New("softbackend: WriteTexture source is not host visible")
	}
	if len(sb) < len(dp) {
		return errors.New("softbackend: WriteTexture source too small")
	}
	copy(dp, sb)
	return nil
}
