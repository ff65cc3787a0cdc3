// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package node

import (
	"errors"

	"github.com/gviegas/vision/driver"
	"github.com/gviegas/vision/texture"
)

// Interface is the capability set every node kind implements.
// It deliberately stays this small: node variants are a
// tagged enumeration of kinds behind a shared interface, not
// a deep inheritance hierarchy.
type Interface interface {
	// DeclarePorts returns the node's fixed input and output
	// port list. It must return the same ports on every call.
	DeclarePorts() (ins, outs []Port)

	// Init prepares the node for repeated Run calls, e.g.
	// compiling the kernels it dispatches. It runs once, when
	// the owning pipeline is assembled.
	Init(ctx *Context) error

	// Run executes the node once for the current pipeline
	// run: it reads ctx's input messages, does its work, and
	// publishes output messages via ctx.
	Run(ctx *Context) error

	// Release frees any resource Init acquired. It runs once,
	// when the owning pipeline is torn down.
	Release()
}

// Context is the per-run execution environment a scheduler
// hands to a node's Init/Run methods: device access and the
// message cells for this node's declared ports.
type Context struct {
	gpu    driver.GPU
	pool   *texture.Pool
	reader *texture.Reader

	inputs  map[string]Message
	outputs map[string]Message
}

// NewContext creates a Context backed by gpu, pool and
// reader, with inputs as the node's resolved input messages
// for the current run.
func NewContext(gpu driver.GPU, pool *texture.Pool, reader *texture.Reader, inputs map[string]Message) *Context {
	return &Context{
		gpu:     gpu,
		pool:    pool,
		reader:  reader,
		inputs:  inputs,
		outputs: make(map[string]Message),
	}
}

// GPU returns the device context.
func (c *Context) GPU() driver.GPU { return c.gpu }

// Pool returns the texture pool scratch textures are borrowed
// from and returned to.
func (c *Context) Pool() *texture.Pool { return c.pool }

// Reader returns the async texture reader.
func (c *Context) Reader() *texture.Reader { return c.reader }

var errNoSuchInput = errors.New("node: no such input port")

// Input returns the message published on the named input
// port for this run.
func (c *Context) Input(name string) (Message, error) {
	m, ok := c.inputs[name]
	if !ok {
		return nil, errNoSuchInput
	}
	return m, nil
}

// SetOutput publishes msg on the named output port. It
// overwrites any message previously set on the same port in
// this run.
func (c *Context) SetOutput(name string, msg Message) {
	c.outputs[name] = msg
}

// Outputs returns every message SetOutput recorded during
// this run. The scheduler calls this after Run returns.
func (c *Context) Outputs() map[string]Message { return c.outputs }
