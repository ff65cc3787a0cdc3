// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package pipeline assembles typed nodes into a validated
// graph, computes a topological execution order, and
// schedules runs against a GPU device context: single
// execution per node per run, at most one in-flight run per
// pipeline, and no leaked scratch texture at a run's
// boundary.
package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/gviegas/vision/driver"
	"github.com/gviegas/vision/node"
	"github.com/gviegas/vision/texture"
)

// connection is a wiring record: the upstream node's named
// output port feeding the downstream node's named input port.
type connection struct {
	fromID, toID     int
	fromPort, toPort string
}

// entry tracks the bookkeeping a Pipeline needs for one added
// node beyond what node.Graph itself stores: its declared
// ports (cached so DeclarePorts need not be re-invoked), its
// insertion order, and whether Init has run on it yet.
type entry struct {
	name  string
	order int
	ins   []node.Port
	outs  []node.Port
	init  bool
}

// Pipeline wires node.Interface values into an executable
// graph. The zero value is not usable; construct one with
// New.
type Pipeline struct {
	gpu    driver.GPU
	pool   *texture.Pool
	reader *texture.Reader
	cfg    Config

	graph node.Graph
	names map[string]int
	ents  map[int]*entry
	conns []connection
	next  int // insertion order counter

	// order is the validated topological schedule computed by
	// Init; nil until Init succeeds.
	order []int
	sink  int // node id of the sole sink; valid once order != nil

	mu      sync.Mutex
	running bool
	waiters []chan struct{}
	torndown bool
}

// New creates an empty Pipeline backed by gpu, with its own
// texture pool and async reader.
func New(gpu driver.GPU) *Pipeline {
	cfg := DefaultConfig()
	return &Pipeline{
		gpu:    gpu,
		pool:   texture.NewPool(gpu),
		reader: texture.NewReader(gpu),
		cfg:    cfg,
		names:  make(map[string]int),
		ents:   make(map[int]*entry),
	}
}

// Pool returns the pipeline's scratch texture pool.
func (p *Pipeline) Pool() *texture.Pool { return p.pool }

// AddNode registers n under name, returning its node id.
// name must be unique among nodes currently in the pipeline.
func (p *Pipeline) AddNode(name string, n node.Interface) (int, error) {
	if _, ok := p.names[name]; ok {
		return 0, newError(ValidationError, DuplicateNodeName, name)
	}
	id := p.graph.Add(n)
	ins, outs := n.DeclarePorts()
	p.ents[id] = &entry{name: name, order: p.next, ins: ins, outs: outs}
	p.names[name] = id
	p.next++
	return id, nil
}

// Connect wires the named output port of the node called
// fromNode to the named input port of the node called
// toNode. It fails at this call, not at Init, if the port
// types are incompatible: the port layer rejects mismatched
// connections at wiring time.
func (p *Pipeline) Connect(fromNode, fromPort, toNode, toPort string) error {
	fromID, ok := p.names[fromNode]
	if !ok {
		return wrapError(ValidationError, TypeMismatch, fromNode, errNoSuchPort)
	}
	toID, ok := p.names[toNode]
	if !ok {
		return wrapError(ValidationError, TypeMismatch, toNode, errNoSuchPort)
	}
	out, err := findPort(p.ents[fromID].outs, fromPort, node.Out)
	if err != nil {
		return wrapError(ValidationError, TypeMismatch, fromNode+"."+fromPort, err)
	}
	in, err := findPort(p.ents[toID].ins, toPort, node.In)
	if err != nil {
		return wrapError(ValidationError, TypeMismatch, toNode+"."+toPort, err)
	}
	if err := in.Accepts(out.Type); err != nil {
		return wrapError(ValidationError, TypeMismatch, toNode+"."+toPort, err)
	}
	p.conns = append(p.conns, connection{fromID, toID, fromPort, toPort})
	return nil
}

var errNoSuchPort = errors.New("pipeline: no such port")

func findPort(ports []node.Port, name string, dir node.Direction) (node.Port, error) {
	for _, pt := range ports {
		if pt.Name == name && pt.Dir == dir {
			return pt, nil
		}
	}
	return node.Port{}, errNoSuchPort
}

// Init validates the wired graph and computes its execution
// order. It must be called exactly once, after all nodes have
// been added and connected and before the first Run.
func (p *Pipeline) Init() error {
	if err := p.validateUnconnected(); err != nil {
		return err
	}
	sinks, err := p.findSinks()
	if err != nil {
		return err
	}
	order, err := p.topologicalOrder(sinks[0])
	if err != nil {
		return err
	}
	p.order = order
	p.sink = sinks[0]

	for id := range p.ents {
		if err := p.graph.At(id).Init(node.NewContext(p.gpu, p.pool, p.reader, nil)); err != nil {
			p.order = nil
			for otherID, e := range p.ents {
				if e.init {
					p.graph.At(otherID).Release()
				}
			}
			return wrapError(IllegalOperationError, Uninitialized, p.ents[id].name, err)
		}
		p.ents[id].init = true
	}
	return nil
}

// validateUnconnected reports *UnconnectedInput for the first
// declared input port lacking a satisfying connection.
func (p *Pipeline) validateUnconnected() error {
	satisfied := make(map[int]map[string]bool)
	for _, c := range p.conns {
		m := satisfied[c.toID]
		if m == nil {
			m = make(map[string]bool)
			satisfied[c.toID] = m
		}
		m[c.toPort] = true
	}
	for id, e := range p.ents {
		for _, in := range e.ins {
			if !satisfied[id][in.Name] {
				return newError(ValidationError, UnconnectedInput, e.name+"."+in.Name)
			}
		}
	}
	return nil
}

// findSinks returns the id of every node with no declared
// output ports, failing with *NoSink or *MultipleSinks unless
// there is exactly one.
func (p *Pipeline) findSinks() ([]int, error) {
	var sinks []int
	for id, e := range p.ents {
		if len(e.outs) == 0 {
			sinks = append(sinks, id)
		}
	}
	switch len(sinks) {
	case 0:
		return nil, newError(ValidationError, NoSink, "")
	case 1:
		return sinks, nil
	default:
		return nil, newError(ValidationError, MultipleSinks, "")
	}
}

// topologicalOrder computes the tie-broken schedule: nodes
// with no inputs run first, ties among ready nodes break by
// insertion order, and sinkID always runs last.
func (p *Pipeline) topologicalOrder(sinkID int) ([]int, error) {
	inDeg := make(map[int]int, len(p.ents))
	succ := make(map[int][]int, len(p.ents))
	for id := range p.ents {
		inDeg[id] = 0
	}
	for _, c := range p.conns {
		inDeg[c.toID]++
		succ[c.fromID] = append(succ[c.fromID], c.toID)
	}

	var ready []int
	for id := range p.ents {
		if inDeg[id] == 0 && id != sinkID {
			ready = append(ready, id)
		}
	}

	var order []int
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			ei, ej := p.ents[ready[i]], p.ents[ready[j]]
			if (len(ei.ins) == 0) != (len(ej.ins) == 0) {
				return len(ei.ins) == 0
			}
			return ei.order < ej.order
		})
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, next := range succ[n] {
			inDeg[next]--
			if inDeg[next] == 0 && next != sinkID {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(p.ents)-1 || inDeg[sinkID] != 0 {
		return nil, newError(ValidationError, Cycle, "")
	}
	order = append(order, sinkID)
	return order, nil
}

// Run executes one pass of the pipeline and returns the
// sink's exported messages. If a run is already in flight,
// Run's behavior follows Config.OnBusy: Queue suspends the
// caller until the prior run resolves (preserving call
// order), Reject fails immediately with *Busy.
func (p *Pipeline) Run(ctx context.Context) (map[string]node.Message, error) {
	if p.order == nil {
		return nil, newError(IllegalOperationError, Uninitialized, "")
	}
	if err := p.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer p.releaseSlot()

	if p.torndown {
		return nil, newError(CancelledError, Torndown, "")
	}

	published := make(map[int]map[string]node.Message)
	return p.runNodes(ctx, published)
}

func (p *Pipeline) runNodes(ctx context.Context, published map[int]map[string]node.Message) (map[string]node.Message, error) {
	consumersLeft := make(map[int]int, len(p.ents))
	released := make(map[int]bool, len(p.ents))
	for id := range p.ents {
		consumersLeft[id] = 0
	}
	for _, c := range p.conns {
		consumersLeft[c.fromID]++
	}
	release := func(id int) {
		if released[id] {
			return
		}
		released[id] = true
		p.releaseMessages(published[id])
	}

	for _, id := range p.order {
		e := p.ents[id]
		n := p.graph.At(id)

		inputs := make(map[string]node.Message, len(e.ins))
		for _, c := range p.conns {
			if c.toID != id {
				continue
			}
			msg, ok := published[c.fromID][c.fromPort]
			if !ok {
				return nil, newError(IllegalOperationError, ReadBeforeWrite, e.name+"."+c.toPort)
			}
			inputs[c.toPort] = msg
		}

		nctx := node.NewContext(p.gpu, p.pool, p.reader, inputs)
		if err := n.Run(nctx); err != nil {
			p.abort(published, released)
			return nil, wrapError(IllegalOperationError, WrongMessage, e.name, err)
		}
		published[id] = nctx.Outputs()
		if len(e.outs) > 0 && consumersLeft[id] == 0 {
			// No connection reads this node's output at all;
			// nothing will ever trigger its release below.
			release(id)
		}

		// id has now read every upstream message it consumes;
		// any producer left with no remaining consumer gives
		// its textures back to the pool.
		for _, c := range p.conns {
			if c.toID != id {
				continue
			}
			consumersLeft[c.fromID]--
			if consumersLeft[c.fromID] == 0 {
				release(c.fromID)
			}
		}

		if ctx.Err() != nil {
			p.abort(published, released)
			return nil, wrapError(CancelledError, Torndown, "", ctx.Err())
		}
	}

	return published[p.sink], nil
}

// releaseMessages returns any texture a message owns back to
// the pool, once the scheduler has determined it has no more
// consumers.
func (p *Pipeline) releaseMessages(msgs map[string]node.Message) {
	for _, m := range msgs {
		switch v := m.(type) {
		case node.ImageMessage:
			if v.Texture != nil {
				p.pool.Release(v.Texture)
			}
		case node.KeypointMessage:
			if v.EncodedKeypoints != nil {
				p.pool.Release(v.EncodedKeypoints)
			}
		}
	}
}

// abort releases every texture already produced this run that
// has not already been returned to the pool, so a failed Run
// leaves no scratch texture outstanding.
func (p *Pipeline) abort(published map[int]map[string]node.Message, released map[int]bool) {
	for id, msgs := range published {
		if !released[id] {
			p.releaseMessages(msgs)
		}
	}
}

// acquireSlot enforces at-most-one in-flight run, per
// Config.OnBusy.
func (p *Pipeline) acquireSlot(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.running = true
		p.mu.Unlock()
		return nil
	}
	if p.cfg.OnBusy == Reject {
		p.mu.Unlock()
		return wrapError(IllegalOperationError, Busy, "", errBusy)
	}
	wait := make(chan struct{})
	p.waiters = append(p.waiters, wait)
	p.mu.Unlock()

	select {
	case <-wait:
		p.mu.Lock()
		p.running = true
		p.mu.Unlock()
		return nil
	case <-ctx.Done():
		return wrapError(CancelledError, Torndown, "", ctx.Err())
	}
}

func (p *Pipeline) releaseSlot() {
	p.mu.Lock()
	p.running = false
	var next chan struct{}
	if len(p.waiters) > 0 {
		next = p.waiters[0]
		p.waiters = p.waiters[1:]
	}
	p.mu.Unlock()
	if next != nil {
		close(next)
	}
}

// Release marks the pipeline torn down, so every later Run
// fails with a Cancelled error, and calls Release on every
// node that was initialized. It does not cancel reads already
// issued through the pipeline's texture.Reader; their futures
// resolve as they otherwise would. Shader-side work already in
// flight is allowed to complete.
func (p *Pipeline) Release() {
	p.mu.Lock()
	p.torndown = true
	p.mu.Unlock()
	for id := range p.ents {
		if p.ents[id].init {
			p.graph.At(id).Release()
		}
	}
}
