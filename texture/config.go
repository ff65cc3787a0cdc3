// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package texture

// Config holds the texture pool's tunable parameters. It
// exists, even though every field currently has a single
// sensible value, because every configurable subsystem in
// this module exposes a Config/DefaultConfig/Configure knob
// set; LogGrowth is the first knob a deployment is likely to
// want to flip.
type Config struct {
	// LogGrowth enables a slog.Debug line each time a bucket
	// grows, reporting its new total slot count.
	LogGrowth bool
}

// DefaultConfig returns the configuration new pools use
// unless Configure is called.
func DefaultConfig() Config { return Config{LogGrowth: true} }

// Configure applies cfg to p. It is safe to call between
// pipeline runs, but never while a run has textures on
// loan from p.
func (p *Pool) Configure(cfg Config) {
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}
