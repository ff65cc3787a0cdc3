// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package nodes implements the concrete node kinds a pipeline
// is built from: Image.Source, Image.Sink, Image.Mixer, the
// Keypoint.Detector/Descriptor/Tracker family, the keypoint
// list combinators (Clipper, Buffer, Mixer, Multiplexer,
// Transformer, SubpixelRefiner), and the cross-pipeline
// Portal pair for both message types.
//
// This package is the one place that depends on both
// driver/softbackend (to register the host-simulated kernels
// a soft-backend run dispatches) and keypoint (to pack and
// unpack the wire format); softbackend itself stays agnostic
// of any particular vision algorithm.
package nodes
