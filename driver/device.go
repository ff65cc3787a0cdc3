// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

// GPU is the main interface to an underlying driver
// implementation.
// It is used to create textures, buffers and kernels, and
// to execute command buffers against the device.
// A GPU is obtained from a call to Driver.Open.
type GPU interface {
	// Driver returns the Driver that owns the GPU.
	Driver() Driver

	// Commit commits a batch of command buffers to the GPU
	// for execution.
	// Command buffers submitted together execute in the
	// order given by cb; this is the only ordering guarantee
	// the GPU makes across independent submissions.
	// This method sends the result to ch when all commands
	// complete execution. Command buffers in cb cannot be
	// used for recording until then.
	Commit(cb []CmdBuffer, ch chan<- error)

	// NewCmdBuffer creates a new command buffer.
	NewCmdBuffer() (CmdBuffer, error)

	// NewKernel creates a new kernel program from source.
	// The source's meaning (e.g. GLSL, WGSL, a Go closure
	// identifier) is backend-specific.
	NewKernel(src KernelSource) (Kernel, error)

	// NewBuffer creates a new buffer.
	NewBuffer(size int64, visible bool, usg Usage) (Buffer, error)

	// NewTexture creates a new 2D texture.
	NewTexture(pf PixelFmt, w, h, levels int, usg Usage) (Texture, error)

	// Limits returns the implementation limits.
	// They are immutable for the lifetime of the GPU.
	Limits() Limits
}

// Destroyer is the interface that wraps the Destroy method.
// Types that implement this interface may allocate external
// memory that is not managed by GC, so Destroy must be
// called explicitly to ensure such memory is deallocated.
type Destroyer interface {
	Destroy()
}

// KernelSource identifies the program a Kernel executes.
// Backends interpret it however is natural to them (a
// compiled shader blob for driver/glbackend, a registered
// Go closure name for driver/softbackend).
type KernelSource struct {
	// Name identifies the kernel, e.g. "mixer.blend" or
	// "keypoint.encodeSparse".
	Name string
	// Code is the backend-specific program bytes. It may be
	// nil for backends that resolve Name to a built-in.
	Code []byte
}

// Kernel is the interface that defines a dispatchable
// GPU program. It executes once per output pixel of the
// textures bound as outputs, as if drawing a screen-filling
// primitive.
type Kernel interface {
	Destroyer

	// Name returns the kernel's name, as given in its
	// KernelSource.
	Name() string
}

// Uniform is a named value passed to a kernel dispatch.
// Value must be one of: a numeric scalar, a fixed-size
// numeric array, or a Texture (bound as a sampled input).
type Uniform struct {
	Name  string
	Value any
}

// CmdBuffer is the interface that defines a command buffer.
// Commands are recorded into command buffers and later
// committed to the GPU for execution.
// Usage:
//
//	1. call Begin to prepare the command buffer for recording
//	2. call Dispatch for each kernel invocation
//	3. call Copy/Fill for data-movement commands
//	4. call End
//	5. call GPU.Commit
//
// Ordering: dispatches recorded into the same command buffer
// execute in submission order; a dispatch that reads a
// texture observes all writes recorded before it targeting
// that texture, because submissions are serialized on a
// single device queue.
type CmdBuffer interface {
	Destroyer

	// Begin prepares the command buffer for recording.
	// It invalidates any commands previously recorded.
	Begin() error

	// Dispatch records the execution of a kernel, once per
	// pixel of out's full extent, with the given uniforms
	// bound. tileIndex/tileCount let a kernel subdivide its
	// own index space across multiple Dispatch calls (the
	// keypoint dense encoder uses this to bound per-thread
	// scan length).
	Dispatch(k Kernel, out Texture, uniforms []Uniform, tileIndex, tileCount int) error

	// Copy records a texture-to-texture copy.
	Copy(dst, src Texture) error

	// ReadTexture records a copy of tex's pixels into a
	// host-visible staging Buffer. The buffer must have been
	// created with visible=true and a capacity of at least
	// tex's byte size.
	ReadTexture(dst Buffer, src Texture) error

	// WriteTexture records a copy of a host-visible staging
	// Buffer's bytes into dst's pixels, the inverse of
	// ReadTexture. It is how a Media implementation's upload
	// seam gets a decoded frame onto the device.
	WriteTexture(dst Texture, src Buffer) error

	// End finishes recording. It must be called exactly once,
	// paired with a successful Begin, before committing.
	End() error

	// Reset discards any recorded commands, returning the
	// command buffer to its initial (un-recorded) state.
	Reset()

	// IsRecording reports whether the command buffer is
	// between a Begin and an End/Reset.
	IsRecording() bool
}

// Usage is a mask indicating valid uses for a resource.
type Usage int

// Usage flags for Buffer and Texture.
const (
	// The resource can be read by a kernel.
	UShaderRead Usage = 1 << iota
	// The resource can be written by a kernel.
	UShaderWrite
	// The resource can be read back to the host.
	UHostRead
	// The resource can be used for any purpose.
	UGeneric Usage = 1<<iota - 1
)

// Buffer is the interface that defines a GPU buffer.
// The size of the buffer is fixed. When a larger buffer
// is necessary, a new one must be created and the data
// must be copied explicitly.
type Buffer interface {
	Destroyer

	// Visible returns whether the buffer is host visible.
	// Non-visible memory cannot be accessed by the CPU.
	Visible() bool

	// Bytes returns a slice of length Cap referring to the
	// underlying data. If the buffer is not host visible,
	// it returns nil instead.
	// The slice is valid for the lifetime of the buffer.
	Bytes() []byte

	// Cap returns the capacity of the buffer in bytes,
	// which may be greater than the size requested during
	// buffer creation.
	Cap() int64
}

// PixelFmt describes the format of a pixel.
type PixelFmt int

// Pixel formats. These are the only two formats the
// keypoint codec and image nodes need: an 8-bit-per-channel
// format for ordinary images and the sparse/dense keypoint
// encodings, and a 32-bit float format for intermediate
// buffers that need more than 8 bits of precision per
// channel (e.g. Harris response maps).
const (
	RGBA8 PixelFmt = iota
	RGBA32F
)

// Size returns the number of bytes a single pixel of f
// occupies.
func (f PixelFmt) Size() int {
	switch f {
	case RGBA8:
		return 4
	case RGBA32F:
		return 16
	default:
		return 0
	}
}

// Texture is the interface that defines a GPU-resident 2D
// image. Textures are owned by a texture pool; nodes borrow
// them for the duration of a single pipeline run.
// A texture may be written by at most one kernel dispatch at
// a time; subsequent reads observe the latest write.
type Texture interface {
	Destroyer

	// Format returns the texture's pixel format.
	Format() PixelFmt

	// Width and Height return the texture's dimensions, in
	// pixels, at mip level 0.
	Width() int
	Height() int

	// Levels returns the number of mip levels.
	Levels() int
}

// Limits describes implementation limits.
// These may vary across drivers and devices.
type Limits struct {
	// Maximum width and height of a 2D texture.
	MaxTexture2D int
	// Maximum number of mip levels a texture can have.
	MaxLevels int
	// Maximum dispatch count (width, height, depth) for a
	// single Dispatch call.
	MaxDispatch [3]int
	// Whether the device supports RGBA32F textures.
	Float32Texture bool
}
