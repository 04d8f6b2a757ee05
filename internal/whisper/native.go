package whisper

import (
	"errors"
	"unsafe"
)

// Context is an opaque whisper_context pointer.
type Context unsafe.Pointer

// ContextOptions are applied when a model is loaded.
type ContextOptions struct {
	UseGPU    bool
	GPUDevice int
	FlashAttn bool
}

// Native is the table of whisper.cpp entry points the in-process backend
// uses. The cgo implementation is compiled with the whisper_cpp build tag;
// tests substitute their own.
//
// None of the methods are safe for concurrent use on the same Context.
type Native interface {
	// InitFromFile loads a model. path is a NUL-terminated string. A nil
	// Context reports failure.
	InitFromFile(path *byte, opts ContextOptions) Context
	Free(ctx Context)
	// DefaultParams returns the engine defaults for strategy.
	DefaultParams(strategy Strategy) NativeParams
	// Full runs whisper_full over 16 kHz mono samples and returns its status.
	Full(ctx Context, call *NativeCall, samples []float32) int
	SegmentCount(ctx Context) int
	SegmentText(ctx Context, i int) string
	// SegmentSpan returns segment start and end in 10 ms units.
	SegmentSpan(ctx Context, i int) (t0, t1 int64)
	// DetectedLanguage returns the language of the last Full call, or "".
	DetectedLanguage(ctx Context) string
}

// ErrNativeUnavailable is returned when the binary was built without the
// whisper_cpp tag.
var ErrNativeUnavailable = errors.New("whisper: in-process engine not compiled in (build with -tags whisper_cpp)")
