package whisper

import (
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/apperr"
	"github.com/obiente/whisperbridge/internal/transcript"
)

var (
	handleGeneration atomic.Uint64
	liveHandles      atomic.Int64
)

// Generation returns the number of handles acquired by this process.
func Generation() uint64 { return handleGeneration.Load() }

// LiveHandles returns the number of acquired handles not yet released.
func LiveHandles() int64 { return liveHandles.Load() }

// ModelHandle exclusively owns one loaded whisper context. All calls that
// touch the context hold mu, so a handle may be shared between goroutines
// while its calls run one at a time. A ModelHandle must not be copied.
type ModelHandle struct {
	mu         sync.Mutex
	native     Native
	ctx        Context
	path       string
	generation uint64
}

// Acquire loads the model at path with the compiled-in engine.
func Acquire(path string, opts ContextOptions) (*ModelHandle, error) {
	n, err := NewNative()
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindInitialization, Message: "in-process engine unavailable", Err: err}
	}
	return AcquireWith(n, path, opts)
}

// AcquireWith loads the model at path through n.
func AcquireWith(n Native, path string, opts ContextOptions) (*ModelHandle, error) {
	bufs := &NativeCallBuffers{}
	defer bufs.Release()
	cpath, err := bufs.CString(path)
	if err != nil {
		return nil, err
	}
	if err := apperr.CheckFile(path, apperr.ModelNotFound); err != nil {
		return nil, err
	}

	ctx := n.InitFromFile(cpath, opts)
	if ctx == nil {
		return nil, apperr.ModelLoad(path, "whisper.cpp could not initialise a context from the file")
	}

	h := &ModelHandle{
		native:     n,
		ctx:        ctx,
		path:       path,
		generation: handleGeneration.Add(1),
	}
	liveHandles.Add(1)
	runtime.SetFinalizer(h, (*ModelHandle).Release)

	log.Info().Str("model", path).Uint64("generation", h.generation).Msg("whisper: model loaded successfully")
	return h, nil
}

// Path is the model file the handle was created from.
func (h *ModelHandle) Path() string { return h.path }

// Generation is the acquire sequence number of this handle.
func (h *ModelHandle) Generation() uint64 { return h.generation }

// Released reports whether the context has been freed.
func (h *ModelHandle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ctx == nil
}

// Release frees the context. Calling it again is a no-op. It waits for an
// in-flight transcription on the handle to finish.
func (h *ModelHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx == nil {
		return
	}
	h.native.Free(h.ctx)
	h.ctx = nil
	liveHandles.Add(-1)
	runtime.SetFinalizer(h, nil)
	log.Debug().Str("model", h.path).Uint64("generation", h.generation).Msg("whisper: model released")
}

// Transcribe runs one foreign transcription over 16 kHz mono samples. Calls
// on the same handle are serialised.
func (h *ModelHandle) Transcribe(cfg Config, samples []float32) (*transcript.Transcript, error) {
	if len(samples) == 0 {
		return nil, apperr.Initialization("empty sample buffer")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx == nil {
		return nil, apperr.Initialization("model handle has been released")
	}

	call, err := buildParams(cfg, h.native)
	if err != nil {
		return nil, err
	}
	defer call.Release()

	start := time.Now()
	status := h.native.Full(h.ctx, call, samples)
	if err := apperr.FromStatus("whisper_full", status); err != nil {
		return nil, err
	}

	tr, err := h.collect()
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("model", h.path).
		Int("samples", len(samples)).
		Int("segments", tr.Len()).
		Str("lang", tr.Language).
		Dur("took", time.Since(start)).
		Msg("whisper: transcription complete")
	return tr, nil
}

// collect reads the segments of the last Full call. Caller holds mu.
func (h *ModelHandle) collect() (*transcript.Transcript, error) {
	n := h.native.SegmentCount(h.ctx)
	if n < 0 {
		return nil, apperr.EngineProtocol("negative segment count %d", n)
	}
	segs := make([]transcript.Segment, 0, n)
	for i := 0; i < n; i++ {
		t0, t1 := h.native.SegmentSpan(h.ctx, i)
		segs = append(segs, transcript.Segment{
			Start: centiseconds(t0),
			End:   centiseconds(t1),
			// Tokens can split a multi-byte rune across segments.
			Text: strings.ToValidUTF8(h.native.SegmentText(h.ctx, i), "\uFFFD"),
		})
	}
	tr, err := transcript.New(segs)
	if err != nil {
		return nil, err
	}
	tr.Language = h.native.DetectedLanguage(h.ctx)
	return tr, nil
}

func centiseconds(t int64) time.Duration { return time.Duration(t) * 10 * time.Millisecond }
