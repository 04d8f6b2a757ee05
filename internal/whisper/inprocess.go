package whisper

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/apperr"
	"github.com/obiente/whisperbridge/internal/transcript"
)

// AudioSource turns an audio file into 16 kHz mono float samples.
type AudioSource interface {
	Load(path string) ([]float32, error)
}

// InProcessOptions configure an InProcessBackend.
type InProcessOptions struct {
	// Native defaults to the compiled-in engine.
	Native  Native
	Audio   AudioSource
	Context ContextOptions
}

// InProcessBackend calls whisper.cpp directly. It keeps one ModelHandle per
// model path and reuses it across requests.
type InProcessBackend struct {
	native  Native
	audio   AudioSource
	ctxOpts ContextOptions

	mu      sync.Mutex
	handles map[string]*ModelHandle
}

func NewInProcessBackend(opts InProcessOptions) (*InProcessBackend, error) {
	n := opts.Native
	if n == nil {
		var err error
		if n, err = NewNative(); err != nil {
			return nil, &apperr.Error{Kind: apperr.KindInitialization, Message: "in-process engine unavailable", Err: err}
		}
	}
	if opts.Audio == nil {
		return nil, apperr.Initialization("in-process backend needs an audio source")
	}
	return &InProcessBackend{
		native:  n,
		audio:   opts.Audio,
		ctxOpts: opts.Context,
		handles: make(map[string]*ModelHandle),
	}, nil
}

func (b *InProcessBackend) Name() string { return "inprocess" }

func (b *InProcessBackend) Transcribe(req Request) (*transcript.Transcript, error) {
	inv := newInvocation(b.Name(), req)
	return inv.run(func(transcript.Format) (*transcript.Transcript, []byte, error) {
		samples, err := b.audio.Load(req.AudioPath)
		if err != nil {
			return nil, nil, err
		}
		h, err := b.handle(req.ModelPath)
		if err != nil {
			return nil, nil, err
		}
		tr, err := h.Transcribe(req.Config, samples)
		return tr, nil, err
	})
}

// handle returns the cached handle for path, loading it on first use.
func (b *InProcessBackend) handle(path string) (*ModelHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h, ok := b.handles[path]; ok && !h.Released() {
		return h, nil
	}
	h, err := AcquireWith(b.native, path, b.ctxOpts)
	if err != nil {
		return nil, err
	}
	b.handles[path] = h
	return h, nil
}

// Close releases every cached handle.
func (b *InProcessBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for path, h := range b.handles {
		h.Release()
		delete(b.handles, path)
	}
	log.Debug().Msg("whisper: in-process backend closed")
	return nil
}
