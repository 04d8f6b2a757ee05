package whisper

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/apperr"
)

// Backend kinds accepted by NewBackend.
const (
	KindAuto       = "auto"
	KindInProcess  = "inprocess"
	KindSubprocess = "subprocess"
)

// Options select and configure a backend.
type Options struct {
	Kind string

	// In-process settings.
	Audio   AudioSource
	Context ContextOptions

	// Subprocess settings.
	Binary        string
	WhisperCppDir string
	Timeout       time.Duration
	PassThrough   []string
}

// NewBackend builds the backend named by opts.Kind. "auto" prefers the
// in-process engine and falls back to the subprocess backend when the
// binary was built without it.
func NewBackend(opts Options) (Backend, error) {
	kind := strings.ToLower(strings.TrimSpace(opts.Kind))
	switch kind {
	case "", KindAuto:
		if !NativeAvailable() {
			log.Info().Msg("whisper: in-process engine not compiled in, using subprocess backend")
			return newSubprocess(opts), nil
		}
		return newInProcess(opts)
	case KindInProcess:
		return newInProcess(opts)
	case KindSubprocess:
		return newSubprocess(opts), nil
	}
	return nil, apperr.Initialization("unknown backend %q (want auto, inprocess or subprocess)", opts.Kind)
}

func newInProcess(opts Options) (*InProcessBackend, error) {
	return NewInProcessBackend(InProcessOptions{Audio: opts.Audio, Context: opts.Context})
}

func newSubprocess(opts Options) *SubprocessBackend {
	return NewSubprocessBackend(SubprocessOptions{
		Locator:     NewLocator(opts.Binary, opts.WhisperCppDir),
		Runner:      ExecRunner{Timeout: opts.Timeout},
		PassThrough: opts.PassThrough,
	})
}
