package whisper

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/apperr"
	"github.com/obiente/whisperbridge/internal/transcript"
)

// State is the phase of one backend invocation.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Request describes one transcription.
type Request struct {
	ModelPath string
	AudioPath string
	Config    Config

	// OutputPath, when set, receives the rendered transcript once it has
	// been built successfully.
	OutputPath string

	// Observer is told about every state transition.
	Observer func(State)
}

// Backend executes transcriptions. InProcessBackend and SubprocessBackend
// share this contract and the Request/Transcript types.
type Backend interface {
	Name() string
	Transcribe(req Request) (*transcript.Transcript, error)
}

// runFunc performs the Running phase. It may return the bytes to
// materialise at the output path; nil means render the transcript.
type runFunc func(format transcript.Format) (*transcript.Transcript, []byte, error)

// invocation drives the state machine shared by both backends.
type invocation struct {
	backend string
	req     Request
	state   State
	logger  zerolog.Logger
}

func newInvocation(backend string, req Request) *invocation {
	return &invocation{
		backend: backend,
		req:     req,
		state:   StateIdle,
		logger:  log.With().Str("backend", backend).Str("audio", req.AudioPath).Logger(),
	}
}

var transitions = map[State][]State{
	StateIdle:       {StateValidating},
	StateValidating: {StateRunning, StateFailed},
	StateRunning:    {StateCompleted, StateFailed},
}

func (inv *invocation) enter(next State) {
	allowed := false
	for _, s := range transitions[inv.state] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		panic(fmt.Sprintf("whisper: invalid invocation transition %s -> %s", inv.state, next))
	}
	inv.logger.Debug().Str("from", inv.state.String()).Str("to", next.String()).Msg("whisper: invocation state")
	inv.state = next
	if inv.req.Observer != nil {
		inv.req.Observer(next)
	}
}

func (inv *invocation) fail(err error) error {
	inv.enter(StateFailed)
	inv.logger.Warn().Err(err).Str("kind", apperr.KindOf(err).String()).Msg("whisper: transcription failed")
	return err
}

// validate checks everything that can be checked without touching the
// engine: output format, language, model file and audio file.
func (inv *invocation) validate() (transcript.Format, error) {
	format, err := inv.req.Config.OutputFormat()
	if err != nil {
		return 0, err
	}
	if lang := inv.req.Config.Language(); !ValidLanguage(lang) {
		return 0, apperr.Initialization("unknown language %q", lang)
	}
	if err := apperr.CheckFile(inv.req.ModelPath, apperr.ModelNotFound); err != nil {
		return 0, err
	}
	if err := apperr.CheckFile(inv.req.AudioPath, apperr.AudioNotFound); err != nil {
		return 0, err
	}
	return format, nil
}

// run executes Validating, Running and the terminal transition.
func (inv *invocation) run(running runFunc) (*transcript.Transcript, error) {
	inv.enter(StateValidating)
	format, err := inv.validate()
	if err != nil {
		return nil, inv.fail(err)
	}

	inv.enter(StateRunning)
	start := time.Now()
	tr, rendered, err := running(format)
	if err != nil {
		return nil, inv.fail(err)
	}

	if inv.req.OutputPath != "" {
		if rendered != nil {
			err = transcript.WriteFile(inv.req.OutputPath, rendered)
		} else {
			err = transcript.Write(inv.req.OutputPath, tr, format)
		}
		if err != nil {
			return nil, inv.fail(err)
		}
	}

	inv.enter(StateCompleted)
	inv.logger.Info().
		Int("segments", tr.Len()).
		Dur("audio", tr.Duration()).
		Str("format", format.String()).
		Str("output", inv.req.OutputPath).
		Dur("took", time.Since(start)).
		Msg("whisper: transcription finished")
	return tr, nil
}
