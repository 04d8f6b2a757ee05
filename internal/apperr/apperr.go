// Package apperr defines the closed set of failures the bridge reports and
// the helpers that fold native status codes, process exits and filesystem
// errors into it.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies a member of the error taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindModelNotFound
	KindModelLoad
	KindAudioNotFound
	KindUnsupportedAudioFormat
	KindUnsupportedOutputFormat
	KindInitialization
	KindTranscription
	KindEngineProtocol
	KindIO
	KindDownload
)

var kindNames = map[Kind]string{
	KindUnknown:                 "unknown",
	KindModelNotFound:           "model_not_found",
	KindModelLoad:               "model_load",
	KindAudioNotFound:           "audio_not_found",
	KindUnsupportedAudioFormat:  "unsupported_audio_format",
	KindUnsupportedOutputFormat: "unsupported_output_format",
	KindInitialization:          "initialization",
	KindTranscription:           "transcription",
	KindEngineProtocol:          "engine_protocol",
	KindIO:                      "io",
	KindDownload:                "download",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single concrete error type returned across package
// boundaries. Path is set for file-related kinds, Message carries free-form
// detail and Err the underlying cause, if any.
type Error struct {
	Kind    Kind
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var s string
	switch e.Kind {
	case KindModelNotFound:
		s = "model file not found: " + e.Path
	case KindModelLoad:
		s = fmt.Sprintf("failed to load model from %s: %s", e.Path, e.Message)
	case KindAudioNotFound:
		s = "audio file not found: " + e.Path
	case KindUnsupportedAudioFormat:
		s = "unsupported audio format: " + e.Message
	case KindUnsupportedOutputFormat:
		s = "unsupported output format: " + e.Message
	case KindInitialization:
		s = "failed to initialize whisper context: " + e.Message
	case KindTranscription:
		s = "failed to transcribe audio: " + e.Message
	case KindEngineProtocol:
		s = "engine produced malformed output: " + e.Message
	case KindIO:
		s = "io error"
		if e.Message != "" {
			s += ": " + e.Message
		}
		if e.Path != "" {
			s += " " + e.Path
		}
	case KindDownload:
		s = "failed to download model: " + e.Message
	default:
		s = e.Message
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a bare sentinel of the same kind, so callers
// can write errors.Is(err, apperr.ErrAudioNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Path == "" && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrModelNotFound           = &Error{Kind: KindModelNotFound}
	ErrModelLoad               = &Error{Kind: KindModelLoad}
	ErrAudioNotFound           = &Error{Kind: KindAudioNotFound}
	ErrUnsupportedAudioFormat  = &Error{Kind: KindUnsupportedAudioFormat}
	ErrUnsupportedOutputFormat = &Error{Kind: KindUnsupportedOutputFormat}
	ErrInitialization          = &Error{Kind: KindInitialization}
	ErrTranscription           = &Error{Kind: KindTranscription}
	ErrEngineProtocol          = &Error{Kind: KindEngineProtocol}
	ErrIO                      = &Error{Kind: KindIO}
	ErrDownload                = &Error{Kind: KindDownload}
)

func ModelNotFound(path string) error { return &Error{Kind: KindModelNotFound, Path: path} }

func ModelLoad(path, message string) error {
	return &Error{Kind: KindModelLoad, Path: path, Message: message}
}

func AudioNotFound(path string) error { return &Error{Kind: KindAudioNotFound, Path: path} }

func UnsupportedAudioFormat(detail string) error {
	return &Error{Kind: KindUnsupportedAudioFormat, Message: detail}
}

func UnsupportedOutputFormat(format string) error {
	return &Error{Kind: KindUnsupportedOutputFormat, Message: fmt.Sprintf("%q (want text, srt, vtt or json)", format)}
}

func Initialization(format string, args ...any) error {
	return &Error{Kind: KindInitialization, Message: fmt.Sprintf(format, args...)}
}

func Transcription(format string, args ...any) error {
	return &Error{Kind: KindTranscription, Message: fmt.Sprintf(format, args...)}
}

func EngineProtocol(format string, args ...any) error {
	return &Error{Kind: KindEngineProtocol, Message: fmt.Sprintf(format, args...)}
}

// IO wraps a filesystem or OS failure. op describes what was attempted.
func IO(op, path string, err error) error {
	return &Error{Kind: KindIO, Message: op, Path: path, Err: err}
}

func Download(message string, err error) error {
	return &Error{Kind: KindDownload, Message: message, Err: err}
}

// KindOf returns the taxonomy kind of err, or KindUnknown when err does not
// carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
