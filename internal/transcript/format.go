package transcript

import (
	"strings"

	"github.com/obiente/whisperbridge/internal/apperr"
)

// Format selects a transcript rendering.
type Format int

const (
	FormatText Format = iota
	FormatSRT
	FormatVTT
	FormatJSON
)

// ParseFormat accepts text, srt, vtt and json (case-insensitive). "txt" is
// an alias of text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "txt":
		return FormatText, nil
	case "srt":
		return FormatSRT, nil
	case "vtt":
		return FormatVTT, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, apperr.UnsupportedOutputFormat(s)
}

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatSRT:
		return "srt"
	case FormatVTT:
		return "vtt"
	case FormatJSON:
		return "json"
	}
	return "unknown"
}

// Extension is the file extension whisper.cpp uses for the format, without
// the dot.
func (f Format) Extension() string {
	if f == FormatText {
		return "txt"
	}
	return f.String()
}

func (f Format) ContentType() string {
	switch f {
	case FormatSRT:
		return "application/x-subrip; charset=utf-8"
	case FormatVTT:
		return "text/vtt; charset=utf-8"
	case FormatJSON:
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}
