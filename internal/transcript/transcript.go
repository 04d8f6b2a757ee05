// Package transcript holds the backend-agnostic transcription result and
// its renderings.
package transcript

import (
	"time"

	"github.com/obiente/whisperbridge/internal/apperr"
)

// Segment is one timed unit of recognised text.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Transcript is an ordered, validated sequence of segments. Renderings are
// computed on demand.
type Transcript struct {
	segments []Segment

	// Language is the spoken language reported by the engine, if known.
	Language string
}

// New validates segment order and returns a Transcript owning a copy of
// segments. Every segment must satisfy Start <= End and starts must be
// non-decreasing; anything else is an engine protocol violation.
func New(segments []Segment) (*Transcript, error) {
	for i, seg := range segments {
		if seg.Start < 0 || seg.End < seg.Start {
			return nil, apperr.EngineProtocol("segment %d has invalid span %s..%s", i, seg.Start, seg.End)
		}
		if i > 0 && seg.Start < segments[i-1].Start {
			return nil, apperr.EngineProtocol("segment %d starts at %s before segment %d at %s",
				i, seg.Start, i-1, segments[i-1].Start)
		}
	}
	return &Transcript{segments: append([]Segment(nil), segments...)}, nil
}

// Segments returns a copy of the segment sequence.
func (t *Transcript) Segments() []Segment {
	return append([]Segment(nil), t.segments...)
}

func (t *Transcript) Len() int { return len(t.segments) }

// Duration is the end of the last segment.
func (t *Transcript) Duration() time.Duration {
	if len(t.segments) == 0 {
		return 0
	}
	return t.segments[len(t.segments)-1].End
}
