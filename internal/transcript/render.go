package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Text joins the trimmed segment texts with newlines.
func (t *Transcript) Text() string {
	lines := make([]string, len(t.segments))
	for i, seg := range t.segments {
		lines[i] = strings.TrimSpace(seg.Text)
	}
	return strings.Join(lines, "\n")
}

// SRT renders SubRip cues numbered from 1 with HH:MM:SS,mmm timestamps.
func (t *Transcript) SRT() string {
	var b strings.Builder
	for i, seg := range t.segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(seg.Start, ','), formatTimestamp(seg.End, ','))
		fmt.Fprintf(&b, "%s\n", strings.TrimSpace(seg.Text))
	}
	return b.String()
}

// VTT renders WebVTT with HH:MM:SS.mmm timestamps.
func (t *Transcript) VTT() string {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	for _, seg := range t.segments {
		b.WriteByte('\n')
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(seg.Start, '.'), formatTimestamp(seg.End, '.'))
		fmt.Fprintf(&b, "%s\n", strings.TrimSpace(seg.Text))
	}
	return b.String()
}

// whisper-cli --output-json layout, restricted to the fields we produce and
// consume.
type jsonDocument struct {
	Result        *jsonResult   `json:"result,omitempty"`
	Transcription []jsonSegment `json:"transcription"`
}

type jsonResult struct {
	Language string `json:"language"`
}

type jsonSegment struct {
	Timestamps jsonSpan[string] `json:"timestamps"`
	Offsets    jsonSpan[int64]  `json:"offsets"`
	Text       string           `json:"text"`
}

type jsonSpan[T any] struct {
	From T `json:"from"`
	To   T `json:"to"`
}

// JSON renders the transcript in the whisper-cli JSON layout, so the output
// of both backends can be read back by ParseJSON.
func (t *Transcript) JSON() ([]byte, error) {
	doc := jsonDocument{Transcription: make([]jsonSegment, len(t.segments))}
	if t.Language != "" {
		doc.Result = &jsonResult{Language: t.Language}
	}
	for i, seg := range t.segments {
		doc.Transcription[i] = jsonSegment{
			Timestamps: jsonSpan[string]{From: formatTimestamp(seg.Start, ','), To: formatTimestamp(seg.End, ',')},
			Offsets:    jsonSpan[int64]{From: seg.Start.Milliseconds(), To: seg.End.Milliseconds()},
			Text:       strings.TrimSpace(seg.Text),
		}
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// Render returns the transcript in format f.
func (t *Transcript) Render(f Format) ([]byte, error) {
	switch f {
	case FormatSRT:
		return []byte(t.SRT()), nil
	case FormatVTT:
		return []byte(t.VTT()), nil
	case FormatJSON:
		return t.JSON()
	default:
		return []byte(t.Text()), nil
	}
}

func formatTimestamp(d time.Duration, sep byte) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms)
}
