package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/obiente/whisperbridge/internal/apperr"
)

// Parse reads a whisper.cpp output artifact written in format f.
func Parse(f Format, data []byte) (*Transcript, error) {
	switch f {
	case FormatSRT:
		return ParseSRT(data)
	case FormatVTT:
		return ParseVTT(data)
	case FormatJSON:
		return ParseJSON(data)
	default:
		return ParseText(data)
	}
}

// ParseJSON reads the whisper-cli --output-json layout. Offsets are in
// milliseconds.
func ParseJSON(data []byte) (*Transcript, error) {
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.EngineProtocol("decode json output: %v", err)
	}
	segs := make([]Segment, 0, len(doc.Transcription))
	for _, s := range doc.Transcription {
		segs = append(segs, Segment{
			Start: time.Duration(s.Offsets.From) * time.Millisecond,
			End:   time.Duration(s.Offsets.To) * time.Millisecond,
			Text:  strings.TrimSpace(s.Text),
		})
	}
	t, err := New(segs)
	if err != nil {
		return nil, err
	}
	if doc.Result != nil {
		t.Language = doc.Result.Language
	}
	return t, nil
}

// ParseSRT reads SubRip cues. Multi-line cue text is joined with spaces.
func ParseSRT(data []byte) (*Transcript, error) {
	return parseCues(data, false)
}

// ParseVTT reads WebVTT cues after the mandatory WEBVTT header.
func ParseVTT(data []byte) (*Transcript, error) {
	return parseCues(data, true)
}

// ParseText reads --output-txt: one segment per non-empty line, without
// timing.
func ParseText(data []byte) (*Transcript, error) {
	var segs []Segment
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			segs = append(segs, Segment{Text: line})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, apperr.EngineProtocol("read text output: %v", err)
	}
	return &Transcript{segments: segs}, nil
}

var consoleLine = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2}[.,]\d{3}) --> (\d{2}:\d{2}:\d{2}[.,]\d{3})\]\s*(.*)$`)

// ParseConsole reads the timestamped lines whisper-cli prints to stdout,
// such as "[00:00:00.000 --> 00:00:02.000]   hello". Other lines are
// ignored.
func ParseConsole(data []byte) (*Transcript, error) {
	var segs []Segment
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		m := consoleLine.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		start, err := parseTimestamp(m[1])
		if err != nil {
			return nil, err
		}
		end, err := parseTimestamp(m[2])
		if err != nil {
			return nil, err
		}
		segs = append(segs, Segment{Start: start, End: end, Text: strings.TrimSpace(m[3])})
	}
	if err := sc.Err(); err != nil {
		return nil, apperr.EngineProtocol("read console output: %v", err)
	}
	return New(segs)
}

func parseCues(data []byte, vtt bool) (*Transcript, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")
	blocks := strings.Split(strings.TrimSpace(text), "\n\n")

	if vtt {
		if len(blocks) == 0 || !strings.HasPrefix(blocks[0], "WEBVTT") {
			return nil, apperr.EngineProtocol("vtt output is missing the WEBVTT header")
		}
		blocks = blocks[1:]
	}

	var segs []Segment
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 1 && lines[0] == "" {
			continue
		}
		timing := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timing = i
				break
			}
		}
		if timing < 0 {
			if vtt && (strings.HasPrefix(lines[0], "NOTE") || strings.HasPrefix(lines[0], "STYLE")) {
				continue
			}
			return nil, apperr.EngineProtocol("cue without timing line: %q", lines[0])
		}
		start, end, err := parseTiming(lines[timing])
		if err != nil {
			return nil, err
		}
		segs = append(segs, Segment{
			Start: start,
			End:   end,
			Text:  strings.TrimSpace(strings.Join(lines[timing+1:], " ")),
		})
	}
	return New(segs)
}

func parseTiming(line string) (time.Duration, time.Duration, error) {
	from, to, ok := strings.Cut(line, "-->")
	if !ok {
		return 0, 0, apperr.EngineProtocol("malformed timing line %q", line)
	}
	// VTT cue settings may follow the end timestamp.
	to = strings.TrimSpace(to)
	if i := strings.IndexAny(to, " \t"); i >= 0 {
		to = to[:i]
	}
	start, err := parseTimestamp(strings.TrimSpace(from))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(to)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTimestamp accepts HH:MM:SS,mmm, HH:MM:SS.mmm and MM:SS.mmm.
func parseTimestamp(s string) (time.Duration, error) {
	bad := func() (time.Duration, error) {
		return 0, apperr.EngineProtocol("malformed timestamp %q", s)
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return bad()
	}
	secPart := strings.Replace(parts[len(parts)-1], ",", ".", 1)
	whole, frac, _ := strings.Cut(secPart, ".")
	sec, err := strconv.Atoi(whole)
	if err != nil || sec < 0 || sec > 59 {
		return bad()
	}
	var ms int
	if frac != "" {
		if len(frac) > 3 {
			frac = frac[:3]
		}
		for len(frac) < 3 {
			frac += "0"
		}
		if ms, err = strconv.Atoi(frac); err != nil {
			return bad()
		}
	}
	minutes, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil || minutes < 0 || minutes > 59 {
		return bad()
	}
	var hours int
	if len(parts) == 3 {
		if hours, err = strconv.Atoi(parts[0]); err != nil || hours < 0 {
			return bad()
		}
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}
