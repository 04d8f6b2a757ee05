package whisper

import (
	"runtime"
	"strings"

	"github.com/obiente/whisperbridge/internal/apperr"
)

// Strategy is the engine's sampling strategy.
type Strategy int

const (
	StrategyGreedy Strategy = iota
	StrategyBeamSearch
)

// NativeParams mirrors the subset of whisper_full_params the bridge
// controls. String fields point into the NativeCallBuffers of the call that
// owns them; a nil pointer is passed to the engine as NULL.
type NativeParams struct {
	Strategy Strategy

	Threads    int
	OffsetMs   int
	DurationMs int

	Translate       bool
	NoContext       bool
	NoTimestamps    bool
	SingleSegment   bool
	PrintSpecial    bool
	PrintProgress   bool
	PrintRealtime   bool
	PrintTimestamps bool
	TokenTimestamps bool

	MaxLen      int
	SplitOnWord bool
	MaxTokens   int
	AudioCtx    int

	InitialPrompt  *byte
	Language       *byte
	DetectLanguage bool

	SuppressBlank bool
	SuppressNST   bool

	Temperature    float32
	TemperatureInc float32
	EntropyThold   float32
	LogprobThold   float32
	NoSpeechThold  float32

	GreedyBestOf int
}

// NativeCallBuffers owns the NUL-terminated byte buffers that NativeParams
// string fields point into. Buffers are pinned so the engine can hold the
// pointers for the duration of a call; Release unpins them. A set of
// buffers belongs to exactly one call.
type NativeCallBuffers struct {
	bufs   [][]byte
	pinner runtime.Pinner
}

// CString encodes s as a pinned NUL-terminated buffer and returns a pointer
// to its first byte. Strings containing NUL cannot be encoded.
func (b *NativeCallBuffers) CString(s string) (*byte, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return nil, apperr.Initialization("cannot pass %q to the engine: contains a NUL byte", s)
	}
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	b.pinner.Pin(&buf[0])
	b.bufs = append(b.bufs, buf)
	return &buf[0], nil
}

// Len reports how many buffers are held.
func (b *NativeCallBuffers) Len() int { return len(b.bufs) }

// Snapshot copies the current buffer contents.
func (b *NativeCallBuffers) Snapshot() [][]byte {
	out := make([][]byte, len(b.bufs))
	for i, buf := range b.bufs {
		out[i] = append([]byte(nil), buf...)
	}
	return out
}

// Release unpins and drops every buffer. It is safe to call more than once.
func (b *NativeCallBuffers) Release() {
	b.pinner.Unpin()
	b.bufs = nil
}

// NativeCall bundles a parameter block with the buffers backing its
// pointers. Pass it by pointer into the foreign call and Release it only
// after that call has returned.
type NativeCall struct {
	Params  NativeParams
	Buffers *NativeCallBuffers
}

func (c *NativeCall) Release() {
	if c != nil && c.Buffers != nil {
		c.Buffers.Release()
	}
}

// BuildParams converts cfg into the native parameter block for a call on h.
// The caller owns the returned NativeCall and must Release it once the
// foreign call has returned.
func BuildParams(cfg Config, h *ModelHandle) (*NativeCall, error) {
	if _, err := cfg.OutputFormat(); err != nil {
		return nil, err
	}
	if h == nil || h.Released() {
		return nil, apperr.Initialization("model handle has been released")
	}
	return buildParams(cfg, h.native)
}

func buildParams(cfg Config, n Native) (*NativeCall, error) {
	if _, err := cfg.OutputFormat(); err != nil {
		return nil, err
	}
	lang := cfg.Language()
	if !ValidLanguage(lang) {
		return nil, apperr.Initialization("unknown language %q", lang)
	}

	call := &NativeCall{
		Params:  n.DefaultParams(StrategyGreedy),
		Buffers: &NativeCallBuffers{},
	}
	p := &call.Params
	p.Strategy = StrategyGreedy
	p.PrintProgress = false
	p.PrintRealtime = false

	// NULL selects detection; the engine default is "en".
	p.Language = nil
	if lang != LanguageAuto {
		ptr, err := call.Buffers.CString(lang)
		if err != nil {
			call.Release()
			return nil, err
		}
		p.Language = ptr
	}
	p.Translate = cfg.Translate()

	if err := applyOptions(cfg, p, call.Buffers); err != nil {
		call.Release()
		return nil, err
	}
	return call, nil
}
