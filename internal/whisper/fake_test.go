package whisper

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"
)

type fakeSegment struct {
	t0, t1 int64
	text   string
}

// fakeNative stands in for the cgo table and records what the handle did.
type fakeNative struct {
	mu sync.Mutex

	inits, frees, fulls int
	initFail            bool
	status              int
	segments            []fakeSegment
	lang                string
	fullDelay           time.Duration

	lastPath     string
	lastLanguage string
	lastPrompt   string
	lastParams   NativeParams
	lastSamples  int
	beforeFull   [][]byte
	afterFull    [][]byte

	running    atomic.Int32
	maxRunning atomic.Int32
}

func (f *fakeNative) InitFromFile(path *byte, _ ContextOptions) Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	f.lastPath = goString(path)
	if f.initFail {
		return nil
	}
	return Context(unsafe.Pointer(new(int)))
}

func (f *fakeNative) Free(Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frees++
}

func (f *fakeNative) DefaultParams(strategy Strategy) NativeParams {
	return NativeParams{
		Strategy:      strategy,
		Threads:       4,
		PrintProgress: true,
		PrintRealtime: true,
		SuppressBlank: true,
		Temperature:   0,
		GreedyBestOf:  5,
	}
}

func (f *fakeNative) Full(_ Context, call *NativeCall, samples []float32) int {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		cur := f.maxRunning.Load()
		if n <= cur || f.maxRunning.CompareAndSwap(cur, n) {
			break
		}
	}

	before := call.Buffers.Snapshot()
	if f.fullDelay > 0 {
		time.Sleep(f.fullDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fulls++
	f.lastParams = call.Params
	f.lastLanguage = goString(call.Params.Language)
	f.lastPrompt = goString(call.Params.InitialPrompt)
	f.lastSamples = len(samples)
	f.beforeFull = before
	f.afterFull = call.Buffers.Snapshot()
	return f.status
}

func (f *fakeNative) SegmentCount(Context) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.segments)
}

func (f *fakeNative) SegmentText(_ Context, i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.segments[i].text
}

func (f *fakeNative) SegmentSpan(_ Context, i int) (int64, int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.segments[i].t0, f.segments[i].t1
}

func (f *fakeNative) DetectedLanguage(Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lang
}

func (f *fakeNative) counts() (inits, frees, fulls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inits, f.frees, f.fulls
}

// fakeAudio returns fixed samples and counts loads.
type fakeAudio struct {
	loads   atomic.Int32
	samples []float32
	err     error
}

func (a *fakeAudio) Load(string) ([]float32, error) {
	a.loads.Add(1)
	if a.err != nil {
		return nil, a.err
	}
	return a.samples, nil
}

// fakeRunner records invocations and optionally writes the artifact the
// engine would have produced.
type fakeRunner struct {
	mu       sync.Mutex
	calls    []Invocation
	artifact string // extension to write, e.g. "srt"
	body     string
	stdout   string
	err      error
}

func (r *fakeRunner) Run(inv *Invocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, *inv)
	if r.artifact != "" {
		if err := os.WriteFile(inv.OutputBase+"."+r.artifact, []byte(r.body), 0o644); err != nil {
			return err
		}
	}
	inv.Stdout = []byte(r.stdout)
	return r.err
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// touch creates a small non-empty file and returns its path.
func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeScript creates an executable shell script.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func twoSegments() []fakeSegment {
	return []fakeSegment{
		{t0: 0, t1: 150, text: " Hello there."},
		{t0: 150, t1: 320, text: " General Kenobi."},
	}
}

// goString reads a NUL-terminated string. It returns "" for nil.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}
