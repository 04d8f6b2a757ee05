//go:build whisper_cpp

package whisper

import (
	"os"
	"testing"
)

// testModel returns WHISPER_TEST_MODEL or skips.
func testModel(t *testing.T) string {
	t.Helper()
	path := os.Getenv("WHISPER_TEST_MODEL")
	if path == "" {
		t.Skip("WHISPER_TEST_MODEL not set")
	}
	return path
}

type silence struct{}

func (silence) Load(string) ([]float32, error) { return make([]float32, 16000), nil }

func TestRealModelLifecycle(t *testing.T) {
	path := testModel(t)
	before := LiveHandles()

	h, err := Acquire(path, ContextOptions{})
	if err != nil {
		t.Fatal(err)
	}
	tr, err := h.Transcribe(NewConfig().Language("en").Build(), make([]float32, 16000))
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("silence produced %d segments", tr.Len())
	h.Release()
	h.Release()
	if LiveHandles() != before {
		t.Fatalf("live handles = %d, want %d", LiveHandles(), before)
	}
}

func TestRealInProcessBackend(t *testing.T) {
	path := testModel(t)
	audio := t.TempDir() + "/silence.wav"
	if err := os.WriteFile(audio, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := NewInProcessBackend(InProcessOptions{Audio: silence{}})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, err := b.Transcribe(Request{ModelPath: path, AudioPath: audio, Config: NewConfig().Build()}); err != nil {
		t.Fatal(err)
	}
}

func TestRealInspect(t *testing.T) {
	info, err := Inspect(testModel(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Languages) == 0 {
		t.Fatal("no languages reported")
	}
}
