package whisper

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/obiente/whisperbridge/internal/apperr"
	"github.com/obiente/whisperbridge/internal/transcript"
)

func countFlag(args []string, flag string) int {
	n := 0
	for _, a := range args {
		if a == flag {
			n++
		}
	}
	return n
}

func TestBuildArgsLanguage(t *testing.T) {
	auto, err := BuildArgs("m.bin", "a.wav", NewConfig().Build(), transcript.FormatText, "/tmp/out", nil)
	if err != nil {
		t.Fatal(err)
	}
	if countFlag(auto, "-l") != 0 {
		t.Fatalf("auto args carry -l: %v", auto)
	}

	es, err := BuildArgs("m.bin", "a.wav", NewConfig().Language("es").Build(), transcript.FormatText, "/tmp/out", nil)
	if err != nil {
		t.Fatal(err)
	}
	if countFlag(es, "-l") != 1 {
		t.Fatalf("es args: %v", es)
	}
	i := slices.Index(es, "-l")
	if es[i+1] != "es" {
		t.Fatalf("-l followed by %q", es[i+1])
	}
}

func TestBuildArgsLayout(t *testing.T) {
	cfg := NewConfig().
		Language("de").
		Translate(true).
		Option("threads", "3").
		Option("split_on_word", "false").
		Option("initial_prompt", "hello").
		Build()
	args, err := BuildArgs("m.bin", "a.wav", cfg, transcript.FormatVTT, "/tmp/x/out", []string{"--beam-size", "5"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"-m", "m.bin", "a.wav",
		"-l", "de",
		"--translate",
		"--output-vtt",
		"--output-file", "/tmp/x/out",
		"--prompt", "hello",
		"--threads", "3",
		"--beam-size", "5",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("args =\n%v\nwant\n%v", args, want)
	}
}

func TestBuildArgsRejectsBadOption(t *testing.T) {
	_, err := BuildArgs("m", "a", NewConfig().Option("best_of", "zero").Build(), transcript.FormatText, "", nil)
	if !errors.Is(err, apperr.ErrInitialization) {
		t.Fatalf("err = %v", err)
	}
}

// newTestSubprocess wires a backend whose locator always finds bin.
func newTestSubprocess(t *testing.T, bin string, r Runner) *SubprocessBackend {
	t.Helper()
	return NewSubprocessBackend(SubprocessOptions{
		Locator: &Locator{Explicit: bin},
		Runner:  r,
		TempDir: t.TempDir(),
	})
}

func TestSubprocessParsesArtifact(t *testing.T) {
	dir := t.TempDir()
	model := touch(t, dir, "m.bin")
	audioPath := touch(t, dir, "a.wav")
	bin := writeScript(t, dir, "whisper-cli", "exit 0\n")
	r := &fakeRunner{
		artifact: "srt",
		body:     "1\n00:00:00,000 --> 00:00:01,000\n Hi.\n\n2\n00:00:01,000 --> 00:00:02,500\n Bye.\n",
	}
	b := newTestSubprocess(t, bin, r)

	out := filepath.Join(dir, "a.srt")
	var states []State
	tr, inv, err := b.TranscribeInvocation(Request{
		ModelPath:  model,
		AudioPath:  audioPath,
		Config:     NewConfig().OutputFormat("srt").Build(),
		OutputPath: out,
		Observer:   func(s State) { states = append(states, s) },
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Len() != 2 || tr.Segments()[1].End != 2500*time.Millisecond {
		t.Fatalf("segments = %+v", tr.Segments())
	}
	if inv == nil || inv.Executable != bin {
		t.Fatalf("invocation = %+v", inv)
	}
	if want := []State{StateValidating, StateRunning, StateCompleted}; !reflect.DeepEqual(states, want) {
		t.Fatalf("states = %v", states)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != r.body {
		t.Fatalf("output is not the engine artifact: %q", data)
	}
	if _, err := os.Stat(filepath.Dir(inv.OutputBase)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("scratch directory left behind")
	}
}

func TestSubprocessConsoleFallback(t *testing.T) {
	dir := t.TempDir()
	model := touch(t, dir, "m.bin")
	audioPath := touch(t, dir, "a.wav")
	bin := writeScript(t, dir, "whisper-cli", "exit 0\n")

	r := &fakeRunner{stdout: "[00:00:00.000 --> 00:00:02.000]   And so my fellow Americans\n"}
	tr, err := newTestSubprocess(t, bin, r).Transcribe(Request{ModelPath: model, AudioPath: audioPath})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Len() != 1 || !strings.Contains(tr.Segments()[0].Text, "fellow Americans") {
		t.Fatalf("segments = %+v", tr.Segments())
	}

	_, err = newTestSubprocess(t, bin, &fakeRunner{}).Transcribe(Request{ModelPath: model, AudioPath: audioPath})
	if !errors.Is(err, apperr.ErrEngineProtocol) {
		t.Fatalf("silent engine: err = %v", err)
	}
}

func TestSubprocessRejectsBeforeSpawn(t *testing.T) {
	dir := t.TempDir()
	model := touch(t, dir, "m.bin")
	audioPath := touch(t, dir, "a.wav")
	bin := writeScript(t, dir, "whisper-cli", "exit 0\n")

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"missing audio", Request{ModelPath: model, AudioPath: filepath.Join(dir, "gone.wav")}, apperr.ErrAudioNotFound},
		{"empty audio path", Request{ModelPath: model}, apperr.ErrAudioNotFound},
		{"xml format", Request{ModelPath: model, AudioPath: audioPath, Config: NewConfig().OutputFormat("xml").Build()}, apperr.ErrUnsupportedOutputFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeRunner{}
			_, inv, err := newTestSubprocess(t, bin, r).TranscribeInvocation(tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if r.count() != 0 || inv != nil {
				t.Fatalf("engine spawned %d times", r.count())
			}
		})
	}
}

func TestSubprocessMissingBinary(t *testing.T) {
	dir := t.TempDir()
	model := touch(t, dir, "m.bin")
	audioPath := touch(t, dir, "a.wav")
	r := &fakeRunner{}
	b := NewSubprocessBackend(SubprocessOptions{
		Locator: &Locator{
			Explicit: filepath.Join(dir, "no-such-whisper"),
			Names:    []string{"whisper-cli"},
			LookPath: func(string) (string, error) { return "", exec.ErrNotFound },
		},
		Runner: r,
	})
	_, err := b.Transcribe(Request{ModelPath: model, AudioPath: audioPath})
	if !errors.Is(err, apperr.ErrInitialization) {
		t.Fatalf("err = %v", err)
	}
	if r.count() != 0 {
		t.Fatal("runner called without a binary")
	}
}

func TestSubprocessRealScript(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	dir := t.TempDir()
	model := touch(t, dir, "m.bin")
	audioPath := touch(t, dir, "a.wav")

	// Mimics whisper-cli: finds --output-file and writes <base>.json.
	bin := writeScript(t, dir, "whisper-cli", `
base=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--output-file" ]; then base="$2"; fi
  shift
done
cat > "$base.json" <<'EOF'
{"result":{"language":"en"},"transcription":[{"timestamps":{"from":"00:00:00,000","to":"00:00:01,200"},"offsets":{"from":0,"to":1200},"text":" ok"}]}
EOF
`)
	b := NewSubprocessBackend(SubprocessOptions{Locator: &Locator{Explicit: bin}, TempDir: t.TempDir()})
	tr, err := b.Transcribe(Request{ModelPath: model, AudioPath: audioPath, Config: NewConfig().OutputFormat("json").Build()})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Language != "en" || tr.Len() != 1 || tr.Segments()[0].End != 1200*time.Millisecond {
		t.Fatalf("transcript = %+v lang %q", tr.Segments(), tr.Language)
	}
}

func TestSubprocessNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	dir := t.TempDir()
	model := touch(t, dir, "m.bin")
	audioPath := touch(t, dir, "a.wav")
	bin := writeScript(t, dir, "whisper-cli", "echo 'error: failed to read audio' >&2\nexit 2\n")

	out := filepath.Join(dir, "a.txt")
	b := NewSubprocessBackend(SubprocessOptions{Locator: &Locator{Explicit: bin}})
	_, inv, err := b.TranscribeInvocation(Request{ModelPath: model, AudioPath: audioPath, OutputPath: out})
	if !errors.Is(err, apperr.ErrTranscription) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "failed to read audio") {
		t.Fatalf("stderr missing from %q", err)
	}
	if inv == nil || inv.ExitCode != 2 {
		t.Fatalf("invocation = %+v", inv)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("output written after failure")
	}
}

func TestSubprocessTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	dir := t.TempDir()
	model := touch(t, dir, "m.bin")
	audioPath := touch(t, dir, "a.wav")
	bin := writeScript(t, dir, "whisper-cli", "sleep 30\n")

	b := NewSubprocessBackend(SubprocessOptions{
		Locator: &Locator{Explicit: bin},
		Runner:  ExecRunner{Timeout: 200 * time.Millisecond},
	})
	start := time.Now()
	_, err := b.Transcribe(Request{ModelPath: model, AudioPath: audioPath})
	if !errors.Is(err, apperr.ErrTranscription) || !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v", err)
	}
	if took := time.Since(start); took > 10*time.Second {
		t.Fatalf("timeout took %s", took)
	}
}
