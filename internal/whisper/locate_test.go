package whisper

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/obiente/whisperbridge/internal/apperr"
)

func notOnPath(string) (string, error) { return "", exec.ErrNotFound }

func TestLocatorOrder(t *testing.T) {
	dir := t.TempDir()
	explicit := writeScript(t, dir, "my-whisper", "exit 0\n")
	installDir := filepath.Join(dir, "usr", "bin")
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		t.Fatal(err)
	}
	installed := writeScript(t, installDir, "whisper-cli", "exit 0\n")

	l := &Locator{
		Explicit: explicit,
		Names:    []string{"whisper-cli"},
		Dirs:     []string{installDir},
		LookPath: func(name string) (string, error) { return "/on/path/" + name, nil },
	}
	if got, err := l.Locate(); err != nil || got != explicit {
		t.Fatalf("explicit: got %q, %v", got, err)
	}

	l.Explicit = ""
	if got, err := l.Locate(); err != nil || got != "/on/path/whisper-cli" {
		t.Fatalf("path: got %q, %v", got, err)
	}

	l.LookPath = notOnPath
	if got, err := l.Locate(); err != nil || got != installed {
		t.Fatalf("install dir: got %q, %v", got, err)
	}
}

func TestLocatorBuildOutput(t *testing.T) {
	checkout := t.TempDir()
	binDir := filepath.Join(checkout, "build", "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	built := writeScript(t, binDir, "main", "exit 0\n")

	l := &Locator{Names: []string{"whisper-cli"}, BuildDir: checkout, LookPath: notOnPath}
	got, err := l.Locate()
	if err != nil || got != built {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestLocatorSkipsNonExecutable(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "whisper-cli")
	if err := os.WriteFile(plain, []byte("not a program"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := &Locator{Explicit: plain, LookPath: notOnPath}
	if _, err := l.Locate(); !errors.Is(err, apperr.ErrInitialization) {
		t.Fatalf("err = %v", err)
	}
}

func TestLocatorListsEveryAttempt(t *testing.T) {
	dir := t.TempDir()
	l := &Locator{
		Explicit: filepath.Join(dir, "custom"),
		Names:    []string{"whisper-cli", "main"},
		Dirs:     []string{filepath.Join(dir, "opt")},
		BuildDir: filepath.Join(dir, "whisper.cpp"),
		LookPath: notOnPath,
	}
	_, err := l.Locate()
	if !errors.Is(err, apperr.ErrInitialization) {
		t.Fatalf("err = %v", err)
	}
	msg := err.Error()
	for _, want := range []string{
		filepath.Join(dir, "custom"),
		"$PATH/whisper-cli",
		"$PATH/main",
		filepath.Join(dir, "opt", "whisper-cli"),
		filepath.Join(dir, "opt", "main"),
		filepath.Join(dir, "whisper.cpp", "build", "bin", "whisper-cli"),
		filepath.Join(dir, "whisper.cpp", "build", "whisper"),
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message lacks %q:\n%s", want, msg)
		}
	}
}

func TestNewLocatorDefaults(t *testing.T) {
	l := NewLocator("", "")
	if l.BuildDir != DefaultWhisperCppDir {
		t.Fatalf("BuildDir = %q", l.BuildDir)
	}
	if len(l.Names) == 0 || l.Names[0] != "whisper-cli" {
		t.Fatalf("Names = %v", l.Names)
	}
}
