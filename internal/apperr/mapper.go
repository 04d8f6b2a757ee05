package apperr

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// maxStderr bounds how much engine diagnostics end up in an error message.
const maxStderr = 4096

// FromStatus converts a native status code into the taxonomy. Zero is
// success.
func FromStatus(op string, status int) error {
	if status == 0 {
		return nil
	}
	return Transcription("%s returned status %d", op, status)
}

// FromExit converts the result of waiting on an engine subprocess. A
// non-zero exit becomes a transcription error carrying stderr; anything else
// means the process could not be run at all.
func FromExit(executable string, err error, stderr []byte) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(string(stderr))
		if len(msg) > maxStderr {
			cut := len(msg) - maxStderr
			for cut < len(msg) && !utf8.RuneStart(msg[cut]) {
				cut++
			}
			msg = "..." + msg[cut:]
		}
		if msg == "" {
			msg = fmt.Sprintf("%s exited with status %d", executable, exitErr.ExitCode())
		}
		return Transcription("%s", msg)
	}
	return IO("spawn", executable, err)
}

// CheckFile verifies that path names an existing regular file. A missing
// path is reported through notFound so callers pick ModelNotFound or
// AudioNotFound.
func CheckFile(path string, notFound func(string) error) error {
	if path == "" {
		return notFound(path)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(path)
		}
		return IO("stat", path, err)
	}
	if info.IsDir() {
		return IO("expected a file, got a directory:", path, nil)
	}
	return nil
}
