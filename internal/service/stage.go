package service

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/obiente/whisperbridge/internal/apperr"
)

// Stage copies uploaded audio into a private temp file that keeps the
// client's extension, since decoders pick the format by extension. The
// returned cleanup removes the file.
func Stage(dir, filename string, r io.Reader) (string, func(), error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".wav"
	}
	f, err := os.CreateTemp(dir, "whisperbridge-upload-*"+ext)
	if err != nil {
		return "", nil, apperr.IO("create", dir, err)
	}
	cleanup := func() { os.Remove(f.Name()) }
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		cleanup()
		return "", nil, apperr.IO("write", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, apperr.IO("close", f.Name(), err)
	}
	return f.Name(), cleanup, nil
}
