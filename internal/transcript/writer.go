package transcript

import (
	"os"
	"path/filepath"

	"github.com/obiente/whisperbridge/internal/apperr"
)

// WriteFile materialises data at path atomically: it is written to a temp
// file in the destination directory, synced, and renamed into place. On any
// failure the destination is left untouched.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.IO("create directory", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".transcript-*.tmp")
	if err != nil {
		return apperr.IO("create temp file in", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return apperr.IO("write", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return apperr.IO("sync", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.IO("close", tmpPath, err)
	}
	tmp = nil

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return apperr.IO("chmod", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return apperr.IO("rename into", path, err)
	}
	return nil
}

// Write renders t in format f and materialises it at path.
func Write(path string, t *Transcript, f Format) error {
	data, err := t.Render(f)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}
