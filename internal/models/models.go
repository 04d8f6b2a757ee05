// Package models resolves model names to ggml files on disk, downloading
// them into a per-user cache when asked to.
package models

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/apperr"
)

// DefaultBaseURL hosts the upstream ggml conversions.
const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// Names lists the downloadable models.
var Names = []string{
	"tiny", "tiny.en", "tiny-q5_1",
	"base", "base.en", "base-q5_1",
	"small", "small.en", "small-q5_1",
	"medium", "medium.en",
	"large", "large-v3", "large-v3-turbo",
}

// Known reports whether name is in the registry.
func Known(name string) bool { return slices.Contains(Names, name) }

// FileName is the cache file name of a registry model.
func FileName(name string) string { return "ggml-" + name + ".bin" }

// DefaultDir is the per-user model cache, ~/.whisper-models.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".whisper-models"
	}
	return filepath.Join(home, ".whisper-models")
}

// Resolver maps a model argument to a file path.
type Resolver struct {
	Dir          string
	AutoDownload bool
	Client       *Client

	mu      sync.Mutex
	fetches map[string]*sync.Mutex
}

func NewResolver(dir, baseURL string, autoDownload bool, timeoutSec int) *Resolver {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Resolver{
		Dir:          dir,
		AutoDownload: autoDownload,
		Client:       NewClient(baseURL, timeoutSec),
	}
}

// Path is the cache location of a registry model.
func (r *Resolver) Path(name string) string {
	return filepath.Join(r.Dir, FileName(name))
}

// Resolve accepts a file path or a registry name. Paths must exist. Names
// resolve to the cached file, which is downloaded first when AutoDownload
// is set.
func (r *Resolver) Resolve(ctx context.Context, model string) (string, error) {
	if model == "" {
		return "", apperr.ModelNotFound(model)
	}
	if looksLikePath(model) || !Known(model) {
		if err := apperr.CheckFile(model, apperr.ModelNotFound); err != nil {
			return "", err
		}
		return model, nil
	}

	path := r.Path(model)
	if exists(path) {
		return path, nil
	}
	if !r.AutoDownload {
		return "", apperr.ModelNotFound(path)
	}
	return r.Download(ctx, model)
}

// ResolveCached is Resolve for requests from the network: model must be a
// registry name or the name of a .bin file directly inside Dir.
func (r *Resolver) ResolveCached(ctx context.Context, model string) (string, error) {
	if Known(model) {
		return r.Resolve(ctx, model)
	}
	if model == "" || strings.ContainsAny(model, `/\`) || !strings.HasSuffix(model, ".bin") {
		return "", apperr.Initialization("model %q is neither a registry name nor a file in the model directory", model)
	}
	path := filepath.Join(r.Dir, model)
	if err := apperr.CheckFile(path, apperr.ModelNotFound); err != nil {
		return "", err
	}
	return path, nil
}

// Download fetches the named model unless it is already cached and returns
// its path.
func (r *Resolver) Download(ctx context.Context, name string) (string, error) {
	if !Known(name) {
		return "", apperr.Download("unknown model "+name+"; available: "+strings.Join(Names, ", "), nil)
	}
	path := r.Path(name)
	unlock := r.lock(name)
	defer unlock()
	if exists(path) {
		log.Info().Str("model", name).Str("path", path).Msg("models: already downloaded")
		return path, nil
	}
	log.Info().Str("model", name).Str("url", r.Client.URL(name)).Msg("models: downloading")
	if err := r.Client.Fetch(ctx, name, path); err != nil {
		return "", err
	}
	return path, nil
}

// lock serialises downloads of one model. A second caller waits and then
// finds the finished file.
func (r *Resolver) lock(name string) func() {
	r.mu.Lock()
	if r.fetches == nil {
		r.fetches = make(map[string]*sync.Mutex)
	}
	m, ok := r.fetches[name]
	if !ok {
		m = &sync.Mutex{}
		r.fetches[name] = m
	}
	r.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Available returns the registry names.
func (r *Resolver) Available() []string { return slices.Clone(Names) }

// Downloaded lists the .bin files in the cache directory. A missing
// directory is an empty cache.
func (r *Resolver) Downloaded() ([]string, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, apperr.IO("list", r.Dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".bin") {
			out = append(out, e.Name())
		}
	}
	slices.Sort(out)
	return out, nil
}

func looksLikePath(s string) bool {
	return strings.ContainsAny(s, `/\`) || strings.HasSuffix(s, ".bin")
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
