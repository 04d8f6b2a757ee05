// Package service connects configuration, model resolution and a backend
// into the single transcription entry point the CLI, HTTP, WebSocket and
// watch surfaces share.
package service

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/audio"
	"github.com/obiente/whisperbridge/internal/config"
	"github.com/obiente/whisperbridge/internal/models"
	"github.com/obiente/whisperbridge/internal/transcript"
	"github.com/obiente/whisperbridge/internal/whisper"
)

// Job is one transcription request from a surface.
type Job struct {
	// Model is a file path or registry name; empty means the configured
	// default.
	Model      string
	// Confined limits Model to registry names and files in the model
	// directory. Network surfaces set it.
	Confined   bool
	AudioPath  string
	OutputPath string
	Config     whisper.Config
	Observer   func(whisper.State)
}

// Transcriber runs jobs.
type Transcriber interface {
	Transcribe(ctx context.Context, job Job) (*transcript.Transcript, error)
	// Defaults returns a config builder seeded from configuration.
	Defaults() *whisper.ConfigBuilder
}

type Service struct {
	cfg      config.Config
	backend  whisper.Backend
	resolver *models.Resolver
}

func New(cfg config.Config, backend whisper.Backend, resolver *models.Resolver) *Service {
	return &Service{cfg: cfg, backend: backend, resolver: resolver}
}

// FromConfig builds the backend and resolver cfg describes.
func FromConfig(cfg config.Config) (*Service, error) {
	backend, err := whisper.NewBackend(BackendOptions(cfg))
	if err != nil {
		return nil, err
	}
	log.Info().Str("backend", backend.Name()).Msg("service: backend ready")
	return New(cfg, backend, NewResolver(cfg)), nil
}

// BackendOptions maps configuration onto backend construction options.
func BackendOptions(cfg config.Config) whisper.Options {
	return whisper.Options{
		Kind:          cfg.Backend,
		Audio:         audio.Source{},
		Context:       whisper.ContextOptions{UseGPU: cfg.UseGPU},
		Binary:        cfg.Binary,
		WhisperCppDir: cfg.WhisperCppDir,
		Timeout:       time.Duration(cfg.TimeoutSec) * time.Second,
	}
}

// NewResolver builds the model resolver cfg describes.
func NewResolver(cfg config.Config) *models.Resolver {
	return models.NewResolver(cfg.ModelsDir, cfg.ModelsBaseURL, cfg.AutoDownload, cfg.DownloadTimeoutSec)
}

func (s *Service) Backend() whisper.Backend   { return s.backend }
func (s *Service) Resolver() *models.Resolver { return s.resolver }

func (s *Service) Defaults() *whisper.ConfigBuilder {
	b := whisper.NewConfig().Language(s.cfg.Language).OutputFormat(s.cfg.Format)
	if s.cfg.Threads > 0 {
		b.Option("threads", strconv.Itoa(s.cfg.Threads))
	}
	return b
}

// Transcribe resolves the job's model and runs it on the backend.
func (s *Service) Transcribe(ctx context.Context, job Job) (*transcript.Transcript, error) {
	model, resolve := job.Model, s.resolver.Resolve
	switch {
	case model == "":
		model = s.cfg.Model
	case job.Confined:
		resolve = s.resolver.ResolveCached
	}
	path, err := resolve(ctx, model)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.backend.Transcribe(whisper.Request{
		ModelPath:  path,
		AudioPath:  job.AudioPath,
		Config:     job.Config,
		OutputPath: job.OutputPath,
		Observer:   job.Observer,
	})
}

// Close releases backend resources such as cached model handles.
func (s *Service) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
