package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	serverhttp "github.com/obiente/whisperbridge/internal/http"
	"github.com/obiente/whisperbridge/internal/service"
	"github.com/obiente/whisperbridge/internal/watch"
)

const shutdownGrace = 10 * time.Second

// runServe serves until ctx is cancelled, then drains in-flight requests.
func runServe(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "serve")
	addr := fs.String("addr", e.cfg.Addr, "listen address")
	if err := parse(fs, args); err != nil {
		return err
	}

	svc, err := service.FromConfig(e.cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", *addr, err)
	}
	// Transcriptions and WebSocket sessions outlive any fixed write
	// deadline, so only the header read is bounded.
	srv := &http.Server{
		Handler:           serverhttp.NewRouter(svc, e.cfg.MaxUploadMB),
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Str("backend", svc.Backend().Name()).Msg("whisperbridge server starting")
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runWatch(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "watch")
	var dir, format, model, lang string
	var settle time.Duration
	stringFlag(fs, &dir, "d", "dir", "", "directory to watch")
	stringFlag(fs, &format, "f", "format", e.cfg.Format, "output format: txt, srt, vtt, json")
	stringFlag(fs, &model, "m", "model", e.cfg.Model, "model file path or registry name")
	stringFlag(fs, &lang, "l", "language", e.cfg.Language, "spoken language code, or auto")
	durationFlag(fs, &settle, "settle", watch.DefaultSettle, "quiet period before a file is picked up")
	if err := parse(fs, args); err != nil {
		return err
	}
	if dir == "" {
		return usagef("-dir is required")
	}

	svc, err := service.FromConfig(e.cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	cfg := svc.Defaults().Language(lang).OutputFormat(format).Build()
	return watch.Run(ctx, svc, watch.Options{
		Dir:    dir,
		Settle: settle,
		Model:  model,
		Config: cfg,
		OnDone: func(audioPath, outputPath string, err error) {
			if err != nil {
				fmt.Fprintf(e.stderr, "%s: %v\n", audioPath, err)
				return
			}
			fmt.Fprintf(e.stdout, "%s -> %s\n", audioPath, outputPath)
		},
	})
}
