// Package watch transcribes audio files dropped into an inbox directory.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/apperr"
	"github.com/obiente/whisperbridge/internal/audio"
	"github.com/obiente/whisperbridge/internal/service"
	"github.com/obiente/whisperbridge/internal/whisper"
)

// DefaultSettle is how long a file must stay unchanged before it is picked
// up.
const DefaultSettle = 2 * time.Second

type Options struct {
	Dir    string
	Settle time.Duration
	Model  string
	Config whisper.Config

	// OnDone, if set, is called after every attempted file.
	OnDone func(audioPath, outputPath string, err error)
}

// Run watches opts.Dir until ctx is cancelled. Files already in the
// directory whose transcript is missing or stale are processed first.
func Run(ctx context.Context, svc service.Transcriber, opts Options) error {
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	format, err := opts.Config.OutputFormat()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperr.IO("start watcher for", opts.Dir, err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Warn().Err(err).Msg("watch: failed to close watcher")
		}
	}()
	if err := watcher.Add(opts.Dir); err != nil {
		return apperr.IO("watch", opts.Dir, err)
	}
	log.Info().Str("dir", opts.Dir).Dur("settle", opts.Settle).Str("format", format.String()).Msg("watch: started")

	w := &inbox{svc: svc, opts: opts, ext: format.Extension(), pending: make(map[string]time.Time)}
	w.scan()

	tick := opts.Settle / 4
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("dir", opts.Dir).Msg("watch: stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && audio.Supported(event.Name) {
				log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("watch: event")
				w.pending[event.Name] = time.Now()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watch: watcher error")
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

type inbox struct {
	svc     service.Transcriber
	opts    Options
	ext     string
	pending map[string]time.Time
}

// scan queues existing audio files as if they had just been written.
func (w *inbox) scan() {
	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", w.opts.Dir).Msg("watch: initial scan failed")
		return
	}
	for _, e := range entries {
		if e.Type().IsRegular() && audio.Supported(e.Name()) {
			w.pending[filepath.Join(w.opts.Dir, e.Name())] = time.Time{}
		}
	}
}

// flush transcribes every pending file that has been quiet for the settle
// period.
func (w *inbox) flush(ctx context.Context, now time.Time) {
	for path, last := range w.pending {
		if now.Sub(last) < w.opts.Settle {
			continue
		}
		delete(w.pending, path)
		w.process(ctx, path)
	}
}

func (w *inbox) process(ctx context.Context, path string) {
	out := OutputPath(path, w.ext)
	if upToDate(path, out) {
		log.Debug().Str("file", path).Msg("watch: transcript up to date")
		return
	}
	start := time.Now()
	_, err := w.svc.Transcribe(ctx, service.Job{
		Model:      w.opts.Model,
		AudioPath:  path,
		OutputPath: out,
		Config:     w.opts.Config,
	})
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("watch: transcription failed")
	} else {
		log.Info().Str("file", path).Str("output", out).Dur("took", time.Since(start)).Msg("watch: transcribed")
	}
	if w.opts.OnDone != nil {
		w.opts.OnDone(path, out, err)
	}
}

// OutputPath swaps the audio extension for ext.
func OutputPath(audioPath, ext string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + "." + ext
}

func upToDate(audioPath, outPath string) bool {
	a, err := os.Stat(audioPath)
	if err != nil {
		return false
	}
	o, err := os.Stat(outPath)
	if err != nil {
		return false
	}
	return !o.ModTime().Before(a.ModTime())
}
