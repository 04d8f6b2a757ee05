package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/obiente/whisperbridge/internal/apperr"
	"github.com/obiente/whisperbridge/internal/service"
	"github.com/obiente/whisperbridge/internal/transcript"
	"github.com/obiente/whisperbridge/internal/watch"
	"github.com/obiente/whisperbridge/internal/whisper"
)

// jobFlags are shared by transcribe and execute-direct.
type jobFlags struct {
	audio     string
	model     string
	language  string
	translate bool
	format    string
	output    string
	binary    string
	timeout   time.Duration
	options   optionFlag
}

func (j *jobFlags) register(fs *flag.FlagSet, e *env) {
	j.options = optionFlag{}
	stringFlag(fs, &j.audio, "a", "audio", "", "audio file to transcribe (wav, pcm, raw)")
	stringFlag(fs, &j.model, "m", "model", e.cfg.Model, "model file path or registry name")
	stringFlag(fs, &j.language, "l", "language", e.cfg.Language, "spoken language code, or auto")
	boolFlag(fs, &j.translate, "t", "translate", false, "translate to English")
	stringFlag(fs, &j.format, "f", "format", e.cfg.Format, "output format: txt, srt, vtt, json")
	stringFlag(fs, &j.output, "o", "output", "", "output path (default: audio path with the format extension)")
	fs.Var(j.options, "O", "extra engine option key=value (repeatable); keys: "+strings.Join(whisper.OptionKeys(), ", "))
	durationFlag(fs, &j.timeout, "timeout", time.Duration(e.cfg.TimeoutSec)*time.Second, "subprocess timeout (0 = none)")
}

// resolve fills in the output path and builds the engine config.
func (j *jobFlags) resolve(e *env) (whisper.Config, error) {
	if j.audio == "" {
		return whisper.Config{}, usagef("-audio is required")
	}
	format, err := transcript.ParseFormat(j.format)
	if err != nil {
		return whisper.Config{}, err
	}
	if j.output == "" {
		j.output = watch.OutputPath(j.audio, format.Extension())
	}
	b := whisper.NewConfig().
		Language(j.language).
		Translate(j.translate).
		OutputFormat(j.format)
	if e.cfg.Threads > 0 {
		b.Option("threads", strconv.Itoa(e.cfg.Threads))
	}
	return b.Options(j.options).Build(), nil
}

func runTranscribe(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "transcribe")
	var j jobFlags
	j.register(fs, e)
	backend := fs.String("backend", e.cfg.Backend, "engine backend: auto, inprocess, subprocess")
	fs.StringVar(&j.binary, "binary", e.cfg.Binary, "whisper.cpp executable for the subprocess backend")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usagef("unexpected arguments %q", fs.Args())
	}
	cfg, err := j.resolve(e)
	if err != nil {
		return err
	}

	sc := e.cfg
	sc.Backend = *backend
	sc.Binary = j.binary
	opts := service.BackendOptions(sc)
	opts.Timeout = j.timeout
	b, err := whisper.NewBackend(opts)
	if err != nil {
		return err
	}
	svc := service.New(sc, b, service.NewResolver(sc))
	defer svc.Close()

	if _, err := svc.Transcribe(ctx, service.Job{
		Model:      j.model,
		AudioPath:  j.audio,
		OutputPath: j.output,
		Config:     cfg,
	}); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Transcription complete! Output saved to %s\n", j.output)
	return nil
}

// runExecuteDirect always drives the whisper.cpp executable. Arguments after
// "--" are passed to it verbatim and its console output is echoed.
func runExecuteDirect(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "execute-direct")
	var j jobFlags
	j.register(fs, e)
	stringFlag(fs, &j.binary, "b", "binary", e.cfg.Binary, "whisper.cpp executable (default: search PATH and known locations)")
	if err := parse(fs, args); err != nil {
		return err
	}
	cfg, err := j.resolve(e)
	if err != nil {
		return err
	}
	if j.binary != "" {
		if err := apperr.CheckFile(j.binary, func(p string) error {
			return apperr.Initialization("specified whisper.cpp binary not found: %s", p)
		}); err != nil {
			return err
		}
	}

	modelPath, err := service.NewResolver(e.cfg).Resolve(ctx, j.model)
	if err != nil {
		return err
	}
	backend := whisper.NewSubprocessBackend(whisper.SubprocessOptions{
		Locator:     whisper.NewLocator(j.binary, e.cfg.WhisperCppDir),
		Runner:      whisper.ExecRunner{Timeout: j.timeout},
		PassThrough: fs.Args(),
	})
	_, inv, err := backend.TranscribeInvocation(whisper.Request{
		ModelPath:  modelPath,
		AudioPath:  j.audio,
		Config:     cfg,
		OutputPath: j.output,
	})
	if inv != nil && len(inv.Stdout) > 0 {
		fmt.Fprintf(e.stdout, "Direct execution output:\n%s\n", inv.Stdout)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Transcription complete! Output saved to %s\n", j.output)
	return nil
}
