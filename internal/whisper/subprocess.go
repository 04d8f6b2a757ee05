package whisper

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/apperr"
	"github.com/obiente/whisperbridge/internal/transcript"
)

// SubprocessOptions configure a SubprocessBackend.
type SubprocessOptions struct {
	// Locator finds the executable; defaults to NewLocator("", "").
	Locator *Locator
	// Runner defaults to ExecRunner with no timeout.
	Runner Runner
	// PassThrough arguments are appended verbatim after the generated flags.
	PassThrough []string
	// TempDir hosts the per-invocation scratch directory; defaults to
	// os.TempDir.
	TempDir string
}

// SubprocessBackend runs the whisper.cpp command-line tool and parses the
// artifact it writes.
type SubprocessBackend struct {
	locator     *Locator
	runner      Runner
	passThrough []string
	tempDir     string
}

func NewSubprocessBackend(opts SubprocessOptions) *SubprocessBackend {
	if opts.Locator == nil {
		opts.Locator = NewLocator("", "")
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	return &SubprocessBackend{
		locator:     opts.Locator,
		runner:      opts.Runner,
		passThrough: append([]string(nil), opts.PassThrough...),
		tempDir:     opts.TempDir,
	}
}

func (b *SubprocessBackend) Name() string { return "subprocess" }

func (b *SubprocessBackend) Transcribe(req Request) (*transcript.Transcript, error) {
	tr, _, err := b.TranscribeInvocation(req)
	return tr, err
}

// TranscribeInvocation is Transcribe that also returns the spawn record, so
// callers can show the engine's console output. The record is nil when the
// request failed before spawning.
func (b *SubprocessBackend) TranscribeInvocation(req Request) (*transcript.Transcript, *Invocation, error) {
	var run *Invocation
	inv := newInvocation(b.Name(), req)
	tr, err := inv.run(func(format transcript.Format) (*transcript.Transcript, []byte, error) {
		return b.execute(req, format, &run)
	})
	return tr, run, err
}

func (b *SubprocessBackend) execute(req Request, format transcript.Format, record **Invocation) (*transcript.Transcript, []byte, error) {
	exe, err := b.locator.Locate()
	if err != nil {
		return nil, nil, err
	}

	scratch, err := os.MkdirTemp(b.tempDir, "whisperbridge-*")
	if err != nil {
		return nil, nil, apperr.IO("create scratch directory in", b.tempDir, err)
	}
	defer os.RemoveAll(scratch)

	base := filepath.Join(scratch, "out")
	args, err := BuildArgs(req.ModelPath, req.AudioPath, req.Config, format, base, b.passThrough)
	if err != nil {
		return nil, nil, err
	}

	run := &Invocation{Executable: exe, Args: args, OutputBase: base}
	*record = run
	runErr := b.runner.Run(run)
	if errors.Is(runErr, ErrTimeout) {
		return nil, nil, &apperr.Error{Kind: apperr.KindTranscription, Message: "engine did not finish", Err: runErr}
	}
	if err := apperr.FromExit(exe, runErr, run.Stderr); err != nil {
		return nil, nil, err
	}

	artifact := base + "." + format.Extension()
	data, err := os.ReadFile(artifact)
	switch {
	case err == nil:
		tr, err := transcript.Parse(format, data)
		if err != nil {
			return nil, nil, err
		}
		return tr, data, nil
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("artifact", artifact).Msg("whisper: engine wrote no output file, parsing console output")
		if len(run.Stdout) == 0 {
			return nil, nil, apperr.EngineProtocol("engine wrote neither %s nor console output", filepath.Base(artifact))
		}
		tr, err := transcript.ParseConsole(run.Stdout)
		if err != nil {
			return nil, nil, err
		}
		return tr, nil, nil
	default:
		return nil, nil, apperr.IO("read", artifact, err)
	}
}

// BuildArgs assembles the whisper-cli argument vector for one request. The
// language flag is omitted for LanguageAuto.
func BuildArgs(modelPath, audioPath string, cfg Config, format transcript.Format, outputBase string, passThrough []string) ([]string, error) {
	args := []string{"-m", modelPath, audioPath}

	if lang := cfg.Language(); lang != LanguageAuto {
		if !ValidLanguage(lang) {
			return nil, apperr.Initialization("unknown language %q", lang)
		}
		args = append(args, "-l", lang)
	}
	if cfg.Translate() {
		args = append(args, "--translate")
	}

	switch format {
	case transcript.FormatSRT:
		args = append(args, "--output-srt")
	case transcript.FormatVTT:
		args = append(args, "--output-vtt")
	case transcript.FormatJSON:
		args = append(args, "--output-json")
	default:
		args = append(args, "--output-txt")
	}
	if outputBase != "" {
		args = append(args, "--output-file", outputBase)
	}

	extra, err := optionArgs(cfg)
	if err != nil {
		return nil, err
	}
	args = append(args, extra...)
	return append(args, passThrough...), nil
}
