// Package cli implements the whisperbridge subcommands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/config"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// usageError marks argument problems, reported with ExitUsage.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// env is what every command gets to work with.
type env struct {
	cfg    config.Config
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"transcribe":     {"transcribe an audio file", runTranscribe},
	"execute-direct": {"run the whisper.cpp binary directly on an audio file", runExecuteDirect},
	"download":       {"download a model into the cache", runDownload},
	"models":         {"list downloadable and cached models", runModels},
	"languages":      {"list supported language codes", runLanguages},
	"inspect":        {"load a model and report its languages", runInspect},
	"serve":          {"serve transcription over HTTP and WebSocket", runServe},
	"watch":          {"transcribe audio files dropped into a directory", runWatch},
}

// Run executes the subcommand named by args[0] and returns the process
// exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}
	SetupLogging(stderr, cfg.LogLevel)

	if len(args) == 0 {
		usage(stderr)
		return ExitUsage
	}
	name := args[0]
	if name == "-h" || name == "--help" || name == "help" {
		usage(stdout)
		return ExitOK
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		usage(stderr)
		return ExitUsage
	}

	e := &env{cfg: cfg, stdout: stdout, stderr: stderr}
	err = cmd.run(ctx, e, args[1:])
	var ue usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, flag.ErrHelp):
		return ExitOK
	case errors.As(err, &ue):
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return ExitUsage
	default:
		log.Debug().Err(err).Str("command", name).Msg("cli: command failed")
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: whisperbridge <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-15s %s\n", name, commands[name].summary)
	}
}

// newFlagSet returns a flag set that reports parse errors as usage errors
// instead of exiting.
func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{msg: err.Error()}
	}
	return nil
}
