// Command whisperbridge transcribes audio with whisper.cpp, either in
// process or by driving its command-line tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/obiente/whisperbridge/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
