package whisper

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrTimeout reports that a subprocess was killed after its deadline.
var ErrTimeout = errors.New("whisper.cpp timed out")

// Invocation records one spawn/wait cycle of the engine executable.
type Invocation struct {
	Executable string
	Args       []string
	// OutputBase is the --output-file argument; whisper.cpp appends the
	// format extension.
	OutputBase string

	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner spawns an Invocation and waits for it, filling in the captured
// output and exit code.
type Runner interface {
	Run(inv *Invocation) error
}

// ExecRunner runs invocations with os/exec. The child gets its own process
// group so a timeout can kill whatever it spawned too.
type ExecRunner struct {
	Timeout time.Duration
}

func (r ExecRunner) Run(inv *Invocation) error {
	cmd := exec.Command(inv.Executable, inv.Args...)
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Str("bin", inv.Executable).Strs("args", inv.Args).Msg("whisper: spawning engine")
	if err := cmd.Start(); err != nil {
		return err
	}

	var timedOut atomic.Bool
	if r.Timeout > 0 {
		timer := time.AfterFunc(r.Timeout, func() {
			timedOut.Store(true)
			if err := killProcessGroup(cmd.Process); err != nil {
				log.Warn().Err(err).Int("pid", cmd.Process.Pid).Msg("whisper: kill after timeout failed")
			}
		})
		defer timer.Stop()
	}

	err := cmd.Wait()
	inv.Stdout = stdout.Bytes()
	inv.Stderr = stderr.Bytes()
	inv.ExitCode = cmd.ProcessState.ExitCode()
	if timedOut.Load() {
		return fmt.Errorf("%w after %s", ErrTimeout, r.Timeout)
	}
	return err
}
