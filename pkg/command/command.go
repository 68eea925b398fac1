// Package command runs external programs and reports how they finished.
package command

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/dirsync/pkg/errors"
)

// Status describes how a command finished.
type Status int

const (
	// OK means the command ran and exited with status zero.
	OK Status = iota

	// SpawnFailed means the command couldn't be started, for example
	// because the program isn't installed.
	SpawnFailed

	// NonZeroExit means the command ran, but exited with a non-zero status.
	NonZeroExit
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case SpawnFailed:
		return "spawn failed"
	case NonZeroExit:
		return "non-zero exit"
	default:
		return "unknown"
	}
}

// Result is the outcome of running a command.
type Result struct {
	Status   Status
	ExitCode int

	// Output is the captured standard output. It's only populated when the
	// command was run with Capture.
	Output string

	// Err is the error returned when starting or waiting for the process.
	Err error
}

// Failed returns whether the command didn't run successfully.
func (res Result) Failed() bool {
	return res.Status != OK
}

// Options control where a command's output goes.
type Options struct {
	// Stdout and Stderr receive the command's output as it's produced.
	Stdout io.Writer
	Stderr io.Writer

	// Capture additionally records standard output in Result.Output.
	Capture bool
}

// Runner runs argument vectors. The first element is the program, and the
// rest are its arguments.
type Runner interface {
	Run(ctx context.Context, args []string, opts Options) Result
}

// ExecRunner runs commands as local processes.
type ExecRunner struct{}

// Mocked out for unit testing.
var runCommand = (*exec.Cmd).Run

// Run starts the command and waits for it to exit. There's no timeout.
func (ExecRunner) Run(ctx context.Context, args []string, opts Options) Result {
	if len(args) == 0 {
		return Result{Status: SpawnFailed, ExitCode: -1, Err: errors.New("empty command")}
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	var stdout bytes.Buffer
	var stdoutWriters []io.Writer
	if opts.Capture {
		stdoutWriters = append(stdoutWriters, &stdout)
	}
	if opts.Stdout != nil {
		stdoutWriters = append(stdoutWriters, opts.Stdout)
	}
	if len(stdoutWriters) > 0 {
		cmd.Stdout = io.MultiWriter(stdoutWriters...)
	}
	cmd.Stderr = opts.Stderr

	log.WithField("command", strings.Join(args, " ")).Debug("Running command")
	err := runCommand(cmd)
	res := Result{Output: stdout.String(), Err: err}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Status = OK
	case errors.As(err, &exitErr):
		res.Status = NonZeroExit
		res.ExitCode = exitErr.ExitCode()
	default:
		res.Status = SpawnFailed
		res.ExitCode = -1
	}
	return res
}
