package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/sidkik/dirsync/pkg/errors"
)

// Mocked for unit testing.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	exit             = os.Exit

	isTerminal = func() bool { return terminal.IsTerminal(int(os.Stdin.Fd())) }
)

// stdinReader buffers stdin across prompts. It's rebuilt when stdin is
// swapped.
var (
	stdinReader *bufio.Reader
	stdinSource io.Reader
)

// HandleFatalError handles errors that are severe enough to terminate the
// program.
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")
	fmt.Fprintf(stderr, "Error: %s\n", errors.GetPrintableMessage(err))
	exit(1)
}

// HandlePanic prints the panic and the stack trace that caused it, and exits.
// It should be deferred at the start of main.
func HandlePanic() {
	if r := recover(); r != nil {
		fmt.Fprintf(stderr, "Panic: %v\n%s", r, debug.Stack())
		exit(1)
	}
}

// PromptYesOrNo prints `prompt` and reads a line from stdin. It only returns
// true if the trimmed line is exactly "y". Reaching the end of the input
// without an answer counts as "no". Input after the line is kept for the
// next prompt.
func PromptYesOrNo(prompt string) (bool, error) {
	if !isTerminal() {
		log.Debug("Stdin isn't a terminal. Reading the confirmation from it anyway.")
	}

	fmt.Fprintln(stdout, prompt)
	if stdinReader == nil || stdinSource != stdin {
		stdinReader = bufio.NewReader(stdin)
		stdinSource = stdin
	}

	resp, err := stdinReader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errors.WithContext(err, "read response")
	}
	return strings.TrimSpace(resp) == "y", nil
}
