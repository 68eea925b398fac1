package sync

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/buger/goterm"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/dirsync/pkg/archive"
	"github.com/sidkik/dirsync/pkg/command"
	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/location"
	"github.com/sidkik/dirsync/pkg/remote"
)

// ConfirmPrompt is shown before a plan is executed.
const ConfirmPrompt = "Enter y to continue!"

// State is where a sync finished.
type State string

const (
	// Done means every step ran successfully.
	Done State = "done"

	// Aborted means a precondition failed before anything was changed.
	Aborted State = "aborted"

	// Skipped means the user declined to run the plan.
	Skipped State = "skipped"

	// Previewed means the plan was printed but not run.
	Previewed State = "previewed"

	// Failed means a step failed while the plan was executing. Steps that
	// already ran aren't rolled back.
	Failed State = "failed"
)

// FailurePolicy decides what happens when a step fails.
type FailurePolicy int

const (
	// AbortRun stops the sync and returns the failure as an error, which
	// ends the whole invocation.
	AbortRun FailurePolicy = iota

	// AbortOperation stops the sync and reports the failure in the Outcome,
	// so that the caller can move on to its next sync.
	AbortOperation
)

// Outcome describes how a sync finished.
type Outcome struct {
	State  State
	Reason string
	Plan   Plan

	// FailedStep and Result are set when State is Failed.
	FailedStep *Step
	Result     command.Result
}

// StepFailed is returned when a step doesn't run successfully.
type StepFailed struct {
	Step   Step
	Result command.Result
}

func (err StepFailed) Error() string {
	switch err.Result.Status {
	case command.SpawnFailed:
		return fmt.Sprintf("%s: `%s` could not be started: %v",
			err.Step.FailureLabel, err.Step.CommandLine(), err.Result.Err)
	default:
		return fmt.Sprintf("%s: `%s` exited with status %d",
			err.Step.FailureLabel, err.Step.CommandLine(), err.Result.ExitCode)
	}
}

// Options configure an Orchestrator.
type Options struct {
	Hosts location.Hosts

	// Work is the local staging directory.
	Work location.Location

	Runner command.Runner

	// Confirm asks the user whether to run a plan. It's not called when
	// Force is set.
	Confirm func(prompt string) (bool, error)

	Stdout io.Writer
	Stderr io.Writer
	Clock  clockwork.Clock

	// Force runs plans without asking for confirmation.
	Force bool

	// DryRun stops after the plan is printed. It takes precedence over
	// Force.
	DryRun bool

	Policy FailurePolicy

	// Archiver names archives. If nil, archive names are time-seeded.
	Archiver *archive.Planner
}

// Orchestrator plans and runs syncs. It holds no state between calls.
type Orchestrator struct {
	Options
	planner Planner
}

// New creates an Orchestrator. Unset options default to running local
// processes, writing to the standard streams, and the real clock.
func New(opts Options) *Orchestrator {
	if opts.Runner == nil {
		opts.Runner = command.ExecRunner{}
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Confirm == nil {
		opts.Confirm = func(string) (bool, error) { return false, nil }
	}

	return &Orchestrator{
		Options: opts,
		planner: Planner{Hosts: opts.Hosts, Work: opts.Work, Archiver: opts.Archiver},
	}
}

// Sync replaces `relativePath` within `to` with `relativePath` within `from`.
//
// Precondition failures and declined confirmations are reported through the
// Outcome with a nil error. An error is returned when the sync can't
// continue at all: the configuration is inconsistent, a command can't be
// started, or a step fails under the AbortRun policy.
func (o *Orchestrator) Sync(ctx context.Context, from, to location.Location, relativePath string) (Outcome, error) {
	logger := log.WithFields(log.Fields{
		"run":  uuid.New().String(),
		"from": from.Name,
		"to":   to.Name,
	})

	fmt.Fprintf(o.Stdout, "Sync: %q -> %q\n",
		location.ResolvePath(from, relativePath), location.ResolvePath(to, relativePath))

	plan, err := o.planner.Plan(from, to, relativePath)
	if err != nil {
		if errors.Is(err, errors.ErrDualRemote) {
			return o.abort(Plan{From: from, To: to}, "Only one folder can be remote"), nil
		}
		return Outcome{}, errors.WithContext(err, "plan sync")
	}
	logger = logger.WithField("archive", plan.Archive)

	res := o.Runner.Run(ctx, plan.ExistsCheck, command.Options{Capture: true})
	switch res.Status {
	case command.SpawnFailed:
		return Outcome{}, errors.WithContext(res.Err, "check source folder")
	case command.NonZeroExit:
		logger.WithField("exitCode", res.ExitCode).Debug("Source existence check failed")
		return o.abort(plan, fmt.Sprintf("Source folder %q does not exist", plan.FromPath)), nil
	}

	fmt.Fprintln(o.Stdout, "Ready for transfer, would you like to continue? "+
		"The following commands will run")
	for _, line := range plan.Commands() {
		fmt.Fprintf(o.Stdout, "- %s\n", line)
	}

	if o.DryRun {
		fmt.Fprintln(o.Stdout, goterm.Color("Dry run, so nothing was changed", goterm.YELLOW))
		return Outcome{State: Previewed, Plan: plan}, nil
	}

	if !o.Force {
		confirmed, err := o.Confirm(ConfirmPrompt)
		if err != nil {
			return Outcome{}, errors.WithContext(err, "confirm")
		}

		if !confirmed {
			fmt.Fprintln(o.Stdout, goterm.Color(
				"Skipping this folder because the user did not input 'y'", goterm.YELLOW))
			return Outcome{State: Skipped, Plan: plan}, nil
		}
	}

	for i, step := range plan.Steps {
		start := o.Clock.Now()
		res := o.Runner.Run(ctx, step.Args, command.Options{Stdout: o.Stdout, Stderr: o.Stderr})
		logger.WithFields(log.Fields{
			"step":     step.Name,
			"side":     step.Side,
			"status":   res.Status,
			"duration": o.Clock.Since(start),
		}).Debug("Ran step")

		if res.Failed() {
			failure := StepFailed{Step: step, Result: res}
			outcome := Outcome{
				State:      Failed,
				Reason:     failure.Error(),
				Plan:       plan,
				FailedStep: &plan.Steps[i],
				Result:     res,
			}
			if o.Policy == AbortOperation {
				fmt.Fprintln(o.Stdout, goterm.Color(failure.Error(), goterm.RED))
				return outcome, nil
			}
			return outcome, failure
		}
	}

	fmt.Fprintln(o.Stdout, goterm.Color(fmt.Sprintf("Synced %q to %q", plan.FromPath, plan.ToPath),
		goterm.GREEN))
	return Outcome{State: Done, Plan: plan}, nil
}

func (o *Orchestrator) abort(plan Plan, reason string) Outcome {
	fmt.Fprintln(o.Stdout, goterm.Color("Error: "+reason, goterm.RED))
	return Outcome{State: Aborted, Reason: reason, Plan: plan}
}

// List prints the long listing of `relativePath` within `loc`.
func (o *Orchestrator) List(ctx context.Context, loc location.Location, relativePath string) error {
	path := location.ResolvePath(loc, relativePath)
	fmt.Fprintf(o.Stdout, "%s - %s\n", loc.Name, path)

	if err := location.CheckPath(loc, path); err != nil {
		return err
	}

	args, err := remote.Wrap(loc, o.Hosts, []string{"ls", "-l", path})
	if err != nil {
		return errors.WithContext(err, "wrap list command")
	}

	res := o.Runner.Run(ctx, args, command.Options{Capture: true, Stderr: o.Stderr})
	if res.Status == command.SpawnFailed {
		return errors.WithContext(res.Err, "list folder")
	}

	fmt.Fprint(o.Stdout, res.Output)
	if res.Status == command.NonZeroExit {
		log.WithFields(log.Fields{
			"folder":   loc.Name,
			"exitCode": res.ExitCode,
		}).Warn("Listing exited with an error")
	}
	return nil
}
