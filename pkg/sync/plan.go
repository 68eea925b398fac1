package sync

import (
	"strings"

	"github.com/sidkik/dirsync/pkg/archive"
	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/location"
	"github.com/sidkik/dirsync/pkg/remote"
)

// Side is the machine that a step runs on.
type Side string

const (
	// Source steps run where the directory is copied from.
	Source Side = "source"

	// Destination steps run where the directory is copied to.
	Destination Side = "destination"

	// Local steps run on this machine regardless of which side is remote.
	Local Side = "local"
)

// The names of the steps in a Plan, in the order that they run.
const (
	StepCreateArchive            = "create-archive"
	StepTransfer                 = "transfer"
	StepMkdir                    = "mkdir"
	StepVerify                   = "verify-archive"
	StepPurge                    = "purge"
	StepRecreate                 = "recreate"
	StepExtract                  = "extract"
	StepDeleteDestinationArchive = "delete-destination-archive"
	StepDeleteSourceArchive      = "delete-source-archive"
)

// Step is a single command in a Plan. Args are already wrapped for the side
// that the step runs on.
type Step struct {
	Name         string
	Side         Side
	Args         []string
	FailureLabel string
}

// CommandLine returns the step's arguments joined for display.
func (s Step) CommandLine() string {
	return strings.Join(s.Args, " ")
}

// Plan is the ordered list of commands that copies one directory over
// another.
type Plan struct {
	From     location.Location
	To       location.Location
	FromPath string
	ToPath   string

	// Archive is the name of the staged archive.
	Archive string

	// ExistsCheck exits non-zero if FromPath doesn't exist. It runs before
	// any of the Steps.
	ExistsCheck []string

	Steps []Step
}

// Commands returns the command line of every step.
func (p Plan) Commands() []string {
	var lines []string
	for _, step := range p.Steps {
		lines = append(lines, step.CommandLine())
	}
	return lines
}

// Planner builds Plans.
type Planner struct {
	Hosts location.Hosts

	// Work is the local staging directory.
	Work location.Location

	// Archiver names archives. If nil, archive.PlanArchive is used.
	Archiver *archive.Planner
}

// Plan builds the commands that replace `relativePath` within `to` with
// `relativePath` within `from`. Only one of the locations may be remote.
func (p Planner) Plan(from, to location.Location, relativePath string) (Plan, error) {
	if from.IsRemote() && to.IsRemote() {
		return Plan{}, errors.ErrDualRemote
	}

	fromPath := location.ResolvePath(from, relativePath)
	toPath := location.ResolvePath(to, relativePath)

	if err := location.CheckPath(from, fromPath); err != nil {
		return Plan{}, errors.WithContext(err, "check source path")
	}
	if err := location.CheckPath(to, toPath); err != nil {
		return Plan{}, errors.WithContext(err, "check destination path")
	}

	fromWork, err := p.Hosts.WorkDirFor(from, p.Work)
	if err != nil {
		return Plan{}, errors.WithContext(err, "get source staging directory")
	}

	toWork, err := p.Hosts.WorkDirFor(to, p.Work)
	if err != nil {
		return Plan{}, errors.WithContext(err, "get destination staging directory")
	}

	arc := p.planArchive(fromPath, fromWork)
	unarc := archive.PlanUnarchive(toPath, toWork, arc.Name)
	if !archive.SameName(fromPath, toPath) {
		unarc = archive.PlanUnarchiveRenamed(toPath, toWork, arc.Name)
	}

	transfer, err := PlanTransfer(from, to, p.Hosts, arc.Name, fromWork, toWork)
	if err != nil {
		return Plan{}, errors.WithContext(err, "plan transfer")
	}

	existsCheck, err := remote.Wrap(from, p.Hosts, arc.ExistsCheck)
	if err != nil {
		return Plan{}, errors.WithContext(err, "wrap source command")
	}

	plan := Plan{
		From:        from,
		To:          to,
		FromPath:    fromPath,
		ToPath:      toPath,
		Archive:     arc.Name,
		ExistsCheck: existsCheck,
	}

	type stepDef struct {
		name  string
		side  Side
		args  []string
		label string
	}
	defs := []stepDef{
		{StepCreateArchive, Source, arc.Create, "Failed to create archive"},
		{StepTransfer, Local, transfer, "Failed to copy archive"},
		{StepMkdir, Destination, unarc.Mkdir, "Failed to make destination directories"},
		{StepVerify, Destination, unarc.Verify, "Failed to verify staged archive"},
		{StepPurge, Destination, unarc.Purge, "Failed to delete destination folder"},
		{StepRecreate, Destination, unarc.Recreate, "Failed to recreate destination folder"},
		{StepExtract, Destination, unarc.Extract, "Failed to extract archive"},
		{StepDeleteDestinationArchive, Destination, unarc.Delete, "Failed to delete destination archive"},
	}

	// When both sides are local, they share one staged archive, and it's
	// already deleted by the destination.
	if from.IsRemote() || to.IsRemote() {
		defs = append(defs, stepDef{StepDeleteSourceArchive, Source, arc.Delete,
			"Failed to delete source archive"})
	}

	for _, def := range defs {
		if def.args == nil {
			continue
		}

		args := def.args
		if def.side != Local {
			loc := from
			if def.side == Destination {
				loc = to
			}

			args, err = remote.Wrap(loc, p.Hosts, def.args)
			if err != nil {
				return Plan{}, errors.WithContext(err, "wrap "+def.name)
			}
		}

		plan.Steps = append(plan.Steps, Step{
			Name:         def.name,
			Side:         def.side,
			Args:         args,
			FailureLabel: def.label,
		})
	}
	return plan, nil
}

func (p Planner) planArchive(sourcePath string, staging location.Location) archive.Archive {
	if p.Archiver != nil {
		return p.Archiver.PlanArchive(sourcePath, staging)
	}
	return archive.PlanArchive(sourcePath, staging)
}
