package sync

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/dirsync/cmd/util"
	"github.com/sidkik/dirsync/pkg/command"
	"github.com/sidkik/dirsync/pkg/config"
	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/location"
	syncPkg "github.com/sidkik/dirsync/pkg/sync"
)

// Direction says which way a sync copies.
type Direction string

const (
	// Pull copies from the named target to this machine.
	Pull Direction = "pull"

	// Push copies from this machine to the named target.
	Push Direction = "push"
)

// Mocked for unit testing.
var (
	runner              command.Runner = command.ExecRunner{}
	confirm                            = util.PromptYesOrNo
	stdout              io.Writer      = os.Stdout
	stderr              io.Writer      = os.Stderr
	getCurrentDirectory                = location.CurrentDirectory
)

// Flags are the options shared by `pull` and `push`.
type Flags struct {
	Link            bool
	Force           bool
	All             bool
	ContinueOnError bool
	DryRun          bool
}

// Job is a single directory copy.
type Job struct {
	From         location.Location
	To           location.Location
	RelativePath string
}

// NewPull creates a new `pull` command.
func NewPull(global *util.GlobalOptions) *cobra.Command {
	return newCommand(global, Pull,
		"Replace a local directory with the named folder or link target",
		"Pull a folder into the current directory, or a link's target folder into\n"+
			"its local folder. Files at the destination that don't exist in the\n"+
			"source are deleted.")
}

// NewPush creates a new `push` command.
func NewPush(global *util.GlobalOptions) *cobra.Command {
	return newCommand(global, Push,
		"Replace the named folder or link target with a local directory",
		"Push the current directory into a folder, or a link's local folder into\n"+
			"its target folder. Files at the destination that don't exist in the\n"+
			"source are deleted.")
}

func newCommand(global *util.GlobalOptions, dir Direction, short, long string) *cobra.Command {
	var flags Flags
	cmd := &cobra.Command{
		Use:   string(dir) + " <target> [relative path]",
		Short: short,
		Long:  long,
		Args:  cobra.RangeArgs(1, 2),
		Run: func(_ *cobra.Command, args []string) {
			var relativePath string
			if len(args) == 2 {
				relativePath = args[1]
			}

			if err := run(global, dir, flags, args[0], relativePath); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVarP(&flags.Link, "link", "l", false,
		"Treat the target as a link rather than a folder")
	cmd.Flags().BoolVarP(&flags.Force, "force", "f", false,
		"Don't prompt before running the commands")
	cmd.Flags().BoolVar(&flags.All, "all", false,
		"Allow syncing a whole folder when no relative path is selected")
	cmd.Flags().BoolVar(&flags.ContinueOnError, "continue-on-error", false,
		"Move on to the next path when a command fails")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false,
		"Check that the source exists and print the commands without running them")
	return cmd
}

func run(global *util.GlobalOptions, dir Direction, flags Flags, target, relativePath string) error {
	cfg, err := global.Config()
	if err != nil {
		return err
	}

	jobs, err := PlanJobs(cfg, dir, flags, target, relativePath)
	if err != nil {
		return err
	}

	policy := syncPkg.AbortRun
	if flags.ContinueOnError {
		policy = syncPkg.AbortOperation
	}

	orchestrator := syncPkg.New(syncPkg.Options{
		Hosts:   cfg.Hosts,
		Work:    cfg.Work,
		Runner:  runner,
		Confirm: confirm,
		Stdout:  stdout,
		Stderr:  stderr,
		Force:   flags.Force,
		DryRun:  flags.DryRun,
		Policy:  policy,
	})

	var failed int
	for _, job := range jobs {
		outcome, err := orchestrator.Sync(context.Background(), job.From, job.To, job.RelativePath)
		if err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"job":   job.String(),
			"state": outcome.State,
		}).Debug("Finished sync")
		if outcome.State == syncPkg.Failed {
			failed++
		}
	}

	if failed != 0 {
		return errors.NewFriendlyError("%d of %d syncs failed", failed, len(jobs))
	}
	return nil
}

// PlanJobs decides which copies to run for `target`.
//
// A folder is pulled into, or pushed from, the current directory. A link's
// target folder is pulled into its local folder, and pushed the other way.
// An explicit `relativePath` is synced on its own. Otherwise, a link's
// configured paths are synced in order. Syncing a whole folder requires
// Flags.All, and isn't allowed at all for links that are partial only.
func PlanJobs(cfg config.Config, dir Direction, flags Flags, target, relativePath string) ([]Job, error) {
	var from, to location.Location
	var paths []string
	var partialOnly bool

	if flags.Link {
		link, err := cfg.Link(target)
		if err != nil {
			return nil, err
		}

		local, err := cfg.Folder(link.Local)
		if err != nil {
			return nil, errors.WithContext(err, "get local folder")
		}

		remote, err := cfg.Folder(link.Target)
		if err != nil {
			return nil, errors.WithContext(err, "get target folder")
		}

		from, to = remote, local
		if dir == Push {
			from, to = local, remote
		}
		paths = link.Paths
		partialOnly = link.PartialOnly
	} else {
		folder, err := cfg.Folder(target)
		if err != nil {
			return nil, err
		}

		cwd, err := getCurrentDirectory()
		if err != nil {
			return nil, err
		}

		from, to = folder, cwd
		if dir == Push {
			from, to = cwd, folder
		}
	}

	if relativePath != "" {
		clean, err := config.CleanSubPath(relativePath)
		if err != nil {
			return nil, err
		}
		paths = []string{clean}
	}

	if len(paths) == 0 {
		if partialOnly {
			return nil, errors.NewFriendlyError("Link %q is partial only, so it "+
				"can't be synced in its entirety. Pass a relative path, or "+
				"configure the link's paths.", target)
		}

		if !flags.All {
			return nil, errors.NewFriendlyError("Refusing to replace all of %q "+
				"without a relative path. Pass --all to sync the whole folder.",
				to.Path)
		}
		paths = []string{""}
	}

	var jobs []Job
	for _, path := range paths {
		jobs = append(jobs, Job{From: from, To: to, RelativePath: path})
	}
	return jobs, nil
}

func (job Job) String() string {
	return fmt.Sprintf("%s -> %s", location.ResolvePath(job.From, job.RelativePath),
		location.ResolvePath(job.To, job.RelativePath))
}
