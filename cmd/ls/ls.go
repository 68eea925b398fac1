package ls

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/dirsync/cmd/util"
	"github.com/sidkik/dirsync/pkg/command"
	"github.com/sidkik/dirsync/pkg/config"
	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/location"
	"github.com/sidkik/dirsync/pkg/sync"
)

// Mocked for unit testing.
var (
	runner command.Runner = command.ExecRunner{}
	stdout io.Writer      = os.Stdout
	stderr io.Writer      = os.Stderr
)

// New creates a new `ls` command.
func New(global *util.GlobalOptions) *cobra.Command {
	var link bool
	cmd := &cobra.Command{
		Use:   "ls <target> [relative path]",
		Short: "List the contents of a folder, or of both sides of a link",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(_ *cobra.Command, args []string) {
			var relativePath string
			if len(args) == 2 {
				relativePath = args[1]
			}

			if err := run(global, link, args[0], relativePath); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVarP(&link, "link", "l", false,
		"Treat the target as a link rather than a folder")
	return cmd
}

func run(global *util.GlobalOptions, link bool, target, relativePath string) error {
	cfg, err := global.Config()
	if err != nil {
		return err
	}

	folders, err := getFolders(cfg, link, target)
	if err != nil {
		return err
	}

	if relativePath != "" {
		relativePath, err = config.CleanSubPath(relativePath)
		if err != nil {
			return err
		}
	}

	orchestrator := sync.New(sync.Options{
		Hosts:  cfg.Hosts,
		Work:   cfg.Work,
		Runner: runner,
		Stdout: stdout,
		Stderr: stderr,
	})
	for _, folder := range folders {
		if err := orchestrator.List(context.Background(), folder, relativePath); err != nil {
			return errors.WithContext(err, "list "+folder.Name)
		}
	}
	return nil
}

// getFolders returns the folders to list. Links list their local folder
// followed by their target.
func getFolders(cfg config.Config, link bool, target string) ([]location.Location, error) {
	if !link {
		folder, err := cfg.Folder(target)
		if err != nil {
			return nil, err
		}
		return []location.Location{folder}, nil
	}

	l, err := cfg.Link(target)
	if err != nil {
		return nil, err
	}

	var folders []location.Location
	for _, name := range []string{l.Local, l.Target} {
		folder, err := cfg.Folder(name)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	return folders, nil
}
