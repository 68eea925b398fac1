package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/buger/goterm"
	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/dirsync/cmd/util"
	"github.com/sidkik/dirsync/pkg/command"
	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/remote"
)

// MinimumGNUTarVersion is the oldest GNU tar that understands every flag
// used when archiving and extracting.
const MinimumGNUTarVersion = ">= 1.20"

// requiredBinaries must be on the PATH for syncs to run. tar compresses
// archives through gzip.
var requiredBinaries = []string{"ls", "tar", "gzip", "mkdir", "rm", remote.ShellBinary, remote.CopyBinary}

// Mocked for unit testing.
var (
	stdout   io.Writer      = os.Stdout
	lookPath                = exec.LookPath
	runner   command.Runner = command.ExecRunner{}
)

var versionPattern = regexp.MustCompile(`\d+(\.\d+)+`)

// New creates a new `doctor` command.
func New(global *util.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the config and the programs that syncs depend on",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(global); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run(global *util.GlobalOptions) error {
	cfg, err := global.Config()
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Config: %s\n", cfg.Path)
	fmt.Fprintf(stdout, "Folders: %d, links: %d, ssh hosts: %d\n",
		len(cfg.Folders), len(cfg.Links), len(cfg.Hosts))

	var failed []string
	for _, binary := range requiredBinaries {
		path, err := lookPath(binary)
		if err != nil {
			log.WithError(err).WithField("binary", binary).Debug("Failed to find binary")
			report(binary, "not found on PATH", false)
			failed = append(failed, binary)
			continue
		}
		report(binary, path, true)
	}

	if msg, ok := checkTar(); ok {
		report("tar version", msg, true)
	} else {
		report("tar version", msg, false)
		failed = append(failed, "tar version")
	}

	if len(failed) != 0 {
		return errors.NewFriendlyError("Some checks failed: %s",
			strings.Join(failed, ", "))
	}
	fmt.Fprintln(stdout, "OK")
	return nil
}

// checkTar returns a description of the installed tar, and whether it's new
// enough. Only GNU tar is version checked.
func checkTar() (string, bool) {
	res := runner.Run(context.Background(), []string{"tar", "--version"},
		command.Options{Capture: true})
	if res.Failed() {
		return fmt.Sprintf("`tar --version` failed (%s)", res.Status), false
	}

	firstLine := strings.SplitN(strings.TrimSpace(res.Output), "\n", 2)[0]
	if !strings.Contains(firstLine, "GNU tar") {
		return firstLine, true
	}

	versionStr := versionPattern.FindString(firstLine)
	tarVersion, err := goversion.NewVersion(versionStr)
	if err != nil {
		return fmt.Sprintf("could not parse %q", firstLine), false
	}

	constraint := goversion.MustConstraints(goversion.NewConstraint(MinimumGNUTarVersion))
	if !constraint.Check(tarVersion) {
		return fmt.Sprintf("GNU tar %s is too old. Version %s is required",
			tarVersion, MinimumGNUTarVersion), false
	}
	return "GNU tar " + tarVersion.String(), true
}

func report(name, detail string, ok bool) {
	status := goterm.Color("ok", goterm.GREEN)
	if !ok {
		status = goterm.Color("failed", goterm.RED)
	}
	fmt.Fprintf(stdout, "[%s] %s: %s\n", status, name, detail)
}
