package util

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/location"
)

// Folder names in the generated config.
const (
	LocalFolder  = "local"
	RemoteFolder = "remote"
	WorkFolder   = "work"
	TestLink     = "test"
)

// TestHelper contains methods commonly used during integration tests. Each
// helper owns a config file, a local scratch directory, and a remote scratch
// directory on the SSH host under test.
type TestHelper struct {
	Host location.Host

	ConfigPath string
	LocalRoot  string
	RemoteRoot string
}

// NewTestHelper writes a config that pairs `localRoot` with `remoteRoot` on
// `host`. The remote staging directory is created under `remoteRoot`.
func NewTestHelper(ctx context.Context, host location.Host, localRoot, remoteRoot string) (*TestHelper, error) {
	helper := &TestHelper{
		Host:       host,
		ConfigPath: filepath.Join(localRoot, "dirsync.toml"),
		LocalRoot:  localRoot,
		RemoteRoot: remoteRoot,
	}

	for _, dir := range []string{helper.LocalPath(WorkFolder), helper.LocalPath(LocalFolder)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.WithContext(err, "make local directory")
		}
	}

	if _, err := helper.RemoteExec(ctx, "mkdir", "-p",
		helper.RemotePath(WorkFolder), helper.RemotePath(RemoteFolder)); err != nil {
		return nil, errors.WithContext(err, "make remote directories")
	}

	if err := os.WriteFile(helper.ConfigPath, []byte(helper.config()), 0644); err != nil {
		return nil, errors.WithContext(err, "write config")
	}
	return helper, nil
}

func (helper *TestHelper) config() string {
	return fmt.Sprintf(`local_work_dir = %[1]q

[folders.%[1]s]
path = %[2]q
target = "local"

[folders.%[3]s]
path = %[4]q
target = "local"

[folders.%[5]s]
path = %[6]q
target = "ssh"
ssh_key = "ci"

[links.%[7]s]
local = %[3]q
target = %[5]q

[ssh.ci]
host = %[8]q
username = %[9]q
port = %[10]d
work_dir = %[11]q
`, WorkFolder, helper.LocalPath(WorkFolder),
		LocalFolder, helper.LocalPath(LocalFolder),
		RemoteFolder, helper.RemotePath(RemoteFolder),
		TestLink,
		helper.Host.Address, helper.Host.Username, helper.Host.Port,
		helper.RemotePath(WorkFolder))
}

// LocalPath returns the path of `name` within the local scratch directory.
func (helper *TestHelper) LocalPath(name string) string {
	return filepath.Join(helper.LocalRoot, name)
}

// RemotePath returns the path of `name` within the remote scratch directory.
func (helper *TestHelper) RemotePath(name string) string {
	return helper.RemoteRoot + "/" + name
}

// Run runs dirsync with the given arguments against the helper's config, and
// returns its combined output.
func (helper *TestHelper) Run(ctx context.Context, args ...string) (string, error) {
	args = append([]string{"--config", helper.ConfigPath}, args...)
	log.WithField("args", args).Info("Running dirsync")

	output, err := exec.CommandContext(ctx, "dirsync", args...).CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("dirsync %s failed (%s): %s",
			strings.Join(args, " "), err, output)
	}
	return string(output), nil
}

// RemoteExec runs a command on the SSH host, and returns its stdout.
func (helper *TestHelper) RemoteExec(ctx context.Context, args ...string) (string, error) {
	sshArgs := append([]string{"-p", strconv.Itoa(helper.Host.Port), helper.Host.Login()}, args...)
	output, err := exec.CommandContext(ctx, "ssh", sshArgs...).Output()
	if err != nil {
		return "", errors.WithContext(err, "ssh "+strings.Join(args, " "))
	}
	return string(output), nil
}

// Cleanup deletes the remote scratch directory.
func (helper *TestHelper) Cleanup(ctx context.Context) error {
	_, err := helper.RemoteExec(ctx, "rm", "-rf", helper.RemoteRoot)
	return err
}
