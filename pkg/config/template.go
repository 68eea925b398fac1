package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sidkik/dirsync/pkg/errors"
)

// DefaultTemplate is the starter config written by `dirsync config init`.
const DefaultTemplate = `# dirsync configuration.
#
# Folders are named directories on this machine or on an SSH host. A sync
# replaces the destination folder with the source folder, so files that only
# exist at the destination are deleted.

# The folder where archives are staged on this machine.
local_work_dir = "work"

[folders.work]
path = "~/.dirsync"
target = "local"

[folders.photos]
path = "~/photos"
target = "local"

[folders.nas-photos]
path = "/volume1/photos"
target = "ssh"
ssh_key = "nas"

# Links pair a local folder with a target folder. ` + "`dirsync pull --link`" + `
# copies the target to the local folder, and ` + "`dirsync push --link`" + `
# copies the other way. Paths are synced one at a time, in order.
[links.photos]
local = "photos"
target = "nas-photos"
paths = ["2023", "2024"]

[ssh.nas]
host = "nas.local"
username = "admin"
port = 22
# The folder where archives are staged on the host.
work_dir = "/tmp/dirsync"
`

// WriteDefault writes DefaultTemplate to `path`, creating its parent
// directory if necessary. It refuses to replace an existing file unless
// `force` is set. The expanded path is returned.
func WriteDefault(path string, force bool) (string, error) {
	path, err := GetPath(path)
	if err != nil {
		return "", errors.WithContext(err, "expand config path")
	}

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return "", errors.WithContext(err, "stat")
	}
	if exists && !force {
		return "", errors.NewFriendlyError("A config file already exists at %q. "+
			"Use --force to overwrite it.", path)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", errors.WithContext(err, "make config directory")
	}

	if err := afero.WriteFile(fs, path, []byte(DefaultTemplate), os.FileMode(0644)); err != nil {
		return "", errors.WithContext(err, "write")
	}
	return path, nil
}
