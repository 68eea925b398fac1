// Package location models the places that dirsync reads from and writes to:
// directories on the local machine, and directories on SSH hosts.
package location

import (
	"os"
	"regexp"

	"github.com/sidkik/dirsync/pkg/errors"
)

// Kind says which machine a Location lives on.
type Kind string

const (
	// Local locations are on the machine running dirsync.
	Local Kind = "local"

	// Remote locations are on an SSH host, and commands that touch them are
	// run through ssh.
	Remote Kind = "ssh"
)

// DefaultPort is the SSH port used when a host doesn't configure one.
const DefaultPort = 22

// CurrentDirectoryName is the name given to the Location returned by
// CurrentDirectory.
const CurrentDirectoryName = "."

// Location is a named directory.
type Location struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Kind Kind   `json:"kind"`

	// Host is the key of the SSH host the Location lives on. It's only set
	// for Remote locations.
	Host string `json:"host,omitempty"`
}

// IsRemote returns whether commands for the Location must go through ssh.
func (loc Location) IsRemote() bool {
	return loc.Kind == Remote
}

// Host is an SSH endpoint that Remote locations reference.
type Host struct {
	Key      string `json:"key"`
	Address  string `json:"host"`
	Username string `json:"username"`
	Port     int    `json:"port"`

	// WorkDir is the staging directory for archives on the host. It's Local
	// from the perspective of the host itself.
	WorkDir Location `json:"workDir"`
}

// Login returns the `user@host` string used by ssh and scp.
func (h Host) Login() string {
	return h.Username + "@" + h.Address
}

// Hosts maps host keys to their configuration.
type Hosts map[string]Host

// Get returns the host for `key`.
func (hosts Hosts) Get(key string) (Host, error) {
	host, ok := hosts[key]
	if !ok {
		return Host{}, errors.HostNotFound{Key: key}
	}
	return host, nil
}

// HostFor returns the host that a Remote location lives on.
func (hosts Hosts) HostFor(loc Location) (Host, error) {
	if loc.Host == "" {
		return Host{}, errors.MissingFieldError{Field: "folders." + loc.Name + ".ssh_key"}
	}
	return hosts.Get(loc.Host)
}

// WorkDirFor returns the staging directory used for `loc`'s side of a
// transfer. Local locations stage in `work`, and remote locations stage in
// their host's work directory.
func (hosts Hosts) WorkDirFor(loc, work Location) (Location, error) {
	if !loc.IsRemote() {
		return work, nil
	}

	host, err := hosts.HostFor(loc)
	if err != nil {
		return Location{}, err
	}
	return host.WorkDir, nil
}

// shellSafe matches paths that a remote shell passes through unchanged. ssh
// joins its arguments into a single command line, so anything that the shell
// would split or expand is rejected.
var shellSafe = regexp.MustCompile(`^[A-Za-z0-9_./+@%,:=-]+$`)

// IsShellSafe returns whether `path` can be used on an SSH host without
// quoting.
func IsShellSafe(path string) bool {
	return shellSafe.MatchString(path)
}

// CheckPath returns an error if `path` can't be used within `loc`. Only
// paths on SSH hosts are restricted.
func CheckPath(loc Location, path string) error {
	if loc.IsRemote() && !IsShellSafe(path) {
		return errors.UnsafePath{Path: path}
	}
	return nil
}

// getWorkingDirectory is mocked in unit tests.
var getWorkingDirectory = os.Getwd

// CurrentDirectory returns a Local location for the process's working
// directory.
func CurrentDirectory() (Location, error) {
	wd, err := getWorkingDirectory()
	if err != nil {
		return Location{}, errors.WithContext(err, "get working directory")
	}
	return Location{Name: CurrentDirectoryName, Path: wd, Kind: Local}, nil
}

// ResolvePath joins the Location's path with a relative sub-path. An empty
// `relativePath` returns the Location's path unchanged. The result isn't
// cleaned, and isn't checked for existence.
func ResolvePath(loc Location, relativePath string) string {
	if relativePath == "" {
		return loc.Path
	}
	return loc.Path + "/" + relativePath
}
