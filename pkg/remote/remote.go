// Package remote builds the ssh and scp invocations used to run commands on,
// and copy files to and from, SSH hosts.
package remote

import (
	"strconv"

	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/location"
)

const (
	// ShellBinary runs a command on a remote host.
	ShellBinary = "ssh"

	// CopyBinary copies files between the local machine and a remote host.
	CopyBinary = "scp"
)

// Wrap returns the argument vector that runs `args` on the machine that
// `loc` lives on. Local locations get `args` back unchanged.
func Wrap(loc location.Location, hosts location.Hosts, args []string) ([]string, error) {
	if !loc.IsRemote() {
		return args, nil
	}

	host, err := hosts.HostFor(loc)
	if err != nil {
		return nil, err
	}

	wrapped := []string{ShellBinary, "-p", strconv.Itoa(port(host)), host.Login()}
	return append(wrapped, args...), nil
}

// Copy returns the scp invocation that copies `fromPath` on `from`'s machine
// to `toPath` on `to`'s machine. The port is taken from whichever side is
// remote.
func Copy(from, to location.Location, hosts location.Hosts, fromPath, toPath string) ([]string, error) {
	if from.IsRemote() && to.IsRemote() {
		return nil, errors.ErrDualRemote
	}

	copyPort := location.DefaultPort
	src, srcPort, err := target(from, hosts, fromPath)
	if err != nil {
		return nil, errors.WithContext(err, "source")
	}
	dst, dstPort, err := target(to, hosts, toPath)
	if err != nil {
		return nil, errors.WithContext(err, "destination")
	}

	switch {
	case from.IsRemote():
		copyPort = srcPort
	case to.IsRemote():
		copyPort = dstPort
	}

	return []string{CopyBinary, "-P", strconv.Itoa(copyPort), "-r", src, dst}, nil
}

// target renders `path` in scp's `user@host:path` syntax if `loc` is remote.
func target(loc location.Location, hosts location.Hosts, path string) (string, int, error) {
	if !loc.IsRemote() {
		return path, location.DefaultPort, nil
	}

	host, err := hosts.HostFor(loc)
	if err != nil {
		return "", 0, err
	}
	return host.Login() + ":" + path, port(host), nil
}

func port(host location.Host) int {
	if host.Port == 0 {
		return location.DefaultPort
	}
	return host.Port
}
