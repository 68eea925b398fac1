package sync

import (
	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/location"
	"github.com/sidkik/dirsync/pkg/remote"
)

// PlanTransfer returns the command that moves the staged archive `name` from
// `fromWork` to `toWork`. If both sides are local they share the staging
// directory, so there's nothing to move and a nil command is returned.
func PlanTransfer(from, to location.Location, hosts location.Hosts, name string,
	fromWork, toWork location.Location) ([]string, error) {

	switch {
	case from.IsRemote() && to.IsRemote():
		return nil, errors.ErrDualRemote
	case !from.IsRemote() && !to.IsRemote():
		return nil, nil
	}

	return remote.Copy(from, to, hosts,
		fromWork.Path+"/"+name, toWork.Path+"/"+name)
}
