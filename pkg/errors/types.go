package errors

import (
	"fmt"
	"strings"
)

// ErrDualRemote is returned when both sides of a sync are remote.
var ErrDualRemote = New("only one folder can be remote")

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// HostNotFound is returned when a remote location references an SSH host
// that isn't configured.
type HostNotFound struct {
	Key string
}

func (err HostNotFound) Error() string {
	return fmt.Sprintf("no ssh host configured with key %q", err.Key)
}

// UnsafePath is returned when a path on an SSH host contains characters that
// the remote shell would interpret.
type UnsafePath struct {
	Path string
}

func (err UnsafePath) Error() string {
	return fmt.Sprintf("%q contains characters that aren't allowed in paths on ssh hosts", err.Path)
}

func (err UnsafePath) FriendlyMessage() string {
	return fmt.Sprintf("The path %q can't be used on an ssh host. Paths on ssh hosts "+
		"may only contain letters, digits, and the characters _ . / + @ %% , : = -", err.Path)
}

// UnknownTarget is returned when the name given on the command line doesn't
// match a configured folder or link.
type UnknownTarget struct {
	Kind string
	Name string
}

func (err UnknownTarget) Error() string {
	return fmt.Sprintf("unknown %s %q", err.Kind, err.Name)
}

// ValidationError collects every problem found in a configuration file so
// that they can all be fixed in one pass.
type ValidationError struct {
	Path   string
	Issues []string
}

func (err ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "The configuration file %q is invalid:", err.Path)
	for _, issue := range err.Issues {
		b.WriteString("\n - ")
		b.WriteString(issue)
	}
	return b.String()
}

func (err ValidationError) FriendlyMessage() string {
	return err.Error()
}
