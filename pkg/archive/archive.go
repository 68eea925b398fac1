// Package archive plans the tar invocations that package a directory into a
// staging directory and unpack it at the destination.
package archive

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sidkik/dirsync/pkg/location"
)

const (
	// Extension is appended to every generated archive name.
	Extension = ".tar.gz"

	nameLength  = 7
	nameCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Archive holds the commands that package a source directory. The commands
// run on the source's machine, so callers wrap them with remote.Wrap.
type Archive struct {
	// Name is the file name of the archive within the staging directory.
	Name string

	// Path is the full path of the archive within the staging directory.
	Path string

	ExistsCheck []string
	Create      []string
	Delete      []string
}

// Unarchive holds the commands that unpack an archive at the destination.
// The commands run on the destination's machine.
type Unarchive struct {
	Verify   []string
	Mkdir    []string
	Purge    []string
	Recreate []string
	Extract  []string
	Delete   []string
}

// Planner generates archive plans. Archive names are drawn from its random
// source.
type Planner struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewPlanner returns a Planner that generates archive names from `src`.
func NewPlanner(src rand.Source) *Planner {
	return &Planner{rand: rand.New(src)}
}

var defaultPlanner = NewPlanner(rand.NewSource(time.Now().UnixNano()))

// PlanArchive plans the archival of `sourcePath` into `staging` using a
// time-seeded archive name.
func PlanArchive(sourcePath string, staging location.Location) Archive {
	return defaultPlanner.PlanArchive(sourcePath, staging)
}

// PlanArchive plans the archival of `sourcePath` into `staging`. The archive
// is rooted at the parent of `sourcePath`, so it contains the leaf directory
// under its own name rather than absolute paths.
func (p *Planner) PlanArchive(sourcePath string, staging location.Location) Archive {
	name := p.randomName() + Extension
	archivePath := stagedPath(staging, name)
	parent, leaf := splitPath(sourcePath)

	return Archive{
		Name:        name,
		Path:        archivePath,
		ExistsCheck: []string{"ls", sourcePath},
		Create:      []string{"tar", "-czf", archivePath, "-C", parent, leaf},
		Delete:      []string{"rm", archivePath},
	}
}

// PlanUnarchive plans the replacement of `destPath` with the contents of the
// archive `name` staged in `staging`. The destination is removed before the
// archive is extracted, so files that only exist at the destination are
// deleted.
//
// The archive is extracted into the parent of `destPath`, so its top-level
// entry must have the same name as `destPath`. That entry may be a file, so
// only the parent is created.
func PlanUnarchive(destPath string, staging location.Location, name string) Unarchive {
	archivePath := stagedPath(staging, name)
	parent, _ := splitPath(destPath)

	return Unarchive{
		Verify:  []string{"ls", archivePath},
		Mkdir:   []string{"mkdir", "-p", parent},
		Purge:   []string{"rm", "-rf", destPath},
		Extract: []string{"tar", "-xzf", archivePath, "-C", parent},
		Delete:  []string{"rm", archivePath},
	}
}

// PlanUnarchiveRenamed is PlanUnarchive for an archived directory whose name
// differs from the final element of `destPath`. The destination is recreated
// after it's purged, and the archive's top-level directory is stripped while
// extracting into it.
func PlanUnarchiveRenamed(destPath string, staging location.Location, name string) Unarchive {
	unarchive := PlanUnarchive(destPath, staging, name)
	unarchive.Mkdir = []string{"mkdir", "-p", destPath}
	unarchive.Recreate = []string{"mkdir", "-p", destPath}
	unarchive.Extract = []string{"tar", "-xzf", stagedPath(staging, name), "-C", destPath,
		"--strip-components=1"}
	return unarchive
}

// SameName returns whether `a` and `b` have the same final element.
func SameName(a, b string) bool {
	_, aLeaf := splitPath(a)
	_, bLeaf := splitPath(b)
	return aLeaf == bLeaf
}

func (p *Planner) randomName() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	b := make([]byte, nameLength)
	for i := range b {
		b[i] = nameCharset[p.rand.Intn(len(nameCharset))]
	}
	return string(b)
}

func stagedPath(staging location.Location, name string) string {
	return staging.Path + "/" + name
}

// splitPath splits `path` into its parent directory and final element.
// Empty elements are dropped, so trailing and repeated slashes are ignored.
func splitPath(path string) (parent, leaf string) {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}

	if len(parts) == 0 {
		return "/", ""
	}

	leaf = parts[len(parts)-1]
	parent = strings.Join(parts[:len(parts)-1], "/")
	switch {
	case strings.HasPrefix(path, "/"):
		parent = "/" + parent
	case parent == "":
		parent = "."
	}
	return parent, leaf
}
