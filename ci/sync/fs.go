package sync

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sidkik/dirsync/ci/util"
	"github.com/sidkik/dirsync/pkg/errors"
)

type file struct {
	path     string
	contents string
	mode     os.FileMode
}

func (f file) WithPath(path string) file {
	f.path = path
	return f
}

func (f file) WithContents(contents string) file {
	f.contents = contents
	return f
}

func randomFile(path string) file {
	return file{
		path:     path,
		contents: strconv.Itoa(rand.Int()),
		mode:     os.FileMode(0640 | rand.Intn(8)),
	}
}

type fsOp func(root string) error

func createFile(toCreate file) fsOp {
	return func(root string) error {
		path := filepath.Join(root, toCreate.path)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return errors.WithContext(err, "make parent")
		}

		if err := os.WriteFile(path, []byte(toCreate.contents), toCreate.mode); err != nil {
			return errors.WithContext(err, "write")
		}
		return os.Chmod(path, toCreate.mode)
	}
}

func removeFile(path string) fsOp {
	return func(root string) error {
		return os.Remove(filepath.Join(root, path))
	}
}

// localTree returns the contents of every file under `root`, keyed by their
// path relative to `root`.
func localTree(root string) (map[string]string, error) {
	tree := map[string]string{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		contents, err := os.ReadFile(path)
		if err != nil {
			return errors.WithContext(err, "read")
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		tree[rel] = string(contents)
		return nil
	})
	return tree, err
}

// remoteFiles returns the paths of every file under `root` on the SSH host,
// relative to `root`.
func remoteFiles(ctx context.Context, helper *util.TestHelper, root string) ([]string, error) {
	output, err := helper.RemoteExec(ctx, "find", root, "-type", "f")
	if err != nil {
		return nil, errors.WithContext(err, "find")
	}

	var files []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		files = append(files, strings.TrimPrefix(line, root+"/"))
	}
	sort.Strings(files)
	return files, nil
}

func sortedKeys(tree map[string]string) []string {
	var keys []string
	for key := range tree {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
