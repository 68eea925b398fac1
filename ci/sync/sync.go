package sync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/dirsync/ci/util"
)

// syncTestPath is the sub-path of the link that's synced in these tests.
const syncTestPath = "photos"

func Test(t *testing.T, helper *util.TestHelper) {
	t.Run("Push", func(t *testing.T) {
		testPush(t, helper)
	})
	t.Run("Pull", func(t *testing.T) {
		testPull(t, helper)
	})
	t.Run("MissingSource", func(t *testing.T) {
		testMissingSource(t, helper)
	})
	t.Run("Declined", func(t *testing.T) {
		testDeclined(t, helper)
	})
	t.Run("NoArchivesLeft", func(t *testing.T) {
		testNoArchivesLeft(t, helper)
	})
}

func testPush(t *testing.T, helper *util.TestHelper) {
	ctx := context.Background()
	localDir := filepath.Join(helper.LocalPath(util.LocalFolder), syncTestPath)
	remoteDir := helper.RemotePath(util.RemoteFolder) + "/" + syncTestPath

	refFile := randomFile("a.txt")
	for _, op := range []fsOp{
		createFile(refFile),
		createFile(randomFile("sub/b.txt")),
	} {
		require.NoError(t, op(localDir))
	}

	_, err := helper.RemoteExec(ctx, "mkdir", "-p", remoteDir)
	require.NoError(t, err)
	_, err = helper.RemoteExec(ctx, "touch", remoteDir+"/stale.txt")
	require.NoError(t, err)

	_, err = helper.Run(ctx, "push", "--link", util.TestLink, syncTestPath, "--force")
	require.NoError(t, err)

	files, err := remoteFiles(ctx, helper, remoteDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, files)

	contents, err := helper.RemoteExec(ctx, "cat", remoteDir+"/a.txt")
	require.NoError(t, err)
	assert.Equal(t, refFile.contents, contents)
}

func testPull(t *testing.T, helper *util.TestHelper) {
	ctx := context.Background()
	localDir := filepath.Join(helper.LocalPath(util.LocalFolder), syncTestPath)
	remoteDir := helper.RemotePath(util.RemoteFolder) + "/" + syncTestPath

	require.NoError(t, createFile(randomFile("a.txt").WithPath("local-only.txt"))(localDir))
	require.NoError(t, removeFile("sub/b.txt")(localDir))
	_, err := helper.RemoteExec(ctx, "touch", remoteDir+"/remote-only.txt")
	require.NoError(t, err)

	_, err = helper.Run(ctx, "pull", "--link", util.TestLink, syncTestPath, "--force")
	require.NoError(t, err)

	tree, err := localTree(localDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "remote-only.txt", "sub/b.txt"}, sortedKeys(tree))
	assert.Equal(t, "", tree["remote-only.txt"])
}

func testMissingSource(t *testing.T, helper *util.TestHelper) {
	ctx := context.Background()
	before, err := localTree(helper.LocalPath(util.LocalFolder))
	require.NoError(t, err)

	output, err := helper.Run(ctx, "pull", "--link", util.TestLink, "does-not-exist", "--force")
	require.NoError(t, err)
	assert.Contains(t, output, "does not exist")

	after, err := localTree(helper.LocalPath(util.LocalFolder))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func testDeclined(t *testing.T, helper *util.TestHelper) {
	ctx := context.Background()
	localDir := filepath.Join(helper.LocalPath(util.LocalFolder), syncTestPath)
	require.NoError(t, createFile(randomFile("declined.txt").WithContents("keep"))(localDir))

	// Stdin is empty, which doesn't confirm the plan.
	output, err := helper.Run(ctx, "pull", "--link", util.TestLink, syncTestPath)
	require.NoError(t, err)
	assert.Contains(t, output, "Skipping")

	tree, err := localTree(localDir)
	require.NoError(t, err)
	assert.Equal(t, "keep", tree["declined.txt"])
}

func testNoArchivesLeft(t *testing.T, helper *util.TestHelper) {
	ctx := context.Background()

	local, err := filepath.Glob(filepath.Join(helper.LocalPath(util.WorkFolder), "*"))
	require.NoError(t, err)
	assert.Empty(t, local)

	remote, err := remoteFiles(ctx, helper, helper.RemotePath(util.WorkFolder))
	require.NoError(t, err)
	assert.Empty(t, remote)
}
