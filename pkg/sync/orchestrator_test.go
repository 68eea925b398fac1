package sync

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/dirsync/pkg/archive"
	"github.com/sidkik/dirsync/pkg/command"
	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/location"
)

// fakeRunner records every command, and returns the result chosen by
// `respond`. Commands succeed if `respond` is nil.
type fakeRunner struct {
	calls   [][]string
	respond func(args []string) command.Result
}

func (r *fakeRunner) Run(_ context.Context, args []string, _ command.Options) command.Result {
	r.calls = append(r.calls, args)
	if r.respond == nil {
		return command.Result{Status: command.OK}
	}
	return r.respond(args)
}

func failWhen(match func(args []string) bool, res command.Result) func([]string) command.Result {
	return func(args []string) command.Result {
		if match(args) {
			return res
		}
		return command.Result{Status: command.OK}
	}
}

func isPurge(args []string) bool {
	return strings.Contains(strings.Join(args, " "), "rm -rf")
}

func isExistsCheck(args []string) bool {
	return len(args) == 2 && args[0] == "ls" && !strings.HasSuffix(args[1], archive.Extension)
}

type orchestratorTest struct {
	runner     *fakeRunner
	stdout     *bytes.Buffer
	prompts    []string
	confirm    bool
	confirmErr error
}

func (test *orchestratorTest) new(opts Options) *Orchestrator {
	if test.runner == nil {
		test.runner = &fakeRunner{}
	}
	test.stdout = &bytes.Buffer{}

	opts.Hosts = hosts
	opts.Work = work
	opts.Runner = test.runner
	opts.Stdout = test.stdout
	opts.Stderr = test.stdout
	opts.Clock = clockwork.NewFakeClock()
	opts.Archiver = archive.NewPlanner(rand.NewSource(1))
	opts.Confirm = func(prompt string) (bool, error) {
		test.prompts = append(test.prompts, prompt)
		return test.confirm, test.confirmErr
	}
	return New(opts)
}

func TestSyncDualRemote(t *testing.T) {
	test := orchestratorTest{confirm: true}
	outcome, err := test.new(Options{}).Sync(context.Background(), remotePhotos, otherRemote, "")
	require.NoError(t, err)

	assert.Equal(t, Aborted, outcome.State)
	assert.Empty(t, test.runner.calls)
	assert.Empty(t, test.prompts)
	assert.Contains(t, test.stdout.String(), "Only one folder can be remote")
	assert.True(t, strings.HasPrefix(test.stdout.String(), "Sync: "))
}

func TestSyncUnknownHost(t *testing.T) {
	test := orchestratorTest{confirm: true}
	from := location.Location{Name: "x", Path: "/x", Kind: location.Remote, Host: "missing"}
	_, err := test.new(Options{}).Sync(context.Background(), from, localPhotos, "")

	var notFound errors.HostNotFound
	assert.True(t, errors.As(err, &notFound))
	assert.Empty(t, test.runner.calls)
}

func TestSyncMissingSource(t *testing.T) {
	test := orchestratorTest{
		confirm: true,
		runner: &fakeRunner{respond: failWhen(isExistsCheck,
			command.Result{Status: command.NonZeroExit, ExitCode: 2})},
	}
	outcome, err := test.new(Options{}).Sync(context.Background(), localPhotos, remotePhotos, "2019")
	require.NoError(t, err)

	assert.Equal(t, Aborted, outcome.State)
	assert.Equal(t, [][]string{{"ls", "/home/u/photos/2019"}}, test.runner.calls)
	assert.Empty(t, test.prompts)
	assert.NotContains(t, test.stdout.String(), "Ready for transfer")
	assert.Contains(t, test.stdout.String(), "/home/u/photos/2019")
}

func TestSyncExistsCheckSpawnFailure(t *testing.T) {
	test := orchestratorTest{
		confirm: true,
		runner: &fakeRunner{respond: failWhen(isExistsCheck,
			command.Result{Status: command.SpawnFailed, ExitCode: -1, Err: assert.AnError})},
	}
	_, err := test.new(Options{}).Sync(context.Background(), localPhotos, remotePhotos, "")

	assert.True(t, errors.Is(err, assert.AnError))
	assert.Len(t, test.runner.calls, 1)
}

func TestSyncDeclined(t *testing.T) {
	test := orchestratorTest{confirm: false}
	outcome, err := test.new(Options{}).Sync(context.Background(), remotePhotos, localPhotos, "")
	require.NoError(t, err)

	assert.Equal(t, Skipped, outcome.State)
	assert.Len(t, test.runner.calls, 1)
	assert.Equal(t, []string{ConfirmPrompt}, test.prompts)

	out := test.stdout.String()
	assert.Contains(t, out, "Ready for transfer")
	for _, line := range outcome.Plan.Commands() {
		assert.Contains(t, out, "- "+line+"\n")
	}
	assert.Contains(t, out, "Skipping")
}

func TestSyncConfirmError(t *testing.T) {
	test := orchestratorTest{confirmErr: assert.AnError}
	_, err := test.new(Options{}).Sync(context.Background(), remotePhotos, localPhotos, "")

	assert.True(t, errors.Is(err, assert.AnError))
	assert.Len(t, test.runner.calls, 1)
}

func TestSyncConfirmed(t *testing.T) {
	test := orchestratorTest{confirm: true}
	outcome, err := test.new(Options{}).Sync(context.Background(), remotePhotos, localPhotos, "2019")
	require.NoError(t, err)

	assert.Equal(t, Done, outcome.State)
	require.Len(t, test.runner.calls, len(outcome.Plan.Steps)+1)
	assert.Equal(t, outcome.Plan.ExistsCheck, test.runner.calls[0])
	for i, step := range outcome.Plan.Steps {
		assert.Equal(t, step.Args, test.runner.calls[i+1], step.Name)
	}
}

func TestSyncForce(t *testing.T) {
	test := orchestratorTest{confirm: false}
	outcome, err := test.new(Options{Force: true}).Sync(context.Background(), localPhotos, remotePhotos, "")
	require.NoError(t, err)

	assert.Equal(t, Done, outcome.State)
	assert.Empty(t, test.prompts)
	assert.Len(t, test.runner.calls, len(outcome.Plan.Steps)+1)
	assert.Contains(t, test.stdout.String(), "Ready for transfer")
}

func TestSyncDryRun(t *testing.T) {
	test := orchestratorTest{confirm: true}
	outcome, err := test.new(Options{DryRun: true, Force: true}).Sync(
		context.Background(), remotePhotos, localPhotos, "2019")
	require.NoError(t, err)

	assert.Equal(t, Previewed, outcome.State)
	assert.Equal(t, [][]string{outcome.Plan.ExistsCheck}, test.runner.calls)
	assert.Empty(t, test.prompts)

	out := test.stdout.String()
	for _, line := range outcome.Plan.Commands() {
		assert.Contains(t, out, "- "+line+"\n")
	}
	assert.Contains(t, out, "Dry run")
}

func TestSyncDryRunMissingSource(t *testing.T) {
	test := orchestratorTest{
		runner: &fakeRunner{respond: failWhen(isExistsCheck,
			command.Result{Status: command.NonZeroExit, ExitCode: 2})},
	}
	outcome, err := test.new(Options{DryRun: true}).Sync(context.Background(), localPhotos, remotePhotos, "2019")
	require.NoError(t, err)
	assert.Equal(t, Aborted, outcome.State)
}

func TestSyncUnsafeRemotePath(t *testing.T) {
	test := orchestratorTest{confirm: true}
	_, err := test.new(Options{}).Sync(context.Background(), localPhotos, remotePhotos, "my photos")

	var unsafe errors.UnsafePath
	assert.True(t, errors.As(err, &unsafe))
	assert.Equal(t, "/volume1/photos/my photos", unsafe.Path)
	assert.Empty(t, test.runner.calls)
}

func TestSyncLogsSteps(t *testing.T) {
	hook := logrusTest.NewGlobal()
	defer hook.Reset()
	defer log.SetLevel(log.GetLevel())
	log.SetLevel(log.DebugLevel)

	test := orchestratorTest{}
	outcome, err := test.new(Options{Force: true}).Sync(context.Background(), localPhotos, remotePhotos, "")
	require.NoError(t, err)

	var steps []string
	for _, entry := range hook.AllEntries() {
		if entry.Message != "Ran step" {
			continue
		}
		steps = append(steps, entry.Data["step"].(string))
		assert.Equal(t, outcome.Plan.Archive, entry.Data["archive"])
		assert.NotEmpty(t, entry.Data["run"])
	}

	var expSteps []string
	for _, step := range outcome.Plan.Steps {
		expSteps = append(expSteps, step.Name)
	}
	assert.Equal(t, expSteps, steps)
}

func TestSyncStepFailure(t *testing.T) {
	failure := command.Result{Status: command.NonZeroExit, ExitCode: 1}

	tests := []struct {
		name   string
		policy FailurePolicy
		expErr bool
	}{
		{"AbortRun", AbortRun, true},
		{"AbortOperation", AbortOperation, false},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			ot := orchestratorTest{
				confirm: true,
				runner:  &fakeRunner{respond: failWhen(isPurge, failure)},
			}
			outcome, err := ot.new(Options{Policy: test.policy}).Sync(
				context.Background(), remotePhotos, localPhotos, "")

			if test.expErr {
				var stepErr StepFailed
				require.True(t, errors.As(err, &stepErr))
				assert.Equal(t, StepPurge, stepErr.Step.Name)

				// The caller reports the returned error.
				assert.NotContains(t, ot.stdout.String(), "Failed to delete destination folder")
			} else {
				assert.NoError(t, err)
				assert.Contains(t, ot.stdout.String(), "Failed to delete destination folder")
			}

			assert.Equal(t, Failed, outcome.State)
			require.NotNil(t, outcome.FailedStep)
			assert.Equal(t, StepPurge, outcome.FailedStep.Name)
			assert.Equal(t, failure, outcome.Result)

			// The exists check plus create, transfer, mkdir, verify and purge.
			// Nothing runs after the failed step.
			assert.Len(t, ot.runner.calls, 6)
			assert.True(t, isPurge(ot.runner.calls[len(ot.runner.calls)-1]))
		})
	}
}

func TestStepFailedError(t *testing.T) {
	step := Step{Name: StepExtract, Args: []string{"tar", "-xzf", "a"}, FailureLabel: "Failed to extract archive"}

	assert.Equal(t, "Failed to extract archive: `tar -xzf a` exited with status 2",
		StepFailed{Step: step, Result: command.Result{Status: command.NonZeroExit, ExitCode: 2}}.Error())
	assert.Equal(t, "Failed to extract archive: `tar -xzf a` could not be started: "+assert.AnError.Error(),
		StepFailed{Step: step, Result: command.Result{Status: command.SpawnFailed, Err: assert.AnError}}.Error())
}

func TestList(t *testing.T) {
	tests := []struct {
		name      string
		loc       location.Location
		res       command.Result
		expCall   []string
		expErr    bool
		expOutput string
	}{
		{
			name:      "Local",
			loc:       localPhotos,
			res:       command.Result{Status: command.OK, Output: "total 0\n"},
			expCall:   []string{"ls", "-l", "/home/u/photos/2019"},
			expOutput: "photos - /home/u/photos/2019\ntotal 0\n",
		},
		{
			name:      "Remote",
			loc:       remotePhotos,
			res:       command.Result{Status: command.OK, Output: "total 0\n"},
			expCall:   []string{"ssh", "-p", "2222", "admin@nas.lan", "ls", "-l", "/volume1/photos/2019"},
			expOutput: "nas-photos - /volume1/photos/2019\ntotal 0\n",
		},
		{
			name:      "NonZeroExit",
			loc:       localPhotos,
			res:       command.Result{Status: command.NonZeroExit, ExitCode: 2},
			expCall:   []string{"ls", "-l", "/home/u/photos/2019"},
			expOutput: "photos - /home/u/photos/2019\n",
		},
		{
			name:    "SpawnFailed",
			loc:     localPhotos,
			res:     command.Result{Status: command.SpawnFailed, Err: assert.AnError},
			expCall: []string{"ls", "-l", "/home/u/photos/2019"},
			expErr:  true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			res := test.res
			ot := orchestratorTest{runner: &fakeRunner{
				respond: func([]string) command.Result { return res },
			}}
			err := ot.new(Options{}).List(context.Background(), test.loc, "2019")

			assert.Equal(t, [][]string{test.expCall}, ot.runner.calls)
			if test.expErr {
				assert.True(t, errors.Is(err, assert.AnError))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.expOutput, ot.stdout.String())
		})
	}
}

func TestSyncLocalDirectories(t *testing.T) {
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar isn't installed")
	}

	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	staging := filepath.Join(root, "work")
	for _, dir := range []string{src, dst, staging} {
		require.NoError(t, os.Mkdir(dir, 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "b.txt"), []byte("b"), 0644))

	var stdout bytes.Buffer
	orchestrator := New(Options{
		Work:   location.Location{Name: "work", Path: staging, Kind: location.Local},
		Stdout: &stdout,
		Stderr: &stdout,
		Force:  true,
	})

	outcome, err := orchestrator.Sync(context.Background(),
		location.Location{Name: "src", Path: src, Kind: location.Local},
		location.Location{Name: "dst", Path: dst, Kind: location.Local},
		"")
	require.NoError(t, err, stdout.String())
	assert.Equal(t, Done, outcome.State)

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name())

	contents, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(contents))

	archives, err := filepath.Glob(filepath.Join(staging, "*"+archive.Extension))
	require.NoError(t, err)
	assert.Empty(t, archives)

	_, err = os.Stat(filepath.Join(src, "a.txt"))
	assert.NoError(t, err)
}

func TestSyncLocalFile(t *testing.T) {
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar isn't installed")
	}

	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	staging := filepath.Join(root, "work")
	for _, dir := range []string{src, dst, staging} {
		require.NoError(t, os.Mkdir(dir, 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("new"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "notes.txt"), []byte("old"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "other.txt"), []byte("other"), 0644))

	var stdout bytes.Buffer
	orchestrator := New(Options{
		Work:   location.Location{Name: "work", Path: staging, Kind: location.Local},
		Stdout: &stdout,
		Stderr: &stdout,
		Force:  true,
	})

	outcome, err := orchestrator.Sync(context.Background(),
		location.Location{Name: "src", Path: src, Kind: location.Local},
		location.Location{Name: "dst", Path: dst, Kind: location.Local},
		"notes.txt")
	require.NoError(t, err, stdout.String())
	assert.Equal(t, Done, outcome.State)

	contents, err := os.ReadFile(filepath.Join(dst, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(contents))

	contents, err = os.ReadFile(filepath.Join(dst, "other.txt"))
	require.NoError(t, err)
	assert.Equal(t, "other", string(contents))

	archives, err := filepath.Glob(filepath.Join(staging, "*"+archive.Extension))
	require.NoError(t, err)
	assert.Empty(t, archives)
}
