package location

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sidkik/dirsync/pkg/errors"
)

func TestResolvePath(t *testing.T) {
	loc := Location{Name: "photos", Path: "/srv/photos", Kind: Local}

	tests := []struct {
		name string
		rel  string
		exp  string
	}{
		{name: "NoRelativePath", rel: "", exp: "/srv/photos"},
		{name: "RelativePath", rel: "2019", exp: "/srv/photos/2019"},
		{name: "NestedRelativePath", rel: "2019/june", exp: "/srv/photos/2019/june"},
		{name: "NotNormalized", rel: "/2019", exp: "/srv/photos//2019"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.exp, ResolvePath(loc, test.rel))
		})
	}
}

func TestHosts(t *testing.T) {
	box := Host{
		Key:      "box",
		Address:  "10.0.0.2",
		Username: "pi",
		Port:     2222,
		WorkDir:  Location{Name: "box-work", Path: "/tmp/dirsync", Kind: Local},
	}
	hosts := Hosts{"box": box}
	work := Location{Name: "work", Path: "/home/u/.dirsync", Kind: Local}

	host, err := hosts.Get("box")
	assert.NoError(t, err)
	assert.Equal(t, box, host)
	assert.Equal(t, "pi@10.0.0.2", host.Login())

	_, err = hosts.Get("missing")
	assert.Equal(t, errors.HostNotFound{Key: "missing"}, err)

	remote := Location{Name: "remote", Path: "/srv", Kind: Remote, Host: "box"}
	workDir, err := hosts.WorkDirFor(remote, work)
	assert.NoError(t, err)
	assert.Equal(t, box.WorkDir, workDir)

	local := Location{Name: "local", Path: "/data", Kind: Local}
	workDir, err = hosts.WorkDirFor(local, work)
	assert.NoError(t, err)
	assert.Equal(t, work, workDir)

	_, err = hosts.WorkDirFor(Location{Name: "nokey", Kind: Remote}, work)
	assert.Equal(t, errors.MissingFieldError{Field: "folders.nokey.ssh_key"}, err)
}

func TestCurrentDirectory(t *testing.T) {
	defer func() { getWorkingDirectory = os.Getwd }()

	getWorkingDirectory = func() (string, error) {
		return "/home/u/project", nil
	}

	loc, err := CurrentDirectory()
	assert.NoError(t, err)
	assert.Equal(t, Location{Name: CurrentDirectoryName, Path: "/home/u/project", Kind: Local}, loc)
	assert.False(t, loc.IsRemote())

	getWorkingDirectory = func() (string, error) {
		return "", errors.New("deleted")
	}
	_, err = CurrentDirectory()
	assert.EqualError(t, err, "get working directory: deleted")
}

func TestCheckPath(t *testing.T) {
	local := Location{Name: "photos", Path: "/srv/photos", Kind: Local}
	remote := Location{Name: "nas", Path: "/volume1/photos", Kind: Remote, Host: "nas"}

	tests := []struct {
		name   string
		loc    Location
		path   string
		expErr bool
	}{
		{name: "Remote", loc: remote, path: "/volume1/photos/2019-06_a+b@c"},
		{name: "RemoteSpace", loc: remote, path: "/volume1/my photos", expErr: true},
		{name: "RemoteSemicolon", loc: remote, path: "/volume1/a;rm", expErr: true},
		{name: "RemoteGlob", loc: remote, path: "/volume1/*", expErr: true},
		{name: "RemoteSubstitution", loc: remote, path: "/volume1/$(id)", expErr: true},
		{name: "RemoteTilde", loc: remote, path: "~/photos", expErr: true},
		{name: "LocalSpace", loc: local, path: "/srv/my photos"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			err := CheckPath(test.loc, test.path)
			if !test.expErr {
				assert.NoError(t, err)
				return
			}

			var unsafe errors.UnsafePath
			assert.True(t, errors.As(err, &unsafe))
			assert.Equal(t, test.path, unsafe.Path)
		})
	}
}
