package config

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/location"
)

const (
	// DefaultPath is where the config is read from when neither the
	// `--config` flag nor PathEnvKey is set.
	DefaultPath = "~/.dirsync.toml"

	// PathEnvKey is the environment variable that overrides DefaultPath.
	PathEnvKey = "DIRSYNC_CONFIG"
)

// parseConfigErrTemplate is a template for when the CLI fails to parse the
// configuration file. The parsers construct errors in a way that loses
// context, and so we can only pass the error message on.
const parseConfigErrTemplate = "Configuration file could not be parsed. " +
	"Please review %q.\n" +
	"Common pitfalls include:\n" +
	" - Using the wrong types for fields\n" +
	" - Having extra fields inside the config file\n\n" +
	"For reference, here is the error from the parser:\n" +
	"%s"

// Mocked for unit testing.
var (
	fs            = afero.NewOsFs()
	homedirExpand = homedir.Expand
	getenv        = os.Getenv
)

// Config is the validated contents of the configuration file.
type Config struct {
	// Path is the expanded path that the config was read from.
	Path string `json:"path"`

	// Work is the local staging directory for archives.
	Work location.Location `json:"work"`

	Folders map[string]location.Location `json:"folders"`
	Links   map[string]Link              `json:"links"`
	Hosts   location.Hosts               `json:"hosts"`
}

// Link pairs a local folder with a target folder, along with the sub-paths
// that are synced between them by default.
type Link struct {
	Name   string   `json:"name"`
	Local  string   `json:"local"`
	Target string   `json:"target"`
	Paths  []string `json:"paths"`

	// PartialOnly forbids syncing the link's folders in their entirety.
	PartialOnly bool `json:"partialOnly"`
}

// Folder returns the folder named `name`.
func (cfg Config) Folder(name string) (location.Location, error) {
	folder, ok := cfg.Folders[name]
	if !ok {
		return location.Location{}, errors.UnknownTarget{Kind: "folder", Name: name}
	}
	return folder, nil
}

// Link returns the link named `name`.
func (cfg Config) Link(name string) (Link, error) {
	link, ok := cfg.Links[name]
	if !ok {
		return Link{}, errors.UnknownTarget{Kind: "link", Name: name}
	}
	return link, nil
}

// The on-disk schema. Both parsers use their own struct tags, and ghodss/yaml
// goes through the json tags.
type rawConfig struct {
	LocalWorkDir string               `json:"local_work_dir" toml:"local_work_dir"`
	Folders      map[string]rawFolder `json:"folders" toml:"folders"`
	Links        map[string]rawLink   `json:"links" toml:"links"`
	SSH          map[string]rawHost   `json:"ssh" toml:"ssh"`
}

type rawFolder struct {
	Path   string `json:"path" toml:"path"`
	Target string `json:"target" toml:"target"`
	SSHKey string `json:"ssh_key,omitempty" toml:"ssh_key"`
}

// Older configs quote `port` and `partial_only`, so both accept either a
// string or a native value.
type rawLink struct {
	Local       string      `json:"local" toml:"local"`
	Target      string      `json:"target" toml:"target"`
	Paths       []string    `json:"paths" toml:"paths"`
	PartialOnly interface{} `json:"partial_only,omitempty" toml:"partial_only"`
}

type rawHost struct {
	Host     string      `json:"host" toml:"host"`
	Username string      `json:"username" toml:"username"`
	Port     interface{} `json:"port,omitempty" toml:"port"`
	WorkDir  string      `json:"work_dir" toml:"work_dir"`
}

// GetPath returns the expanded path of the config file. An explicit `path`
// wins over PathEnvKey, which wins over DefaultPath.
func GetPath(path string) (string, error) {
	if path == "" {
		path = getenv(PathEnvKey)
	}
	if path == "" {
		path = DefaultPath
	}
	return homedirExpand(path)
}

// Load reads and validates the config at `path`. See GetPath for how an empty
// `path` is handled.
func Load(path string) (Config, error) {
	path, err := GetPath(path)
	if err != nil {
		return Config{}, errors.WithContext(err, "expand config path")
	}

	configBytes, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, errors.FileNotFound{Path: path}
		}
		return Config{}, errors.WithContext(err, "read file")
	}

	raw, err := parse(path, configBytes)
	if err != nil {
		return Config{}, err
	}

	cfg, issues := normalize(raw)
	if len(issues) != 0 {
		return Config{}, errors.ValidationError{Path: path, Issues: issues}
	}
	cfg.Path = path
	return cfg, nil
}

// parse decodes the config according to its file extension. Files that
// aren't YAML are assumed to be TOML.
func parse(path string, configBytes []byte) (rawConfig, error) {
	var raw rawConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(configBytes, &raw, yaml.DisallowUnknownFields); err != nil {
			return rawConfig{}, errors.NewFriendlyError(parseConfigErrTemplate, path, err)
		}
	default:
		dec := toml.NewDecoder(bytes.NewReader(configBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return rawConfig{}, errors.NewFriendlyError(parseConfigErrTemplate, path, err)
		}
	}
	return raw, nil
}

// normalize converts the raw config into its resolved form, and returns every
// problem it finds rather than stopping at the first.
func normalize(raw rawConfig) (Config, []string) {
	var issues []string
	issuef := func(format string, args ...interface{}) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	cfg := Config{
		Folders: map[string]location.Location{},
		Links:   map[string]Link{},
		Hosts:   location.Hosts{},
	}

	for _, key := range sortedKeys(raw.SSH) {
		host := raw.SSH[key]
		prefix := "ssh." + key
		if host.Host == "" {
			issuef("%s.host is required", prefix)
		}
		if host.Username == "" {
			issuef("%s.username is required", prefix)
		}

		port, ok := parsePort(host.Port)
		if !ok {
			issuef("%s.port must be between 1 and 65535", prefix)
		}

		workDir, ok := absolutePath(host.WorkDir)
		switch {
		case host.WorkDir == "":
			issuef("%s.work_dir is required", prefix)
		case !ok:
			issuef("%s.work_dir must be an absolute path", prefix)
		case !location.IsShellSafe(workDir):
			issuef("%s.work_dir %s", prefix, unsafeIssue)
		}

		cfg.Hosts[key] = location.Host{
			Key:      key,
			Address:  host.Host,
			Username: host.Username,
			Port:     port,
			WorkDir:  location.Location{Name: key, Path: workDir, Kind: location.Local},
		}
	}

	for _, name := range sortedKeys(raw.Folders) {
		folder := raw.Folders[name]
		prefix := "folders." + name

		loc := location.Location{Name: name, Kind: location.Kind(folder.Target)}
		switch loc.Kind {
		case location.Local:
			if folder.SSHKey != "" {
				issuef("%s.ssh_key is set but target is local", prefix)
			}

			expanded, err := homedirExpand(folder.Path)
			if err != nil {
				issuef("%s.path could not be expanded: %s", prefix, err)
				continue
			}
			folder.Path = expanded
		case location.Remote:
			loc.Host = folder.SSHKey
			if folder.SSHKey == "" {
				issuef("%s.ssh_key is required for ssh folders", prefix)
			} else if _, ok := raw.SSH[folder.SSHKey]; !ok {
				issuef("%s.ssh_key references unknown ssh host %q", prefix, folder.SSHKey)
			}
		default:
			issuef("%s.target must be 'local' or 'ssh'", prefix)
		}

		folderPath, ok := absolutePath(folder.Path)
		switch {
		case folder.Path == "":
			issuef("%s.path is required", prefix)
		case !ok:
			issuef("%s.path must be an absolute path", prefix)
		case folderPath == "/":
			issuef("%s.path must not be '/'", prefix)
		case loc.IsRemote() && !location.IsShellSafe(folderPath):
			issuef("%s.path %s", prefix, unsafeIssue)
		}
		loc.Path = folderPath
		cfg.Folders[name] = loc
	}

	for _, name := range sortedKeys(raw.Links) {
		link := raw.Links[name]
		prefix := "links." + name

		if local, ok := cfg.Folders[link.Local]; !ok {
			issuef("%s.local references unknown folder %q", prefix, link.Local)
		} else if local.IsRemote() {
			issuef("%s.local folder %q must be local", prefix, link.Local)
		}

		target, ok := cfg.Folders[link.Target]
		if !ok {
			issuef("%s.target references unknown folder %q", prefix, link.Target)
		} else if link.Target == link.Local {
			issuef("%s.local and %s.target must be different folders", prefix, prefix)
		}

		var paths []string
		for i, p := range link.Paths {
			clean, issue := normalizeSubPath(p)
			if issue == "" && target.IsRemote() && !location.IsShellSafe(clean) {
				issue = unsafeIssue
			}
			if issue != "" {
				issuef("%s.paths[%d] %s", prefix, i, issue)
				continue
			}
			paths = append(paths, clean)
		}

		partialOnly, ok := parseFlag(link.PartialOnly)
		if !ok {
			issuef("%s.partial_only must be true or false", prefix)
		}

		cfg.Links[name] = Link{
			Name:        name,
			Local:       link.Local,
			Target:      link.Target,
			Paths:       paths,
			PartialOnly: partialOnly,
		}
	}

	work, ok := cfg.Folders[raw.LocalWorkDir]
	switch {
	case raw.LocalWorkDir == "":
		issuef("local_work_dir is required")
	case !ok:
		issuef("local_work_dir references unknown folder %q", raw.LocalWorkDir)
	case work.IsRemote():
		issuef("local_work_dir folder %q must be local", raw.LocalWorkDir)
	}
	cfg.Work = work

	return cfg, issues
}

// CleanSubPath cleans a path given on the command line that's relative to a
// folder.
func CleanSubPath(p string) (string, error) {
	clean, issue := normalizeSubPath(p)
	if issue != "" {
		return "", errors.NewFriendlyError("The path %q %s.", p, issue)
	}
	return clean, nil
}

// normalizeSubPath cleans a path that's relative to a folder. If the path is
// unusable, the reason is returned instead.
func normalizeSubPath(p string) (string, string) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", "must not be empty"
	}
	if strings.HasPrefix(p, "/") {
		return "", "must be a relative path"
	}

	clean := path.Clean(p)
	switch {
	case clean == ".":
		return "", "must not refer to the folder itself; use --all to sync the whole folder"
	case clean == ".." || strings.HasPrefix(clean, "../"):
		return "", "must not traverse outside the folder"
	}
	return clean, ""
}

// unsafeIssue describes paths rejected by location.IsShellSafe.
const unsafeIssue = "may only contain letters, digits, and the characters _ . / + @ % , : = - " +
	"because it's used on an ssh host"

// parsePort returns the port configured by `raw`, or location.DefaultPort if
// it isn't set. The TOML parser decodes integers as int64, and the YAML
// parser decodes numbers as float64.
func parsePort(raw interface{}) (int, bool) {
	var port int
	switch v := raw.(type) {
	case nil:
		return location.DefaultPort, true
	case int64:
		port = int(v)
	case float64:
		port = int(v)
		if float64(port) != v {
			return 0, false
		}
	case string:
		if strings.TrimSpace(v) == "" {
			return location.DefaultPort, true
		}

		var err error
		port, err = strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	return port, port > 0 && port <= 65535
}

// parseFlag returns the boolean configured by `raw`. Unset flags are false.
func parseFlag(raw interface{}) (bool, bool) {
	switch v := raw.(type) {
	case nil:
		return false, true
	case bool:
		return v, true
	case string:
		flag, err := strconv.ParseBool(strings.TrimSpace(v))
		return flag, err == nil
	}
	return false, false
}

// absolutePath cleans `p`, and returns whether it's absolute.
func absolutePath(p string) (string, bool) {
	if !strings.HasPrefix(p, "/") {
		return p, false
	}
	return path.Clean(p), true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
