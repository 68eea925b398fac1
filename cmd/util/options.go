package util

import (
	"github.com/sidkik/dirsync/pkg/config"
	"github.com/sidkik/dirsync/pkg/errors"
)

// GlobalOptions are the flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	Verbose    bool

	// Load replaces config.Load in unit tests.
	Load func(path string) (config.Config, error)

	cfg    *config.Config
	cfgErr error
}

// Config returns the parsed config. The file is only read the first time
// Config is called.
func (opts *GlobalOptions) Config() (config.Config, error) {
	if opts.cfg == nil && opts.cfgErr == nil {
		load := opts.Load
		if load == nil {
			load = config.Load
		}

		cfg, err := load(opts.ConfigPath)
		var notFound errors.FileNotFound
		switch {
		case errors.As(err, &notFound):
			opts.cfgErr = errors.NewFriendlyError("The dirsync config file "+
				"doesn't exist at %q. Please run `dirsync config init` to "+
				"create it.", notFound.Path)
		case err != nil:
			opts.cfgErr = errors.WithContext(err, "load config")
		default:
			opts.cfg = &cfg
		}
	}

	if opts.cfgErr != nil {
		return config.Config{}, opts.cfgErr
	}
	return *opts.cfg, nil
}
