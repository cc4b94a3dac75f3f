package install

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/mpnp/pkg/lockfile"
)

const (
	DefaultConcurrency  = 8          // Parallel resolutions/downloads per package
	DefaultMaxDepth     = 100        // Maximum length of a dependency path
	DefaultWorkspaceDir = "packages" // Workspace packages live in <project>/packages/*
	DefaultShell        = "sh"       // Shell used for lifecycle hooks
)

// Options configures an Installer.
type Options struct {
	Concurrency   int         // Parallel resolutions and downloads per package (default: 8)
	MaxDepth      int         // Maximum dependency path length (default: 100)
	WorkspaceDir  string      // Workspace directory relative to the project (default: "packages")
	Lockfile      string      // Lockfile name relative to the project (default: "mpnp-lock.json")
	IgnoreScripts bool        // Skip install/postinstall/prepare hooks
	Refresh       bool        // Bypass the registry metadata cache
	Hooks         HookRunner  // Lifecycle hook runner (default: ShellRunner with Shell)
	Shell         string      // Shell for the default hook runner (default: "sh")
	Logger        *log.Logger // defaults to log.Default()
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.WorkspaceDir == "" {
		opts.WorkspaceDir = DefaultWorkspaceDir
	}
	if opts.Lockfile == "" {
		opts.Lockfile = lockfile.DefaultName
	}
	if opts.Shell == "" {
		opts.Shell = DefaultShell
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Hooks == nil {
		opts.Hooks = NewShellRunner(opts.Shell, opts.Logger)
	}
	return opts
}
