package install

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/mpnp/pkg/errors"
	"github.com/matzehuels/mpnp/pkg/lockfile"
	"github.com/matzehuels/mpnp/pkg/resolve"
)

// Store is the content store the builder installs from.
// *store.Store implements it.
type Store interface {
	// EnsureInstalled extracts name@version if needed and returns its
	// directory; alreadyPresent is false only for the extracting caller.
	EnsureInstalled(ctx context.Context, name, version string) (path string, alreadyPresent bool, err error)
	// MarkComplete records that the extracting caller finished building
	// name@version. Entries never marked are extracted again next time.
	MarkComplete(ctx context.Context, name, version string) error
	// Prefetch warms the download cache for name@version.
	Prefetch(ctx context.Context, name, version string) error
}

// Installer installs projects. One Installer can serve several runs; each
// run carries its own lockfile, workspace and report.
type Installer struct {
	registry resolve.Registry
	store    Store
	opts     Options
}

// New returns an Installer resolving through reg and installing from st.
func New(reg resolve.Registry, st Store, opts Options) *Installer {
	return &Installer{registry: reg, store: st, opts: opts.WithDefaults()}
}

// run is the state of one Installer.Run.
type run struct {
	opts      Options
	store     Store
	resolver  *resolve.Resolver
	workspace *Workspace
	report    *Report
	logger    *log.Logger
}

// Run installs the project in projectDir and its workspace packages, then
// saves the lockfile. The first failure cancels outstanding work and is
// returned; the lockfile is left untouched in that case. The report is
// returned in both cases.
func (in *Installer) Run(ctx context.Context, projectDir string) (*Report, error) {
	start := time.Now()
	report := &Report{Project: projectDir}

	dir, err := filepath.Abs(projectDir)
	if err != nil {
		return report, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve project directory %s", projectDir)
	}
	report.Project = dir

	logger := in.opts.Logger.With("run", uuid.NewString()[:8])

	ws, err := DiscoverWorkspace(filepath.Join(dir, in.opts.WorkspaceDir))
	if err != nil {
		return report, err
	}

	lock, discarded := lockfile.Load(filepath.Join(dir, in.opts.Lockfile))
	if discarded {
		logger.Warn("ignoring unreadable lockfile", "path", lock.Path())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		opts:      in.opts,
		store:     in.store,
		resolver:  resolve.New(in.registry, lock, resolve.Options{Refresh: in.opts.Refresh, Logger: logger}),
		workspace: ws,
		report:    report,
		logger:    logger,
	}

	logger.Info("installing", "project", dir, "workspace", ws.Len(), "pins", lock.Len())

	if err := r.install(ctx, dir); err != nil {
		return report, err
	}
	for _, wp := range ws.Packages() {
		if err := r.install(ctx, wp.Dir); err != nil {
			return report, err
		}
	}

	report.Locked = lock.Dirty()
	if err := lock.Save(); err != nil {
		return report, errors.Wrap(errors.ErrCodeInternal, err, "save lockfile %s", lock.Path())
	}

	report.Duration = time.Since(start)
	logger.Info("installed",
		"links", len(report.Edges),
		"extracted", len(report.Fresh),
		"duration", report.Duration.Round(time.Millisecond))
	return report, nil
}
