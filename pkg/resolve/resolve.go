// Package resolve maps a (name, range) pair to one concrete published
// version.
//
// Resolution consults the project's lockfile first: a pinned pair is returned
// unchanged without touching the registry, which keeps repeat runs
// deterministic for unchanged ranges. Unpinned pairs are resolved against the
// registry's published versions and pinned before the answer is returned.
//
// The selected version is the highest published version satisfying the
// range under semantic-version precedence, independent of the order the
// registry lists versions in. A range equal to one of the package's
// dist-tags (latest, next, ...) resolves to the tagged version, and an empty
// range means "*".
package resolve

import (
	"context"
	stderrors "errors"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/mpnp/pkg/errors"
	"github.com/matzehuels/mpnp/pkg/lockfile"
	"github.com/matzehuels/mpnp/pkg/observability"
	"github.com/matzehuels/mpnp/pkg/registry"
)

// Registry is the metadata lookup the resolver needs.
// *registry.Client implements it.
type Registry interface {
	Metadata(ctx context.Context, name string, refresh bool) (*registry.Metadata, error)
}

// Options configures a Resolver.
type Options struct {
	Refresh bool        // bypass the metadata cache (the lockfile is still honoured)
	Logger  *log.Logger // defaults to log.Default()
}

// Resolver resolves version ranges. It is safe for concurrent use as long as
// the lockfile is (which [lockfile.Lockfile] is).
type Resolver struct {
	registry Registry
	lock     *lockfile.Lockfile
	refresh  bool
	logger   *log.Logger
}

// New returns a Resolver backed by reg that reads and records pins in lock.
func New(reg Registry, lock *lockfile.Lockfile, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{registry: reg, lock: lock, refresh: opts.Refresh, logger: logger}
}

// Resolve returns the version name@rng resolves to. A lockfile pin wins over
// the registry. Failures carry the RESOLUTION code, or NETWORK_ERROR when the
// registry could not be reached.
func (r *Resolver) Resolve(ctx context.Context, name, rng string) (string, error) {
	rng = Normalize(rng)

	if v, ok := r.lock.Get(name, rng); ok {
		r.logger.Debug("lockfile hit", "package", name, "range", rng, "version", v)
		observability.Install().OnResolve(ctx, name, rng, v, true)
		return v, nil
	}

	meta, err := r.registry.Metadata(ctx, name, r.refresh)
	if err != nil {
		if stderrors.Is(err, registry.ErrNotFound) {
			return "", errors.Wrap(errors.ErrCodeResolution, err, "resolve %s@%s", name, rng)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Wrap(errors.ErrCodeNetwork, err, "fetch metadata for %s", name)
	}

	v, err := Select(meta, rng)
	if err != nil {
		return "", err
	}

	r.lock.Set(name, rng, v)
	r.logger.Debug("resolved", "package", name, "range", rng, "version", v)
	observability.Install().OnResolve(ctx, name, rng, v, false)
	return v, nil
}

// Normalize maps an empty range to "*".
func Normalize(rng string) string {
	if rng == "" {
		return "*"
	}
	return rng
}

// Select picks the version of meta that rng resolves to: the tagged version
// when rng names a dist-tag, otherwise the highest satisfying version.
func Select(meta *registry.Metadata, rng string) (string, error) {
	rng = Normalize(rng)
	if v, ok := meta.DistTags[rng]; ok {
		return v, nil
	}

	v, ok, err := MaxSatisfying(meta.Versions, rng)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeResolution, err, "invalid range %q for %s", rng, meta.Name)
	}
	if !ok {
		return "", errors.New(errors.ErrCodeResolution, "no version of %s satisfies %q (%d published)", meta.Name, rng, len(meta.Versions))
	}
	return v, nil
}

// MaxSatisfying returns the highest of versions satisfying rng. Entries that
// are not valid semantic versions are ignored. The returned string is the
// entry as listed, not a re-rendered version. ok is false when nothing
// satisfies rng; err is set only when rng cannot be parsed.
func MaxSatisfying(versions []string, rng string) (version string, ok bool, err error) {
	c, err := semver.NewConstraint(rng)
	if err != nil {
		return "", false, err
	}

	var best *semver.Version
	for _, raw := range versions {
		v, err := semver.StrictNewVersion(raw)
		if err != nil {
			continue
		}
		if !c.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			version = raw
		}
	}
	return version, best != nil, nil
}
