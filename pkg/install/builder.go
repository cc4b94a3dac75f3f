package install

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/mpnp/pkg/errors"
	"github.com/matzehuels/mpnp/pkg/manifest"
	"github.com/matzehuels/mpnp/pkg/observability"
	"github.com/matzehuels/mpnp/pkg/store"
)

// frame is one package instance on the worklist stack.
type frame struct {
	dir      string
	manifest *manifest.Manifest
	local    bool
	path     []string     // dependency path, ending with this instance
	parent   manifest.Map // consumer's resolved set; unset for local instances
	orphan   bool         // no consumer (project or workspace package)
	resolved manifest.Map
	kinds    map[string]EdgeKind
	todo     []string // resolved names still to link
	reset    *reset
	waiting  *pending // freshly extracted dependency whose frame is above this one
	stored   *pending // store entry this frame builds; nil for local instances
}

func (f *frame) key() string { return f.path[len(f.path)-1] }

// pending is a dependency about to be linked into its consumer.
type pending struct {
	name    string
	version string
	target  string
	fresh   bool
}

// install builds the tree of the local package instance in dir.
func (r *run) install(ctx context.Context, dir string) error {
	m, err := manifest.Read(dir)
	if err != nil {
		return err
	}
	root, err := r.enter(ctx, dir, m, []string{m.Key()}, manifest.Map{}, true)
	if err != nil {
		return err
	}
	r.report.addRoot(root.key())

	stack := []*frame{root}
	fail := func(err error) error {
		for i := len(stack) - 1; i >= 0; i-- {
			stack[i].reset.restore()
		}
		return err
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		f := stack[len(stack)-1]

		if f.waiting != nil {
			p := *f.waiting
			f.waiting = nil
			if err := r.linkDependency(ctx, f, p); err != nil {
				return fail(err)
			}
		}

		if len(f.todo) > 0 {
			name := f.todo[0]
			f.todo = f.todo[1:]
			child, err := r.visit(ctx, f, name)
			if err != nil {
				return fail(err)
			}
			if child != nil {
				stack = append(stack, child)
			}
			continue
		}

		if err := r.complete(ctx, f); err != nil {
			return fail(err)
		}
		stack = stack[:len(stack)-1]
	}
	return nil
}

// enter prepares the frame of one package instance: its dependency
// directory and its resolved dependency set.
func (r *run) enter(ctx context.Context, dir string, m *manifest.Manifest, path []string, parent manifest.Map, local bool) (*frame, error) {
	if len(path) > r.opts.MaxDepth {
		return nil, errors.New(errors.ErrCodeDepthExceeded,
			"dependency path exceeds %d packages at %s (%s)", r.opts.MaxDepth, path[len(path)-1], dir)
	}

	f := &frame{
		dir:      dir,
		manifest: m,
		local:    local,
		path:     path,
		parent:   parent,
		orphan:   local,
	}
	r.logger.Debug("entering", "package", f.key(), "dir", dir, "depth", len(path), "local", local)

	rs, err := resetModules(dir, local)
	if err != nil {
		return nil, err
	}
	f.reset = rs

	if err := r.resolveSet(ctx, f); err != nil {
		rs.restore()
		return nil, err
	}

	for _, name := range f.resolved.Keys() {
		if name == m.Name {
			continue
		}
		version, _ := f.resolved.Get(name)
		if slices.Contains(f.path, store.Key(name, version)) {
			r.logger.Debug("skipping cycle", "package", store.Key(name, version), "from", f.key())
			continue
		}
		f.todo = append(f.todo, name)
	}
	return f, nil
}

// resolveSet fills f.resolved: the instance itself, its declared
// dependencies, then its peers. Registry resolutions and archive prefetches
// run concurrently; the set keeps manifest order.
func (r *run) resolveSet(ctx context.Context, f *frame) error {
	m := f.manifest
	f.resolved = manifest.Map{}
	f.kinds = make(map[string]EdgeKind)
	if m.Name != "" {
		f.resolved.Set(m.Name, m.Version)
	}

	deps := m.Resolvable(f.local).Entries()
	versions := make([]string, len(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, d := range deps {
		if d.Key == m.Name {
			continue
		}
		if r.workspace.Has(d.Key) {
			versions[i] = Local
			continue
		}
		g.Go(func() error {
			v, err := r.resolver.Resolve(gctx, d.Key, d.Value)
			if err != nil {
				return annotate(err, "%s@%s required by %s in %s", d.Key, d.Value, f.key(), f.dir)
			}
			versions[i] = v
			if slices.Contains(f.path, store.Key(d.Key, v)) {
				return nil
			}
			if err := r.store.Prefetch(gctx, d.Key, v); err != nil {
				return annotate(err, "%s required by %s in %s", store.Key(d.Key, v), f.key(), f.dir)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, d := range deps {
		if d.Key == m.Name {
			continue
		}
		f.resolved.Set(d.Key, versions[i])
		if versions[i] == Local {
			f.kinds[d.Key] = EdgeWorkspace
		} else {
			f.kinds[d.Key] = EdgeDependency
		}
	}

	for _, peer := range m.PeerDependencies.Entries() {
		if peer.Key == m.Name {
			continue
		}
		if r.workspace.Has(peer.Key) {
			f.resolved.Set(peer.Key, Local)
			f.kinds[peer.Key] = EdgeWorkspace
			continue
		}
		if f.orphan {
			// nobody provides peers to a local instance; its own
			// dependencies have to
			if f.resolved.Has(peer.Key) {
				continue
			}
			return errors.New(errors.ErrCodeUnmetPeer,
				"%s requires peer %s@%s, which it does not declare as a dependency (%s)", f.key(), peer.Key, peer.Value, f.dir)
		}
		v, ok := f.parent.Get(peer.Key)
		if !ok {
			return errors.New(errors.ErrCodeUnmetPeer,
				"%s requires peer %s@%s, which its consumer %s does not provide (%s)", f.key(), peer.Key, peer.Value, f.path[len(f.path)-2], f.dir)
		}
		f.resolved.Set(peer.Key, v)
		f.kinds[peer.Key] = EdgePeer
	}
	return nil
}

// visit handles one resolved dependency of f. It returns the frame of a
// freshly extracted dependency, which must be completed before the
// dependency is linked into f.
func (r *run) visit(ctx context.Context, f *frame, name string) (*frame, error) {
	version, _ := f.resolved.Get(name)

	if version == Local {
		wp, _ := r.workspace.Get(name)
		return nil, r.linkWorkspace(ctx, f, wp)
	}

	key := store.Key(name, version)
	target, present, err := r.store.EnsureInstalled(ctx, name, version)
	if err != nil {
		return nil, annotate(err, "%s required by %s in %s", key, f.key(), f.dir)
	}

	if !present {
		r.report.addFresh(key)
		m, err := manifest.Read(target)
		if err != nil {
			return nil, err
		}
		child, err := r.enter(ctx, target, m, append(slices.Clone(f.path), key), f.resolved, false)
		if err != nil {
			return nil, err
		}
		child.stored = &pending{name: name, version: version, target: target, fresh: true}
		f.waiting = child.stored
		return child, nil
	}

	if err := validatePeers(target, f.resolved, r.workspace); err != nil {
		return nil, err
	}
	return nil, r.linkDependency(ctx, f, pending{name: name, version: version, target: target})
}

func (r *run) linkDependency(ctx context.Context, f *frame, p pending) error {
	key := store.Key(p.name, p.version)
	path, err := link(f.dir, p.name, p.target)
	if err != nil {
		return err
	}
	r.report.addEdge(Edge{From: f.key(), To: key, Kind: f.kinds[p.name], Fresh: p.fresh})
	observability.Install().OnLink(ctx, f.key(), key, p.fresh)
	r.logger.Debug("linked", "package", key, "into", f.key(), "fresh", p.fresh)

	return r.shims(f, path)
}

func (r *run) linkWorkspace(ctx context.Context, f *frame, wp *WorkspacePackage) error {
	key := store.Key(wp.Name, Local)
	path, err := link(f.dir, wp.Name, wp.Dir)
	if err != nil {
		return err
	}
	r.report.addEdge(Edge{From: f.key(), To: key, Kind: EdgeWorkspace})
	observability.Install().OnLink(ctx, f.key(), key, false)
	r.logger.Debug("linked workspace package", "package", wp.Name, "into", f.key(), "dir", wp.Dir)

	return r.shims(f, path)
}

func (r *run) shims(f *frame, linked string) error {
	written, err := generateShims(linked, ShimDir(f.dir), r.logger)
	if err != nil {
		return annotate(err, "shims of %s in %s", linked, f.dir)
	}
	r.report.addShims(len(written))
	return nil
}

// complete runs f's lifecycle hooks once all its dependencies are linked,
// then marks a store entry complete so later installs reuse it.
func (r *run) complete(ctx context.Context, f *frame) error {
	if !r.opts.IgnoreScripts {
		n, err := runLifecycle(ctx, r.opts.Hooks, f.dir, f.manifest)
		r.report.addHooks(n)
		if err != nil {
			return err
		}
	}
	if err := f.reset.commit(); err != nil {
		r.logger.Warn("could not remove previous dependency directory", "dir", f.dir, "error", err)
	}
	if f.stored != nil {
		if err := r.store.MarkComplete(ctx, f.stored.name, f.stored.version); err != nil {
			return annotate(err, "%s in %s", f.key(), f.dir)
		}
	}
	r.logger.Debug("completed", "package", f.key())
	return nil
}

// annotate adds context to a coded error, keeping its code. Uncoded errors
// (context cancellation) pass through.
func annotate(err error, format string, args ...any) error {
	code := errors.GetCode(err)
	if code == "" {
		return err
	}
	return errors.Wrap(code, err, format, args...)
}
