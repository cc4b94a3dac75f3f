package install

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/matzehuels/mpnp/pkg/errors"
	"github.com/matzehuels/mpnp/pkg/manifest"
)

// Local is the resolved version recorded for a dependency satisfied by a
// workspace package.
const Local = "local"

// WorkspacePackage is a package living in the project's workspace directory.
type WorkspacePackage struct {
	Name     string
	Dir      string
	Manifest *manifest.Manifest
}

// Workspace indexes workspace packages by their manifest name.
type Workspace struct {
	byName map[string]*WorkspacePackage
}

// DiscoverWorkspace reads the manifest of every subdirectory of dir. A
// missing dir is an empty workspace. Subdirectories without a manifest are
// skipped; unreadable manifests and duplicate names are errors.
func DiscoverWorkspace(dir string) (*Workspace, error) {
	ws := &Workspace{byName: make(map[string]*WorkspacePackage)}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return ws, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestRead, err, "read workspace directory %s", dir)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pkgDir := filepath.Join(dir, e.Name())
		if _, err := os.Stat(filepath.Join(pkgDir, manifest.FileName)); os.IsNotExist(err) {
			continue
		}
		m, err := manifest.Read(pkgDir)
		if err != nil {
			return nil, err
		}
		if m.Name == "" {
			return nil, errors.New(errors.ErrCodeInvalidManifest, "workspace package in %s has no name", pkgDir)
		}
		if prev, ok := ws.byName[m.Name]; ok {
			return nil, errors.New(errors.ErrCodeInvalidManifest,
				"workspace package %s declared twice: %s and %s", m.Name, prev.Dir, pkgDir)
		}
		ws.byName[m.Name] = &WorkspacePackage{Name: m.Name, Dir: pkgDir, Manifest: m}
	}
	return ws, nil
}

// Get returns the workspace package named name.
func (w *Workspace) Get(name string) (*WorkspacePackage, bool) {
	if w == nil {
		return nil, false
	}
	p, ok := w.byName[name]
	return p, ok
}

// Has reports whether name is a workspace package.
func (w *Workspace) Has(name string) bool {
	_, ok := w.Get(name)
	return ok
}

// Len returns the number of workspace packages.
func (w *Workspace) Len() int {
	if w == nil {
		return 0
	}
	return len(w.byName)
}

// Packages returns the workspace packages sorted by directory.
func (w *Workspace) Packages() []*WorkspacePackage {
	if w == nil {
		return nil
	}
	out := make([]*WorkspacePackage, 0, len(w.byName))
	for _, p := range w.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dir < out[j].Dir })
	return out
}
