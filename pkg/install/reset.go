package install

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/matzehuels/mpnp/pkg/errors"
)

// reset prepares the dependency directory of a package instance.
//
// For local instances (the project and workspace packages) the directory is
// rebuilt from scratch: the previous tree is renamed aside, an empty one is
// created, and the aside copy is dropped on commit or moved back on restore.
// For transitive instances the directory is only created if absent.
type reset struct {
	dir   string // node_modules
	aside string // previous tree, if any
}

func resetModules(pkgDir string, local bool) (*reset, error) {
	r := &reset{dir: ModulesDir(pkgDir)}

	if local {
		if _, err := os.Lstat(r.dir); err == nil {
			r.aside = filepath.Join(pkgDir, ".node_modules-"+uuid.NewString())
			if err := os.Rename(r.dir, r.aside); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInternal, err, "reset dependency directory of %s", pkgDir)
			}
		}
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		r.restore()
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create dependency directory of %s", pkgDir)
	}
	return r, nil
}

// commit drops the previous tree.
func (r *reset) commit() error {
	if r == nil || r.aside == "" {
		return nil
	}
	err := os.RemoveAll(r.aside)
	r.aside = ""
	return err
}

// restore puts the previous tree back, discarding the partial new one.
func (r *reset) restore() {
	if r == nil || r.aside == "" {
		return
	}
	os.RemoveAll(r.dir)
	os.Rename(r.aside, r.dir)
	r.aside = ""
}
