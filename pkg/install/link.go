package install

import (
	"os"
	"path/filepath"

	"github.com/matzehuels/mpnp/pkg/errors"
)

const (
	modulesDir = "node_modules"
	shimDir    = ".bin"
)

// ModulesDir returns the dependency directory of the package in dir.
func ModulesDir(dir string) string { return filepath.Join(dir, modulesDir) }

// ShimDir returns the executable directory of the package in dir.
func ShimDir(dir string) string { return filepath.Join(dir, modulesDir, shimDir) }

// linkPath returns where dependency name is linked from the package in dir.
func linkPath(dir, name string) string {
	return filepath.Join(ModulesDir(dir), filepath.FromSlash(name))
}

// link creates the dependency link dir/node_modules/<name> -> target. An
// existing entry is left alone.
func link(dir, name, target string) (string, error) {
	if err := errors.ValidatePackageName(name); err != nil {
		return "", err
	}
	path := linkPath(dir, name)
	if _, err := os.Lstat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "link %s in %s", name, dir)
	}
	if err := os.Symlink(target, path); err != nil {
		if os.IsExist(err) {
			return path, nil
		}
		return "", errors.Wrap(errors.ErrCodeInternal, err, "link %s in %s", name, dir)
	}
	return path, nil
}
