package install

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mpnp/pkg/errors"
	"github.com/matzehuels/mpnp/pkg/manifest"
)

// shimScript launches target with node, keeping symlinked paths so linked
// dependencies resolve as their own module roots.
const shimScript = `#!/bin/sh
exec node --preserve-symlinks --preserve-symlinks-main %q "$@"
`

// generateShims writes a launcher into binDir for every executable declared
// by the package linked at pkgDir. Launchers overwrite same-named launchers
// from other packages. Declared targets that do not exist are skipped with a
// warning.
func generateShims(pkgDir, binDir string, logger *log.Logger) ([]string, error) {
	m, err := manifest.Read(pkgDir)
	if err != nil {
		return nil, err
	}
	bins, err := m.Executables()
	if err != nil {
		return nil, err
	}
	if len(bins) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create %s", binDir)
	}

	var written []string
	for _, b := range bins {
		target := filepath.Join(pkgDir, filepath.FromSlash(b.Value))
		if _, err := os.Stat(target); err != nil {
			logger.Warn("skipping executable with missing target", "package", m.Key(), "bin", b.Key, "target", b.Value)
			continue
		}
		if err := os.Chmod(target, 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "mark %s executable", target)
		}

		shim := filepath.Join(binDir, b.Key)
		if err := writeShim(shim, target); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "write shim %s for %s", b.Key, m.Key())
		}
		logger.Debug("shim", "bin", b.Key, "package", m.Key())
		written = append(written, b.Key)
	}
	return written, nil
}

func writeShim(path, target string) error {
	// a previous shim may be a symlink into a package; never write through it
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf(shimScript, target)), 0o755); err != nil {
		return err
	}
	return os.Chmod(path, 0o755)
}
