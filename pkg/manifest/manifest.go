// Package manifest reads package.json files.
//
// Only the fields the installer needs are decoded: name, version, the three
// dependency maps, bin and scripts. Dependency maps keep their declaration
// order (see [Map]).
package manifest

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/mpnp/pkg/errors"
)

// FileName is the manifest file looked up in every package directory.
const FileName = "package.json"

// Lifecycle hooks run after a package's dependencies are installed, in order.
var Lifecycle = []string{"install", "postinstall", "prepare"}

// Manifest is the parsed package.json of one package directory.
type Manifest struct {
	Name             string
	Version          string
	Dependencies     Map
	DevDependencies  Map
	PeerDependencies Map
	// Bin maps executable names to paths relative to the package root.
	// A bare-string bin is normalised to one entry named after the package.
	Bin     Map
	Scripts Map
}

type rawManifest struct {
	Name             string          `json:"name"`
	Version          string          `json:"version"`
	Dependencies     Map             `json:"dependencies"`
	DevDependencies  Map             `json:"devDependencies"`
	PeerDependencies Map             `json:"peerDependencies"`
	Bin              json.RawMessage `json:"bin"`
	Scripts          looseMap        `json:"scripts"`
}

// Read parses the manifest in dir. Failures are reported as MANIFEST_READ
// errors naming the directory.
func Read(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestRead, err, "read manifest in %s", dir)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestRead, err, "parse manifest in %s", dir)
	}
	return m, nil
}

// Parse decodes package.json content.
func Parse(data []byte) (*Manifest, error) {
	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if raw.Name != "" {
		if err := errors.ValidatePackageName(raw.Name); err != nil {
			return nil, err
		}
	}

	m := &Manifest{
		Name:             raw.Name,
		Version:          raw.Version,
		Dependencies:     raw.Dependencies,
		DevDependencies:  raw.DevDependencies,
		PeerDependencies: raw.PeerDependencies,
		Scripts:          raw.Scripts.Map,
	}

	bin, err := parseBin(raw.Bin, raw.Name)
	if err != nil {
		return nil, err
	}
	m.Bin = bin
	return m, nil
}

// parseBin accepts either a path string or an object of name -> path.
func parseBin(data json.RawMessage, pkgName string) (Map, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Map{}, nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			return Map{}, nil
		}
		if pkgName == "" {
			return Map{}, errors.New(errors.ErrCodeInvalidManifest, "bin path %q declared without a package name", single)
		}
		return NewMap(Unscoped(pkgName), single), nil
	}

	var bins Map
	if err := json.Unmarshal(data, &bins); err != nil {
		return Map{}, errors.Wrap(errors.ErrCodeInvalidManifest, err, "bin must be a string or an object")
	}
	return bins, nil
}

// Resolvable returns the dependencies to resolve for this package:
// dependencies plus devDependencies for local packages, dependencies alone
// otherwise. A name declared in both keeps its dependencies position and
// takes the devDependencies range.
func (m *Manifest) Resolvable(local bool) Map {
	if local {
		return m.Dependencies.Merge(m.DevDependencies)
	}
	return m.Dependencies.Clone()
}

// Executables returns the validated bin entries.
func (m *Manifest) Executables() ([]Entry, error) {
	entries := m.Bin.Entries()
	for _, e := range entries {
		if err := errors.ValidateBinName(e.Key); err != nil {
			return nil, err
		}
		if err := errors.ValidatePath(e.Value); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "bin %q of %s", e.Key, m.Name)
		}
	}
	return entries, nil
}

// Key returns the name@version token of the package.
func (m *Manifest) Key() string {
	return m.Name + "@" + m.Version
}

// Unscoped strips the scope of a package name: @scope/name -> name.
func Unscoped(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
