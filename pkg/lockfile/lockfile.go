// Package lockfile persists the range -> version pins of a project.
//
// The file is a flat JSON object mapping "name@range" to the version last
// resolved for that pair:
//
//	{
//	  "lib@^1.0.0": "1.1.0",
//	  "react@^16.0.0": "16.2.0"
//	}
//
// A Lockfile is loaded once at the start of a run, consulted and extended by
// the resolver while the run is in flight, and written back once at the end
// of a successful run.
package lockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// DefaultName is the lockfile name used when configuration does not set one.
const DefaultName = "mpnp-lock.json"

// Lockfile is an in-memory view of a lockfile. It is safe for concurrent use.
type Lockfile struct {
	path string

	mu    sync.RWMutex
	pins  map[string]string
	dirty bool
}

// New returns an empty lockfile that will be saved to path.
func New(path string) *Lockfile {
	return &Lockfile{path: path, pins: make(map[string]string)}
}

// Load reads the lockfile at path. A missing or unparsable file yields an
// empty lockfile; the second return value reports whether existing content
// was discarded because it could not be parsed.
func Load(path string) (*Lockfile, bool) {
	lf := New(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return lf, false
	}
	var pins map[string]string
	if err := json.Unmarshal(data, &pins); err != nil {
		return lf, true
	}
	for k, v := range pins {
		lf.pins[k] = v
	}
	return lf, false
}

// Key returns the lockfile key of a name/range pair.
func Key(name, rng string) string {
	return name + "@" + rng
}

// Path returns the file the lockfile is saved to.
func (l *Lockfile) Path() string { return l.path }

// Get returns the pinned version of name@rng.
func (l *Lockfile) Get(name, rng string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.pins[Key(name, rng)]
	return v, ok
}

// Set pins name@rng to version.
func (l *Lockfile) Set(name, rng, version string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := Key(name, rng)
	if l.pins[key] != version {
		l.pins[key] = version
		l.dirty = true
	}
}

// Len returns the number of pins.
func (l *Lockfile) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pins)
}

// Dirty reports whether pins were added or changed since Load.
func (l *Lockfile) Dirty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dirty
}

// Save writes the lockfile with sorted keys and two-space indentation. The
// file is replaced atomically.
func (l *Lockfile) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// encoding/json sorts map keys.
	data, err := json.MarshalIndent(l.pins, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lockfile: %w", err)
	}
	data = append(bytes.TrimSpace(data), '\n')

	tmp := filepath.Join(filepath.Dir(l.path), "."+filepath.Base(l.path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write lockfile: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write lockfile: %w", err)
	}
	l.dirty = false
	return nil
}
