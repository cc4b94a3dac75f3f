package install

import (
	"sort"
	"sync"
	"time"
)

// EdgeKind classifies a dependency link.
type EdgeKind string

const (
	EdgeDependency EdgeKind = "dep"       // resolved through the registry
	EdgePeer       EdgeKind = "peer"      // inherited from the consumer
	EdgeWorkspace  EdgeKind = "workspace" // linked to a workspace package
)

// Edge is one link created during a run.
type Edge struct {
	From  string // name@version of the consumer
	To    string // name@version, or name@local for workspace packages
	Kind  EdgeKind
	Fresh bool // target was extracted during this run
}

// Report summarizes an install run.
type Report struct {
	Project  string        // project directory
	Roots    []string      // name@version of the project and each workspace package
	Edges    []Edge        // every link, in creation order
	Fresh    []string      // name@version extracted during the run
	Hooks    int           // lifecycle hooks executed
	Shims    int           // launchers written
	Locked   bool          // lockfile changed and was saved
	Duration time.Duration // wall time of the run

	mu sync.Mutex
}

func (r *Report) addRoot(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Roots = append(r.Roots, key)
}

func (r *Report) addEdge(e Edge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Edges = append(r.Edges, e)
}

func (r *Report) addFresh(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Fresh = append(r.Fresh, key)
}

// Packages returns the distinct link targets, sorted.
func (r *Report) Packages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, e := range r.Edges {
		if !seen[e.To] {
			seen[e.To] = true
			out = append(out, e.To)
		}
	}
	sort.Strings(out)
	return out
}

// Reused returns how many links pointed at already-extracted packages.
func (r *Report) Reused() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Edges {
		if !e.Fresh && e.Kind != EdgeWorkspace {
			n++
		}
	}
	return n
}

func (r *Report) addHooks(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Hooks += n
}

func (r *Report) addShims(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Shims += n
}
