// Package registrytest provides an in-memory npm-compatible registry for tests.
//
//	reg := registrytest.New(t)
//	reg.Publish("lib", "1.0.0", registrytest.Manifest{"dependencies": map[string]string{"dep": "^2.0.0"}}, nil)
//	client := registry.NewClient(reg.URL(), nil, 0)
package registrytest

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"
)

// Manifest holds extra package.json fields of a published version.
// name and version are filled in by [Registry.Publish].
type Manifest map[string]any

// Registry is a fake registry served over HTTP. It counts every metadata and
// archive request so tests can assert how often the network was used.
type Registry struct {
	server *httptest.Server

	mu       sync.Mutex
	packages map[string]*pkg
	metaHits map[string]int
	tarHits  map[string]int
	failures map[string]int
}

type pkg struct {
	versions map[string][]byte // version -> tgz
	order    []string
	tags     map[string]string
}

// New starts a registry that is shut down when the test ends.
func New(t testing.TB) *Registry {
	t.Helper()
	r := &Registry{
		packages: make(map[string]*pkg),
		metaHits: make(map[string]int),
		tarHits:  make(map[string]int),
		failures: make(map[string]int),
	}

	router := chi.NewRouter()
	router.Get("/{scope}/{name}/-/{file}", r.serveScopedArchive)
	router.Get("/{name}/-/{file}", r.serveArchive)
	router.Get("/{name}", r.serveMetadata)
	r.server = httptest.NewServer(router)
	t.Cleanup(r.server.Close)
	return r
}

// URL returns the registry base URL.
func (r *Registry) URL() string { return r.server.URL }

// Publish adds name@version. files are extra archive entries relative to the
// package root; the manifest is always written as package.json.
func (r *Registry) Publish(name, version string, m Manifest, files map[string]string) {
	doc := Manifest{}
	for k, v := range m {
		doc[k] = v
	}
	doc["name"] = name
	doc["version"] = version

	manifest, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packages[name]
	if !ok {
		p = &pkg{versions: make(map[string][]byte), tags: make(map[string]string)}
		r.packages[name] = p
	}
	if _, exists := p.versions[version]; !exists {
		p.order = append(p.order, version)
	}
	p.versions[version] = buildArchive(manifest, files)
	p.tags["latest"] = version
}

// Tag points a dist-tag at version.
func (r *Registry) Tag(name, tag, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.packages[name]; ok {
		p.tags[tag] = version
	}
}

// FailNext makes the next n requests for name's metadata answer 503.
func (r *Registry) FailNext(name string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[name] = n
}

// MetadataHits returns how many metadata requests were served for name.
func (r *Registry) MetadataHits(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metaHits[name]
}

// ArchiveHits returns how many archive requests were served for name@version.
func (r *Registry) ArchiveHits(name, version string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tarHits[name+"@"+version]
}

// TotalMetadataHits returns the number of metadata requests across all packages.
func (r *Registry) TotalMetadataHits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.metaHits {
		n += v
	}
	return n
}

func (r *Registry) serveMetadata(w http.ResponseWriter, req *http.Request) {
	// chi routes on the raw path, so scoped names keep their escaped slash
	name := chi.URLParam(req, "name")
	if strings.Contains(name, "%") {
		name = strings.ReplaceAll(strings.ReplaceAll(name, "%2F", "/"), "%2f", "/")
	}

	r.mu.Lock()
	r.metaHits[name]++
	if r.failures[name] > 0 {
		r.failures[name]--
		r.mu.Unlock()
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	p, ok := r.packages[name]
	var body []byte
	if ok {
		versions := make(map[string]any, len(p.order))
		for _, v := range p.order {
			versions[v] = map[string]any{"name": name, "version": v}
		}
		body, _ = json.Marshal(map[string]any{
			"name":      name,
			"dist-tags": p.tags,
			"versions":  versions,
		})
	}
	r.mu.Unlock()

	if !ok {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (r *Registry) serveScopedArchive(w http.ResponseWriter, req *http.Request) {
	r.archive(w, req, chi.URLParam(req, "scope")+"/"+chi.URLParam(req, "name"))
}

func (r *Registry) serveArchive(w http.ResponseWriter, req *http.Request) {
	r.archive(w, req, chi.URLParam(req, "name"))
}

func (r *Registry) archive(w http.ResponseWriter, req *http.Request, name string) {
	file := chi.URLParam(req, "file")
	base := name[strings.LastIndexByte(name, '/')+1:]
	version := strings.TrimSuffix(strings.TrimPrefix(file, base+"-"), ".tgz")

	r.mu.Lock()
	r.tarHits[name+"@"+version]++
	var data []byte
	if p, ok := r.packages[name]; ok {
		data = p.versions[version]
	}
	r.mu.Unlock()

	if data == nil {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

// buildArchive produces a gzipped tarball with every entry under "package/",
// the wrapper directory npm uses.
func buildArchive(manifest []byte, files map[string]string) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	write := func(name string, data []byte, mode int64) {
		hdr := &tar.Header{Name: "package/" + name, Mode: mode, Size: int64(len(data)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			panic(fmt.Sprintf("write header %s: %v", name, err))
		}
		if _, err := tw.Write(data); err != nil {
			panic(fmt.Sprintf("write %s: %v", name, err))
		}
	}

	write("package.json", manifest, 0o644)
	for name, content := range files {
		write(name, []byte(content), 0o644)
	}

	if err := tw.Close(); err != nil {
		panic(err)
	}
	if err := gz.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
