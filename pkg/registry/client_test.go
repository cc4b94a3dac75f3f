package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/mpnp/pkg/cache"
	"github.com/matzehuels/mpnp/pkg/registry/registrytest"
)

func TestMetadata(t *testing.T) {
	reg := registrytest.New(t)
	reg.Publish("lib", "1.0.0", nil, nil)
	reg.Publish("lib", "1.0.5", nil, nil)
	reg.Publish("lib", "1.1.0", nil, nil)
	reg.Tag("lib", "next", "1.0.5")

	c := NewClient(reg.URL(), nil, 0)
	m, err := c.Metadata(context.Background(), "lib", false)
	if err != nil {
		t.Fatalf("Metadata() error: %v", err)
	}

	if !slices.Equal(m.Versions, []string{"1.0.0", "1.0.5", "1.1.0"}) {
		t.Errorf("Versions = %v", m.Versions)
	}
	if m.DistTags["latest"] != "1.1.0" || m.DistTags["next"] != "1.0.5" {
		t.Errorf("DistTags = %v", m.DistTags)
	}
}

func TestMetadataScoped(t *testing.T) {
	reg := registrytest.New(t)
	reg.Publish("@acme/ui", "2.0.0", nil, nil)

	c := NewClient(reg.URL(), nil, 0)
	m, err := c.Metadata(context.Background(), "@acme/ui", false)
	if err != nil {
		t.Fatalf("Metadata() error: %v", err)
	}
	if !slices.Equal(m.Versions, []string{"2.0.0"}) {
		t.Errorf("Versions = %v", m.Versions)
	}
}

func TestMetadataNotFound(t *testing.T) {
	reg := registrytest.New(t)
	c := NewClient(reg.URL(), nil, 0)

	_, err := c.Metadata(context.Background(), "missing", false)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Metadata() error = %v, want ErrNotFound", err)
	}
}

func TestMetadataCached(t *testing.T) {
	reg := registrytest.New(t)
	reg.Publish("lib", "1.0.0", nil, nil)

	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := NewClient(reg.URL(), fc, time.Hour)
	ctx := context.Background()

	for range 3 {
		if _, err := c.Metadata(ctx, "lib", false); err != nil {
			t.Fatalf("Metadata() error: %v", err)
		}
	}
	if got := reg.MetadataHits("lib"); got != 1 {
		t.Errorf("metadata requests = %d, want 1", got)
	}

	if _, err := c.Metadata(ctx, "lib", true); err != nil {
		t.Fatalf("Metadata(refresh) error: %v", err)
	}
	if got := reg.MetadataHits("lib"); got != 2 {
		t.Errorf("metadata requests after refresh = %d, want 2", got)
	}
}

func TestMetadataRetriesServerErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("retry backoff sleeps")
	}
	reg := registrytest.New(t)
	reg.Publish("lib", "1.0.0", nil, nil)
	reg.FailNext("lib", 1)

	c := NewClient(reg.URL(), nil, 0)
	if _, err := c.Metadata(context.Background(), "lib", false); err != nil {
		t.Fatalf("Metadata() error: %v", err)
	}
	if got := reg.MetadataHits("lib"); got != 2 {
		t.Errorf("metadata requests = %d, want 2", got)
	}
}

func TestMetadataClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, 0)
	_, err := c.Metadata(context.Background(), "lib", false)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("Metadata() error = %v, want ErrNetwork", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestHeaders(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"name":"lib","versions":{}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, 0)
	c.SetHeader("Authorization", "Bearer token")
	if _, err := c.Metadata(context.Background(), "lib", false); err != nil {
		t.Fatalf("Metadata() error: %v", err)
	}
	if auth != "Bearer token" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestArchiveURL(t *testing.T) {
	c := NewClient("https://registry.example.com/", nil, 0)

	tests := []struct {
		name, version, want string
	}{
		{"lib", "1.0.0", "https://registry.example.com/lib/-/lib-1.0.0.tgz"},
		{"@acme/ui", "2.1.0", "https://registry.example.com/@acme/ui/-/ui-2.1.0.tgz"},
	}
	for _, tt := range tests {
		if got := c.ArchiveURL(tt.name, tt.version); got != tt.want {
			t.Errorf("ArchiveURL(%q, %q) = %q, want %q", tt.name, tt.version, got, tt.want)
		}
	}
}

func TestDownload(t *testing.T) {
	reg := registrytest.New(t)
	reg.Publish("@acme/ui", "2.0.0", nil, map[string]string{"index.js": "module.exports = 1"})

	c := NewClient(reg.URL(), nil, 0)
	dest := filepath.Join(t.TempDir(), "nested", "ui.tgz")
	if err := c.Download(context.Background(), "@acme/ui", "2.0.0", dest); err != nil {
		t.Fatalf("Download() error: %v", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("downloaded archive is empty")
	}
	if got := reg.ArchiveHits("@acme/ui", "2.0.0"); got != 1 {
		t.Errorf("archive requests = %d, want 1", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestDownloadNotFound(t *testing.T) {
	reg := registrytest.New(t)
	c := NewClient(reg.URL(), nil, 0)

	dest := filepath.Join(t.TempDir(), "x.tgz")
	err := c.Download(context.Background(), "lib", "9.9.9", dest)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Download() error = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("failed download should not create dest")
	}
}
