package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	i := NoopInstallHooks{}
	i.OnResolve(ctx, "react", "^18.0.0", "18.2.0", false)
	i.OnFetch(ctx, "react@18.2.0", true)
	i.OnExtract(ctx, "react@18.2.0", time.Second, nil)
	i.OnLink(ctx, "/app", "react@18.2.0", true)
	i.OnLifecycle(ctx, "app", "postinstall", time.Second, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "metadata")
	c.OnCacheMiss(ctx, "metadata")
	c.OnCacheSet(ctx, "metadata", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "registry.npmjs.org", "/react")
	h.OnResponse(ctx, "GET", "registry.npmjs.org", "/react", 200, time.Second)
	h.OnError(ctx, "GET", "registry.npmjs.org", "/react", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if _, ok := Install().(NoopInstallHooks); !ok {
		t.Error("Install() should return NoopInstallHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	stats := &Stats{}
	SetInstallHooks(stats)
	if Install() != stats {
		t.Error("SetInstallHooks should set custom hooks")
	}
	SetCacheHooks(stats)
	if Cache() != stats {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Install().(NoopInstallHooks); !ok {
		t.Error("Reset() should restore NoopInstallHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	stats := &Stats{}
	SetInstallHooks(stats)
	SetInstallHooks(nil)
	if Install() != stats {
		t.Error("SetInstallHooks(nil) should keep the previous hooks")
	}
}

func TestStatsCounts(t *testing.T) {
	ctx := context.Background()
	s := &Stats{}

	s.OnResolve(ctx, "a", "^1.0.0", "1.2.0", false)
	s.OnResolve(ctx, "b", "^1.0.0", "1.0.0", true)
	s.OnFetch(ctx, "a@1.2.0", false)
	s.OnFetch(ctx, "b@1.0.0", true)
	s.OnExtract(ctx, "a@1.2.0", time.Millisecond, nil)
	s.OnExtract(ctx, "c@1.0.0", time.Millisecond, errors.New("boom"))
	s.OnLink(ctx, "/app", "a@1.2.0", true)
	s.OnLink(ctx, "/app", "b@1.0.0", false)
	s.OnLifecycle(ctx, "app", "install", time.Millisecond, nil)
	s.OnCacheHit(ctx, "metadata")
	s.OnCacheMiss(ctx, "metadata")
	s.OnRequest(ctx, "GET", "registry.example", "/a")
	s.OnRequest(ctx, "GET", "registry.example", "/a/-/a-1.2.0.tgz")
	s.OnResponse(ctx, "GET", "registry.example", "/a", 200, time.Millisecond)
	s.OnError(ctx, "GET", "registry.example", "/a/-/a-1.2.0.tgz", errors.New("reset"))

	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"Resolved", s.Resolved.Load(), 1},
		{"Locked", s.Locked.Load(), 1},
		{"Downloaded", s.Downloaded.Load(), 1},
		{"ArchiveHits", s.ArchiveHits.Load(), 1},
		{"Extracted", s.Extracted.Load(), 1},
		{"Linked", s.Linked.Load(), 2},
		{"Reused", s.Reused.Load(), 1},
		{"Lifecycle", s.Lifecycle.Load(), 1},
		{"MetadataHits", s.MetadataHits.Load(), 1},
		{"MetadataMiss", s.MetadataMiss.Load(), 1},
		{"Requests", s.Requests.Load(), 2},
		{"HTTPErrors", s.HTTPErrors.Load(), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
}

type testHTTPHooks struct{ NoopHTTPHooks }
