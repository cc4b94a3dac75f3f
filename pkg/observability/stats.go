package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// Stats counts install and cache events. The zero value is ready to use and
// safe for concurrent use.
type Stats struct {
	Resolved     atomic.Int64 // ranges resolved through the registry
	Locked       atomic.Int64 // ranges answered by the lockfile
	Downloaded   atomic.Int64 // archives fetched from the registry
	ArchiveHits  atomic.Int64 // archives found in the download cache
	Extracted    atomic.Int64 // entries extracted into the install cache
	Linked       atomic.Int64 // dependency links created
	Reused       atomic.Int64 // links to entries already present in the store
	Lifecycle    atomic.Int64 // lifecycle hooks run
	MetadataHits atomic.Int64 // registry metadata served from cache
	MetadataMiss atomic.Int64 // registry metadata fetched
	Requests     atomic.Int64 // HTTP requests sent to the registry
	HTTPErrors   atomic.Int64 // requests that failed below HTTP (retried or not)
}

func (s *Stats) OnResolve(_ context.Context, _, _, _ string, locked bool) {
	if locked {
		s.Locked.Add(1)
		return
	}
	s.Resolved.Add(1)
}

func (s *Stats) OnFetch(_ context.Context, _ string, hit bool) {
	if hit {
		s.ArchiveHits.Add(1)
		return
	}
	s.Downloaded.Add(1)
}

func (s *Stats) OnExtract(_ context.Context, _ string, _ time.Duration, err error) {
	if err == nil {
		s.Extracted.Add(1)
	}
}

func (s *Stats) OnLink(_ context.Context, _, _ string, fresh bool) {
	s.Linked.Add(1)
	if !fresh {
		s.Reused.Add(1)
	}
}

func (s *Stats) OnLifecycle(_ context.Context, _, _ string, _ time.Duration, err error) {
	if err == nil {
		s.Lifecycle.Add(1)
	}
}

func (s *Stats) OnCacheHit(context.Context, string)      { s.MetadataHits.Add(1) }
func (s *Stats) OnCacheMiss(context.Context, string)     { s.MetadataMiss.Add(1) }
func (s *Stats) OnCacheSet(context.Context, string, int) {}

func (s *Stats) OnRequest(context.Context, string, string, string)                      { s.Requests.Add(1) }
func (s *Stats) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (s *Stats) OnError(context.Context, string, string, string, error)                 { s.HTTPErrors.Add(1) }

var (
	_ InstallHooks = (*Stats)(nil)
	_ CacheHooks   = (*Stats)(nil)
	_ HTTPHooks    = (*Stats)(nil)
)
