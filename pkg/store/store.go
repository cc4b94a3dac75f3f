// Package store is the shared content store: a download cache of package
// archives and an install cache of extracted packages, both keyed by
// name@version and shared by every project on the machine.
//
// Layout under the store home:
//
//	<home>/cache/<name>@<version>.tgz   downloaded archives
//	<home>/store/<name>@<version>/      extracted packages
//	<home>/store/index.db               index of extracted packages
//
// Each name@version is extracted at most once. Extraction happens in a
// temporary sibling directory that is renamed into place. An entry only
// counts as present once [Store.MarkComplete] has written its
// <name>@<version>.complete marker, which the installer does after the
// entry's own dependencies are linked and its hooks have run. An entry left
// without a marker by an interrupted or failed install is extracted afresh.
// Within one process, concurrent [Store.EnsureInstalled] calls for the same
// key share one fetch and extraction.
package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/mpnp/pkg/errors"
	"github.com/matzehuels/mpnp/pkg/observability"
)

const (
	cacheDirName = "cache"
	storeDirName = "store"
	archiveExt   = ".tgz"
	markerExt    = ".complete"
)

// Fetcher downloads the archive of name@version to dest.
// *registry.Client implements it.
type Fetcher interface {
	Download(ctx context.Context, name, version, dest string) error
}

// Options configures a Store.
type Options struct {
	Logger *log.Logger // defaults to log.Default()

	// NoIndex skips the sqlite index. Installs still work; [Store.List]
	// falls back to scanning the install cache.
	NoIndex bool
}

// Store is the content store rooted at one home directory.
// It is safe for concurrent use.
type Store struct {
	cacheDir string
	storeDir string
	fetcher  Fetcher
	logger   *log.Logger
	index    *Index

	downloads singleflight.Group

	mu       sync.Mutex
	inflight map[string]*call
}

type call struct {
	done chan struct{}
	path string
	err  error
}

// Open prepares the store under home, creating its directories.
func Open(home string, f Fetcher, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Store{
		cacheDir: DownloadDir(home),
		storeDir: InstallDir(home),
		fetcher:  f,
		logger:   logger,
		inflight: make(map[string]*call),
	}
	for _, dir := range []string{s.cacheDir, s.storeDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "create %s", dir)
		}
	}
	if !opts.NoIndex {
		idx, err := OpenIndex(filepath.Join(s.storeDir, IndexFile))
		if err != nil {
			return nil, err
		}
		s.index = idx
	}
	return s, nil
}

// DownloadDir is the download cache under home.
func DownloadDir(home string) string { return filepath.Join(home, cacheDirName) }

// InstallDir is the install cache under home.
func InstallDir(home string) string { return filepath.Join(home, storeDirName) }

// Close releases the index database.
func (s *Store) Close() error {
	if s.index == nil {
		return nil
	}
	return s.index.Close()
}

// CacheDir returns the download cache directory.
func (s *Store) CacheDir() string { return s.cacheDir }

// StoreDir returns the install cache directory.
func (s *Store) StoreDir() string { return s.storeDir }

// Key returns the store key of a package version.
func Key(name, version string) string { return name + "@" + version }

// ArchivePath returns where the archive of name@version is cached.
func (s *Store) ArchivePath(name, version string) string {
	return filepath.Join(s.cacheDir, filepath.FromSlash(Key(name, version))+archiveExt)
}

// InstallPath returns where name@version is extracted.
func (s *Store) InstallPath(name, version string) string {
	return filepath.Join(s.storeDir, filepath.FromSlash(Key(name, version)))
}

// EnsureInstalled makes name@version available in the install cache and
// returns its directory. alreadyPresent is true for a completed entry. It is
// false only for the one caller that performed the extraction; callers
// arriving while it is in flight wait for it and see alreadyPresent = true.
// The extracting caller must call [Store.MarkComplete] once the entry is
// fully built.
func (s *Store) EnsureInstalled(ctx context.Context, name, version string) (path string, alreadyPresent bool, err error) {
	if err := validate(name, version); err != nil {
		return "", false, err
	}
	key := Key(name, version)
	path = s.InstallPath(name, version)

	s.mu.Lock()
	if c, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-c.done:
			return c.path, true, c.err
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	if complete(path) {
		s.mu.Unlock()
		s.logger.Debug("store hit", "package", key)
		return path, true, nil
	}
	c := &call{done: make(chan struct{})}
	s.inflight[key] = c
	s.mu.Unlock()

	c.path, c.err = s.install(ctx, name, version, path)
	close(c.done)

	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()

	return c.path, false, c.err
}

// Prefetch downloads the archive of name@version into the download cache
// unless the version is already installed or cached.
func (s *Store) Prefetch(ctx context.Context, name, version string) error {
	if err := validate(name, version); err != nil {
		return err
	}
	if complete(s.InstallPath(name, version)) {
		return nil
	}
	_, err := s.fetch(ctx, name, version)
	return err
}

func (s *Store) install(ctx context.Context, name, version, path string) (string, error) {
	key := Key(name, version)
	s.logger.Debug("store miss", "package", key)

	archive, err := s.fetch(ctx, name, version)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeExtract, err, "extract %s", key)
	}
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+uuid.NewString())

	start := time.Now()
	err = Extract(archive, tmp, 1)
	if err == nil {
		err = s.replace(key, tmp, path)
	}
	observability.Install().OnExtract(ctx, key, time.Since(start), err)
	if err != nil {
		os.RemoveAll(tmp)
		return "", errors.Wrap(errors.ErrCodeExtract, err, "extract %s into %s", key, path)
	}
	os.RemoveAll(tmp)

	s.logger.Info("extracted", "package", key, "duration", time.Since(start).Round(time.Millisecond))
	return path, nil
}

// replace renames the fresh extraction tmp to path. An incomplete entry
// already at path is moved aside and removed.
func (s *Store) replace(key, tmp, path string) error {
	if isDir(path) {
		if complete(path) {
			// another process finished the same version first
			return nil
		}
		s.logger.Info("replacing incomplete entry", "package", key)
		stale := filepath.Join(filepath.Dir(path), ".tmp-"+uuid.NewString())
		if err := os.Rename(path, stale); err != nil {
			return err
		}
		defer os.RemoveAll(stale)
	}
	err := os.Rename(tmp, path)
	if err != nil && isDir(path) {
		// another process extracted the same version first
		return nil
	}
	return err
}

// MarkComplete records that name@version is fully built: its dependencies
// are linked and its lifecycle hooks have run. Until then the entry is not
// reported as present and a later install extracts it again.
func (s *Store) MarkComplete(ctx context.Context, name, version string) error {
	if err := validate(name, version); err != nil {
		return err
	}
	key := Key(name, version)
	path := s.InstallPath(name, version)
	if !isDir(path) {
		return errors.New(errors.ErrCodeInternal, "mark %s complete: not extracted", key)
	}
	if err := os.WriteFile(path+markerExt, nil, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "mark %s complete", key)
	}
	if s.index != nil {
		if err := s.index.Record(ctx, name, version, path); err != nil {
			s.logger.Warn("store index update failed", "package", key, "error", err)
		}
	}
	return nil
}

// fetch returns the cached archive of name@version, downloading it first if
// needed. Concurrent fetches of one key share a download.
func (s *Store) fetch(ctx context.Context, name, version string) (string, error) {
	key := Key(name, version)
	archive := s.ArchivePath(name, version)

	v, err, _ := s.downloads.Do(key, func() (any, error) {
		if fileExists(archive) {
			s.logger.Debug("download cache hit", "package", key)
			observability.Install().OnFetch(ctx, key, true)
			return archive, nil
		}
		s.logger.Debug("download cache miss", "package", key)
		s.logger.Info("fetching", "package", key)

		if err := s.fetcher.Download(ctx, name, version, archive); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.Wrap(errors.ErrCodeFetch, err, "fetch %s", key)
		}
		observability.Install().OnFetch(ctx, key, false)
		return archive, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// ClearDownloads removes every cached archive and returns how many were
// removed. Extracted packages are kept since projects link into them.
func (s *Store) ClearDownloads() (int, error) {
	n := 0
	err := filepath.WalkDir(s.cacheDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), archiveExt) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		n++
		return nil
	})
	if os.IsNotExist(err) {
		return n, nil
	}
	return n, err
}

func validate(name, version string) error {
	if err := errors.ValidatePackageName(name); err != nil {
		return err
	}
	return errors.ValidateVersion(version)
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// complete reports whether the entry at path is extracted and marked complete.
func complete(path string) bool {
	return isDir(path) && fileExists(path+markerExt)
}
