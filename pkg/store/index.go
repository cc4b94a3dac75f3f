package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// IndexFile is the index database name inside the install cache.
const IndexFile = "index.db"

// Entry describes one extracted package in the install cache.
type Entry struct {
	Name        string
	Version     string
	Path        string
	InstalledAt time.Time
}

// Key returns name@version.
func (e Entry) Key() string { return Key(e.Name, e.Version) }

// Index records extracted packages in a sqlite database so the store can be
// listed without walking it.
type Index struct {
	db   *sql.DB
	path string
}

// OpenIndex opens (creating if needed) the index database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open store index: %w", err)
	}
	// one writer; sqlite serialises writes anyway
	db.SetMaxOpenConns(1)

	idx := &Index{db: db, path: path}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store index: %w", err)
	}
	return idx, nil
}

func (idx *Index) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS packages (
        name TEXT NOT NULL,
        version TEXT NOT NULL,
        install_path TEXT NOT NULL,
        installed_at DATETIME NOT NULL,
        PRIMARY KEY (name, version)
    );
    `
	_, err := idx.db.Exec(schema)
	return err
}

// Record adds or refreshes the entry for name@version.
func (idx *Index) Record(ctx context.Context, name, version, path string) error {
	_, err := idx.db.ExecContext(ctx, `
        INSERT OR REPLACE INTO packages (name, version, install_path, installed_at)
        VALUES (?, ?, ?, ?)`, name, version, path, time.Now().UTC())
	return err
}

// Remove drops the entry for name@version.
func (idx *Index) Remove(ctx context.Context, name, version string) error {
	_, err := idx.db.ExecContext(ctx, "DELETE FROM packages WHERE name = ? AND version = ?", name, version)
	return err
}

// List returns all entries ordered by name and version.
func (idx *Index) List(ctx context.Context) ([]Entry, error) {
	rows, err := idx.db.QueryContext(ctx, `
        SELECT name, version, install_path, installed_at
        FROM packages ORDER BY name, version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Version, &e.Path, &e.InstalledAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// List returns the completed packages in the install cache. The index and
// a scan of the install cache are merged: index entries whose directory has
// disappeared are pruned, and entries missing from the index are recorded.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	found, err := s.scan()
	if err != nil {
		return nil, err
	}
	if s.index == nil {
		return found, nil
	}
	indexed, err := s.index.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list store index: %w", err)
	}

	seen := make(map[string]bool, len(indexed))
	entries := make([]Entry, 0, len(found))
	for _, e := range indexed {
		if complete(e.Path) {
			seen[e.Key()] = true
			entries = append(entries, e)
			continue
		}
		if err := s.index.Remove(ctx, e.Name, e.Version); err != nil {
			s.logger.Warn("store index prune failed", "package", e.Key(), "error", err)
		}
	}
	for _, e := range found {
		if seen[e.Key()] {
			continue
		}
		if err := s.index.Record(ctx, e.Name, e.Version, e.Path); err != nil {
			s.logger.Warn("store index update failed", "package", e.Key(), "error", err)
		}
		entries = append(entries, e)
	}
	sortEntries(entries)
	return entries, nil
}

// scan walks the install cache: <name>@<version> entries at the top level
// and @scope/<name>@<version> one level down.
func (s *Store) scan() ([]Entry, error) {
	var entries []Entry
	top, err := os.ReadDir(s.storeDir)
	if err != nil {
		return nil, err
	}
	for _, d := range top {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		if strings.HasPrefix(d.Name(), "@") && !strings.Contains(d.Name()[1:], "@") {
			scoped, err := os.ReadDir(filepath.Join(s.storeDir, d.Name()))
			if err != nil {
				return nil, err
			}
			for _, sd := range scoped {
				if e, ok := s.entry(d.Name()+"/", sd); ok {
					entries = append(entries, e)
				}
			}
			continue
		}
		if e, ok := s.entry("", d); ok {
			entries = append(entries, e)
		}
	}
	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Version < entries[j].Version
	})
}

func (s *Store) entry(scope string, d os.DirEntry) (Entry, bool) {
	if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
		return Entry{}, false
	}
	i := strings.LastIndexByte(d.Name(), '@')
	if i <= 0 {
		return Entry{}, false
	}
	e := Entry{
		Name:    scope + d.Name()[:i],
		Version: d.Name()[i+1:],
		Path:    filepath.Join(s.storeDir, filepath.FromSlash(scope), d.Name()),
	}
	if !complete(e.Path) {
		return Entry{}, false
	}
	if info, err := d.Info(); err == nil {
		e.InstalledAt = info.ModTime()
	}
	return e, true
}
