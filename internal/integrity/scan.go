package integrity

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docseal/docseal/pkg/config"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/model"
	"github.com/docseal/docseal/pkg/pathutil"
)

// Scanner enumerates the tracked set: every regular file under the
// tracked paths plus every required file that exists, minus ignored
// patterns and the state directory.
type Scanner struct {
	Root     string
	Tracked  []string
	Required []string
	Ignore   []string
	hasher   *Hasher
}

// NewScanner builds a Scanner from a validated configuration.
func NewScanner(root string, cfg *config.Config) *Scanner {
	return &Scanner{
		Root:     root,
		Tracked:  cfg.TrackedPaths,
		Required: cfg.RequiredPaths(),
		Ignore:   cfg.Ignore,
		hasher:   NewHasher(root, cfg.Algorithm),
	}
}

// Hasher returns the scanner's hasher.
func (s *Scanner) Hasher() *Hasher { return s.hasher }

// WithAlgorithm returns a copy of s that hashes with alg.
func (s *Scanner) WithAlgorithm(alg model.Algorithm) *Scanner {
	c := *s
	c.hasher = NewHasher(s.Root, alg)
	return &c
}

// Entry is one tracked file. Key is the normalized path used in records,
// manifests and archives; Disk is the relative name the file has on disk,
// which differs from Key when the filesystem keeps a non-NFC spelling.
type Entry struct {
	Key  string
	Disk string
}

// Scan returns the fully hashed FileRecords, sorted by path.
func (s *Scanner) Scan(ctx context.Context) ([]model.FileRecord, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]model.FileRecord, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.hasher.RecordEntry(e)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Stat returns FileRecords with size and modification time but no digest.
// It is the fast-mode scan.
func (s *Scanner) Stat(ctx context.Context) ([]model.FileRecord, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]model.FileRecord, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		abs, _, err := pathutil.ResolveOnDisk(s.Root, e.Disk)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, errclass.ErrIOFailure.WithMessagef("stat %s: %v", e.Key, err)
		}
		records = append(records, model.FileRecord{
			Path:    e.Key,
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		})
	}
	return records, nil
}

// Paths returns the sorted normalized keys of the tracked set.
func (s *Scanner) Paths(ctx context.Context) ([]string, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out, nil
}

// Entries returns the tracked set sorted by key. Two names on disk that
// normalize to the same key are rejected with ErrNameInvalid, since one
// record could not describe both.
func (s *Scanner) Entries(ctx context.Context) ([]Entry, error) {
	seen := make(map[string]string)
	var clash error
	add := func(e Entry) {
		if s.ignored(e.Key) {
			return
		}
		if prev, ok := seen[e.Key]; ok && prev != e.Disk && clash == nil {
			clash = errclass.ErrNameInvalid.WithMessagef("%q and %q both normalize to %s", prev, e.Disk, e.Key)
		}
		seen[e.Key] = e.Disk
	}

	for _, tracked := range s.Tracked {
		abs, key, err := pathutil.ResolveOnDisk(s.Root, tracked)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errclass.ErrIOFailure.WithMessagef("stat %s: %v", tracked, err)
		}
		if !info.IsDir() {
			if info.Mode().IsRegular() {
				add(Entry{Key: key, Disk: diskName(tracked)})
			}
			continue
		}
		if err := s.walk(ctx, abs, add); err != nil {
			return nil, err
		}
	}

	for _, req := range s.Required {
		abs, key, err := pathutil.ResolveOnDisk(s.Root, req)
		if err != nil {
			return nil, err
		}
		if info, err := os.Stat(abs); err == nil && info.Mode().IsRegular() {
			add(Entry{Key: key, Disk: diskName(req)})
		}
	}
	if clash != nil {
		return nil, clash
	}

	out := make([]Entry, 0, len(seen))
	for key, disk := range seen {
		out = append(out, Entry{Key: key, Disk: disk})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func diskName(rel string) string {
	return path.Clean(filepath.ToSlash(rel))
}

func (s *Scanner) walk(ctx context.Context, dir string, add func(Entry)) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return errclass.ErrIOFailure.WithMessagef("walk %s: %v", p, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return errclass.ErrIOFailure.WithMessagef("relative path: %v", err)
		}
		key, err := pathutil.NormalizeRel(rel)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if key == config.StateDir || strings.HasPrefix(key, config.StateDir+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		e := Entry{Key: key, Disk: diskName(rel)}
		if d.Type()&fs.ModeSymlink != 0 {
			// Followed only when it stays inside the project and names a file.
			if err := pathutil.ValidatePathSafety(s.Root, p); err != nil {
				return err
			}
			info, err := os.Stat(p)
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
			add(e)
			return nil
		}
		if d.Type().IsRegular() {
			add(e)
		}
		return nil
	})
}

// ignored matches a pattern against the whole path and against its base name.
func (s *Scanner) ignored(p string) bool {
	base := path.Base(p)
	for _, pattern := range s.Ignore {
		if ok, _ := path.Match(pattern, p); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
