package material

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/qesim/qesim/sim/internal/table"
)

const cacheExt = ".dat"

// Store resolves formulas to raw curves, answering from memory, then from
// the cache directory, then from the fetcher. A Store is not safe for
// concurrent use.
type Store struct {
	dir     string
	fetcher Fetcher
	memo    map[string]Curve
}

// NewStore returns a store caching under dir. A nil fetcher makes the store
// cache-only: every miss fails with ErrDataUnavailable.
func NewStore(dir string, fetcher Fetcher) *Store {
	return &Store{
		dir:     dir,
		fetcher: fetcher,
		memo:    make(map[string]Curve),
	}
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// Init creates the cache directory if it does not exist.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir %s: %w", s.dir, err)
	}
	return nil
}

// Path returns the cache file for formula.
func (s *Store) Path(formula string) string {
	return filepath.Join(s.dir, formula+cacheExt)
}

// Resolve returns the curve for formula, sorted ascending by energy.
func (s *Store) Resolve(ctx context.Context, formula string) (Curve, error) {
	if err := checkFormula(formula); err != nil {
		return nil, err
	}
	if c, ok := s.memo[formula]; ok {
		return c, nil
	}

	path := s.Path(formula)
	c, err := s.readCache(path)
	switch {
	case err == nil:
		logrus.Debugf("using cached attenuation data for %s from %s", formula, path)
	case errors.Is(err, os.ErrNotExist):
		logrus.Infof("%s not found in %s, fetching from remote source", formula, s.dir)
		c, err = s.fetch(ctx, formula)
		if err != nil {
			return nil, err
		}
		if err := s.writeCache(path, c); err != nil {
			return nil, err
		}
		logrus.Infof("fetched and cached %d points for %s", len(c), formula)
	default:
		return nil, fmt.Errorf("%w: %s: corrupt cache file %s (delete it to refetch): %v",
			ErrDataUnavailable, formula, path, err)
	}

	s.memo[formula] = c
	return c, nil
}

// Prefetch resolves every formula, stopping at the first failure.
func (s *Store) Prefetch(ctx context.Context, formulas ...string) error {
	for _, f := range formulas {
		if _, err := s.Resolve(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// Cached lists the formulas with a cache file, sorted.
func (s *Store) Cached() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	formulas := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, cacheExt) {
			continue
		}
		formulas = append(formulas, strings.TrimSuffix(name, cacheExt))
	}
	sort.Strings(formulas)
	return formulas, nil
}

func (s *Store) fetch(ctx context.Context, formula string) (Curve, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("%w: %s: not cached and no remote source configured", ErrDataUnavailable, formula)
	}
	var all Curve
	for _, r := range []Range{Low, High} {
		part, err := s.fetcher.Fetch(ctx, formula, r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, formula, err)
		}
		all = append(all, part...)
	}
	all = all.Sorted()
	if err := all.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: malformed remote data: %v", ErrDataUnavailable, formula, err)
	}
	return all, nil
}

// readCache loads a cache file. A missing file is reported as os.ErrNotExist.
func (s *Store) readCache(path string) (Curve, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := table.Read(f)
	if err != nil {
		return nil, err
	}
	c := make(Curve, len(rows))
	for i, r := range rows {
		c[i] = Point{Energy: r[0], Attenuation: r[1]}
	}
	// Older caches were written in fetch order rather than sorted.
	c = c.Sorted()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// writeCache writes via a temp file and renames it over the target so a
// crash never leaves a truncated entry behind.
func (s *Store) writeCache(path string, c Curve) error {
	if err := s.Init(); err != nil {
		return err
	}
	rows := make([]table.Row, len(c))
	for i, p := range c {
		rows[i] = table.Row{p.Energy, p.Attenuation}
	}
	var buf bytes.Buffer
	if err := table.Write(&buf, rows); err != nil {
		return fmt.Errorf("encode cache file %s: %w", path, err)
	}

	f, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write cache file %s: %w", path, err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write cache file %s: %w", path, err)
	}
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		return fmt.Errorf("write cache file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write cache file %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write cache file %s: %w", path, err)
	}
	return nil
}

func checkFormula(formula string) error {
	if formula == "" || strings.ContainsAny(formula, `/\`) || strings.Contains(formula, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidFormula, formula)
	}
	return nil
}
