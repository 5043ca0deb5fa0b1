package rates

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Store is the process-wide handle on the rate configuration. The configuration is loaded lazily and cached until it
// is saved or invalidated. Readers always see either the old or the new configuration, never a mix.
type Store struct {
	path    string
	current atomic.Pointer[Config]
	lock    sync.Mutex // serialises loads and saves
	logger  *slog.Logger
}

func NewStore(path string) *Store {
	return &Store{
		path:   path,
		logger: slog.Default().With("path", path),
	}
}

// Get returns a copy of the cached configuration, loading it first if needed. A missing file gives the defaults; a
// file that cannot be parsed is an error.
func (s *Store) Get() (Config, error) {
	if cfg := s.current.Load(); cfg != nil {
		return cfg.Clone(), nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if cfg := s.current.Load(); cfg != nil {
		return cfg.Clone(), nil
	}

	cfg, err := s.read()
	if err != nil {
		return Config{}, err
	}
	s.current.Store(&cfg)
	return cfg.Clone(), nil
}

// Save validates and persists the configuration, then replaces the cached copy. The effective rate is recomputed as
// the mean of the six flat rates.
func (s *Store) Save(cfg Config) (Config, error) {
	cfg = cfg.Clone()
	cfg.Normalize()
	cfg.Energy.EffectiveRate = cfg.MeanFlatRate()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate rates: %w", err)
	}

	content, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return Config{}, fmt.Errorf("marshal rates: %w", err)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := writeFileAtomic(s.path, content); err != nil {
		return Config{}, err
	}
	s.current.Store(&cfg)
	s.logger.Info("Saved rate configuration", "effective_rate", cfg.Energy.EffectiveRate)
	return cfg.Clone(), nil
}

// Invalidate drops the cached configuration so that the next Get reloads it from disk.
func (s *Store) Invalidate() {
	s.current.Store(nil)
}

func (s *Store) read() (Config, error) {
	content, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("No rate configuration, using defaults")
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read rates file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal rates: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate rates: %w", err)
	}
	return cfg, nil
}

// writeFileAtomic replaces `path` with `content` by way of a temporary file in the same directory.
func writeFileAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace rates file: %w", err)
	}
	return nil
}
