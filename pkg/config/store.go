package config

import (
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Store publishes immutable configuration snapshots. Readers call Current per
// request; reloads build a fresh Config and swap the pointer.
type Store struct {
	v        *viper.Viper
	hasFile  bool
	current  atomic.Pointer[Config]
	mu       sync.Mutex
	watching bool
	onChange []func(*Config)
	logger   *zap.Logger
}

// NewStore wraps an already-built configuration. Stores created this way cannot reload.
func NewStore(cfg *Config) *Store {
	s := &Store{logger: zap.NewNop()}
	s.current.Store(cfg)
	return s
}

// LoadStore reads the config file (or CONFIG_FILE / config/config.yml when path is empty)
// and returns a store holding the first snapshot.
func LoadStore(path string) (*Store, error) {
	v, hasFile, err := newViper(path)
	if err != nil {
		return nil, err
	}
	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	s := &Store{v: v, hasFile: hasFile, logger: zap.NewNop()}
	s.current.Store(cfg)
	return s, nil
}

// Current returns the active snapshot. The returned value must not be mutated.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// Swap replaces the active snapshot and notifies subscribers.
func (s *Store) Swap(cfg *Config) {
	if cfg == nil {
		return
	}
	prev := s.current.Swap(cfg)
	s.mu.Lock()
	listeners := append([]func(*Config){}, s.onChange...)
	s.mu.Unlock()
	if prev != nil && (prev.Database != cfg.Database || prev.Redis != cfg.Redis) {
		s.logger.Warn("connection settings changed; restart required for them to apply")
	}
	for _, fn := range listeners {
		fn(cfg)
	}
}

// OnChange registers a callback invoked after every successful swap.
func (s *Store) OnChange(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Reload re-reads the backing file. On failure the previous snapshot stays active.
func (s *Store) Reload() error {
	if s.v == nil {
		return nil
	}
	s.mu.Lock()
	if err := s.v.ReadInConfig(); err != nil {
		s.mu.Unlock()
		return err
	}
	cfg, err := fromViper(s.v)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.Swap(cfg)
	return nil
}

// Watch starts watching the backing file for changes. It is a no-op when the
// store was not loaded from a file.
func (s *Store) Watch(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.v == nil || !s.hasFile || s.watching {
		return
	}
	s.watching = true
	s.v.OnConfigChange(func(e fsnotify.Event) {
		s.mu.Lock()
		cfg, err := fromViper(s.v)
		s.mu.Unlock()
		if err != nil {
			s.logger.Error("config reload rejected, keeping previous snapshot", zap.String("file", e.Name), zap.Error(err))
			return
		}
		s.Swap(cfg)
		s.logger.Info("config reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
	})
	s.v.WatchConfig()
}
