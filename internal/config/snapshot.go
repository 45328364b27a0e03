package config

import "sync/atomic"

// Snapshot is an explicit, read-only Config value atomically swapped at
// batch/poll boundaries (spec §9's re-architecture note), replacing the
// source's implicit package-level mutable configuration. Components receive
// the pointer at the top of a batch and use it consistently for the
// duration of one decision.
type Snapshot struct {
	ptr atomic.Pointer[Config]
}

// NewSnapshot constructs a Snapshot seeded with cfg.
func NewSnapshot(cfg *Config) *Snapshot {
	s := &Snapshot{}
	s.ptr.Store(cfg)
	return s
}

// Get returns the currently active Config. The returned pointer is safe to
// read concurrently; callers must not mutate it.
func (s *Snapshot) Get() *Config {
	return s.ptr.Load()
}

// Swap atomically replaces the active Config, e.g. after a scheduled re-read
// of the hot-reloadable keys at a batch boundary.
func (s *Snapshot) Swap(cfg *Config) {
	s.ptr.Store(cfg)
}
