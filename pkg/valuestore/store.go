// Package valuestore provides the durable per-host key-value state that
// checks use to remember prior readings (counters, timestamps, snapshots)
// across evaluation cycles.
//
// Semantics:
//   - One store per host, persisted as a JSON file between cycles.
//   - A check invocation operates on a ScopedStore: reads observe a
//     snapshot taken at invocation start, writes are staged and become
//     visible only to the next invocation. Read-your-own-write is
//     deliberately not provided.
//   - Staged writes are committed all-or-nothing when the invocation
//     completes; an abandoned invocation leaves the store untouched.
//   - A corrupted persisted file is treated as an empty store, never as
//     a fatal error.
package valuestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/supporttools/fleet-doctor/pkg/logger"
)

// HostStore holds the committed state for one host. Access is serialized
// internally; the evaluator additionally runs all checks of one host on a
// single goroutine, so a key is never contended by two invocations.
type HostStore struct {
	mu        sync.Mutex
	host      string
	path      string
	committed map[string]json.RawMessage
	dirty     bool
}

// Load reads the persisted store for a host from dir. A missing file
// yields an empty store. An unreadable or corrupt file is logged and
// likewise yields an empty store.
func Load(dir, host string) *HostStore {
	store := &HostStore{
		host:      host,
		path:      filepath.Join(dir, host+".json"),
		committed: make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(store.path)
	if os.IsNotExist(err) {
		return store
	}
	if err != nil {
		logger.WithField("host", host).Warnf("Value store unreadable, starting empty: %v", err)
		return store
	}
	if err := json.Unmarshal(data, &store.committed); err != nil {
		logger.WithField("host", host).Warnf("Value store corrupt, starting empty: %v", err)
		store.committed = make(map[string]json.RawMessage)
	}
	return store
}

// Host returns the host this store belongs to.
func (s *HostStore) Host() string { return s.host }

// Begin starts a check invocation scope. All keys are prefixed with
// "<checkName>.<item>." so independent services never collide. The
// returned ScopedStore snapshots the committed state; later commits by
// the same cycle are not visible to it.
func (s *HostStore) Begin(checkName, item string) *ScopedStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]json.RawMessage, len(s.committed))
	for k, v := range s.committed {
		snapshot[k] = v
	}

	prefix := checkName + "."
	if item != "" {
		prefix += item + "."
	}

	return &ScopedStore{
		store:    s,
		prefix:   prefix,
		snapshot: snapshot,
		staged:   make(map[string]json.RawMessage),
	}
}

// Flush writes the committed state to disk if it changed since the last
// flush. The file is written atomically (temp file + rename) so a crash
// mid-flush cannot corrupt the previous state.
func (s *HostStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	data, err := json.Marshal(s.committed)
	if err != nil {
		return fmt.Errorf("failed to encode value store for host %q: %w", s.host, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write value store for host %q: %w", s.host, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace value store for host %q: %w", s.host, err)
	}

	s.dirty = false
	return nil
}

// Keys returns the sorted committed keys, mainly for tests and debugging.
func (s *HostStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.committed))
	for k := range s.committed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// commit merges staged writes into the committed state.
func (s *HostStore) commit(staged map[string]json.RawMessage) {
	if len(staged) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range staged {
		s.committed[k] = v
	}
	s.dirty = true
}

// ScopedStore is the view of a HostStore handed to one check invocation.
// It is not safe for concurrent use; each invocation owns exactly one.
type ScopedStore struct {
	store    *HostStore
	prefix   string
	snapshot map[string]json.RawMessage
	staged   map[string]json.RawMessage
	done     bool
}

// Get reads the value committed by a previous invocation into dest.
// It returns false if the key is absent. A value that cannot be decoded
// into dest is treated as absent: stale state from an older plugin
// version must never break a check.
func (s *ScopedStore) Get(key string, dest interface{}) bool {
	raw, ok := s.snapshot[s.prefix+key]
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		logger.WithField("host", s.store.host).Debugf(
			"Value store entry %q undecodable, treating as absent: %v", s.prefix+key, err)
		return false
	}
	return true
}

// Set stages a write that becomes visible to the next invocation for
// this host once the current invocation commits. It is not visible to
// Get calls within the same invocation.
func (s *ScopedStore) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("value for key %q not serializable: %w", key, err)
	}
	s.staged[s.prefix+key] = raw
	return nil
}

// Commit publishes the staged writes. Called by the evaluator when the
// invocation completed (including the insufficient-data outcome, which
// must persist its first snapshot). Commit is idempotent.
func (s *ScopedStore) Commit() {
	if s.done {
		return
	}
	s.done = true
	s.store.commit(s.staged)
}

// Discard drops the staged writes. Called by the evaluator when the
// invocation failed; the store keeps the previous invocation's state.
func (s *ScopedStore) Discard() {
	s.done = true
	s.staged = nil
}
