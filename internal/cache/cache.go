// Package cache keeps finished per-file analyses across runs. Entries
// are keyed by path, excerpt and model, so any content or model change
// misses naturally and no TTL is needed. A small LRU front serves
// repeats in-process; the disk layer makes hits survive restarts.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	t "codebrief/internal/types"
)

const memEntries = 256

type diskEntry struct {
	File       string    `json:"file"`
	Size       int64     `json:"size"`
	AccessedAt time.Time `json:"accessed_at"`
}

type diskIndex struct {
	Entries map[string]diskEntry `json:"entries"`
}

// Store is an advisory analysis cache: every failure degrades to a miss
// or a dropped write, never an error surfaced to the pipeline.
type Store struct {
	mu  sync.Mutex
	mem *lru.Cache[string, t.FileAnalysis]

	root       string // "" means memory-only
	dataDir    string
	indexPath  string
	maxEntries int
	maxBytes   int64 // 0 disables the byte budget
	totalBytes int64
	entries    map[string]diskEntry
}

// Open returns a store rooted at root, or a memory-only store when root
// is empty. maxEntries bounds the disk index; <=0 selects a default.
func Open(root string, maxEntries int) (*Store, error) {
	return OpenSized(root, maxEntries, 0)
}

// OpenSized additionally bounds the total bytes kept on disk.
func OpenSized(root string, maxEntries int, maxBytes int64) (*Store, error) {
	mem, err := lru.New[string, t.FileAnalysis](memEntries)
	if err != nil {
		return nil, err
	}
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	s := &Store{
		mem:        mem,
		root:       root,
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		entries:    map[string]diskEntry{},
	}
	if root == "" {
		return s, nil
	}
	s.dataDir = filepath.Join(root, "data")
	s.indexPath = filepath.Join(root, "index.json")
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return nil, err
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	s.evictLocked()
	if err := s.persistIndexLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Key derives the cache key for one file excerpt under one model.
func Key(path, excerpt, model string) string {
	sum := sha256.Sum256([]byte(path + "\x00" + excerpt + "\x00" + model))
	return hex.EncodeToString(sum[:])
}

func (s *Store) Get(path, excerpt, model string) (t.FileAnalysis, bool) {
	if s == nil {
		return t.FileAnalysis{}, false
	}
	key := Key(path, excerpt, model)
	if a, ok := s.mem.Get(key); ok {
		return a, true
	}
	if s.root == "" {
		return t.FileAnalysis{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[key]
	if !ok {
		return t.FileAnalysis{}, false
	}
	raw, err := os.ReadFile(filepath.Join(s.dataDir, ent.File))
	if err != nil {
		s.dropLocked(key, ent)
		return t.FileAnalysis{}, false
	}
	var a t.FileAnalysis
	if err := json.Unmarshal(raw, &a); err != nil {
		s.dropLocked(key, ent)
		return t.FileAnalysis{}, false
	}
	ent.AccessedAt = time.Now()
	s.entries[key] = ent
	_ = s.persistIndexLocked()
	s.mem.Add(key, a)
	return a, true
}

func (s *Store) Put(path, excerpt, model string, a t.FileAnalysis) {
	if s == nil || a.Placeholder() {
		return
	}
	key := Key(path, excerpt, model)
	s.mem.Add(key, a)
	if s.root == "" {
		return
	}

	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file := key + ".json"
	if err := os.WriteFile(filepath.Join(s.dataDir, file), raw, 0o644); err != nil {
		return
	}
	if old, ok := s.entries[key]; ok {
		s.totalBytes -= old.Size
	}
	s.entries[key] = diskEntry{File: file, Size: int64(len(raw)), AccessedAt: time.Now()}
	s.totalBytes += int64(len(raw))
	s.evictLocked()
	_ = s.persistIndexLocked()
}

// Len reports how many entries the disk index holds.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) loadIndex() error {
	raw, err := os.ReadFile(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var idx diskIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		// A corrupt index is rebuilt empty rather than failing the run.
		return nil
	}
	if idx.Entries != nil {
		s.entries = idx.Entries
	}
	for _, ent := range s.entries {
		s.totalBytes += ent.Size
	}
	return nil
}

func (s *Store) dropLocked(key string, ent diskEntry) {
	delete(s.entries, key)
	s.totalBytes -= ent.Size
	if s.totalBytes < 0 {
		s.totalBytes = 0
	}
	_ = os.Remove(filepath.Join(s.dataDir, ent.File))
	_ = s.persistIndexLocked()
}

func (s *Store) overBudgetLocked() bool {
	if len(s.entries) > s.maxEntries {
		return true
	}
	return s.maxBytes > 0 && s.totalBytes > s.maxBytes
}

func (s *Store) evictLocked() {
	for s.overBudgetLocked() {
		key, ent, ok := s.leastRecentlyUsedLocked()
		if !ok {
			return
		}
		delete(s.entries, key)
		s.totalBytes -= ent.Size
		_ = os.Remove(filepath.Join(s.dataDir, ent.File))
	}
}

func (s *Store) leastRecentlyUsedLocked() (string, diskEntry, bool) {
	if len(s.entries) == 0 {
		return "", diskEntry{}, false
	}
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		li := s.entries[keys[i]].AccessedAt
		lj := s.entries[keys[j]].AccessedAt
		if li.Equal(lj) {
			return keys[i] < keys[j]
		}
		return li.Before(lj)
	})
	k := keys[0]
	return k, s.entries[k], true
}

func (s *Store) persistIndexLocked() error {
	raw, err := json.MarshalIndent(diskIndex{Entries: s.entries}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.indexPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.indexPath)
}
