package core

import (
	"container/list"
	"fmt"
)

// OpDeduper implements two-tier deduplication for operations arriving
// over at-least-once transports. Tier 1 is an in-memory LRU; tier 2 is
// the applied_ops table in Postgres.
type OpDeduper struct {
	lru       *dedupLRU
	dbChecker DBDedupChecker
}

// DBDedupChecker is the interface for the Postgres dedup lookup
type DBDedupChecker interface {
	IsDuplicate(opKind string, opID string) (bool, error)
}

func NewOpDeduper(capacity int, dbChecker DBDedupChecker) *OpDeduper {
	return &OpDeduper{
		lru:       newDedupLRU(capacity),
		dbChecker: dbChecker,
	}
}

// IsDuplicate checks whether the operation was already applied
// (two-tier lookup).
func (d *OpDeduper) IsDuplicate(opKind, opID string) bool {
	key := fmt.Sprintf("%s:%s", opKind, opID)

	if d.lru.Contains(key) {
		return true
	}

	if d.dbChecker != nil {
		isDup, err := d.dbChecker.IsDuplicate(opKind, opID)
		if err != nil {
			// Conservative: a DB error must not block processing, so
			// treat the op as new and let nonce checks catch replays.
			return false
		}
		if isDup {
			d.lru.Add(key)
			return true
		}
	}

	return false
}

// MarkApplied adds the operation to the LRU after it succeeded.
func (d *OpDeduper) MarkApplied(opKind, opID string) {
	d.lru.Add(fmt.Sprintf("%s:%s", opKind, opID))
}

// Warm preloads composite keys so a restart does not pay the cold-path
// DB lookup for recently applied operations.
func (d *OpDeduper) Warm(keys []string) {
	for _, key := range keys {
		d.lru.Add(key)
	}
}

// --- LRU implementation ---

// dedupLRU is not thread-safe; the ingestion loop is the only caller.
type dedupLRU struct {
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List
}

type dedupEntry struct {
	key string
}

func newDedupLRU(capacity int) *dedupLRU {
	return &dedupLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
	}
}

// Contains checks if key exists (promotes to front)
func (lru *dedupLRU) Contains(key string) bool {
	elem, exists := lru.cache[key]
	if exists {
		lru.lruList.MoveToFront(elem)
		return true
	}
	return false
}

// Add inserts a key (or promotes if exists)
func (lru *dedupLRU) Add(key string) {
	if elem, exists := lru.cache[key]; exists {
		lru.lruList.MoveToFront(elem)
		return
	}

	elem := lru.lruList.PushFront(&dedupEntry{key: key})
	lru.cache[key] = elem

	if lru.lruList.Len() > lru.capacity {
		oldest := lru.lruList.Back()
		if oldest != nil {
			lru.lruList.Remove(oldest)
			delete(lru.cache, oldest.Value.(*dedupEntry).key)
		}
	}
}

// Size returns current number of entries
func (lru *dedupLRU) Size() int {
	return lru.lruList.Len()
}
