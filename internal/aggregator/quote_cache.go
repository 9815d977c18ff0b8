package aggregator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hxuan190/fill-router/internal/domain"
	"github.com/hxuan190/fill-router/internal/metrics"
)

const (
	quoteCacheMaxSize = 1024
	quoteCacheShards  = 16
)

// FNV-1a
const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

type cacheEntry struct {
	hash   uint64
	key    string
	quote  *domain.SwapQuote
	expiry int64
	used   uint32
}

type cacheShard struct {
	mu      sync.RWMutex
	entries []cacheEntry
	size    int
	hand    int
}

// QuoteCache is a sharded clock cache of market quotes with a fixed TTL.
type QuoteCache struct {
	ttl      time.Duration
	shards   [quoteCacheShards]cacheShard
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewQuoteCache(ttl time.Duration) *QuoteCache {
	qc := &QuoteCache{
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}
	entriesPerShard := quoteCacheMaxSize / quoteCacheShards
	for i := 0; i < quoteCacheShards; i++ {
		qc.shards[i].entries = make([]cacheEntry, entriesPerShard)
	}
	go qc.cleanupLoop()
	return qc
}

func (qc *QuoteCache) Stop() {
	qc.stopOnce.Do(func() { close(qc.stopChan) })
}

func hashKey(key string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= fnvPrime64
	}
	return h
}

func (qc *QuoteCache) getShard(hash uint64) *cacheShard {
	return &qc.shards[hash%quoteCacheShards]
}

// Get returns a private copy of the cached quote, or nil.
func (qc *QuoteCache) Get(key string) *domain.SwapQuote {
	if qc.ttl <= 0 {
		return nil
	}
	hash := hashKey(key)
	now := time.Now().UnixNano()

	shard := qc.getShard(hash)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	for i := 0; i < shard.size; i++ {
		entry := &shard.entries[i]
		if entry.hash == hash && entry.key == key && now <= entry.expiry {
			atomic.StoreUint32(&entry.used, 1)
			return entry.quote.Clone()
		}
	}
	return nil
}

// Set stores a copy of quote, so later changes by the caller do not reach the cache.
func (qc *QuoteCache) Set(key string, quote *domain.SwapQuote) {
	if qc.ttl <= 0 {
		return
	}
	quote = quote.Clone()
	hash := hashKey(key)
	expiry := time.Now().Add(qc.ttl).UnixNano()

	shard := qc.getShard(hash)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	for i := 0; i < shard.size; i++ {
		entry := &shard.entries[i]
		if entry.hash == hash && entry.key == key {
			entry.quote = quote
			entry.expiry = expiry
			atomic.StoreUint32(&entry.used, 1)
			return
		}
	}

	entriesPerShard := len(shard.entries)
	if shard.size < entriesPerShard {
		shard.entries[shard.size] = cacheEntry{hash: hash, key: key, quote: quote, expiry: expiry, used: 1}
		shard.size++
		return
	}

	// clock eviction, second chance for recently used entries
	now := time.Now().UnixNano()
	for attempts := 0; attempts < entriesPerShard*2; attempts++ {
		entry := &shard.entries[shard.hand]
		shard.hand = (shard.hand + 1) % entriesPerShard
		if atomic.LoadUint32(&entry.used) == 0 || now > entry.expiry {
			*entry = cacheEntry{hash: hash, key: key, quote: quote, expiry: expiry, used: 1}
			return
		}
		atomic.StoreUint32(&entry.used, 0)
	}

	shard.entries[shard.hand] = cacheEntry{hash: hash, key: key, quote: quote, expiry: expiry, used: 1}
	shard.hand = (shard.hand + 1) % entriesPerShard
}

func (qc *QuoteCache) evictExpired() {
	now := time.Now().UnixNano()
	for i := 0; i < quoteCacheShards; i++ {
		shard := &qc.shards[i]
		shard.mu.Lock()
		for j := 0; j < shard.size; j++ {
			entry := &shard.entries[j]
			if now > entry.expiry {
				atomic.StoreUint32(&entry.used, 0)
			}
		}
		shard.mu.Unlock()
	}
}

func (qc *QuoteCache) Size() int {
	total := 0
	for i := 0; i < quoteCacheShards; i++ {
		shard := &qc.shards[i]
		shard.mu.RLock()
		total += shard.size
		shard.mu.RUnlock()
	}
	return total
}

func (qc *QuoteCache) cleanupLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-qc.stopChan:
			return
		case <-ticker.C:
			qc.evictExpired()
			metrics.QuoteCacheSize.Set(float64(qc.Size()))
		}
	}
}
