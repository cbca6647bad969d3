package cache

import (
	"context"
	"sync"
	"time"
)

// Cache — потокобезопасный кеш с TTL на запись и single-flight:
// конкурентные GetOrFetch по одному ключу ждут один общий fetch,
// а не стреляют во внешний API каждый сам.
// Reporter получает события hit/miss; кеш не зависит от доставки.
type Reporter interface {
	OnCacheHit(cache string)
	OnCacheMiss(cache string)
}

type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	flights map[string]*flight[V]

	hits   uint64
	misses uint64

	name     string
	reporter Reporter

	now func() time.Time // подменяется в тестах
}

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.After(e.storedAt.Add(e.ttl))
}

type flight[V any] struct {
	done chan struct{}
	val  V
	err  error
}

type Stats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

func New[V any]() *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]*entry[V]),
		flights: make(map[string]*flight[V]),
		now:     time.Now,
	}
}

// WithReporter включает отчёт hit/miss под именем name.
func (c *Cache[V]) WithReporter(name string, r Reporter) *Cache[V] {
	c.name, c.reporter = name, r
	return c
}

func (c *Cache[V]) reportHit() {
	if c.reporter != nil {
		c.reporter.OnCacheHit(c.name)
	}
}

func (c *Cache[V]) reportMiss() {
	if c.reporter != nil {
		c.reporter.OnCacheMiss(c.name)
	}
}

// GetOrFetch возвращает живое значение из кеша, либо выполняет fetch.
// Ошибка fetch-а не кешируется и не трогает существующие записи.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) (V, error)) (V, error) {
	var zero V

	c.mu.Lock()

	if e, ok := c.entries[key]; ok {
		if !e.expired(c.now()) {
			c.hits++
			v := e.value
			c.mu.Unlock()
			c.reportHit()
			return v, nil
		}
		// ленивое удаление протухшей записи
		delete(c.entries, key)
	}

	c.misses++
	defer c.reportMiss()

	// кто-то уже фетчит этот ключ — ждём его результат
	if f, ok := c.flights[key]; ok {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.val, f.err
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	f := &flight[V]{done: make(chan struct{})}
	c.flights[key] = f
	c.mu.Unlock()

	v, err := fetch(ctx)

	c.mu.Lock()
	delete(c.flights, key)
	if err == nil {
		c.entries[key] = &entry[V]{value: v, storedAt: c.now(), ttl: ttl}
	}
	c.mu.Unlock()

	f.val, f.err = v, err
	close(f.done)

	if err != nil {
		return zero, err
	}
	return v, nil
}

// Peek отдаёт значение без фетча (и без учёта в hit/miss статистике).
func (c *Cache[V]) Peek(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry[V])
	c.mu.Unlock()
}

// CleanupExpired — фоновая подчистка, чтобы редко читаемые ключи не висели вечно.
func (c *Cache[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}
