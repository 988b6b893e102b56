// Package cache stores rendered popup fragments keyed by feature ID.
package cache

import (
	"container/list"
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/joeblew999/plat-mapping/internal/metrics"
)

// PopupCache holds rendered popup HTML. Flush drops every entry; it is
// called whenever a type changes, because type labels and colours appear
// in popups.
type PopupCache interface {
	Get(ctx context.Context, featureID int64) (string, bool)
	Set(ctx context.Context, featureID int64, html string)
	Flush(ctx context.Context)
}

// LRU is an in-process PopupCache with a size bound and TTL.
type LRU struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[int64]*list.Element
	now  func() time.Time
}

type entry struct {
	id   int64
	html string
	exp  time.Time
}

// NewLRU creates a cache of at most capacity entries, each kept for ttl.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 1024
	}
	return &LRU{cap: capacity, ttl: ttl, lst: list.New(), dict: make(map[int64]*list.Element), now: time.Now}
}

func (c *LRU) Get(_ context.Context, id int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[id]; ok {
		it := e.Value.(entry)
		if c.now().Before(it.exp) {
			c.lst.MoveToFront(e)
			metrics.PopupCacheHitsTotal.Inc()
			return it.html, true
		}
		c.lst.Remove(e)
		delete(c.dict, id)
	}
	metrics.PopupCacheMissesTotal.Inc()
	return "", false
}

func (c *LRU) Set(_ context.Context, id int64, html string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := entry{id: id, html: html, exp: c.now().Add(c.ttl)}
	if e, ok := c.dict[id]; ok {
		e.Value = it
		c.lst.MoveToFront(e)
		return
	}
	c.dict[id] = c.lst.PushFront(it)
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(entry).id)
		c.lst.Remove(back)
	}
}

func (c *LRU) Flush(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lst.Init()
	clear(c.dict)
}

// Len returns the number of cached entries, expired or not.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
