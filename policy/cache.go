package policy

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// Snapshotter is the trainer-side source of parameter snapshots. The
// training coordinator only signals refreshes between update steps, so a
// snapshot never observes a half-written state.
type Snapshotter interface {
	Snapshot() (Weights, error)
}

// Cache holds a periodically refreshed deep copy of the live policy, used
// for inference by the render loop without contending with training's
// parameter updates. The whole-state swap happens behind an RWMutex:
// refresh builds the full dump off-lock and applies it under the write
// lock, so inference sees either fully-old or fully-new parameters.
type Cache struct {
	mu      sync.RWMutex
	net     *Policy
	source  Snapshotter
	version uint64
	log     *log.Logger
}

// NewCache copies the live policy's current state into a fresh cache.
// The first snapshot must succeed or construction fails; the caller must
// treat that as fatal, not retried.
func NewCache(source Snapshotter, cfg Config, logger *log.Logger) (*Cache, error) {
	w, err := source.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("initial policy snapshot: %w", err)
	}

	net := New(cfg)
	net.Apply(w)
	return &Cache{
		net:    net,
		source: source,
		log:    logger,
	}, nil
}

// Refresh copies the live policy's full parameter state into the cache.
// A failed snapshot leaves the previous (stale) state usable; the error is
// returned so start-up can treat the initial refresh as fatal while the
// loops log and continue.
func (c *Cache) Refresh() error {
	w, err := c.source.Snapshot()
	if err != nil {
		if c.log != nil {
			c.log.Printf("policy refresh failed, keeping stale snapshot: %v", err)
		}
		return err
	}

	c.mu.Lock()
	c.net.Apply(w)
	c.mu.Unlock()
	atomic.AddUint64(&c.version, 1)
	return nil
}

// Infer returns the greedy action for the observation using the cached
// snapshot. Safe to call concurrently with Refresh.
func (c *Cache) Infer(obs []float64) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.net.Greedy(obs)
}

// Version counts successful refreshes since construction.
func (c *Cache) Version() uint64 {
	return atomic.LoadUint64(&c.version)
}
