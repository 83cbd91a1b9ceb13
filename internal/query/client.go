package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Recorder receives cache events. *observability.Metrics satisfies it.
type Recorder interface {
	IncrCacheHit(resource string)
	IncrCacheMiss(resource string)
	IncrInvalidation(resource string, n int)
	IncrStaleDiscarded(resource string)
}

type nopRecorder struct{}

func (nopRecorder) IncrCacheHit(string)          {}
func (nopRecorder) IncrCacheMiss(string)         {}
func (nopRecorder) IncrInvalidation(string, int) {}
func (nopRecorder) IncrStaleDiscarded(string)    {}

// Forever disables staleness for a key: once fetched it stays fresh until
// invalidated.
const Forever time.Duration = -1

// maxSupersededAttempts bounds how often Fetch restarts a read whose key was
// invalidated while it was in flight.
const maxSupersededAttempts = 3

// Options configures a Client.
type Options struct {
	// StaleTime is how long a result is served without refetching.
	// Zero means every Fetch goes to the API (in-flight reads are still shared).
	StaleTime time.Duration
	Recorder  Recorder
	Now       func() time.Time
}

// FetchFunc loads the value of one key.
type FetchFunc func(ctx context.Context) (any, error)

type entry struct {
	data      any
	updatedAt time.Time
	staleTime time.Duration
}

// errSuperseded marks a completed read whose generation was bumped meanwhile.
var errSuperseded = errors.New("query: superseded by invalidation")

// Client is one credential scope's query cache. A key is tracked while it
// holds an entry or has a read in flight; the entries themselves live until
// invalidated or until the registry expires the whole client.
type Client struct {
	mu        sync.Mutex
	entries   map[string]*entry
	gens      map[string]uint64
	keys      map[string]Key
	inflight  map[string]int
	listeners map[int]func(Key)
	nextID    int

	group     singleflight.Group
	staleTime time.Duration
	rec       Recorder
	now       func() time.Time
}

// NewClient creates an empty query cache.
func NewClient(opts Options) *Client {
	c := &Client{
		entries:   make(map[string]*entry),
		gens:      make(map[string]uint64),
		keys:      make(map[string]Key),
		inflight:  make(map[string]int),
		listeners: make(map[int]func(Key)),
		staleTime: opts.StaleTime,
		rec:       opts.Recorder,
		now:       opts.Now,
	}
	if c.rec == nil {
		c.rec = nopRecorder{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Fetch returns the cached value of key while it is fresh, otherwise runs fn.
// Concurrent Fetches of the same key and generation share one call of fn.
func (c *Client) Fetch(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	return c.fetch(ctx, key, c.staleTime, false, fn)
}

// FetchWithStaleTime is Fetch with a per-key stale time (Forever for
// data that only changes through invalidation, like the profile).
func (c *Client) FetchWithStaleTime(ctx context.Context, key Key, staleTime time.Duration, fn FetchFunc) (any, error) {
	return c.fetch(ctx, key, staleTime, false, fn)
}

// Refresh ignores freshness and reads key from the API.
func (c *Client) Refresh(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	return c.fetch(ctx, key, c.staleTime, true, fn)
}

func (c *Client) fetch(ctx context.Context, key Key, staleTime time.Duration, force bool, fn FetchFunc) (any, error) {
	ks := key.String()

	if !force {
		if data, ok := c.fresh(ks); ok {
			c.rec.IncrCacheHit(key.Resource())
			return data, nil
		}
	}
	c.rec.IncrCacheMiss(key.Resource())

	var (
		data any
		err  error
	)
	for attempt := 0; attempt < maxSupersededAttempts; attempt++ {
		gen := c.register(ks, key)

		var v any
		v, err, _ = c.group.Do(ks+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
			// A caller that goes away must not fail the others sharing the flight.
			result, err := fn(context.WithoutCancel(ctx))
			if err != nil {
				return nil, err
			}
			if !c.store(ks, gen, staleTime, result) {
				c.rec.IncrStaleDiscarded(key.Resource())
				return result, errSuperseded
			}
			return result, nil
		})
		c.release(ks)
		data = v
		if !errors.Is(err, errSuperseded) {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
	}

	if errors.Is(err, errSuperseded) {
		// Still invalidated after several attempts: hand back the newest
		// result without caching it.
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Peek returns the cached value of key regardless of freshness.
func (c *Client) Peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// IsFresh reports whether key holds a value within its stale time.
func (c *Client) IsFresh(key Key) bool {
	_, ok := c.fresh(key.String())
	return ok
}

func (c *Client) fresh(ks string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[ks]
	if !ok {
		return nil, false
	}
	if e.staleTime >= 0 && c.now().Sub(e.updatedAt) >= e.staleTime {
		return nil, false
	}
	return e.data, true
}

// register makes key known to Invalidate, counts the caller as in flight
// and returns the key's generation.
func (c *Client) register(ks string, key Key) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.keys[ks]; !ok {
		c.keys[ks] = append(Key(nil), key...)
	}
	c.inflight[ks]++
	return c.gens[ks]
}

// release ends a caller's read of ks and forgets the key when nothing
// references it anymore.
func (c *Client) release(ks string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inflight[ks]--
	if c.inflight[ks] > 0 {
		return
	}
	delete(c.inflight, ks)
	if _, ok := c.entries[ks]; !ok {
		c.forget(ks)
	}
}

// forget drops the bookkeeping of an idle key. The caller holds mu.
func (c *Client) forget(ks string) {
	delete(c.keys, ks)
	delete(c.gens, ks)
}

// store saves data only when gen is still the key's generation.
func (c *Client) store(ks string, gen uint64, staleTime time.Duration, data any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[ks] != gen {
		return false
	}
	c.entries[ks] = &entry{data: data, updatedAt: c.now(), staleTime: staleTime}
	return true
}

// Invalidate drops every cached key starting with prefix and bumps its
// generation so reads already in flight cannot repopulate it. Keys with no
// read in flight are forgotten. Subscribers are notified afterwards. It
// returns the number of dropped entries.
func (c *Client) Invalidate(prefix Key) int {
	c.mu.Lock()
	dropped := 0
	for ks, key := range c.keys {
		if !key.HasPrefix(prefix) {
			continue
		}
		if _, ok := c.entries[ks]; ok {
			delete(c.entries, ks)
			dropped++
		}
		if c.inflight[ks] == 0 {
			c.forget(ks)
			continue
		}
		c.gens[ks]++
	}
	listeners := make([]func(Key), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	c.rec.IncrInvalidation(prefix.Resource(), dropped)
	for _, fn := range listeners {
		fn(prefix)
	}
	return dropped
}

// Clear invalidates everything.
func (c *Client) Clear() {
	c.Invalidate(nil)
}

// Subscribe registers fn to be called with the prefix of every invalidation.
// The returned func unsubscribes.
func (c *Client) Subscribe(fn func(prefix Key)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Tracked counts keys holding an entry or a read in flight.
func (c *Client) Tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

// Len counts cached entries.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Fetch is the typed form of Client.Fetch.
func Fetch[T any](ctx context.Context, c *Client, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.Fetch(ctx, key, wrap(fn))
	return typed[T](key, v, err)
}

// FetchWithStaleTime is the typed form of Client.FetchWithStaleTime.
func FetchWithStaleTime[T any](ctx context.Context, c *Client, key Key, staleTime time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.FetchWithStaleTime(ctx, key, staleTime, wrap(fn))
	return typed[T](key, v, err)
}

func wrap[T any](fn func(ctx context.Context) (T, error)) FetchFunc {
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}

func typed[T any](key Key, v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query: key %v holds %T", []string(key), v)
	}
	return t, nil
}
