package query

import (
	"context"
	"sync"
)

// State is what an observer exposes for its active key. Data always belongs
// to Key: switching keys never carries the previous key's data over.
type State[T any] struct {
	Key        Key
	Data       T
	HasData    bool
	IsLoading  bool // no data yet for Key and a read is running
	IsFetching bool // a read is running, with or without data
	Err        error
}

// Loader reads the value of a key from the API.
type Loader[T any] func(ctx context.Context, key Key) (T, error)

// Observer follows one active key, like a mounted component subscribed to
// a query. Every SetKey or Refetch starts a new generation; a completion is
// applied only if its generation is still current, so results land in
// request order and a slow answer for an old key never overwrites the
// current one.
type Observer[T any] struct {
	client   *Client
	load     Loader[T]
	onChange func(State[T])

	ctx    context.Context
	cancel context.CancelFunc
	unsub  func()

	mu     sync.Mutex
	gen    uint64
	state  State[T]
	closed bool
	wg     sync.WaitGroup
}

// NewObserver creates an observer with no key. onChange, when non-nil, is
// called after every state transition from the goroutine that caused it.
func NewObserver[T any](ctx context.Context, c *Client, load Loader[T], onChange func(State[T])) *Observer[T] {
	ctx, cancel := context.WithCancel(ctx)
	o := &Observer[T]{
		client:   c,
		load:     load,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
	}
	o.unsub = c.Subscribe(o.invalidated)
	return o
}

// SetKey makes key the active key. Cached data for key is shown at once;
// otherwise the state is loading with no data.
func (o *Observer[T]) SetKey(key Key) {
	key = append(Key(nil), key...)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.gen++
	gen := o.gen

	next := State[T]{Key: key}
	if v, ok := o.client.Peek(key); ok {
		if data, ok := v.(T); ok {
			next.Data = data
			next.HasData = true
		}
	}
	fresh := next.HasData && o.client.IsFresh(key)
	if !fresh {
		next.IsFetching = true
		next.IsLoading = !next.HasData
	}
	o.state = next
	o.mu.Unlock()

	o.notify(next)
	if !fresh {
		o.start(gen, key, false)
	}
}

// Refetch reads the active key again, keeping current data visible.
func (o *Observer[T]) Refetch() {
	o.refetch(true)
}

func (o *Observer[T]) refetch(force bool) {
	o.mu.Lock()
	if o.closed || o.state.Key == nil {
		o.mu.Unlock()
		return
	}
	o.gen++
	gen := o.gen
	key := o.state.Key
	o.state.IsFetching = true
	o.state.IsLoading = !o.state.HasData
	snapshot := o.state
	o.mu.Unlock()

	o.notify(snapshot)
	o.start(gen, key, force)
}

// invalidated refetches when an invalidation covers the active key.
func (o *Observer[T]) invalidated(prefix Key) {
	o.mu.Lock()
	covered := o.state.Key != nil && o.state.Key.HasPrefix(prefix)
	o.mu.Unlock()

	if covered {
		o.refetch(false)
	}
}

func (o *Observer[T]) start(gen uint64, key Key, force bool) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		v, err := o.client.fetch(o.ctx, key, o.client.staleTime, force, func(ctx context.Context) (any, error) {
			return o.load(ctx, key)
		})
		data, err := typed[T](key, v, err)
		o.apply(gen, data, err)
	}()
}

// apply lands a completion if gen is still current.
func (o *Observer[T]) apply(gen uint64, data T, err error) {
	o.mu.Lock()
	if o.closed || gen != o.gen {
		o.mu.Unlock()
		o.client.rec.IncrStaleDiscarded(o.stateKey().Resource())
		return
	}
	o.state.IsFetching = false
	o.state.IsLoading = false
	o.state.Err = err
	if err == nil {
		o.state.Data = data
		o.state.HasData = true
	}
	snapshot := o.state
	o.mu.Unlock()

	o.notify(snapshot)
}

func (o *Observer[T]) stateKey() Key {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Key
}

func (o *Observer[T]) notify(s State[T]) {
	if o.onChange != nil {
		o.onChange(s)
	}
}

// State returns the current state.
func (o *Observer[T]) State() State[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Close stops listening for invalidations and drops pending completions.
func (o *Observer[T]) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.unsub()
	o.cancel()
}

// Wait blocks until every read the observer started has finished.
func (o *Observer[T]) Wait() {
	o.wg.Wait()
}
