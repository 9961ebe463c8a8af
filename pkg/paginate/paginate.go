// Package paginate provides a generic incremental-loading controller for
// remote collections that are served one page at a time.
//
// A [Paginator] fetches the page identified by its cursor, reports the outcome
// through caller-supplied callbacks, and guards against overlapping fetches.
// It owns very little state:
//
//   - the loading flag, which is the re-entrancy guard;
//   - the cursor, which only the caller moves (via [Paginator.SetPage]);
//   - the end flag, which only the caller raises (via
//     [Paginator.MarkEndReached]) once it has decided, from the items it
//     received, that the collection is exhausted.
//
// The canonical page value and the end-of-data condition live in the
// caller's own state; the Paginator mirrors them only so that it can refuse
// work it must not do.
//
// Callbacks run on the goroutine that called [Paginator.LoadNextItems]. The
// owner is expected to serialise its calls (one event loop per screen); the
// loading guard is an atomic compare-and-swap so that accidental concurrent
// calls still collapse into a single fetch, but the callbacks themselves
// are not synchronised against each other across goroutines.
package paginate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// FetchFunc retrieves the items on page. It is the only blocking step of a
// load and should honour ctx for cancellation and any timeout policy.
type FetchFunc[K, T any] func(ctx context.Context, page K) ([]T, error)

// Config wires a [Paginator] to its owner. Fetch and NextPage are required;
// nil callbacks are treated as no-ops.
type Config[K, T any] struct {
	// InitialPage is the cursor used for the first fetch and restored by
	// [Paginator.Reset].
	InitialPage K

	// Fetch loads one page.
	Fetch FetchFunc[K, T]

	// NextPage computes the cursor that follows the current one. It is
	// evaluated when the load is claimed, before the fetch starts, and
	// handed to OnSuccess.
	NextPage func() K

	// OnLoadingChange is called with true right before a fetch and with false
	// once it has completed, whatever the outcome.
	OnLoadingChange func(loading bool)

	// OnSuccess receives the fetched items together with the pre-computed
	// next cursor. The owner stores the cursor in its own state and calls
	// [Paginator.SetPage] (and [Paginator.MarkEndReached] when items is
	// empty).
	OnSuccess func(items []T, next K)

	// OnError receives a *[Error] describing the failed fetch. The cursor is
	// left untouched so the same page can be retried.
	OnError func(err error)
}

// Paginator drives successive page loads for one owner. Create it with
// [New]; the zero value is not usable.
type Paginator[K, T any] struct {
	cfg Config[K, T]

	loading    atomic.Bool
	endReached atomic.Bool

	mu   sync.Mutex
	page K
}

// New returns a Paginator positioned at cfg.InitialPage. It panics when
// cfg.Fetch or cfg.NextPage is nil, as that is a programming error.
func New[K, T any](cfg Config[K, T]) *Paginator[K, T] {
	if cfg.Fetch == nil {
		panic("paginate: Config.Fetch must not be nil")
	}
	if cfg.NextPage == nil {
		panic("paginate: Config.NextPage must not be nil")
	}
	if cfg.OnLoadingChange == nil {
		cfg.OnLoadingChange = func(bool) {}
	}
	if cfg.OnSuccess == nil {
		cfg.OnSuccess = func([]T, K) {}
	}
	if cfg.OnError == nil {
		cfg.OnError = func(error) {}
	}
	return &Paginator[K, T]{cfg: cfg, page: cfg.InitialPage}
}

// LoadNextItems fetches the page at the current cursor and reports the result
// through the configured callbacks. It is a no-op while another fetch is in
// flight or after [Paginator.MarkEndReached].
//
// LoadNextItems never returns an error and never panics because of Fetch:
// failures (including panics inside Fetch) are delivered to OnError as
// *[Error] values. If ctx is cancelled before Fetch returns, the late result
// is dropped and none of the completion callbacks run.
func (p *Paginator[K, T]) LoadNextItems(ctx context.Context) {
	if run, ok := p.Prepare(ctx); ok {
		run()
	}
}

// Prepare claims the Paginator for one load and fixes its cursor and next
// cursor on the calling goroutine. The returned run performs the fetch and
// reports the outcome exactly as [Paginator.LoadNextItems] does; it may be
// called from another goroutine and must be called exactly once.
//
// ok is false, and run nil, while another fetch is in flight or after
// [Paginator.MarkEndReached].
func (p *Paginator[K, T]) Prepare(ctx context.Context) (run func(), ok bool) {
	if p.endReached.Load() {
		return nil, false
	}
	if !p.loading.CompareAndSwap(false, true) {
		return nil, false
	}

	next := p.cfg.NextPage()
	page := p.Page()

	return func() {
		defer p.loading.Store(false)

		p.cfg.OnLoadingChange(true)
		items, err := p.fetch(ctx, page)

		if ctx.Err() != nil {
			// Owner is gone; its state must not be touched.
			return
		}

		if err != nil {
			p.cfg.OnError(wrap(page, err))
		} else {
			p.cfg.OnSuccess(items, next)
		}
		p.cfg.OnLoadingChange(false)
	}, true
}

// fetch calls the configured FetchFunc and converts a panic into an error.
func (p *Paginator[K, T]) fetch(ctx context.Context, page K) (items []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return p.cfg.Fetch(ctx, page)
}

// Reset moves the cursor back to the initial page and clears the end flag.
// It does not start a fetch; call [Paginator.LoadNextItems] afterwards.
func (p *Paginator[K, T]) Reset() {
	p.mu.Lock()
	p.page = p.cfg.InitialPage
	p.mu.Unlock()
	p.endReached.Store(false)
}

// SetPage stores the cursor for the next fetch. Owners call it from OnSuccess
// with the next cursor they recorded in their own state.
func (p *Paginator[K, T]) SetPage(page K) {
	p.mu.Lock()
	p.page = page
	p.mu.Unlock()
}

// Page returns the cursor the next fetch will use.
func (p *Paginator[K, T]) Page() K {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// MarkEndReached stops further fetches until [Paginator.Reset].
func (p *Paginator[K, T]) MarkEndReached() {
	p.endReached.Store(true)
}

// EndReached reports whether [Paginator.MarkEndReached] has been called since
// construction or the last reset.
func (p *Paginator[K, T]) EndReached() bool {
	return p.endReached.Load()
}

// Loading reports whether a fetch is currently in flight.
func (p *Paginator[K, T]) Loading() bool {
	return p.loading.Load()
}
