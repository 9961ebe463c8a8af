// Package screen holds the per-client screen controllers. A controller owns
// the state of one paginated list (its items, cursor, end flag and last
// error) and drives a [paginate.Paginator] to fill it.
//
// Controllers are not safe for concurrent use. Every exported method and
// every state change runs on the owner's event loop; fetches run on worker
// goroutines, and their outcomes are handed back to the loop through the
// owner's [Dispatcher].
package screen

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/fluentforge/internal/observe"
	"github.com/MrWong99/fluentforge/pkg/paginate"
)

// initialPage is the first page of every catalogue listing.
const initialPage int64 = 1

// unknownError is shown when a failed load carries no message.
const unknownError = "unknown-error"

// Dispatcher runs fn on the owner's event loop, in submission order. It may
// drop fn once the owner has shut down.
type Dispatcher func(fn func())

// State is the snapshot of a paginated list pushed to clients.
type State[T any] struct {
	Loading    bool   `json:"loading"`
	Items      []T    `json:"items"`
	Error      string `json:"error,omitempty"`
	EndReached bool   `json:"end_reached"`
	Page       int64  `json:"page"`
}

func freshState[T any]() State[T] {
	return State[T]{Items: []T{}, Page: initialPage}
}

// listConfig wires a list to its data source and owner.
type listConfig[T any] struct {
	// name labels metrics and spans ("books", "stations").
	name string
	// bind returns a fetch bound to the owner's current filters. It runs on
	// the loop when a load starts.
	bind func() paginate.FetchFunc[int64, T]
	// keep filters a fetched page; an empty result ends the list.
	keep     func([]T) []T
	dispatch Dispatcher
	onChange func(State[T])
	metrics  *observe.Metrics
}

// list is the controller logic shared by every paginated screen.
type list[T any] struct {
	cfg   listConfig[T]
	ctx   context.Context
	pager *paginate.Paginator[int64, T]
	state State[T]

	// gen changes on every reload; results of older loads are dropped.
	gen uint64
	// loadGen and loadFetch belong to the load in flight. Written on the
	// loop before the worker starts and read by the worker.
	loadGen   uint64
	loadFetch paginate.FetchFunc[int64, T]

	inFlight bool
	pending  bool
	cancel   context.CancelFunc
}

func newList[T any](ctx context.Context, cfg listConfig[T]) *list[T] {
	if cfg.keep == nil {
		cfg.keep = func(in []T) []T { return in }
	}
	if cfg.onChange == nil {
		cfg.onChange = func(State[T]) {}
	}
	if cfg.dispatch == nil {
		panic("screen: list requires a dispatcher")
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}
	l := &list[T]{cfg: cfg, ctx: ctx, state: freshState[T]()}
	l.pager = paginate.New(paginate.Config[int64, T]{
		InitialPage:     initialPage,
		Fetch:           l.fetch,
		NextPage:        func() int64 { return l.pager.Page() + 1 },
		OnLoadingChange: l.onLoadingChange,
		OnSuccess:       l.onSuccess,
		OnError:         l.onError,
	})
	return l
}

// State returns a copy of the current state.
func (l *list[T]) State() State[T] {
	s := l.state
	s.Items = append(make([]T, 0, len(l.state.Items)), l.state.Items...)
	return s
}

// LoadMore starts loading the next page unless a load is in flight or the
// end was reached.
func (l *list[T]) LoadMore() {
	if l.state.EndReached || l.inFlight || l.ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(l.ctx)
	l.loadGen = l.gen
	l.loadFetch = l.cfg.bind()
	run, ok := l.pager.Prepare(ctx)
	if !ok {
		cancel()
		return
	}
	l.cancel = cancel
	l.inFlight = true
	gen := l.gen

	go func() {
		defer cancel()
		run()
		l.cfg.dispatch(func() { l.loadDone(gen) })
	}()
}

// Reload discards the list and loads the first page again. A load still in
// flight is cancelled and its result dropped.
func (l *list[T]) Reload() {
	l.gen++
	l.Close()
	l.pager.Reset()
	l.state = freshState[T]()
	l.emit()

	if l.inFlight {
		// The cancelled load still holds the paginator; start once it ends.
		l.pending = true
		return
	}
	l.LoadMore()
}

// Close cancels the load in flight, if any.
func (l *list[T]) Close() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

func (l *list[T]) loadDone(gen uint64) {
	l.inFlight = false
	if gen == l.gen {
		l.cancel = nil
	}
	if l.pending {
		l.pending = false
		l.LoadMore()
	}
}

// The three paginator callbacks run on the worker and forward to the loop.

func (l *list[T]) onLoadingChange(loading bool) {
	l.post(func() {
		l.state.Loading = loading
		l.emit()
	})
}

func (l *list[T]) onSuccess(items []T, next int64) {
	l.post(func() {
		kept := l.cfg.keep(items)
		l.state.Items = append(l.state.Items, kept...)
		l.state.Page = next
		l.state.Error = ""
		l.pager.SetPage(next)
		if len(kept) == 0 {
			l.state.EndReached = true
			l.pager.MarkEndReached()
		}
	})
}

func (l *list[T]) onError(err error) {
	l.post(func() {
		msg := err.Error()
		if msg == "" {
			msg = unknownError
		}
		l.state.Error = msg
	})
}

// post queues fn on the loop unless a reload has happened since the current
// load started.
func (l *list[T]) post(fn func()) {
	gen := l.loadGen
	l.cfg.dispatch(func() {
		if gen != l.gen {
			return
		}
		fn()
	})
}

func (l *list[T]) emit() {
	l.cfg.onChange(l.State())
}

// fetch wraps the configured fetch with a span and metrics. It runs on the
// worker goroutine.
func (l *list[T]) fetch(ctx context.Context, page int64) ([]T, error) {
	ctx, span := observe.StartSpan(ctx, "screen.fetch",
		trace.WithAttributes(
			attribute.String("screen", l.cfg.name),
			attribute.Int64("page", page),
		),
	)
	defer span.End()

	start := time.Now()
	items, err := l.loadFetch(ctx, page)
	elapsed := time.Since(start)

	outcome := "success"
	switch {
	case ctx.Err() != nil:
		return items, err
	case err != nil:
		outcome = paginate.Classify(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case len(l.cfg.keep(items)) == 0:
		outcome = "end"
	}
	l.cfg.metrics.RecordFetch(ctx, l.cfg.name, outcome, elapsed)
	return items, err
}
