package screen

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/fluentforge/internal/observe"
	"github.com/MrWong99/fluentforge/pkg/catalog/books"
	"github.com/MrWong99/fluentforge/pkg/catalog/radio"
	"github.com/MrWong99/fluentforge/pkg/paginate"
)

// testLoop plays the owner's event loop on the test goroutine.
type testLoop struct {
	ch chan func()
}

func newTestLoop() *testLoop {
	return &testLoop{ch: make(chan func(), 256)}
}

func (l *testLoop) dispatch(fn func()) { l.ch <- fn }

// runUntil executes queued events until cond holds.
func (l *testLoop) runUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case fn := <-l.ch:
			fn()
		case <-deadline:
			t.Fatal("timed out waiting for condition")
		}
	}
}

func epub(id int64) books.Book {
	return books.Book{ID: id, Title: "epub", Formats: map[string]string{books.MIMEEpub: "https://example.org/x.epub"}}
}

func plain(id int64) books.Book {
	return books.Book{ID: id, Title: "plain", Formats: map[string]string{"text/plain": "https://example.org/x.txt"}}
}

type listCall struct {
	page int64
	lang books.Language
}

// fakeBooks serves fixed pages. Pages beyond the map are empty.
type fakeBooks struct {
	mu       sync.Mutex
	pages    map[int64][]books.Book
	err      error
	panicMsg string
	calls    []listCall

	// gate, when set, blocks the first ListBooks call until closed or the
	// context ends.
	gate chan struct{}

	search      []books.Book
	searchCalls int
}

func (f *fakeBooks) ListBooks(ctx context.Context, page int64, lang books.Language) (*books.BookSet, error) {
	f.mu.Lock()
	f.calls = append(f.calls, listCall{page: page, lang: lang})
	first := len(f.calls) == 1
	gate, err, panicMsg := f.gate, f.err, f.panicMsg
	items := f.pages[page]
	f.mu.Unlock()

	if first && gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if panicMsg != "" {
		panic(panicMsg)
	}
	if err != nil {
		return nil, err
	}
	return &books.BookSet{Count: len(items), Books: append([]books.Book{}, items...)}, nil
}

func (f *fakeBooks) Search(_ context.Context, _ string) (*books.BookSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	return &books.BookSet{Books: f.search}, nil
}

func (f *fakeBooks) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeBooks) callsCopy() []listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]listCall(nil), f.calls...)
}

// fakeStations serves n pages of one station each.
type fakeStations struct {
	mu      sync.Mutex
	pages   int
	queries []radio.Query
}

func (f *fakeStations) Stations(_ context.Context, q radio.Query) ([]radio.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if q.Page > f.pages {
		return []radio.Station{}, nil
	}
	return []radio.Station{{StationUUID: "st", Name: "Station", Language: q.Language}}, nil
}

var errNetworkDown = fmt.Errorf("dial tcp: %w", paginate.ErrNetwork)

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// fetchCount sums the pagination fetch counter for outcome.
func fetchCount(t *testing.T, reader *sdkmetric.ManualReader, outcome string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var n int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "fluentforge.pagination.fetches" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("outcome"); ok && v.AsString() == outcome {
					n += dp.Value
				}
			}
		}
	}
	return n
}
