package screen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/fluentforge/pkg/catalog/books"
	"github.com/MrWong99/fluentforge/pkg/catalog/radio"
)

type bookFixture struct {
	loop   *testLoop
	src    *fakeBooks
	list   *BookList
	states []BooksState
}

func newBookFixture(t *testing.T, ctx context.Context, src *fakeBooks) *bookFixture {
	t.Helper()
	m, _ := newTestMetrics(t)
	f := &bookFixture{loop: newTestLoop(), src: src}
	f.list = NewBookList(ctx, BookListConfig{
		Source:   src,
		Language: books.English,
		Dispatch: f.loop.dispatch,
		OnChange: func(s BooksState) { f.states = append(f.states, s) },
		Metrics:  m,
	})
	return f
}

// load triggers LoadMore and runs the loop until the load has finished.
func (f *bookFixture) load(t *testing.T) {
	t.Helper()
	f.list.LoadMore()
	f.loop.runUntil(t, func() bool { return !f.list.inFlight })
}

func TestBookList_LoadsUntilEnd(t *testing.T) {
	t.Parallel()

	src := &fakeBooks{pages: map[int64][]books.Book{
		1: {epub(1), plain(2)},
		2: {epub(3)},
		3: {plain(4)},
	}}
	f := newBookFixture(t, context.Background(), src)

	f.load(t)
	st := f.list.State()
	if len(st.Items) != 1 || st.Items[0].ID != 1 || st.Page != 2 || st.EndReached {
		t.Fatalf("after page 1: %+v", st)
	}

	f.load(t)
	f.load(t)
	st = f.list.State()
	if len(st.Items) != 2 || st.Items[1].ID != 3 {
		t.Errorf("items = %+v, want books 1 and 3", st.Items)
	}
	if !st.EndReached {
		t.Error("EndReached = false after a page without EPUB books")
	}
	if st.Page != 4 {
		t.Errorf("Page = %d, want 4", st.Page)
	}

	f.load(t)
	if n := src.callCount(); n != 3 {
		t.Errorf("fetches = %d, want 3 (no fetch after end)", n)
	}
	for i, c := range src.callsCopy() {
		if c.page != int64(i+1) || c.lang != books.English {
			t.Errorf("call %d = %+v", i, c)
		}
	}
}

func TestBookList_LoadingNotifications(t *testing.T) {
	t.Parallel()

	f := newBookFixture(t, context.Background(), &fakeBooks{pages: map[int64][]books.Book{1: {epub(1)}}})
	f.load(t)

	if len(f.states) != 2 {
		t.Fatalf("notifications = %d, want 2", len(f.states))
	}
	if !f.states[0].Loading || len(f.states[0].Items) != 0 {
		t.Errorf("first notification = %+v, want loading with no items", f.states[0])
	}
	if f.states[1].Loading || len(f.states[1].Items) != 1 {
		t.Errorf("second notification = %+v, want loaded item", f.states[1])
	}
}

func TestBookList_ErrorKeepsCursor(t *testing.T) {
	t.Parallel()

	src := &fakeBooks{err: errNetworkDown}
	f := newBookFixture(t, context.Background(), src)

	f.load(t)
	st := f.list.State()
	if !strings.Contains(st.Error, "network error") {
		t.Errorf("Error = %q, want network error", st.Error)
	}
	if st.Page != 1 || st.EndReached || st.Loading {
		t.Errorf("state after error = %+v", st)
	}

	src.mu.Lock()
	src.err = nil
	src.pages = map[int64][]books.Book{1: {epub(7)}}
	src.mu.Unlock()

	f.load(t)
	st = f.list.State()
	if st.Error != "" || len(st.Items) != 1 || st.Page != 2 {
		t.Errorf("state after retry = %+v", st)
	}
	calls := src.callsCopy()
	if calls[0].page != 1 || calls[1].page != 1 {
		t.Errorf("retry fetched page %d, want 1", calls[1].page)
	}
}

func TestBookList_PanicBecomesError(t *testing.T) {
	t.Parallel()

	f := newBookFixture(t, context.Background(), &fakeBooks{panicMsg: "boom"})
	f.load(t)
	if st := f.list.State(); !strings.Contains(st.Error, "boom") {
		t.Errorf("Error = %q, want panic message", st.Error)
	}
}

func TestBookList_SingleFetchWhileLoading(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	src := &fakeBooks{gate: gate, pages: map[int64][]books.Book{1: {epub(1)}}}
	f := newBookFixture(t, context.Background(), src)

	f.list.LoadMore()
	f.list.LoadMore()
	f.list.LoadMore()
	close(gate)
	f.loop.runUntil(t, func() bool { return !f.list.inFlight })

	if n := src.callCount(); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
	if st := f.list.State(); len(st.Items) != 1 {
		t.Errorf("items = %d, want 1", len(st.Items))
	}
}

func TestBookList_CancelDiscardsResult(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	gate := make(chan struct{})
	src := &fakeBooks{gate: gate, pages: map[int64][]books.Book{1: {epub(1)}}}
	f := newBookFixture(t, ctx, src)

	f.list.LoadMore()
	cancel()
	f.loop.runUntil(t, func() bool { return !f.list.inFlight })

	st := f.list.State()
	if len(st.Items) != 0 || st.Error != "" || st.Page != 1 {
		t.Errorf("state after cancel = %+v, want untouched", st)
	}
	for _, s := range f.states {
		if !s.Loading {
			t.Errorf("unexpected completion notification %+v", s)
		}
	}

	f.list.LoadMore()
	if f.list.inFlight {
		t.Error("LoadMore started a fetch on a cancelled list")
	}
}

func TestBookList_ReloadDropsInFlightLoad(t *testing.T) {
	t.Parallel()

	src := &fakeBooks{pages: map[int64][]books.Book{1: {epub(1)}, 2: {epub(2)}}}
	f := newBookFixture(t, context.Background(), src)

	f.load(t)
	// Block the next call, which is now the first one recorded.
	src.mu.Lock()
	src.calls = nil
	src.gate = make(chan struct{})
	src.mu.Unlock()

	f.list.LoadMore() // page 2, blocked
	f.list.Reload()
	f.loop.runUntil(t, func() bool { return src.callCount() == 2 && !f.list.inFlight })

	st := f.list.State()
	if len(st.Items) != 1 || st.Items[0].ID != 1 {
		t.Errorf("items = %+v, want only page 1 after reload", st.Items)
	}
	if st.Page != 2 || st.Loading {
		t.Errorf("state = %+v", st)
	}
	calls := src.callsCopy()
	if calls[0].page != 2 || calls[1].page != 1 {
		t.Errorf("calls = %+v, want page 2 then page 1", calls)
	}
}

func TestBookList_SetLanguageDuringLoad(t *testing.T) {
	t.Parallel()

	src := &fakeBooks{pages: map[int64][]books.Book{1: {epub(1)}, 2: {epub(2)}}}
	f := newBookFixture(t, context.Background(), src)

	f.load(t)
	src.mu.Lock()
	src.calls = nil
	src.gate = make(chan struct{})
	src.mu.Unlock()

	f.list.LoadMore() // page 2 in English, blocked
	f.list.SetLanguage(books.French)
	f.loop.runUntil(t, func() bool { return src.callCount() == 2 && !f.list.inFlight })

	want := []listCall{{page: 2, lang: books.English}, {page: 1, lang: books.French}}
	if calls := src.callsCopy(); !slices.Equal(calls, want) {
		t.Errorf("calls = %+v, want %+v", calls, want)
	}
	if st := f.list.State(); len(st.Items) != 1 || st.Page != 2 {
		t.Errorf("state = %+v, want the first French page only", st)
	}
}

func TestBookList_PastEndPageEndsList(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail": "Invalid page."}`))
			return
		}
		_, _ = w.Write([]byte(`{"count": 1, "results": [{"id": 7, "title": "Kalevala",
			"formats": {"application/epub+zip": "https://example.org/7.epub"}}]}`))
	}))
	t.Cleanup(srv.Close)

	m, _ := newTestMetrics(t)
	loop := newTestLoop()
	list := NewBookList(context.Background(), BookListConfig{
		Source:   books.New(books.WithBaseURL(srv.URL)),
		Language: books.Finnish,
		Dispatch: loop.dispatch,
		Metrics:  m,
	})

	for range 2 {
		list.LoadMore()
		loop.runUntil(t, func() bool { return !list.inFlight })
	}

	st := list.State()
	if !st.EndReached || st.Error != "" {
		t.Fatalf("state = %+v, want end reached without error", st)
	}
	if len(st.Items) != 1 || st.Items[0].ID != 7 {
		t.Errorf("items = %+v", st.Items)
	}
	list.LoadMore()
	if list.inFlight {
		t.Error("LoadMore started a fetch after the end was reached")
	}
}

func TestBookList_SetLanguage(t *testing.T) {
	t.Parallel()

	src := &fakeBooks{pages: map[int64][]books.Book{1: {epub(1)}, 2: {epub(2)}}}
	f := newBookFixture(t, context.Background(), src)
	f.load(t)
	f.load(t)

	f.list.SetLanguage(books.German)
	f.loop.runUntil(t, func() bool { return !f.list.inFlight })

	if f.list.Language() != books.German {
		t.Errorf("Language = %v", f.list.Language())
	}
	st := f.list.State()
	if len(st.Items) != 1 || st.Page != 2 {
		t.Errorf("state after language switch = %+v, want first page only", st)
	}
	calls := src.callsCopy()
	if last := calls[len(calls)-1]; last.page != 1 || last.lang != books.German {
		t.Errorf("last call = %+v, want page 1 in German", last)
	}
}

func TestBookList_Search(t *testing.T) {
	t.Parallel()

	src := &fakeBooks{search: []books.Book{epub(1), plain(2), epub(3)}}
	f := newBookFixture(t, context.Background(), src)

	got, err := f.list.Search(context.Background(), "frankenstein")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("results = %d, want 2 EPUB books", len(got))
	}
	if st := f.list.State(); len(st.Items) != 0 || st.Page != 1 {
		t.Errorf("search changed list state: %+v", st)
	}

	got, err = f.list.Search(context.Background(), "  ")
	if err != nil || len(got) != 0 {
		t.Errorf("blank search = %v, %v", got, err)
	}
	if src.searchCalls != 1 {
		t.Errorf("search calls = %d, want 1", src.searchCalls)
	}
}

func TestBookList_RecordsFetchMetrics(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	loop := newTestLoop()
	src := &fakeBooks{pages: map[int64][]books.Book{1: {epub(1)}}}
	list := NewBookList(context.Background(), BookListConfig{Source: src, Dispatch: loop.dispatch, Metrics: m})

	for range 2 {
		list.LoadMore()
		loop.runUntil(t, func() bool { return !list.inFlight })
	}
	if n := fetchCount(t, reader, "success"); n != 1 {
		t.Errorf("success fetches = %d, want 1", n)
	}
	if n := fetchCount(t, reader, "end"); n != 1 {
		t.Errorf("end fetches = %d, want 1", n)
	}
}

func TestStationList_Pages(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	loop := newTestLoop()
	src := &fakeStations{pages: 2}
	list := NewStationList(context.Background(), StationListConfig{
		Source:   src,
		Query:    radio.Query{Limit: 50, HideBroken: true},
		Dispatch: loop.dispatch,
		Metrics:  m,
	})

	for range 4 {
		list.LoadMore()
		loop.runUntil(t, func() bool { return !list.inFlight })
	}

	st := list.State()
	if len(st.Items) != 2 || !st.EndReached {
		t.Errorf("state = %+v, want two stations and end reached", st)
	}
	if len(src.queries) != 3 {
		t.Fatalf("queries = %d, want 3", len(src.queries))
	}
	for i, q := range src.queries {
		if q.Page != i+1 || q.Limit != 50 || !q.HideBroken {
			t.Errorf("query %d = %+v", i, q)
		}
	}
	if off := src.queries[1].Offset(); off != 50 {
		t.Errorf("page 2 offset = %d, want 50", off)
	}

	list.SetLanguage("german")
	loop.runUntil(t, func() bool { return !list.inFlight })
	if last := src.queries[len(src.queries)-1]; last.Language != "german" || last.Page != 1 {
		t.Errorf("query after SetLanguage = %+v", last)
	}
}
