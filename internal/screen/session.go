package screen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/fluentforge/internal/observe"
	"github.com/MrWong99/fluentforge/pkg/catalog/books"
	"github.com/MrWong99/fluentforge/pkg/catalog/radio"
)

// Screen names used in commands and messages.
const (
	ScreenBooks    = "books"
	ScreenStations = "stations"
)

// Command types accepted from clients.
const (
	CmdLoadMore    = "load_more"
	CmdReload      = "reload"
	CmdSearch      = "search"
	CmdSetLanguage = "set_language"
	CmdGetState    = "get_state"
)

// Message types pushed to clients.
const (
	MsgReady         = "ready"
	MsgState         = "state"
	MsgSearchResults = "search_results"
	MsgError         = "error"
)

const (
	eventBuffer  = 64
	outBuffer    = 32
	readLimit    = 64 << 10
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// errClosed ends a session whose client closed the connection.
var errClosed = errors.New("screen: connection closed")

// Command is a client request.
type Command struct {
	Type     string `json:"type"`
	Screen   string `json:"screen,omitempty"`
	Query    string `json:"query,omitempty"`
	Language string `json:"language,omitempty"`
}

// Message is pushed to the client.
type Message struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id,omitempty"`
	Screen    string       `json:"screen,omitempty"`
	State     any          `json:"state,omitempty"`
	Query     string       `json:"query,omitempty"`
	Results   []books.Book `json:"results,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// SessionConfig holds what every session needs.
type SessionConfig struct {
	Books        BookSource
	BookLanguage books.Language
	Stations     StationSource
	StationQuery radio.Query
	Metrics      *observe.Metrics
	Logger       *slog.Logger
}

// Session serves one client connection. It runs a single event loop that
// owns both screen controllers; the connection reader, the writer and the
// fetch workers talk to it through channels.
type Session struct {
	id  string
	cfg SessionConfig
	log *slog.Logger

	events chan func()
	out    chan Message

	// Owned by the event loop.
	books        *BookList
	stations     *StationList
	searchCancel context.CancelFunc
}

// NewSession returns a session with a fresh ID.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:     id,
		cfg:    cfg,
		log:    cfg.Logger.With("session_id", id),
		events: make(chan func(), eventBuffer),
		out:    make(chan Message, outBuffer),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Run serves conn until the client disconnects or ctx is cancelled. It
// returns nil on a normal close. Loads still in flight are cancelled and
// their results discarded.
func (s *Session) Run(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(readLimit)
	g, ctx := errgroup.WithContext(ctx)

	dispatch := func(fn func()) {
		select {
		case s.events <- fn:
		case <-ctx.Done():
		}
	}
	s.books = NewBookList(ctx, BookListConfig{
		Source:   s.cfg.Books,
		Language: s.cfg.BookLanguage,
		Dispatch: dispatch,
		OnChange: func(st BooksState) { s.sendState(ctx, ScreenBooks, st) },
		Metrics:  s.cfg.Metrics,
	})
	s.stations = NewStationList(ctx, StationListConfig{
		Source:   s.cfg.Stations,
		Query:    s.cfg.StationQuery,
		Dispatch: dispatch,
		OnChange: func(st StationsState) { s.sendState(ctx, ScreenStations, st) },
		Metrics:  s.cfg.Metrics,
	})

	g.Go(func() error { return s.readPump(ctx, conn) })
	g.Go(func() error { return s.writePump(ctx, conn) })
	g.Go(func() error { return s.loop(ctx, dispatch) })

	err := g.Wait()
	if errors.Is(err, errClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Session) loop(ctx context.Context, dispatch Dispatcher) error {
	defer func() {
		s.books.Close()
		s.stations.Close()
		if s.searchCancel != nil {
			s.searchCancel()
		}
	}()

	s.send(ctx, Message{Type: MsgReady, SessionID: s.id})
	s.books.LoadMore()
	s.stations.LoadMore()

	for {
		select {
		case fn := <-s.events:
			fn()
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Session) readPump(ctx context.Context, conn *websocket.Conn) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				return errClosed
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("screen: read: %w", err)
		}
		if typ != websocket.MessageText {
			s.post(ctx, func() { s.sendError(ctx, "binary messages are not supported") })
			continue
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.post(ctx, func() { s.sendError(ctx, "invalid command: "+err.Error()) })
			continue
		}
		s.post(ctx, func() { s.handle(ctx, cmd) })
	}
}

func (s *Session) writePump(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, msg)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("screen: write: %w", err)
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("screen: ping: %w", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Session) post(ctx context.Context, fn func()) {
	select {
	case s.events <- fn:
	case <-ctx.Done():
	}
}

// handle runs on the event loop.
func (s *Session) handle(ctx context.Context, cmd Command) {
	s.log.DebugContext(ctx, "screen: command", "type", cmd.Type, "screen", cmd.Screen)

	switch cmd.Type {
	case CmdLoadMore, CmdReload, CmdGetState, CmdSetLanguage:
	case CmdSearch:
		s.search(ctx, cmd.Query)
		return
	default:
		s.sendError(ctx, fmt.Sprintf("unknown command %q", cmd.Type))
		return
	}

	switch cmd.Screen {
	case ScreenBooks:
		s.handleBooks(ctx, cmd)
	case ScreenStations:
		s.handleStations(ctx, cmd)
	default:
		s.sendError(ctx, fmt.Sprintf("unknown screen %q", cmd.Screen))
	}
}

func (s *Session) handleBooks(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case CmdLoadMore:
		s.books.LoadMore()
	case CmdReload:
		s.books.Reload()
	case CmdGetState:
		s.sendState(ctx, ScreenBooks, s.books.State())
	case CmdSetLanguage:
		lang, err := books.ParseLanguage(cmd.Language)
		if err != nil {
			s.sendError(ctx, err.Error())
			return
		}
		s.books.SetLanguage(lang)
	}
}

func (s *Session) handleStations(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case CmdLoadMore:
		s.stations.LoadMore()
	case CmdReload:
		s.stations.Reload()
	case CmdGetState:
		s.sendState(ctx, ScreenStations, s.stations.State())
	case CmdSetLanguage:
		s.stations.SetLanguage(cmd.Language)
	}
}

// search replaces any search in flight. Results arrive as a separate
// message and never touch the list state.
func (s *Session) search(ctx context.Context, query string) {
	if s.searchCancel != nil {
		s.searchCancel()
	}
	sctx, cancel := context.WithCancel(ctx)
	s.searchCancel = cancel

	go func() {
		results, err := s.books.Search(sctx, query)
		s.post(sctx, func() {
			if sctx.Err() != nil {
				return
			}
			if err != nil {
				s.sendError(ctx, "search failed: "+err.Error())
				return
			}
			s.send(ctx, Message{Type: MsgSearchResults, Query: query, Results: results})
		})
	}()
}

func (s *Session) sendState(ctx context.Context, screen string, state any) {
	s.send(ctx, Message{Type: MsgState, Screen: screen, State: state})
}

func (s *Session) sendError(ctx context.Context, msg string) {
	s.send(ctx, Message{Type: MsgError, Message: msg})
}

// send queues msg for the writer. It blocks while the client is slow.
func (s *Session) send(ctx context.Context, msg Message) {
	select {
	case s.out <- msg:
	case <-ctx.Done():
	}
}
