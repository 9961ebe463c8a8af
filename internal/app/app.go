// Package app wires all FluentForge subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithMetrics, etc.). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/MrWong99/fluentforge/internal/config"
	"github.com/MrWong99/fluentforge/internal/health"
	"github.com/MrWong99/fluentforge/internal/library"
	"github.com/MrWong99/fluentforge/internal/mcptools"
	"github.com/MrWong99/fluentforge/internal/observe"
	"github.com/MrWong99/fluentforge/internal/practice"
	"github.com/MrWong99/fluentforge/internal/resilience"
	"github.com/MrWong99/fluentforge/internal/screen"
	"github.com/MrWong99/fluentforge/pkg/catalog/books"
	"github.com/MrWong99/fluentforge/pkg/catalog/radio"
	"github.com/MrWong99/fluentforge/pkg/provider/tts"
)

const readHeaderTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	log       *slog.Logger
	level     *slog.LevelVar
	metrics   *observe.Metrics
	version   string

	// Subsystems, initialised in New and torn down in Shutdown.
	store    library.Store
	books    *books.Client
	radio    *radio.Client
	practice *practice.Service
	screens  *screen.Handler
	tools    *mcptools.Server
	health   *health.Handler
	checks   []health.Checker
	handler  http.Handler
	server   *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopServing sync.Once
	stopOnce    sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a library store instead of creating one from config.
func WithStore(s library.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the logger handed to every subsystem. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithLevelVar sets the level variable that hot reloads adjust. It should
// be the one backing the logger's handler.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithVersion sets the version reported to MCP clients. Default: "dev".
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// New creates an App by wiring all subsystems together. providers may be
// nil, in which case speaking and spoken attempts are unavailable.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		version:   "dev",
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
		a.level.Set(cfg.Server.LogLevel.SlogLevel())
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init library: %w", err)
	}
	a.initCatalogs()
	if err := a.initPractice(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init practice: %w", err)
	}
	if err := a.initScreens(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init screens: %w", err)
	}
	a.tools = mcptools.New(a.practice, a.version, mcptools.WithMetrics(a.metrics))
	a.health = health.New(a.checks...)

	a.handler = a.routes()
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(a.log.Handler(), slog.LevelWarn),
	}
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore opens the PostgreSQL library when a DSN is configured and falls
// back to an in-memory store otherwise.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Library.PostgresDSN
	if dsn == "" {
		a.store = library.NewMemStore()
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	pg := library.NewPostgresStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		return err
	}
	a.store = pg
	a.checks = append(a.checks, health.Checker{Name: "library", Check: pool.Ping})
	a.log.Info("library store ready", "backend", "postgres")
	return nil
}

// initCatalogs creates the book and radio clients, each behind its own
// circuit breaker.
func (a *App) initCatalogs() {
	cat := a.cfg.Catalog

	bookBreaker := a.newBreaker("books")
	bookOpts := []books.Option{books.WithBreaker(bookBreaker)}
	if cat.Books.BaseURL != "" {
		bookOpts = append(bookOpts, books.WithBaseURL(cat.Books.BaseURL))
	}
	if cat.Books.Timeout > 0 {
		bookOpts = append(bookOpts, books.WithTimeout(cat.Books.Timeout))
	}
	a.books = books.New(bookOpts...)

	radioBreaker := a.newBreaker("radio")
	radioOpts := []radio.Option{radio.WithBreaker(radioBreaker)}
	if cat.Radio.BaseURL != "" {
		radioOpts = append(radioOpts, radio.WithBaseURL(cat.Radio.BaseURL))
	}
	if cat.Radio.Timeout > 0 {
		radioOpts = append(radioOpts, radio.WithTimeout(cat.Radio.Timeout))
	}
	a.radio = radio.New(radioOpts...)
}

// newBreaker creates a catalogue breaker that reports transitions as metrics
// and fails the readiness probe while open.
func (a *App) newBreaker(name string) *resilience.CircuitBreaker {
	cb := resilience.NewCircuitBreaker(breakerConfig(name, a.cfg.Catalog.Breaker, a.metrics, a.log))
	a.checks = append(a.checks, health.Checker{
		Name: name,
		Check: func(context.Context) error {
			if cb.State() == resilience.StateOpen {
				return resilience.ErrCircuitOpen
			}
			return nil
		},
	})
	return cb
}

func (a *App) initPractice() error {
	phrases, err := loadPhrases(a.cfg.Practice)
	if err != nil {
		return err
	}

	lang := language.Und
	if a.cfg.Practice.Language != "" {
		if lang, err = language.Parse(a.cfg.Practice.Language); err != nil {
			return fmt.Errorf("parse language: %w", err)
		}
	}

	a.practice = practice.New(a.providers.STT, a.providers.TTS, practice.NewPhraseBank(phrases),
		practice.WithThreshold(a.cfg.Practice.GoodThreshold),
		practice.WithLanguage(lang),
		practice.WithVoice(tts.VoiceProfile{
			ID:          a.cfg.Practice.Voice.VoiceID,
			Provider:    a.providers.TTSName,
			SpeedFactor: a.cfg.Practice.Voice.SpeedFactor,
		}),
		practice.WithMetrics(a.metrics),
		practice.WithProviderNames(a.providers.STTName, a.providers.TTSName),
	)
	return nil
}

func (a *App) initScreens() error {
	lang, err := books.ParseLanguage(a.cfg.Catalog.Books.Language)
	if err != nil {
		return err
	}
	radioCfg := a.cfg.Catalog.Radio
	a.screens = screen.NewHandler(screen.SessionConfig{
		Books:        a.books,
		BookLanguage: lang,
		Stations:     a.radio,
		StationQuery: radio.Query{
			Limit:       radioCfg.PageSize,
			Language:    radioCfg.Language,
			CountryCode: radioCfg.CountryCode,
			HideBroken:  radioCfg.HideBroken,
			HTTPSOnly:   radioCfg.HTTPSOnly,
		},
		Metrics: a.metrics,
		Logger:  a.log,
	}, a.cfg.Server.AllowedOrigins...)
	return nil
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	a.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	library.NewHandlers(a.store, a.log).RegisterRoutes(mux)
	practice.NewHandlers(a.practice, a.log).RegisterRoutes(mux)
	a.screens.RegisterRoutes(mux)
	screen.NewBookDetail(a.books, a.log).RegisterRoutes(mux)
	a.tools.RegisterRoutes(mux)
	return observe.Middleware(a.metrics)(mux)
}

// loadPhrases returns the configured phrase list. The phrase file wins over
// the inline list.
func loadPhrases(cfg config.PracticeConfig) ([]string, error) {
	if cfg.PhraseFile == "" {
		return cfg.Phrases, nil
	}
	return practice.ReadPhraseFile(cfg.PhraseFile)
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the root HTTP handler with all routes and middleware.
func (a *App) Handler() http.Handler { return a.handler }

// Practice returns the practice service.
func (a *App) Practice() *practice.Service { return a.practice }

// Store returns the library store.
func (a *App) Store() library.Store { return a.store }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run listens on the configured address and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is cancelled, then drains the readiness
// probe, ends WebSocket sessions and stops the server within the configured
// shutdown timeout. It returns nil after a clean stop.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.stop(stopCtx)
	})

	a.log.Info("server listening", "addr", ln.Addr().String())
	return g.Wait()
}

// stop takes the server out of rotation and closes it. Only the first call
// has an effect.
func (a *App) stop(ctx context.Context) error {
	var err error
	a.stopServing.Do(func() {
		a.health.Drain()
		if cerr := a.screens.Close(); cerr != nil {
			a.log.Warn("closing screen sessions", "err", cerr)
		}
		if serr := a.server.Shutdown(ctx); serr != nil {
			err = fmt.Errorf("app: stop server: %w", serr)
		}
	})
	return err
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable differences between old and new.
// It is meant to be passed to [config.NewWatcher].
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)

	if d.LogLevelChanged {
		a.level.Set(d.NewLogLevel.SlogLevel())
		a.log.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.ThresholdChanged {
		a.practice.SetThreshold(d.NewThreshold)
		a.log.Info("practice threshold changed", "threshold", a.practice.Threshold())
	}
	if d.PhrasesChanged {
		phrases, err := loadPhrases(new.Practice)
		if err != nil {
			a.log.Warn("keeping previous phrases", "err", err)
		} else {
			a.practice.Phrases().Replace(phrases)
			a.log.Info("practice phrases reloaded", "count", a.practice.Phrases().Len())
		}
	}
	if len(d.RestartRequired) > 0 {
		a.log.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops serving and tears down all subsystems in order. It respects
// the context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		if err := a.stop(ctx); err != nil {
			a.log.Warn("stop error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers registered so far after a failed New.
func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
}
