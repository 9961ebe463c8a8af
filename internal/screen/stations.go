package screen

import (
	"context"

	"github.com/MrWong99/fluentforge/internal/observe"
	"github.com/MrWong99/fluentforge/pkg/catalog/radio"
	"github.com/MrWong99/fluentforge/pkg/paginate"
)

// StationsState is the state of the radio station list screen.
type StationsState = State[radio.Station]

// StationSource is the part of [radio.Client] the station list needs.
type StationSource interface {
	Stations(ctx context.Context, q radio.Query) ([]radio.Station, error)
}

// StationListConfig configures a [StationList].
type StationListConfig struct {
	Source StationSource
	// Query is the base query; its Page is replaced by the list's cursor.
	Query    radio.Query
	Dispatch Dispatcher
	OnChange func(StationsState)
	Metrics  *observe.Metrics
}

// StationList lists radio stations page by page.
type StationList struct {
	*list[radio.Station]
	source StationSource
	query  radio.Query
}

// NewStationList returns a station list bound to ctx.
func NewStationList(ctx context.Context, cfg StationListConfig) *StationList {
	s := &StationList{source: cfg.Source, query: cfg.Query}
	s.list = newList(ctx, listConfig[radio.Station]{
		name:     "stations",
		bind:     s.bindFetch,
		dispatch: cfg.Dispatch,
		onChange: cfg.OnChange,
		metrics:  cfg.Metrics,
	})
	return s
}

// Language returns the language filter ("" for all).
func (s *StationList) Language() string {
	return s.query.Language
}

// SetLanguage filters stations by language name (e.g. "german") and
// reloads. An empty name lists every language.
func (s *StationList) SetLanguage(lang string) {
	s.query.Language = lang
	s.Reload()
}

func (s *StationList) bindFetch() paginate.FetchFunc[int64, radio.Station] {
	q := s.query
	return func(ctx context.Context, page int64) ([]radio.Station, error) {
		q.Page = int(page)
		return s.source.Stations(ctx, q)
	}
}
