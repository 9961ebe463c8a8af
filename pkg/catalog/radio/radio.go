// Package radio is a client for the radio-browser station directory.
//
// The directory itself pages by offset; [Query.Page] is a 1-based page
// number translated to offset = (Page-1)*Limit so that it can serve as a
// paginator cursor.
package radio

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/fluentforge/pkg/catalog"
)

const (
	// DefaultBaseURL is a public radio-browser mirror.
	DefaultBaseURL = "https://at1.api.radio-browser.info"

	// DefaultLimit is the page size used when Query.Limit is zero.
	DefaultLimit = 200

	searchPath     = "/json/stations/search"
	defaultTimeout = 30 * time.Second
)

// Station is a single radio station as listed by the directory.
type Station struct {
	ChangeUUID  string `json:"changeuuid"`
	StationUUID string `json:"stationuuid"`
	ServerUUID  string `json:"serveruuid"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	URLResolved string `json:"url_resolved"`
	Homepage    string `json:"homepage"`
	Favicon     string `json:"favicon"`
	Tags        string `json:"tags"`
	Country     string `json:"country"`
	CountryCode string `json:"countrycode"`
	ISO3166_2   string `json:"iso_3166_2"`
	State       string `json:"state"`
	Language    string `json:"language"`
	LangCodes   string `json:"languagecodes"`
	Votes       int    `json:"votes"`
	Codec       string `json:"codec"`
	Bitrate     int    `json:"bitrate"`
	HLS         int    `json:"hls"`
	LastCheckOK int    `json:"lastcheckok"`

	LastChangeTime  string `json:"lastchangetime_iso8601"`
	LastCheckTime   string `json:"lastchecktime_iso8601"`
	LastCheckOKTime string `json:"lastcheckoktime_iso8601"`
}

// StreamURL returns the resolved stream URL, falling back to the listed one.
func (s Station) StreamURL() string {
	if s.URLResolved != "" {
		return s.URLResolved
	}
	return s.URL
}

// Query selects a page of stations. The zero value lists the most-voted
// working stations of every language and country, [DefaultLimit] per page.
type Query struct {
	// Page is 1-based; values below 1 are treated as 1.
	Page int

	// Limit is the page size. Default: DefaultLimit.
	Limit int

	// Language filters by exact language name (e.g. "english").
	Language string

	// CountryCode filters by exact ISO 3166-1 alpha-2 code (e.g. "GB").
	CountryCode string

	// Order is the sort field. Default: "votes".
	Order string

	// Reverse sorts descending.
	Reverse bool

	// HideBroken excludes stations whose last health check failed.
	HideBroken bool

	// HTTPSOnly excludes plain-HTTP streams.
	HTTPSOnly bool
}

// Offset returns the directory offset for the query's page.
func (q Query) Offset() int {
	return (max(q.Page, 1) - 1) * q.limit()
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

func (q Query) values() url.Values {
	v := url.Values{}
	v.Set("offset", strconv.Itoa(q.Offset()))
	v.Set("limit", strconv.Itoa(q.limit()))
	order := q.Order
	if order == "" {
		order = "votes"
	}
	v.Set("order", order)
	v.Set("reverse", strconv.FormatBool(q.Reverse))
	v.Set("hidebroken", strconv.FormatBool(q.HideBroken))
	if q.Language != "" {
		v.Set("language", q.Language)
		v.Set("languageExact", "true")
	}
	if q.CountryCode != "" {
		v.Set("countrycode", q.CountryCode)
		v.Set("countryExact", "true")
	}
	if q.HTTPSOnly {
		v.Set("is_https", "true")
	}
	return v
}

// Option is a functional option for [Client].
type Option func(*Client)

// WithBaseURL overrides the directory server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithBreaker runs every request through b.
func WithBreaker(b catalog.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// Client queries the station directory. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	breaker catalog.Breaker
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		timeout: defaultTimeout,
		breaker: catalog.NoBreaker(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Stations returns one page of stations matching q. An empty, non-nil slice
// means the page is past the end of the listing.
func (c *Client) Stations(ctx context.Context, q Query) ([]Station, error) {
	var out []Station
	u := c.baseURL + searchPath + "?" + q.values().Encode()
	if err := catalog.GetJSON(ctx, c.http, c.breaker, u, &out); err != nil {
		return nil, fmt.Errorf("radio: stations page %d: %w", max(q.Page, 1), err)
	}
	if out == nil {
		out = []Station{}
	}
	return out, nil
}
