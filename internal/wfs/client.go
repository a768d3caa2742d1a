package wfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/time/rate"
)

// TotalUnknown marks a page whose response carried no usable total.
const TotalUnknown = -1

// DefaultPageTimeout bounds a single page round-trip.
const DefaultPageTimeout = 60 * time.Second

// Page is one decoded GetFeature response.
type Page struct {
	Features   []*geojson.Feature
	StartIndex int
	Count      int // page size requested
	Total      int // server-reported match count, or TotalUnknown
}

// TotalKnown reports whether the server reported a total.
func (p *Page) TotalKnown() bool {
	return p.Total != TotalUnknown
}

// Fetcher retrieves one page of a query.
type Fetcher interface {
	FetchPage(ctx context.Context, q Query, start, count int) (*Page, error)
}

// Client fetches pages over HTTP.
type Client struct {
	HTTP        *http.Client
	PageTimeout time.Duration // 0 means DefaultPageTimeout, <0 disables
	Limiter     *rate.Limiter // optional request pacing
	Logger      *slog.Logger
}

// NewClient creates a client with the given per-page timeout and pacing.
// A pagesPerSecond of 0 disables pacing.
func NewClient(timeout time.Duration, pagesPerSecond float64, logger *slog.Logger) *Client {
	c := &Client{
		HTTP:        &http.Client{},
		PageTimeout: timeout,
		Logger:      logger,
	}
	if pagesPerSecond > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(pagesPerSecond), 1)
	}
	return c
}

// FetchPage requests the page [start, start+count) of q.
func (c *Client) FetchPage(ctx context.Context, q Query, start, count int) (*Page, error) {
	u := q.URL(start, count)

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindNetwork, URL: u, Err: err}
		}
	}

	timeout := c.PageTimeout
	if timeout == 0 {
		timeout = DefaultPageTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: u, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger().Error("error response from WFS",
			"status", resp.StatusCode, "url", u, "body", string(excerpt))
		return nil, &Error{Kind: KindNetwork, URL: u, Status: resp.StatusCode,
			Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: u, Status: resp.StatusCode, Err: err}
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, &Error{Kind: KindDecode, URL: u, Status: resp.StatusCode, Err: err}
	}

	return &Page{
		Features:   fc.Features,
		StartIndex: start,
		Count:      count,
		Total:      reportedTotal(fc.ExtraMembers),
	}, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// reportedTotal reads totalFeatures, falling back to numberMatched.
// A zero totalFeatures defers to a positive numberMatched.
func reportedTotal(members geojson.Properties) int {
	tf, tfOK := totalMember(members, "totalFeatures")
	nm, nmOK := totalMember(members, "numberMatched")
	switch {
	case tfOK && tf > 0:
		return tf
	case nmOK && nm > 0:
		return nm
	case tfOK || nmOK:
		return 0
	}
	return TotalUnknown
}

// totalMember parses a count member; GeoServer sends "unknown" when it
// skipped counting.
func totalMember(members geojson.Properties, key string) (int, bool) {
	v, ok := members[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return int(n), true
	case int:
		return n, n >= 0
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil && i >= 0
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil && i >= 0
	}
	return 0, false
}
