package wfs

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/paulmach/orb/geojson"
)

// DefaultPageSize matches GeoServer's usual maxFeatures ceiling.
const DefaultPageSize = 100000

// Loader pages through a query until the server has nothing more to give.
type Loader struct {
	Fetcher  Fetcher
	PageSize int
	Logger   *slog.Logger
}

// NewLoader creates a loader. A non-positive pageSize uses DefaultPageSize.
func NewLoader(f Fetcher, pageSize int, logger *slog.Logger) *Loader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Loader{Fetcher: f, PageSize: pageSize, Logger: logger}
}

// Result is an assembled collection.
type Result struct {
	Collection *geojson.FeatureCollection
	Total      int // server-reported total, or TotalUnknown
	Pages      int // round-trips issued
}

// Progress is called after each page with the running feature count.
type Progress func(p *Page, loaded int)

// Pages yields pages of q in request order. Page n+1 is requested only
// after page n has been yielded. The sequence ends after a page comes back
// empty, once the accumulated count reaches the reported total, or with a
// single non-nil error.
func (l *Loader) Pages(ctx context.Context, q Query) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		offset, loaded, total := 0, 0, TotalUnknown
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			page, err := l.Fetcher.FetchPage(ctx, q, offset, l.PageSize)
			if err != nil {
				yield(nil, err)
				return
			}

			if total == TotalUnknown && page.TotalKnown() {
				total = page.Total
			}
			loaded += len(page.Features)
			offset += l.PageSize

			if !yield(page, nil) {
				return
			}

			if len(page.Features) == 0 {
				return
			}
			if total != TotalUnknown && loaded >= total {
				return
			}
		}
	}
}

// Load drains Pages and returns the assembled collection. Any page failure
// discards what was accumulated.
func (l *Loader) Load(ctx context.Context, q Query, progress Progress) (*Result, error) {
	if l.Fetcher == nil {
		return nil, errors.New("wfs: loader has no fetcher")
	}

	fc := geojson.NewFeatureCollection()
	res := &Result{Collection: fc, Total: TotalUnknown}

	for page, err := range l.Pages(ctx, q) {
		if err != nil {
			l.logger().Error("error loading WFS layer in chunks",
				"typeName", q.TypeName, "offset", res.Pages*l.PageSize, "err", err)
			return nil, err
		}
		res.Pages++
		if res.Total == TotalUnknown && page.TotalKnown() {
			res.Total = page.Total
		}
		fc.Features = append(fc.Features, page.Features...)

		l.logger().Debug("loaded WFS page",
			"typeName", q.TypeName, "startIndex", page.StartIndex,
			"features", len(page.Features), "loaded", len(fc.Features), "total", res.Total)
		if progress != nil {
			progress(page, len(fc.Features))
		}
	}

	return res, nil
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
