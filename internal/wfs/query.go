// Package wfs fetches GeoServer WFS feature collections page by page.
//
// [Client] performs one GetFeature round-trip per page; [Loader] drives the
// pagination loop and assembles the pages into one collection.
package wfs

import (
	"net/url"
	"strconv"
	"strings"
)

// Query is the paging-independent part of a GetFeature request.
type Query struct {
	Endpoint     string // OWS endpoint, e.g. http://localhost:8080/geoserver/ows
	TypeName     string // workspace-qualified feature type
	OutputFormat string
	SRSName      string
	SortBy       string // stable key; required for consistent paging
	CQLFilter    string // optional server-side predicate
}

// Values renders the query parameters for the page [start, start+count).
func (q Query) Values(start, count int) url.Values {
	v := url.Values{}
	v.Set("service", "WFS")
	v.Set("version", "2.0.0")
	v.Set("request", "GetFeature")
	v.Set("typeNames", q.TypeName)
	v.Set("outputFormat", q.OutputFormat)
	v.Set("srsName", q.SRSName)
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	v.Set("startIndex", strconv.Itoa(start))
	v.Set("count", strconv.Itoa(count))
	if q.CQLFilter != "" {
		v.Set("cql_filter", q.CQLFilter)
	}
	return v
}

// URL returns the full request URL for one page.
func (q Query) URL(start, count int) string {
	sep := "?"
	if strings.Contains(q.Endpoint, "?") {
		sep = "&"
	}
	return q.Endpoint + sep + q.Values(start, count).Encode()
}

// WithFilter returns a copy of q carrying the given CQL predicate.
func (q Query) WithFilter(cql string) Query {
	q.CQLFilter = cql
	return q
}

// Qualify prefixes name with the workspace unless it is already qualified.
func Qualify(workspace, name string) string {
	if workspace == "" || strings.Contains(name, ":") {
		return name
	}
	return workspace + ":" + name
}
