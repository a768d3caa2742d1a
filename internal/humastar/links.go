package humastar

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// Links holds RFC 8288 Link headers derived from the registered OpenAPI
// paths. Create it before the API so its Transformer can be installed in
// the huma.Config, then call Build once all routes are registered.
type Links struct {
	mu     sync.RWMutex
	byPath map[string][]string
	skip   []string
}

// NewLinks creates an empty link set. Operations tagged with any of
// skipTags (e.g. Datastar SSE endpoints) get no links.
func NewLinks(skipTags ...string) *Links {
	return &Links{byPath: map[string][]string{}, skip: skipTags}
}

// Build walks the OpenAPI spec and generates the hypermedia links.
func (l *Links) Build(api huma.API) {
	oapi := api.OpenAPI()
	m := map[string][]string{}
	add := func(from, to, rel string) {
		val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
		for _, existing := range m[from] {
			if existing == val {
				return
			}
		}
		m[from] = append(m[from], val)
	}

	var collections, items []string
	for p, pi := range oapi.Paths {
		if l.skipped(primaryTags(pi)) {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}

	// Item -> parent collection.
	for _, item := range items {
		parent := path.Dir(item)
		if _, ok := oapi.Paths[parent]; ok {
			add(item, parent, "collection")
			add(item, parent, "up")
		}
		// Sub-resources such as /sessions/{id}/geojson point at their item.
		if _, ok := oapi.Paths[parent]; ok && strings.Contains(parent, "{") {
			add(parent, item, lastSegment(item))
		}
	}

	// Collection -> item template.
	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item) == coll {
				add(coll, item, "item")
			}
		}
	}

	// Entry point links to every collection.
	for _, coll := range collections {
		if coll == "/health" {
			continue
		}
		add("/health", coll, lastSegment(coll))
		add(coll, "/health", "up")
	}
	add("/health", "/openapi.json", "describedby")
	add("/health", "/openapi.json", "service-desc")
	add("/health", "/docs", "service-doc")
	if _, ok := oapi.Paths["/api/v1/query"]; ok {
		add("/health", "/api/v1/query", "search")
	}

	l.mu.Lock()
	l.byPath = m
	l.mu.Unlock()
}

// For returns the Link headers generated for an operation path.
func (l *Links) For(p string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byPath[p]
}

// Transformer returns a Huma Transformer that injects the generated links,
// a self link for item paths, pagination links from [Pager] bodies and
// action links from [Actor] bodies.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil || l.skipped(op.Tags) {
			return v, nil
		}

		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}

		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}

		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}

		return v, nil
	}
}

func (l *Links) skipped(tags []string) bool {
	for _, t := range tags {
		for _, s := range l.skip {
			if t == s {
				return true
			}
		}
	}
	return false
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete} {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}
