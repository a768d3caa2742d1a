package humastar

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"edit":"Tel Aviv","rows":[{"field":"a","value":"1","connective":"OR"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Tel Aviv", s.String("edit"))
	assert.Equal(t, "", s.String("missing"))

	var rows []struct {
		Field, Value, Connective string
	}
	require.NoError(t, s.Decode("rows", &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "OR", rows[0].Connective)

	assert.Error(t, s.Decode("edit", &rows))

	empty, err := ParseSignals(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseSignals([]byte("{"))
	assert.Error(t, err)
}

func TestPaginate(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6}

	p := Paginate(items, 2, 3)
	assert.Equal(t, PageBody[int]{Total: 7, Offset: 2, Limit: 3, Data: []int{2, 3, 4}}, p)

	p = Paginate(items, 6, 3)
	assert.Equal(t, []int{6}, p.Data)

	p = Paginate(items, 10, 3)
	assert.Equal(t, 7, p.Offset)
	assert.Empty(t, p.Data)

	p = Paginate(items, 0, 0)
	assert.Len(t, p.Data, 7)
}

func TestPageBody_PaginationLinks(t *testing.T) {
	p := PageBody[int]{Total: 25, Offset: 10, Limit: 10}
	assert.Equal(t, []string{
		`</s?offset=0&limit=10>; rel="first"`,
		`</s?offset=0&limit=10>; rel="prev"`,
		`</s?offset=20&limit=10>; rel="next"`,
		`</s?offset=20&limit=10>; rel="last"`,
	}, p.PaginationLinks("/s"))
}

func TestActionsFor(t *testing.T) {
	actions := ActionsFor("42",
		ActionDef{Rel: "geojson", Pattern: "/api/v1/sessions/%s/geojson", Method: "GET"},
		ActionDef{Rel: "cancel", Pattern: "/api/v1/sessions/%s", Method: "DELETE", Title: "Cancel load"},
	)
	require.Len(t, actions, 2)
	assert.Equal(t, `</api/v1/sessions/42/geojson>; rel="geojson"; method="GET"`, actions[0].LinkHeader())
	assert.Equal(t, `</api/v1/sessions/42>; rel="cancel"; method="DELETE"; title="Cancel load"`, actions[1].LinkHeader())
}

type thingBody struct {
	ID string `json:"id"`
}

func (thingBody) Actions() []Action {
	return []Action{{Rel: "cancel", Href: "/things/1", Method: "DELETE"}}
}

func TestLinks_Transformer(t *testing.T) {
	links := NewLinks("viewer")
	_, api := humatest.New(t, func() huma.Config {
		cfg := huma.DefaultConfig("test", "1.0.0")
		cfg.Transformers = append(cfg.Transformers, links.Transformer())
		return cfg
	}())

	huma.Get(api, "/health", func(ctx context.Context, _ *struct{}) (*struct{ Body string }, error) {
		return &struct{ Body string }{Body: "ok"}, nil
	})
	huma.Get(api, "/things", func(ctx context.Context, _ *struct{}) (*struct{ Body PageBody[int] }, error) {
		return &struct{ Body PageBody[int] }{Body: Paginate([]int{1, 2, 3}, 0, 2)}, nil
	})
	huma.Get(api, "/things/{id}", func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{ Body thingBody }, error) {
		return &struct{ Body thingBody }{Body: thingBody{ID: in.ID}}, nil
	})
	huma.Get(api, "/ui", func(ctx context.Context, _ *struct{}) (*struct{ Body string }, error) {
		return &struct{ Body string }{Body: "ui"}, nil
	}, huma.OperationTags("viewer"))
	links.Build(api)

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	got := resp.Header().Values("Link")
	assert.Contains(t, got, `</things>; rel="things"`)
	assert.NotContains(t, got, `</ui>; rel="ui"`)

	resp = api.Get("/things")
	got = resp.Header().Values("Link")
	assert.Contains(t, got, `</things/{id}>; rel="item"`)
	assert.Contains(t, got, `</things?offset=2&limit=2>; rel="next"`)

	resp = api.Get("/things/1")
	got = resp.Header().Values("Link")
	assert.Contains(t, got, `</things/1>; rel="self"`)
	assert.Contains(t, got, `</things>; rel="collection"`)
	assert.Contains(t, got, `</things/1>; rel="cancel"; method="DELETE"`)

	resp = api.Get("/ui")
	assert.Empty(t, resp.Header().Values("Link"))
}
