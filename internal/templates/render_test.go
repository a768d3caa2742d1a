package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_BuiltIn(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)

	html, err := r.Render("empty-state", map[string]string{"Title": "No layers", "Message": "Check geoview.yaml"})
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>No layers</strong>")

	html, err = r.Render("select-option", struct {
		Value, Label string
		Selected     bool
	}{"region_name", "Region", true})
	require.NoError(t, err)
	assert.Equal(t, `<option value="region_name" selected>Region</option>`, html)

	_, err = r.Render("missing", nil)
	assert.Error(t, err)
}

func TestRenderer_EscapesValues(t *testing.T) {
	r := Must("")
	html := r.MustRender("empty-state", map[string]string{"Title": "<script>", "Message": ""})
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestRenderer_DirOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.html"),
		[]byte(`{{define "empty-state"}}custom {{.Title}}{{end}}`), 0644))

	r, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, "custom X", r.MustRender("empty-state", map[string]string{"Title": "X"}))

	// Other fragments still come from the built-in set.
	_, err = r.Render("popup", nil)
	assert.NoError(t, err)
}

func TestRenderer_EmptyDirUsesBuiltIn(t *testing.T) {
	r, err := New(t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, r.MustRender("empty-state", map[string]string{"Title": "T"}), "T")
}
