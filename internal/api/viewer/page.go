package viewer

import (
	"encoding/json"
	"net/http"

	"github.com/joeblew999/plat-geoview/internal/cql"
)

// PageConfig is handed to the page script as JSON.
type PageConfig struct {
	Center  []float64 `json:"center"`
	Zoom    float64   `json:"zoom"`
	WMSURL  string    `json:"wmsUrl"`
	SRSName string    `json:"srsName"`
}

type PageData struct {
	Title   string
	Signals string
	Config  PageConfig
}

// Page serves the viewer page with its initial signals.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	signals, err := json.Marshal(map[string]any{
		sigRows:    []cql.Row{cql.NewRow()},
		sigLayer:   h.defaultLayer(),
		sigEdit:    "",
		sigError:   "",
		sigSuccess: "",
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cfg := h.svc.Config
	html, err := h.Renderer.Render("viewer-page", PageData{
		Title:   "GeoServer Viewer",
		Signals: string(signals),
		Config: PageConfig{
			Center:  cfg.View.Center,
			Zoom:    cfg.View.Zoom,
			WMSURL:  cfg.GeoServer.WMSURL,
			SRSName: cfg.Loader.SRSName,
		},
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}
