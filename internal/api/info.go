package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoview/internal/config"
)

// Version is reported by /api/v1/info and the CLI.
const Version = "0.1.0"

type InfoHandler struct {
	dataDir string
	dbOK    bool
	cfg     *config.Config
}

func NewInfoHandler(dataDir string, dbOK bool, cfg *config.Config) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, cfg: cfg}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type GeoServerBody struct {
	WMSURL    string `json:"wms_url" doc:"WMS endpoint"`
	OWSURL    string `json:"ows_url" doc:"OWS (WFS) endpoint"`
	Workspace string `json:"workspace" doc:"Default workspace"`
}

type InfoBody struct {
	Name      string        `json:"name" doc:"Service name"`
	Version   string        `json:"version" doc:"Service version"`
	DataDir   string        `json:"data_dir" doc:"Data directory path"`
	DB        bool          `json:"db" doc:"Whether the snapshot database is available"`
	GeoServer GeoServerBody `json:"geoserver" doc:"Upstream GeoServer"`
	PageSize  int           `json:"page_size" doc:"WFS page size"`
	Features  []string      `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"wfs-paging", "cql-filter", "wms-featureinfo", "datastar-viewer", "metrics"}
	if h.dbOK {
		features = append(features, "duckdb")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:    "plat-geoview",
		Version: Version,
		DataDir: h.dataDir,
		DB:      h.dbOK,
		GeoServer: GeoServerBody{
			WMSURL:    h.cfg.GeoServer.WMSURL,
			OWSURL:    h.cfg.GeoServer.OWSURL,
			Workspace: h.cfg.GeoServer.Workspace,
		},
		PageSize: h.cfg.Loader.PageSize,
		Features: features,
	}}, nil
}
