package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-geoview/internal/api"
	"github.com/joeblew999/plat-geoview/internal/api/viewer"
	"github.com/joeblew999/plat-geoview/internal/config"
	"github.com/joeblew999/plat-geoview/internal/db"
	"github.com/joeblew999/plat-geoview/internal/humastar"
	"github.com/joeblew999/plat-geoview/internal/logger"
	"github.com/joeblew999/plat-geoview/internal/service"
	"github.com/joeblew999/plat-geoview/internal/templates"
	"github.com/joeblew999/plat-geoview/internal/wfs"
	"github.com/joeblew999/plat-geoview/internal/wms"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // optional web/ directory: static files and fragment overrides
	Catalog string // layer catalog file (geoview.yaml)

	// GeoServer overrides applied on top of the catalog when set.
	WMSURL    string
	OWSURL    string
	Workspace string

	NoDB   bool // run without DuckDB snapshots
	Logger *slog.Logger

	// Fetcher replaces the WFS client, for tests.
	Fetcher wfs.Fetcher
}

// Server is the geoview HTTP server.
type Server struct {
	config   Config
	log      *slog.Logger
	mux      *http.ServeMux
	humaAPI  huma.API
	links    *humastar.Links
	db       *sql.DB
	metrics  *service.Metrics
	services *api.Services
	renderer *templates.Renderer
	viewer   *viewer.Handler
}

// New creates a new geoview server.
func New(cfg Config) (*Server, error) {
	log := logger.Or(cfg.Logger)

	catalog, err := config.Load(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	if cfg.WMSURL != "" {
		catalog.GeoServer.WMSURL = cfg.WMSURL
	}
	if cfg.OWSURL != "" {
		catalog.GeoServer.OWSURL = cfg.OWSURL
	}
	if cfg.Workspace != "" {
		catalog.GeoServer.Workspace = cfg.Workspace
	}

	mux := http.NewServeMux()

	// Link headers are generated from the registered routes; viewer SSE
	// endpoints get none.
	links := humastar.NewLinks(viewer.Tag)

	humaConfig := huma.DefaultConfig("plat-geoview API", api.Version)
	humaConfig.Info.Description = "GeoServer map viewer: paged WFS loading, CQL filtering and feature info."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humago.New(mux, humaConfig)

	fragmentsDir := ""
	if cfg.WebDir != "" {
		fragmentsDir = filepath.Join(cfg.WebDir, "templates", "fragments")
	}
	renderer, err := templates.New(fragmentsDir)
	if err != nil {
		return nil, err
	}

	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = wfs.NewClient(catalog.Loader.PageTimeout, catalog.Loader.PagesPerSecond, log.With("component", "wfs"))
	}
	metrics := service.NewMetrics()
	services := api.NewServices(catalog, api.Deps{
		DataDir: cfg.DataDir,
		Fetcher: fetcher,
		WMS:     wms.NewClient(catalog.Loader.PageTimeout, log.With("component", "wms")),
		Metrics: metrics,
		Logger:  log,
	})

	s := &Server{
		config:   cfg,
		log:      log,
		mux:      mux,
		humaAPI:  humaAPI,
		links:    links,
		metrics:  metrics,
		services: services,
		renderer: renderer,
	}

	if !cfg.NoDB {
		conn, err := db.Get(db.Config{DataDir: cfg.DataDir, DBName: db.DefaultName})
		if err != nil {
			log.Warn("snapshots disabled", "error", err)
		} else {
			s.db = conn
			service.NewSnapshotService(conn, log.With("component", "snapshots")).Attach(services.Sessions)
		}
	}

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Services returns the wired services.
func (s *Server) Services() *api.Services {
	return s.services
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Start loads the preload layers in the background.
func (s *Server) Start() {
	started, err := s.services.Preload()
	if err != nil {
		s.log.Error("preload failed", "error", err)
		return
	}
	for _, sess := range started {
		s.log.Info("preloading layer", "layer", sess.LayerID, "typeName", sess.TypeName, "session", sess.ID)
	}
}

// Close stops every load and closes the database.
func (s *Server) Close() error {
	s.services.Sessions.Close()
	if s.db != nil {
		return db.Close()
	}
	return nil
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.DataDir, s.db != nil, s.services.Config).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)

	// Viewer SSE routes using Huma + Datastar SDK
	s.viewer = viewer.RegisterRoutes(s.humaAPI, s.services, s.renderer)

	s.links.Build(s.humaAPI)

	s.mux.Handle("/metrics", s.metrics.Handler())

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	// Page routes
	s.mux.HandleFunc("/viewer", s.viewer.Page)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-geoview",
		"status":  "running",
		"viewer":  "/viewer",
		"docs":    "/docs",
	})
}
