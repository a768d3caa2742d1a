package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-geoview/internal/api"
	"github.com/joeblew999/plat-geoview/internal/config"
	"github.com/joeblew999/plat-geoview/internal/logger"
	"github.com/joeblew999/plat-geoview/internal/server"
	"github.com/joeblew999/plat-geoview/internal/service"
	"github.com/joeblew999/plat-geoview/internal/wfs"
)

// Options defines all CLI flags and env vars for the viewer server.
// Flags: --host, --port, --data-dir, --web-dir, --config, --wms-url, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_CONFIG, ...
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir   string `doc:"Directory for visibility state and snapshots" default:".data"`
	WebDir    string `doc:"Optional web/ directory with static files and fragment overrides" default:""`
	Config    string `doc:"Layer catalog file" short:"c" default:"geoview.yaml"`
	WMSURL    string `doc:"GeoServer WMS endpoint (overrides the catalog)" default:""`
	OWSURL    string `doc:"GeoServer OWS endpoint used for WFS (overrides the catalog)" default:""`
	Workspace string `doc:"GeoServer workspace (overrides the catalog)" default:""`
	NoDB      bool   `doc:"Run without DuckDB snapshots" default:"false"`
	LogLevel  string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat string `doc:"Log format: text or json" default:"text"`
}

func initLogger(opts *Options) {
	logger.Init(logger.Config{Level: opts.LogLevel, Format: opts.LogFormat})
}

func newServer(opts *Options) (*server.Server, error) {
	return server.New(server.Config{
		Host:      opts.Host,
		Port:      fmt.Sprintf("%d", opts.Port),
		DataDir:   opts.DataDir,
		WebDir:    opts.WebDir,
		Catalog:   opts.Config,
		WMSURL:    opts.WMSURL,
		OWSURL:    opts.OWSURL,
		Workspace: opts.Workspace,
		NoDB:      opts.NoDB,
		Logger:    logger.Get(),
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server
		var httpSrv *http.Server

		hooks.OnStart(func() {
			initLogger(opts)
			var err error
			srv, err = newServer(opts)
			if err != nil {
				log.Fatalf("Server setup failed: %v", err)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-geoview server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Printf("  Catalog: %s\n", opts.Config)
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			srv.Start()
			httpSrv = &http.Server{Addr: addr, Handler: srv}
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server error: %v", err)
			}
		})

		hooks.OnStop(func() {
			if httpSrv != nil {
				httpSrv.Shutdown(context.Background())
			}
			if srv != nil {
				srv.Close()
			}
		})
	})

	cli.Root().Use = "geoview"
	cli.Root().Short = "GeoServer map viewer with paged WFS loading and CQL filtering"
	cli.Root().Version = api.Version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.NoDB = true
			srv, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// fetch subcommand: page one layer out of GeoServer into a GeoJSON file
	fetchCmd := &cobra.Command{
		Use:   "fetch <layer>",
		Short: "Load a catalog layer (or a type name) through WFS paging and write GeoJSON",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			initLogger(opts)
			cqlFilter, _ := cmd.Flags().GetString("cql")
			out, _ := cmd.Flags().GetString("out")
			if err := fetch(cmd.Context(), opts, args[0], cqlFilter, out); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	fetchCmd.Flags().String("cql", "", "CQL filter to apply")
	fetchCmd.Flags().StringP("out", "o", "", "Output file (stdout when empty)")
	cli.Root().AddCommand(fetchCmd)

	cli.Run()
}

func fetch(ctx context.Context, opts *Options, layer, cqlFilter, out string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	if opts.OWSURL != "" {
		cfg.GeoServer.OWSURL = opts.OWSURL
	}
	if opts.Workspace != "" {
		cfg.GeoServer.Workspace = opts.Workspace
	}

	q := cfg.BaseQuery(cfg.Qualify(layer), "")
	for _, l := range service.LayersFromConfig(cfg) {
		if l.ID == layer {
			q = service.QueryFor(cfg, l)
			break
		}
	}
	if cqlFilter != "" {
		q = q.WithFilter(cqlFilter)
	}

	log := logger.Get()
	client := wfs.NewClient(cfg.Loader.PageTimeout, cfg.Loader.PagesPerSecond, log)
	loader := wfs.NewLoader(client, cfg.Loader.PageSize, log)
	res, err := loader.Load(ctx, q, func(p *wfs.Page, loaded int) {
		log.Info("page loaded", "typeName", q.TypeName, "startIndex", p.StartIndex, "loaded", loaded)
	})
	if err != nil {
		return err
	}

	data, err := res.Collection.MarshalJSON()
	if err != nil {
		return err
	}
	if out == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return err
	}
	log.Info("wrote features", "file", out, "features", len(res.Collection.Features), "pages", res.Pages)
	return nil
}
