package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-mapping/internal/loader"
	"github.com/joeblew999/plat-mapping/internal/logger"
	"github.com/joeblew999/plat-mapping/internal/server"
	"github.com/joeblew999/plat-mapping/internal/timeline"
	"github.com/joeblew999/plat-mapping/internal/viewer"
)

// Options defines all CLI flags and env vars for the mapping server.
// Flags: --host, --port, --data-dir, --web-dir, --store, --redis-addr, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, ...
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir   string `doc:"Directory for types, features and sources" default:".data"`
	WebDir    string `doc:"Path to web/ directory" default:"web"`
	Store     string `doc:"Feature store: file or duckdb" default:"file"`
	RedisAddr string `doc:"Redis address for the shared popup cache"`
	LogLevel  string `doc:"debug, info, warn or error" default:"info"`
	LogFormat string `doc:"text or json" default:"text"`
	PageSize  int    `doc:"Features per page served to the map" default:"10000"`
}

func newServer(opts *Options) *server.Server {
	srv, err := server.New(server.Config{
		Host:      opts.Host,
		Port:      fmt.Sprintf("%d", opts.Port),
		DataDir:   opts.DataDir,
		WebDir:    opts.WebDir,
		Store:     opts.Store,
		RedisAddr: opts.RedisAddr,
		PageSize:  opts.PageSize,
		Logger:    logger.Setup(opts.LogLevel, opts.LogFormat),
	})
	if err != nil {
		log.Fatalf("Server setup failed: %v", err)
	}
	return srv
}

func main() {
	// A missing .env is fine; real env vars and flags still apply.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var httpServer *http.Server
		var srv *server.Server

		hooks.OnStart(func() {
			srv = newServer(opts)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := srv.WatchTemplates(ctx); err != nil {
				logger.L().Warn("templates_watch_disabled", "error", err)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-mapping API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s (%s store)\n", opts.DataDir, opts.Store)
			fmt.Println()
			fmt.Printf("  Pages:   %s/viewer, %s/editor\n", baseURL, baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			httpServer = &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				httpServer.Shutdown(shutdownCtx)
			}()
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server error: %v", err)
			}
			srv.Close()
		})
	})

	cli.Root().Use = "mapping"
	cli.Root().Short = "Map features with a timeline filter, feature types and clustering"
	cli.Root().Version = "0.1.0"

	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
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

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a GeoJSON FeatureCollection from data/sources into the feature store",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close()
			svc := srv.Services()
			res, err := svc.Sources.Import(cmd.Context(), args[0], svc.Features)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Imported %d feature(s) from %s, skipped %d\n", res.Imported, res.File, res.Skipped)
		}),
	}
	cli.Root().AddCommand(importCmd)

	timelineCmd := &cobra.Command{
		Use:   "timeline",
		Short: "Load every feature page from a features endpoint and print the timeline",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			url, _ := cmd.Flags().GetString("url")
			itemsQuery, _ := cmd.Flags().GetString("items-query")
			minPct, _ := cmd.Flags().GetFloat64("min")
			maxPct, _ := cmd.Flags().GetFloat64("max")
			if err := runTimeline(cmd.Context(), opts, url, itemsQuery, minPct, maxPct); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	timelineCmd.Flags().String("url", "http://localhost:8086/api/v1/features", "Features endpoint")
	timelineCmd.Flags().String("items-query", "", `JSON item filter, e.g. {"id":[4,5]}`)
	timelineCmd.Flags().Float64("min", 0, "Range start percent")
	timelineCmd.Flags().Float64("max", 100, "Range end percent")
	cli.Root().AddCommand(timelineCmd)

	cli.Run()
}

func runTimeline(ctx context.Context, opts *Options, url, itemsQuery string, minPct, maxPct float64) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var q loader.Query
	if itemsQuery != "" {
		if err := sonic.UnmarshalString(itemsQuery, &q.Items); err != nil {
			return fmt.Errorf("items-query: %w", err)
		}
	}
	l := logger.Setup(opts.LogLevel, opts.LogFormat)
	v := viewer.New(viewer.Options{
		Source:   loader.New(loader.Config{FeaturesURL: url, Logger: l}),
		Query:    q,
		Timeline: viewer.RangeTimeline,
		Logger:   l,
	})
	if err := v.Load(ctx); err != nil {
		return err
	}

	idx := v.Index()
	st := v.Snapshot()
	fmt.Printf("Layers:      %d\n", st.Layers)
	fmt.Printf("Dates:       %d\n", idx.Len())
	if !idx.Filterable() {
		fmt.Println("Timeline:    hidden (fewer than two dates)")
		return nil
	}
	fmt.Printf("Span:        %s .. %s\n", timeline.FormatDisplay(idx.Min()), timeline.FormatDisplay(idx.Max()))
	fmt.Printf("Granularity: %s\n", idx.Granularity())
	fmt.Print("Labels:     ")
	for _, lb := range idx.Labels() {
		fmt.Printf(" %s@%.0f%%", lb.Text, lb.Percent)
	}
	fmt.Println()

	rc, err := v.SetRange(minPct, maxPct)
	if err != nil {
		return err
	}
	st = v.Snapshot()
	fmt.Printf("Range:       %s .. %s\n", timeline.FormatDisplay(rc.Min), timeline.FormatDisplay(rc.Max))
	fmt.Printf("Visible:     %d of %d\n", len(st.Visible), st.Layers)
	return nil
}
