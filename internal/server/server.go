package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/redis/go-redis/v9"

	"github.com/joeblew999/plat-mapping/internal/api"
	"github.com/joeblew999/plat-mapping/internal/api/editor"
	"github.com/joeblew999/plat-mapping/internal/cache"
	"github.com/joeblew999/plat-mapping/internal/db"
	"github.com/joeblew999/plat-mapping/internal/humastar"
	"github.com/joeblew999/plat-mapping/internal/logger"
	"github.com/joeblew999/plat-mapping/internal/metrics"
	"github.com/joeblew999/plat-mapping/internal/service"
	"github.com/joeblew999/plat-mapping/internal/templates"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreDuckDB = "duckdb"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // Path to web/ directory for static files and template overrides
	Store   string // StoreFile or StoreDuckDB
	// RedisAddr enables the shared popup cache; empty keeps it in process.
	RedisAddr string
	PageSize  int
	PopupTTL  time.Duration
	Logger    *slog.Logger
}

// Server is the mapping HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	links    *humastar.LinkSet
	services *api.Services
	bus      *service.EventBus
	redis    *redis.Client
	logger   *slog.Logger
}

// New creates the mapping server.
func New(cfg Config) (*Server, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.L()
	}
	if cfg.PopupTTL == 0 {
		cfg.PopupTTL = 10 * time.Minute
	}
	mux := http.NewServeMux()
	links := humastar.NewLinkSet()

	humaConfig := huma.DefaultConfig("plat-mapping API", "1.0.0")
	humaConfig.Info.Description = "Map features, feature types and the timeline preview for the public map."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humago.New(mux, humaConfig)

	bus := service.NewEventBus()
	features, err := openStore(cfg, bus, log)
	if err != nil {
		return nil, err
	}

	renderer, err := templates.New(fragmentsDir(cfg.WebDir))
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		links:   links,
		bus:     bus,
		logger:  log,
		services: &api.Services{
			Types:    service.NewTypeService(cfg.DataDir, bus, log),
			Features: features,
			Sources:  service.NewSourceService(cfg.DataDir),
			Renderer: renderer,
			PerPage:  cfg.PageSize,
			Logger:   log,
		},
	}
	s.services.Popups = s.openCache()

	s.routes()
	links.Build(humaAPI)
	s.handler = logger.AccessMiddleware(log, metrics.ObserveRequest)(mux)
	return s, nil
}

func openStore(cfg Config, bus *service.EventBus, log *slog.Logger) (service.FeatureStore, error) {
	switch cfg.Store {
	case "", StoreFile:
		return service.NewFileFeatureStore(cfg.DataDir, bus, log), nil
	case StoreDuckDB:
		conn, err := db.Get(db.Config{DataDir: cfg.DataDir, DBName: "mapping"})
		if err != nil {
			return nil, err
		}
		return db.NewFeatureStore(context.Background(), conn, bus, log)
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func (s *Server) openCache() cache.PopupCache {
	if rc := cache.OpenRedis(s.config.RedisAddr, os.Getenv("REDIS_PASS"), 0); rc != nil {
		s.redis = rc
		s.logger.Info("popup_cache", "backend", "redis", "addr", s.config.RedisAddr)
		return cache.NewRedis(rc, s.config.PopupTTL, s.logger)
	}
	return cache.NewLRU(4096, s.config.PopupTTL)
}

func fragmentsDir(webDir string) string {
	if webDir == "" {
		return ""
	}
	dir := filepath.Join(webDir, "templates", "fragments")
	if _, err := os.Stat(dir); err != nil {
		return ""
	}
	return dir
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services exposes the handler dependencies, for the CLI commands.
func (s *Server) Services() *api.Services { return s.services }

// WatchTemplates hot-reloads fragment overrides from the web directory
// until ctx is done. It is a no-op without overrides.
func (s *Server) WatchTemplates(ctx context.Context) error {
	dir := fragmentsDir(s.config.WebDir)
	if dir == "" {
		return nil
	}
	return templates.Watch(ctx, s.services.Renderer, dir, s.logger)
}

// Close closes server resources.
func (s *Server) Close() error {
	s.services.Features.Close()
	if s.redis != nil {
		s.redis.Close()
	}
	return db.Close()
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, s.services)

	store := s.config.Store
	if store == "" {
		store = StoreFile
	}
	cacheKind := "memory"
	if s.redis != nil {
		cacheKind = "redis"
	}
	api.NewInfoHandler(s.services, s.config.DataDir, store, cacheKind).RegisterRoutes(s.humaAPI)

	renderer := s.services.Renderer
	typeHandler := editor.NewTypeHandler(s.services.Types, s.services.Features, s.services.Popups, renderer)
	typeHandler.RegisterRoutes(s.humaAPI)
	editor.NewEventHandler(typeHandler, s.bus).RegisterRoutes(s.humaAPI)
	editor.NewTimelineHandler(editor.StoreSource{
		Features: s.services.Features,
		Types:    s.services.Types,
		PerPage:  s.config.PageSize,
	}, renderer, s.logger).RegisterRoutes(s.humaAPI)

	s.mux.Handle("/metrics", metrics.Handler())

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	s.mux.HandleFunc("/viewer", s.handlePage("viewer.html"))
	s.mux.HandleFunc("/editor", s.handlePage("editor.html"))
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.For(humastar.EntryPoint) {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-mapping",
		"status":  "running",
	})
}

func (s *Server) handlePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.WebDir == "" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(s.config.WebDir, "templates", name))
	}
}
