package server

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"time"

	"quick-share/internal/events"
	"quick-share/internal/share"
)

// BuildInfo is reported by /health and /metrics.
type BuildInfo struct {
	Version string
	Commit  string
}

// Uploader stores an upload batch.
type Uploader interface {
	Upload(ctx context.Context, files []share.File) (share.Result, error)
}

// Resolver looks batches up for the download routes.
type Resolver interface {
	ResolveCode(ctx context.Context, code string) (string, error)
	ShareLink(ctx context.Context, shareID string) (string, error)
	LinkFor(shareID, code string) string
	Descriptors(ctx context.Context, shareID, code string) ([]share.AccessDescriptor, error)
	Archive(ctx context.Context, shareID, code string) (*share.Archive, error)
}

// StorageProbe reports whether the object store bucket is reachable.
type StorageProbe interface {
	BucketExists(ctx context.Context) (bool, error)
}

type Config struct {
	Addr  string // e.g. ":8080"
	Build BuildInfo

	Uploader Uploader
	Resolver Resolver
	Events   events.Publisher

	// Limiter is applied to /api/ routes. RateWindow is reported in
	// Retry-After.
	Limiter    Limiter
	RateWindow time.Duration

	CORSOrigins    []string
	MaxUploadBytes int64 // 0 means no limit

	DB      *sql.DB
	Storage StorageProbe
}

type Server struct {
	cfg        Config
	httpServer *http.Server
	db         *sql.DB
	storage    StorageProbe
	version    string
}

func New(cfg Config) *Server {
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}

	s := &Server{cfg: cfg, db: cfg.DB, storage: cfg.Storage, version: cfg.Build.Version}

	mux := http.NewServeMux()
	mux.Handle("POST /api/files/upload", cfg.uploadHandler())
	mux.Handle("GET /api/files/download/{shareId}", cfg.downloadHandler())
	mux.Handle("GET /api/files/share-link/{shareId}", cfg.shareLinkHandler())
	mux.Handle("GET /api/files/validate-code/{code}", cfg.validateCodeHandler())

	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /ready", s.HandleReady)
	mux.HandleFunc("GET /live", s.HandleLive)
	mux.Handle("GET /metrics", PrometheusMetricsHandler(cfg.Build))

	// Wrap middleware: requestID -> logging -> security -> CORS -> gzip -> rate limit -> mux
	var handler http.Handler = mux
	if cfg.Limiter != nil {
		handler = rateLimitMiddleware(cfg.Limiter, cfg.RateWindow, handler)
	}
	handler = CompressionMiddleware(handler)
	handler = corsMiddleware(cfg.CORSOrigins, handler)
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// the event publisher.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if cerr := s.cfg.Events.Close(); err == nil {
		err = cerr
	}
	return err
}
