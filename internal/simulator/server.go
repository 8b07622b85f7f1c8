package simulator

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Server is the HTTP server for the simulated backend.
type Server struct {
	httpServer *http.Server
}

// Handler returns the routes of every simulated service on one mux.
func (b *Backend) Handler() http.Handler {
	rl := &rateLimiter{limit: b.limit, burst: b.burst, ttl: 5 * time.Minute}
	protected := func(h http.HandlerFunc) http.Handler {
		return b.requireToken(rl.Middleware(h))
	}

	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, traced(pattern, h))
	}

	handle("GET /healthz", http.HandlerFunc(b.Healthz))

	handle("POST /tasking/get-status", protected(b.Status))

	handle("POST /imagery/search/initiate", protected(b.InitiateSearch))
	handle("POST /imagery/search/retrieve", protected(b.RetrieveSearch))
	handle("POST /imagery/get-image/initiate", protected(b.InitiateImage))
	handle("POST /imagery/get-image/retrieve", protected(b.RetrieveImage))

	handle("POST /kraken/release/{mapType}/geojson/initiate", protected(b.InitiateDetection))
	handle("POST /kraken/release/{mapType}/geojson/retrieve", protected(b.RetrieveDetection))
	handle("GET /kraken/grid/{mapId}/{geometryId}/{z}/{x}/{y}/detections.geojson", protected(b.Tile))

	// Archive links are handed out without credentials.
	handle("GET /downloads/{file}", http.HandlerFunc(b.Download))

	return mux
}

// NewServer creates a server for h listening on addr.
func NewServer(addr string, h http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      h,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
