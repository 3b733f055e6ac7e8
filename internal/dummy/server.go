package dummy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

type ServerConfig struct {
	Port int
	// Delay is added to every "/" response, useful to keep requests in flight.
	Delay time.Duration
}

// Server is a local benchmark target. It counts hits and records the peak
// number of requests it was serving at once.
type Server struct {
	cfg      ServerConfig
	hits     atomic.Uint64
	inflight atomic.Int64
	peak     atomic.Int64
	mux      *http.ServeMux
}

func New(cfg ServerConfig) *Server {
	s := &Server{cfg: cfg, mux: http.NewServeMux()}

	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Delay > 0 {
			time.Sleep(s.cfg.Delay)
		}
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			w.Write([]byte("OK"))
		}
	})

	// Slow Endpoint (100-300ms)
	s.mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		jitter := time.Duration(rand.Intn(200)+100) * time.Millisecond
		time.Sleep(jitter)
		w.WriteHeader(http.StatusOK)
	})

	// Error Endpoint (Random failures)
	s.mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float32() < 0.2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	s.mux.ServeHTTP(w, r)
}

// Hits is the number of requests served so far.
func (s *Server) Hits() uint64 { return s.hits.Load() }

// Peak is the highest number of requests served concurrently.
func (s *Server) Peak() int64 { return s.peak.Load() }

// ListenAndServe serves on cfg.Port until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, logger *log.Logger) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	server := &http.Server{Handler: s}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("dummy server running", "addr", "http://localhost"+addr, "endpoints", "/, /slow, /error")
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
