// Package api exposes the off-chain command exchange endpoint over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/trustrail/trustrail/pkg/observability"
	"github.com/trustrail/trustrail/pkg/offchain"
)

// maxRequestBody bounds inbound JWS payloads.
const maxRequestBody = 1 << 20

// CommandHandler processes a verified inbound command request and returns
// the HTTP status plus the signed response body, which may be nil.
type CommandHandler interface {
	ProcessInboundRequest(ctx context.Context, senderAddress string, requestBytes []byte) (int, []byte)
}

// Server hosts the off-chain API.
type Server struct {
	handler CommandHandler
	logger  *slog.Logger
	obs     *observability.Provider
	limiter *rate.Limiter
	httpSrv *http.Server
}

// Options configures a Server.
type Options struct {
	Addr          string
	Handler       CommandHandler
	Logger        *slog.Logger
	Observability *observability.Provider
	RateLimitRPS  float64
	RateBurst     int
}

// NewServer builds the router and the underlying http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		handler: opts.Handler,
		logger:  logger,
		obs:     opts.Observability,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimitRPS), opts.RateBurst),
	}

	router := mux.NewRouter()
	router.Use(s.requestIDMiddleware, s.rateLimitMiddleware)
	router.HandleFunc(offchain.CommandPath, s.handleCommand).Methods(http.MethodPost)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	s.httpSrv = &http.Server{
		Addr:              opts.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler exposes the routed handler for in-process hosting.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(offchain.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(offchain.HeaderRequestID, requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.logger.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	senderAddress := r.Header.Get(offchain.HeaderSenderAddress)
	if senderAddress == "" {
		http.Error(w, "missing "+offchain.HeaderSenderAddress+" header", http.StatusBadRequest)
		s.record(r.Context(), http.StatusBadRequest, start)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "read request body", http.StatusBadRequest)
		s.record(r.Context(), http.StatusBadRequest, start)
		return
	}

	status, response := s.handler.ProcessInboundRequest(r.Context(), senderAddress, body)
	w.Header().Set("Content-Type", offchain.ContentType)
	w.WriteHeader(status)
	if response != nil {
		if _, err := w.Write(response); err != nil {
			s.logger.Error("write response", "error", err)
		}
	}

	s.logger.Info("inbound command handled",
		"sender", senderAddress,
		"status", status,
		"duration", time.Since(start),
	)
	s.record(r.Context(), status, start)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) record(ctx context.Context, status int, start time.Time) {
	if s.obs == nil {
		return
	}
	s.obs.RecordRequest(ctx, status, time.Since(start))
}
