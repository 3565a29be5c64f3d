package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"swapwatch/internal/helius"
	"swapwatch/internal/metrics"
	"swapwatch/internal/service"
)

const (
	maxBodyBytes    = 5 << 20
	signatureLength = 64
)

// TransactionHandler processes one inbound transaction.
type TransactionHandler interface {
	HandleTransaction(ctx context.Context, tx helius.EnhancedTransaction) (service.Outcome, error)
}

// Pinger reports dependency health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure the HTTP server.
type Options struct {
	Addr            string
	AuthSecret      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server exposes the webhook endpoint, health and metrics.
type Server struct {
	opts     Options
	handler  TransactionHandler
	pingers  map[string]Pinger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
	mux      *http.ServeMux
}

// New wires routes. gatherer may be nil to disable /metrics.
func New(opts Options, handler TransactionHandler, pingers map[string]Pinger, m *metrics.Metrics, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		opts:     opts,
		handler:  handler,
		pingers:  pingers,
		metrics:  m,
		gatherer: gatherer,
		logger:   logger.With().Str("component", "http").Logger(),
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("/webhook", s.handleWebhook)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	if gatherer != nil {
		s.mux.Handle("/metrics", metrics.Handler(gatherer))
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.logger.Info().Msg("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

type webhookResponse struct {
	Success bool   `json:"success,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := uuid.NewString()
	log := s.logger.With().Str("request_id", requestID).Logger()
	w.Header().Set("X-Request-Id", requestID)

	code, status := s.serveWebhook(w, r, log)
	s.metrics.ObserveWebhook(code, status, time.Since(started))
	log.Debug().Int("code", code).Str("status", status).Dur("elapsed", time.Since(started)).Msg("webhook handled")
}

func (s *Server) serveWebhook(w http.ResponseWriter, r *http.Request, log zerolog.Logger) (int, string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, webhookResponse{Error: "Method not allowed"})
		return http.StatusMethodNotAllowed, "rejected"
	}
	if !s.authorized(r) {
		log.Warn().Str("remote", r.RemoteAddr).Msg("unauthorized webhook call")
		writeJSON(w, http.StatusUnauthorized, webhookResponse{Error: "Unauthorized"})
		return http.StatusUnauthorized, "rejected"
	}

	var batch []helius.EnhancedTransaction
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&batch); err != nil {
		log.Warn().Err(err).Msg("malformed webhook body")
		writeJSON(w, http.StatusBadRequest, webhookResponse{Error: "Invalid payload"})
		return http.StatusBadRequest, "rejected"
	}
	if len(batch) == 0 {
		writeJSON(w, http.StatusOK, webhookResponse{Skipped: true, Message: "Empty data"})
		return http.StatusOK, service.StatusSkipped
	}
	if len(batch) > 1 {
		log.Debug().Int("dropped", len(batch)-1).Msg("only the first transaction of a batch is processed")
	}

	tx := batch[0]
	if !validSignature(tx.Signature) {
		log.Warn().Str("signature", tx.Signature).Msg("invalid transaction signature")
		writeJSON(w, http.StatusOK, webhookResponse{Skipped: true})
		return http.StatusOK, service.StatusSkipped
	}

	outcome, err := s.handler.HandleTransaction(r.Context(), tx)
	if err != nil {
		log.Error().Err(err).Str("signature", tx.Signature).Msg("webhook processing failed")
		writeJSON(w, http.StatusInternalServerError, webhookResponse{Error: "Internal server error"})
		return http.StatusInternalServerError, "error"
	}
	if outcome.Skipped() {
		writeJSON(w, http.StatusOK, webhookResponse{Skipped: true})
		return http.StatusOK, outcome.Status
	}
	writeJSON(w, http.StatusOK, webhookResponse{Success: true})
	return http.StatusOK, outcome.Status
}

func (s *Server) authorized(r *http.Request) bool {
	if s.opts.AuthSecret == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AuthSecret)) == 1
}

// validSignature accepts an empty signature; the pipeline decides what to do with it.
func validSignature(sig string) bool {
	if sig == "" {
		return true
	}
	raw, err := base58.Decode(sig)
	return err == nil && len(raw) == signatureLength
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.pingers))
	healthy := true
	for name, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	status := "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		status = "degraded"
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
