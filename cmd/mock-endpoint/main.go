// mock-endpoint plays the tenant side of webhook delivery: it verifies
// signatures, logs every envelope, and can refuse the first attempts of each
// delivery so the retry ladder is observable end to end.
package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"

	"deskbridge/internal/delivery"
)

type config struct {
	Port   string `envconfig:"PORT" default:"8081"`
	Secret string `envconfig:"MOCK_ENDPOINT_SECRET" default:"whsec_mock"`

	// FailFirst refuses this many attempts of each delivery with 503 before
	// accepting, so one delivery exercises the whole ladder.
	FailFirst int `envconfig:"MOCK_FAIL_FIRST" default:"0"`
}

type server struct {
	cfg config

	mu   sync.Mutex
	seen map[string]int // delivery id -> attempts observed
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Error("mock endpoint config load failed", "err", err)
		os.Exit(1)
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(h))

	s := &server{cfg: cfg, seen: make(map[string]int)}

	router := mux.NewRouter()
	router.HandleFunc("/hook", s.handleHook).Methods(http.MethodPost)

	slog.Info("mock endpoint listening", "port", cfg.Port, "fail_first", cfg.FailFirst)
	if err := http.ListenAndServe(":"+cfg.Port, loggingMiddleware(router)); err != nil {
		slog.Error("mock endpoint server failed", "err", err)
		os.Exit(1)
	}
}

func (s *server) handleHook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get(delivery.SignatureHeader)
	if !delivery.VerifySignature(s.cfg.Secret, body, sig) {
		slog.Warn("mock endpoint bad signature", "signature", sig)
		http.Error(w, "bad signature", http.StatusUnauthorized)
		return
	}

	deliveryID := r.Header.Get(delivery.DeliveryHeader)
	s.mu.Lock()
	s.seen[deliveryID]++
	attempt := s.seen[deliveryID]
	s.mu.Unlock()

	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	_ = json.Unmarshal(body, &envelope)

	if attempt <= s.cfg.FailFirst {
		slog.Info("mock endpoint refusing attempt",
			"delivery_id", deliveryID, "attempt", attempt, "event", envelope.Type)
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}

	slog.Info("mock endpoint accepted",
		"delivery_id", deliveryID, "attempt", attempt,
		"event_id", envelope.ID, "event", envelope.Type)
	w.WriteHeader(http.StatusNoContent)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("mock endpoint request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
