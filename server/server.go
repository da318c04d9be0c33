// Package server provides the keyholder: an HTTP decryption authority that
// holds (or fronts) the private key and only ever receives ciphertexts.
//
// Endpoints:
//   - GET  /health     liveness and key size
//   - GET  /publickey  CBOR public key
//   - POST /decrypt    CBOR ciphertext in, CBOR plaintext residue out
//   - GET  /metrics    Prometheus metrics
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/luxfi/phe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	// MaxCiphertextBytes bounds a /decrypt request body.
	MaxCiphertextBytes = 64 * 1024

	cborContentType = "application/cbor"
)

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the keyholder service
type Server struct {
	pk       *phe.PublicKey
	dec      phe.Decryptor
	log      *zap.Logger
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	started  time.Time
}

// New creates a keyholder serving decryptions through dec, which must
// decrypt under pk.
func New(pk *phe.PublicKey, dec phe.Decryptor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyholder_decrypt_requests_total",
			Help: "Number of decryption requests by outcome",
		},
		[]string{"outcome"},
	)
	registry.MustRegister(requests)

	return &Server{
		pk:       pk,
		dec:      dec,
		log:      logger,
		registry: registry,
		requests: requests,
		started:  time.Now(),
	}
}

// HTTPServer wraps the handler with the configured timeouts.
func (s *Server) HTTPServer(cfg Config) *http.Server {
	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/publickey", s.handlePublicKey)
	mux.HandleFunc("/decrypt", s.handleDecrypt)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	resp, err := json.Marshal(ErrorResponse{Error: msg})
	if err != nil {
		msg := "Error marshalling JSON error response"
		s.log.Error(msg, zap.Error(err))
		resp = []byte(msg)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(resp); err != nil {
		s.log.Error("Error writing error response", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":       "ok",
		"modulus_bits": s.pk.N.BitLen(),
		"uptime":       time.Since(s.started).Round(time.Second).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	pkBytes, err := s.pk.MarshalBinary()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", cborContentType)
	w.Write(pkBytes)
}

// DecryptResponse carries a decrypted plaintext residue in [0, n).
type DecryptResponse struct {
	Plaintext []byte `cbor:"1,keyasint"`
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxCiphertextBytes))
	if err != nil {
		s.requests.WithLabelValues("bad_request").Inc()
		s.writeJSONError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	ct := new(phe.Ciphertext)
	if err := ct.UnmarshalBinary(body); err != nil {
		s.requests.WithLabelValues("bad_request").Inc()
		s.log.Debug("Could not decode ciphertext", zap.Error(err))
		s.writeJSONError(w, http.StatusBadRequest, "Could not decode ciphertext")
		return
	}

	m, err := s.dec.Decrypt(r.Context(), ct)
	if err != nil {
		if errors.Is(err, phe.ErrDecryption) || errors.Is(err, phe.ErrInvalidCiphertext) {
			s.requests.WithLabelValues("rejected").Inc()
			s.log.Warn("Rejected ciphertext", zap.Error(err))
			s.writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.requests.WithLabelValues("error").Inc()
		s.log.Error("Decryption failed", zap.Error(err))
		s.writeJSONError(w, http.StatusInternalServerError, "decryption failed")
		return
	}

	resp, err := cbor.Marshal(DecryptResponse{Plaintext: m.Bytes()})
	if err != nil {
		s.requests.WithLabelValues("error").Inc()
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("encode plaintext: %v", err))
		return
	}

	s.requests.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", cborContentType)
	w.Write(resp)
}
