// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DetectionResult is the decrypted similarity of one live vector to one
// signature.
type DetectionResult struct {
	SignatureName string  `json:"signature"`
	Similarity    float64 `json:"similarity"`
	Alert         bool    `json:"alert"`
}

// SignatureFailure records a skipped signature comparison.
type SignatureFailure struct {
	SignatureName string `json:"signature"`
	Err           error  `json:"-"`
}

// Report is the outcome of one input line. Err is set, and Results are
// empty, when the whole line was skipped.
type Report struct {
	Line       int                `json:"line"`
	Vector     []float64          `json:"vector,omitempty"`
	Normalized []float64          `json:"-"`
	Results    []DetectionResult  `json:"results,omitempty"`
	Failures   []SignatureFailure `json:"failures,omitempty"`
	Err        *LineError         `json:"-"`
}

// Alerts returns the results that crossed the threshold.
func (r *Report) Alerts() []DetectionResult {
	var out []DetectionResult
	for _, res := range r.Results {
		if res.Alert {
			out = append(out, res)
		}
	}
	return out
}

// Sink receives one report per input line.
type Sink interface {
	Emit(ctx context.Context, r *Report) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, r *Report) error

func (f SinkFunc) Emit(ctx context.Context, r *Report) error {
	return f(ctx, r)
}

// WriterSink prints human-readable diagnostics, one line per signature and
// a distinguished alert line on a match. Malformed JSON is skipped without
// output.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink writes diagnostics to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Emit(_ context.Context, r *Report) error {
	var b strings.Builder
	switch {
	case r.Err != nil && r.Err.Kind == KindParse:
		return nil
	case r.Err != nil:
		fmt.Fprintf(&b, "[!] Error: line %d: %v\n", r.Line, r.Err)
	default:
		fmt.Fprintf(&b, "\n[>] Analyzing Vector: %s\n", FormatVector(r.Vector))
		for _, res := range r.Results {
			fmt.Fprintf(&b, "   - Similarity to %s: %.4f\n", res.SignatureName, res.Similarity)
			if res.Alert {
				fmt.Fprintf(&b, "   [!!!] ALERT: MATCH FOUND FOR %s\n", res.SignatureName)
			}
		}
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "   [!] Error: %s: %v\n", f.SignatureName, f.Err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, b.String())
	return err
}

// FormatVector renders v as [a, b, ...] without exponent notation for
// ordinary magnitudes.
func FormatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		format := byte('f')
		if a := math.Abs(x); a != 0 && (a < 1e-4 || a >= 1e21) {
			format = 'g'
		}
		parts[i] = strconv.FormatFloat(x, format, -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// LogSink reports through a structured logger. Alerts are logged at warn
// level, parse failures at debug.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink logging to logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, r *Report) error {
	if r.Err != nil {
		fields := []zap.Field{
			zap.Int("line", r.Line),
			zap.Stringer("kind", r.Err.Kind),
			zap.Error(r.Err.Err),
		}
		if r.Err.Kind == KindParse {
			s.logger.Debug("Skipping malformed record", fields...)
		} else {
			s.logger.Warn("Skipping record", fields...)
		}
		return nil
	}

	for _, res := range r.Results {
		fields := []zap.Field{
			zap.Int("line", r.Line),
			zap.String("signature", res.SignatureName),
			zap.Float64("similarity", res.Similarity),
		}
		if res.Alert {
			s.logger.Warn("Signature match", fields...)
		} else {
			s.logger.Debug("Similarity computed", fields...)
		}
	}
	for _, f := range r.Failures {
		s.logger.Warn("Signature comparison skipped",
			zap.Int("line", r.Line),
			zap.String("signature", f.SignatureName),
			zap.Error(f.Err),
		)
	}
	return nil
}

// MultiSink fans each report out to every sink.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, r *Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
