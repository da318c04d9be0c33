// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/luxfi/phe"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultThreshold is the similarity above which a signature alerts.
const DefaultThreshold = 0.99

// State is the pipeline life-cycle state.
type State int32

const (
	StateInitializing State = iota
	StateReady
	StateProcessing
	StateDrained
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	case StateDrained:
		return "drained"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config tunes a Pipeline. The zero value is usable.
type Config struct {
	// Threshold defaults to DefaultThreshold. A result alerts when its
	// similarity is strictly greater.
	Threshold float64
	// Workers > 1 scores signatures of one record concurrently. Records are
	// still processed one at a time and results keep catalog order.
	Workers int
	Logger  *zap.Logger
	Metrics *Metrics
}

// Pipeline scores live vectors against a SignatureStore. The store and keys
// are read-only after construction.
type Pipeline struct {
	store   *SignatureStore
	eval    *phe.Evaluator
	dec     phe.Decryptor
	cfg     Config
	log     *zap.Logger
	state   atomic.Int32
	running atomic.Bool
}

// New generates a key pair, encrypts catalog under the public key and
// decrypts with the colocated private key. Key generation failure is fatal
// and wraps phe.ErrKeyGeneration.
func New(params phe.Parameters, catalog []Reference, cfg Config) (*Pipeline, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("Generating Paillier key pair", zap.Int("bits", params.ModulusBits()))
	sk, pk, err := phe.NewKeyGenerator(params).GenKeyPair()
	if err != nil {
		return nil, err
	}

	logger.Info("Encrypting signature catalog", zap.Int("signatures", len(catalog)))
	store, err := NewSignatureStore(phe.NewEncryptor(pk), catalog)
	if err != nil {
		return nil, err
	}
	logger.Info("Catalog encrypted, private key stays with the local decryptor")

	return NewWithStore(store, phe.NewDecryptor(sk), cfg)
}

// NewWithStore builds a pipeline over an existing encrypted catalog. dec
// must decrypt under store.PublicKey(); it may be local, threshold or
// remote.
func NewWithStore(store *SignatureStore, dec phe.Decryptor, cfg Config) (*Pipeline, error) {
	if store == nil {
		return nil, ErrEmptyCatalog
	}
	if dec == nil {
		return nil, errors.New("nil decryptor")
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if math.IsNaN(cfg.Threshold) {
		return nil, fmt.Errorf("invalid threshold %v", cfg.Threshold)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	p := &Pipeline{
		store: store,
		eval:  phe.NewEvaluator(store.PublicKey()),
		dec:   dec,
		cfg:   cfg,
		log:   cfg.Logger,
	}
	p.state.Store(int32(StateReady))
	return p, nil
}

// State returns the current life-cycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Store returns the signature catalog.
func (p *Pipeline) Store() *SignatureStore {
	return p.store
}

// Threshold returns the alert threshold in use.
func (p *Pipeline) Threshold() float64 {
	return p.cfg.Threshold
}

// Run reads records from src until it returns io.EOF, emitting one report
// per record to sink. Recoverable line failures are reported and skipped;
// Run returns early only on context cancellation, a source read failure
// or a sink failure. The pipeline is Drained after a clean end of input.
func (p *Pipeline) Run(ctx context.Context, src Source, sink Sink) error {
	if p.State() == StateDrained {
		return ErrPipelineDrained
	}
	if !p.running.CompareAndSwap(false, true) {
		return ErrPipelineBusy
	}
	defer p.running.Store(false)

	p.log.Info("Listening for input",
		zap.Int("signatures", p.store.Len()),
		zap.Int("dimension", p.store.Dimension()),
		zap.Float64("threshold", p.cfg.Threshold),
	)

	for lineNo := 1; ; lineNo++ {
		raw, err := src.Next(ctx)
		if err != nil {
			var le *LineError
			switch {
			case errors.Is(err, io.EOF):
				p.state.Store(int32(StateDrained))
				p.log.Info("Input drained", zap.Int("records", lineNo-1))
				return nil
			case errors.As(err, &le):
				if err := p.skip(ctx, sink, lineNo, le); err != nil {
					return err
				}
				continue
			default:
				return err
			}
		}

		p.state.Store(int32(StateProcessing))
		report, err := p.ProcessLine(ctx, raw)
		p.state.Store(int32(StateReady))

		if err != nil {
			var le *LineError
			if !errors.As(err, &le) {
				return err
			}
			if err := p.skip(ctx, sink, lineNo, le); err != nil {
				return err
			}
			continue
		}

		report.Line = lineNo
		if err := sink.Emit(ctx, report); err != nil {
			return fmt.Errorf("emit report: %w", err)
		}
	}
}

func (p *Pipeline) skip(ctx context.Context, sink Sink, lineNo int, le *LineError) error {
	p.cfg.Metrics.line(le.Kind.String())
	if err := sink.Emit(ctx, &Report{Line: lineNo, Err: le}); err != nil {
		return fmt.Errorf("emit report: %w", err)
	}
	return nil
}

// ProcessLine parses one raw record and scores it. Recoverable failures
// are returned as *LineError.
func (p *Pipeline) ProcessLine(ctx context.Context, raw []byte) (*Report, error) {
	rec, err := ParseRecord(raw)
	if err != nil {
		return nil, err
	}
	return p.Detect(ctx, rec.Vector)
}

// Detect normalizes live and scores it against every signature, in
// catalog order. A failed comparison is recorded in Report.Failures and
// does not affect the others. The returned error is a *LineError for
// unusable vectors, or the context error.
func (p *Pipeline) Detect(ctx context.Context, live []float64) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(live) != p.store.Dimension() {
		return nil, lineError(KindSchema, "%w: vector has %d components, signatures have %d",
			phe.ErrDimensionMismatch, len(live), p.store.Dimension())
	}
	for i, x := range live {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, lineError(KindEncoding, "%w: component %d is not finite", phe.ErrEncodingOverflow, i)
		}
	}

	start := time.Now()
	defer p.cfg.Metrics.observe(start)

	normalized := Normalize(live)
	entries := p.store.entries
	sims := make([]float64, len(entries))
	errs := make([]error, len(entries))

	if p.cfg.Workers > 1 && len(entries) > 1 {
		var g errgroup.Group
		g.SetLimit(p.cfg.Workers)
		for i := range entries {
			g.Go(func() error {
				sims[i], errs[i] = p.similarity(ctx, entries[i], normalized)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range entries {
			sims[i], errs[i] = p.similarity(ctx, entries[i], normalized)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		Vector:     append([]float64(nil), live...),
		Normalized: normalized,
	}
	for i, e := range entries {
		if errs[i] != nil {
			kind := classify(errs[i])
			p.cfg.Metrics.computation(e.Name, kind.String())
			report.Failures = append(report.Failures, SignatureFailure{
				SignatureName: e.Name,
				Err:           &LineError{Kind: kind, Err: errs[i]},
			})
			continue
		}

		res := DetectionResult{
			SignatureName: e.Name,
			Similarity:    sims[i],
			Alert:         sims[i] > p.cfg.Threshold,
		}
		p.cfg.Metrics.computation(e.Name, "ok")
		if res.Alert {
			p.cfg.Metrics.alert(e.Name)
		}
		report.Results = append(report.Results, res)
	}

	outcome := "ok"
	if len(report.Results) == 0 {
		outcome = "failed"
	}
	p.cfg.Metrics.line(outcome)
	return report, nil
}

// similarity decrypts the encrypted dot product of a signature with the
// normalized live vector.
func (p *Pipeline) similarity(ctx context.Context, e SignatureEntry, normalized []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ct, err := p.eval.DotProduct(e.Vector, normalized)
	if err != nil {
		return 0, fmt.Errorf("dot product: %w", err)
	}
	sim, err := phe.DecryptFloat(ctx, p.dec, p.eval.Encoder(), ct)
	if err != nil {
		return 0, fmt.Errorf("decrypt similarity: %w", err)
	}
	return sim, nil
}
