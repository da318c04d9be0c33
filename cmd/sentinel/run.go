// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/phe"
	"github.com/luxfi/phe/config"
	"github.com/luxfi/phe/detect"
	"github.com/luxfi/phe/internal/queue"
	"github.com/luxfi/phe/internal/storage"
	"github.com/luxfi/phe/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Score input records against the signature catalog",
		Long: `Run reads one JSON object per line, {"v": [x1, x2, ...]}, from stdin or a
Redis queue and prints the similarity to every catalog signature. Malformed
records are skipped.`,
		Args: cobra.NoArgs,
		RunE: runSentinel,
	}
}

func runSentinel(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := detect.NewMetrics(registry)
	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(logger, cfg.MetricsAddr, registry)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	pipeline, err := buildPipeline(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}

	sinks := detect.MultiSink{
		detect.NewWriterSink(cmd.OutOrStdout()),
		detect.NewLogSink(logger),
	}

	var src detect.Source
	switch cfg.Input {
	case config.InputRedis:
		q, err := queue.NewRedisQueue(cfg.QueueConfig(), cfg.RedisQueue)
		if err != nil {
			return fmt.Errorf("create queue: %w", err)
		}
		defer q.Close()
		src = q
		if cfg.Publish {
			sinks = append(sinks, publisher(q))
		}
	default:
		src = detect.NewLineSource(cmd.InOrStdin())
	}

	logger.Info("Sentinel starting",
		zap.String("input", cfg.Input),
		zap.String("decryptor", cfg.Decryptor),
	)
	err = pipeline.Run(ctx, src, sinks)
	if errors.Is(err, context.Canceled) {
		logger.Info("Shutting down")
		return nil
	}
	return err
}

// buildPipeline assembles the signature store and decryption authority
// selected by cfg.
func buildPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger, metrics *detect.Metrics) (*detect.Pipeline, error) {
	dcfg := detect.Config{
		Threshold: cfg.Threshold,
		Workers:   cfg.Workers,
		Logger:    logger,
		Metrics:   metrics,
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	params, err := cfg.Parameters()
	if err != nil {
		return nil, err
	}

	switch cfg.Decryptor {
	case config.DecryptorThreshold:
		logger.Info("Dealing threshold key shares",
			zap.Int("bits", params.ModulusBits()),
			zap.Int("parties", cfg.Parties),
			zap.Int("quorum", cfg.Quorum),
		)
		keys, err := phe.GenThresholdKeys(params, cfg.Parties, cfg.Quorum)
		if err != nil {
			return nil, err
		}
		dec, err := phe.NewThresholdDecryptor(keys, keys.LocalHolders())
		if err != nil {
			return nil, err
		}
		store, err := detect.NewSignatureStore(phe.NewEncryptor(keys.PublicKey), catalog)
		if err != nil {
			return nil, err
		}
		return detect.NewWithStore(store, dec, dcfg)

	case config.DecryptorRemote:
		dec := server.NewRemoteDecryptor(cfg.KeyholderURL, nil)
		pk, err := dec.FetchPublicKey(ctx)
		if err != nil {
			return nil, err
		}
		store, err := remoteStore(ctx, cfg, logger, pk, catalog)
		if err != nil {
			return nil, err
		}
		return detect.NewWithStore(store, dec, dcfg)

	default:
		return detect.New(params, catalog, dcfg)
	}
}

// remoteStore loads the catalog named by cfg.CatalogHandle, or encrypts
// catalog under pk.
func remoteStore(ctx context.Context, cfg config.Config, logger *zap.Logger, pk *phe.PublicKey, catalog []detect.Reference) (*detect.SignatureStore, error) {
	if cfg.CatalogHandle == "" {
		return detect.NewSignatureStore(phe.NewEncryptor(pk), catalog)
	}
	st, err := storage.Open(cfg.StorageConfig())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	store, err := detect.LoadStore(ctx, st, storage.Handle(cfg.CatalogHandle), pk)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded encrypted catalog",
		zap.String("handle", cfg.CatalogHandle),
		zap.Int("signatures", store.Len()),
	)
	return store, nil
}

func loadCatalog(cfg config.Config) ([]detect.Reference, error) {
	if cfg.CatalogFile == "" {
		return detect.DefaultCatalog(), nil
	}
	return detect.LoadCatalogFile(cfg.CatalogFile)
}

// publisher pushes every scored report to the queue's results list.
func publisher(q *queue.RedisQueue) detect.Sink {
	return detect.SinkFunc(func(ctx context.Context, r *detect.Report) error {
		if r.Err != nil {
			return nil
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		return q.Publish(ctx, data)
	})
}

func startMetricsServer(logger *zap.Logger, addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Metrics server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()
	return srv
}
