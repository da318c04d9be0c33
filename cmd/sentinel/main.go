// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Command sentinel scores a stream of JSON feature vectors against an
// encrypted catalog of threat signatures.
//
//	echo '{"v": [123456789, 15]}' | sentinel run
//	sentinel keygen --out ./keys
//	sentinel catalog --keyholder-url http://localhost:8449 --storage file --storage-path ./blobs
package main

import (
	"fmt"
	"os"

	"github.com/luxfi/phe/config"
	"github.com/luxfi/phe/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sentinel",
		Short: "Privacy-preserving threat signature matching",
		Long: `Sentinel keeps its threat signature catalog encrypted under a Paillier key
and scores each incoming feature vector by homomorphic cosine similarity.
Only the final similarity scores are ever decrypted.`,
		Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.AddFlags(root.PersistentFlags())

	root.AddCommand(newRunCmd())
	root.AddCommand(newKeygenCmd())
	root.AddCommand(newCatalogCmd())
	return root
}

// loadConfig resolves flags, environment and config file for cmd and builds
// the logger they describe.
func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	v, err := config.BuildViper(cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.NewConfig(v)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
