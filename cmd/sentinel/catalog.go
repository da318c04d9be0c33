// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/luxfi/phe"
	"github.com/luxfi/phe/config"
	"github.com/luxfi/phe/detect"
	"github.com/luxfi/phe/internal/storage"
	"github.com/luxfi/phe/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Encrypt the signature catalog into storage",
		Long: `Catalog normalizes and encrypts the signature catalog under a public key
read from --public-key or fetched from --keyholder-url, saves it to file or
Redis storage and prints its handle. Pass the handle to "run
--catalog-handle" together with the same keyholder.`,
		Args: cobra.NoArgs,
		RunE: runCatalog,
	}
	cmd.Flags().String("public-key", "", "CBOR public key file written by keygen")
	return cmd
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Storage == config.StorageMemory {
		return errors.New("catalog: memory storage does not outlive the process, use --storage file or redis")
	}

	pk, err := catalogPublicKey(cmd, cfg)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	store, err := detect.NewSignatureStore(phe.NewEncryptor(pk), catalog)
	if err != nil {
		return err
	}

	st, err := storage.Open(cfg.StorageConfig())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	handle, err := detect.SaveStore(cmd.Context(), st, store)
	if err != nil {
		return err
	}
	logger.Info("Saved encrypted catalog",
		zap.String("handle", string(handle)),
		zap.Int("signatures", store.Len()),
		zap.String("storage", cfg.Storage),
	)
	fmt.Fprintln(cmd.OutOrStdout(), handle)
	return nil
}

func catalogPublicKey(cmd *cobra.Command, cfg config.Config) (*phe.PublicKey, error) {
	if path, _ := cmd.Flags().GetString("public-key"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		pk := new(phe.PublicKey)
		if err := pk.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return pk, nil
	}
	if cfg.KeyholderURL == "" {
		return nil, errors.New("catalog: --public-key or --keyholder-url is required")
	}
	return server.NewRemoteDecryptor(cfg.KeyholderURL, nil).FetchPublicKey(cmd.Context())
}
