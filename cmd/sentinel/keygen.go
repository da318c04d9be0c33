// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/luxfi/phe"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	publicKeyFile  = "public.key"
	privateKeyFile = "private.key"
)

func newKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a Paillier key pair",
		Long: `Keygen writes public.key and private.key (CBOR) to the output directory.
The private key is written with mode 0600 and is meant for phe-keyholder.`,
		Args: cobra.NoArgs,
		RunE: runKeygen,
	}
	cmd.Flags().String("out", ".", "output directory")
	return cmd
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	out, _ := cmd.Flags().GetString("out")
	params, err := cfg.Parameters()
	if err != nil {
		return err
	}

	logger.Info("Generating Paillier key pair", zap.Int("bits", params.ModulusBits()))
	sk, pk, err := phe.NewKeyGenerator(params).GenKeyPair()
	if err != nil {
		return err
	}

	pkBytes, err := pk.MarshalBinary()
	if err != nil {
		return err
	}
	skBytes, err := sk.MarshalBinary()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	pkPath := filepath.Join(out, publicKeyFile)
	if err := os.WriteFile(pkPath, pkBytes, 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}
	skPath := filepath.Join(out, privateKeyFile)
	if err := os.WriteFile(skPath, skBytes, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Public key:  %s\nPrivate key: %s\n", pkPath, skPath)
	return nil
}
