package main

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/luxfi/phe"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadAuthority(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	roundTrip := func(t *testing.T, pk *phe.PublicKey, dec phe.Decryptor) {
		t.Helper()
		ct, err := phe.NewEncryptor(pk).Encrypt(big.NewInt(4242))
		require.NoError(t, err)
		got, err := dec.Decrypt(ctx, ct)
		require.NoError(t, err)
		require.Equal(t, int64(4242), got.Int64())
	}

	t.Run("Generated", func(t *testing.T) {
		pk, dec, err := loadAuthority(logger, "", 512, 0, 0)
		require.NoError(t, err)
		roundTrip(t, pk, dec)
	})

	t.Run("Threshold", func(t *testing.T) {
		pk, dec, err := loadAuthority(logger, "", 512, 3, 2)
		require.NoError(t, err)
		roundTrip(t, pk, dec)
	})

	t.Run("KeyFile", func(t *testing.T) {
		params, err := phe.NewParametersFromLiteral(phe.PN512)
		require.NoError(t, err)
		sk, want, err := phe.NewKeyGenerator(params).GenKeyPair()
		require.NoError(t, err)
		data, err := sk.MarshalBinary()
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "private.key")
		require.NoError(t, os.WriteFile(path, data, 0o600))

		pk, dec, err := loadAuthority(logger, path, 0, 0, 0)
		require.NoError(t, err)
		require.True(t, pk.Equal(want))
		roundTrip(t, pk, dec)

		_, _, err = loadAuthority(logger, path, 0, 3, 2)
		require.Error(t, err)
	})

	t.Run("BadBits", func(t *testing.T) {
		_, _, err := loadAuthority(logger, "", 100, 0, 0)
		require.Error(t, err)
	})
}

func TestRunRefusesInsecureKeyBits(t *testing.T) {
	err := run([]string{"--key-bits", "512"})
	require.ErrorContains(t, err, "--allow-insecure-keys")
}
