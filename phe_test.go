// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package phe

import (
	"bytes"
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	testKeysOnce sync.Once
	testSK       *PrivateKey
	testPK       *PublicKey
	testKeysErr  error
)

// testKeys returns one 512-bit key pair shared by the package tests
func testKeys(t *testing.T) (*PrivateKey, *PublicKey) {
	t.Helper()
	testKeysOnce.Do(func() {
		params, err := NewParametersFromLiteral(PN512)
		if err != nil {
			testKeysErr = err
			return
		}
		testSK, testPK, testKeysErr = NewKeyGenerator(params).GenKeyPair()
	})
	require.NoError(t, testKeysErr)
	return testSK, testPK
}

func TestParameters(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		params, err := NewParametersFromLiteral(ParametersLiteral{ModulusBits: 1024})
		require.NoError(t, err)
		require.Equal(t, 1024, params.ModulusBits())
		require.Equal(t, defaultMaxAttempts, params.MaxAttempts())
	})

	t.Run("TooSmall", func(t *testing.T) {
		_, err := NewParametersFromLiteral(ParametersLiteral{ModulusBits: 128})
		require.Error(t, err)
	})

	t.Run("Odd", func(t *testing.T) {
		_, err := NewParametersFromLiteral(ParametersLiteral{ModulusBits: 513})
		require.Error(t, err)
	})
}

func TestKeyGeneration(t *testing.T) {
	sk, pk := testKeys(t)

	require.Equal(t, 512, pk.N.BitLen())
	require.Equal(t, uint(1), pk.N.Bit(0), "n must be odd")
	require.Zero(t, pk.G.Cmp(new(big.Int).Add(pk.N, one)), "g must be n+1")
	require.Zero(t, pk.NSquared().Cmp(new(big.Int).Mul(pk.N, pk.N)))

	check := new(big.Int).Mul(sk.Lambda, sk.Mu)
	require.Zero(t, check.Mod(check, pk.N).Cmp(one), "mu must invert lambda mod n")
	require.True(t, sk.Public().Equal(pk))
}

func TestKeyGenerationFailure(t *testing.T) {
	params, err := NewParametersFromLiteral(PN512)
	require.NoError(t, err)

	// An exhausted entropy source must surface as a key generation error.
	_, _, err = NewKeyGeneratorWithReader(params, bytes.NewReader(nil)).GenKeyPair()
	require.ErrorIs(t, err, ErrKeyGeneration)
}

func TestNewPublicKey(t *testing.T) {
	_, err := NewPublicKey(big.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewPublicKey(big.NewInt(1 << 20))
	require.ErrorIs(t, err, ErrInvalidKey)

	pk, err := NewPublicKey(big.NewInt(15))
	require.NoError(t, err)
	require.Equal(t, int64(16), pk.G.Int64())
	require.Equal(t, int64(225), pk.NSquared().Int64())
}

func TestEncryptDecrypt(t *testing.T) {
	sk, pk := testKeys(t)
	enc := NewEncryptor(pk)
	dec := NewDecryptor(sk)
	ctx := context.Background()

	nMinus1 := new(big.Int).Sub(pk.N, one)
	random, err := rand.Int(rand.Reader, pk.N)
	require.NoError(t, err)

	for _, m := range []*big.Int{big.NewInt(0), big.NewInt(1), big.NewInt(42), random, nMinus1} {
		ct, err := enc.Encrypt(m)
		require.NoError(t, err)
		require.NoError(t, pk.ValidateCiphertext(ct))

		got, err := dec.Decrypt(ctx, ct)
		require.NoError(t, err)
		require.Zero(t, m.Cmp(got), "decrypt(encrypt(%s))", m)
	}
}

func TestEncryptionIsProbabilistic(t *testing.T) {
	sk, pk := testKeys(t)
	enc := NewEncryptor(pk)
	dec := NewDecryptor(sk)

	m := big.NewInt(1234567)
	ct1, err := enc.Encrypt(m)
	require.NoError(t, err)
	ct2, err := enc.Encrypt(m)
	require.NoError(t, err)

	require.NotZero(t, ct1.Value().Cmp(ct2.Value()), "same plaintext must yield different ciphertexts")

	for _, ct := range []*Ciphertext{ct1, ct2} {
		got, err := dec.Decrypt(context.Background(), ct)
		require.NoError(t, err)
		require.Zero(t, m.Cmp(got))
	}
}

func TestEncryptRange(t *testing.T) {
	_, pk := testKeys(t)
	enc := NewEncryptor(pk)

	_, err := enc.Encrypt(big.NewInt(-1))
	require.ErrorIs(t, err, ErrMessageRange)

	_, err = enc.Encrypt(pk.N)
	require.ErrorIs(t, err, ErrMessageRange)
}

func TestDecryptRejectsForgedCiphertexts(t *testing.T) {
	sk, pk := testKeys(t)
	dec := NewDecryptor(sk)

	forged := map[string]*big.Int{
		"Zero":         big.NewInt(0),
		"Negative":     big.NewInt(-5),
		"Modulus":      pk.N,
		"MultipleOfN":  new(big.Int).Mul(pk.N, big.NewInt(7)),
		"NSquared":     pk.NSquared(),
		"AboveNSquare": new(big.Int).Add(pk.NSquared(), one),
	}
	for name, c := range forged {
		t.Run(name, func(t *testing.T) {
			_, err := dec.DecryptRaw(c)
			require.ErrorIs(t, err, ErrDecryption)
		})
	}

	t.Run("Nil", func(t *testing.T) {
		_, err := dec.Decrypt(context.Background(), nil)
		require.ErrorIs(t, err, ErrDecryption)
	})
}

func TestDecryptFloat(t *testing.T) {
	sk, pk := testKeys(t)
	enc := NewEncryptor(pk)

	ct, err := enc.EncryptFloat(-3.25)
	require.NoError(t, err)

	got, err := DecryptFloat(context.Background(), NewDecryptor(sk), enc.Encoder(), ct)
	require.NoError(t, err)
	require.Equal(t, -3.25, got)
}

func TestEncryptVectorSharesExponent(t *testing.T) {
	sk, pk := testKeys(t)
	enc := NewEncryptor(pk)
	dec := NewDecryptor(sk)

	values := []float64{0.9999999999999999, 1.2e-7, -42.5}
	vec, err := enc.EncryptVector(values)
	require.NoError(t, err)
	require.Len(t, vec, len(values))

	exp := vec[0].Exponent()
	for i, ct := range vec {
		require.Equal(t, exp, ct.Exponent(), "component %d", i)
		got, err := DecryptFloat(context.Background(), dec, enc.Encoder(), ct)
		require.NoError(t, err)
		// exact to half a unit of 16^exponent of the largest component
		require.InDelta(t, values[i], got, 1e-14)
	}
}
