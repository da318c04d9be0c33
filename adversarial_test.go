// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
//
// Adversarial tests for the Paillier implementation.
// These tests are designed to find edge cases, race conditions, and bugs.

package phe

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// ============================================================================
// EDGE CASE TESTS - Test boundary conditions
// ============================================================================

func TestEdgeCaseMaxInt(t *testing.T) {
	sk, pk := testKeys(t)
	enc := NewEncryptor(pk)
	dec := NewDecryptor(sk)
	eval := NewEvaluator(pk)
	encoder := enc.Encoder()
	ctx := context.Background()

	for _, sign := range []int64{1, -1} {
		v := new(big.Int).Mul(encoder.MaxInt(), big.NewInt(sign))
		en, err := encoder.EncodeInt(v)
		require.NoError(t, err)
		ct, err := enc.EncryptEncoded(en)
		require.NoError(t, err)
		require.Zero(t, ct.MagnitudeBound().Cmp(encoder.MaxInt()))

		m, err := dec.Decrypt(ctx, ct)
		require.NoError(t, err)
		signed, err := encoder.Signed(EncodedNumber{Mantissa: m, Exponent: 0})
		require.NoError(t, err)
		require.Zero(t, v.Cmp(signed))

		// twice the largest magnitude is refused before it can wrap
		_, err = eval.Add(ct, ct)
		require.ErrorIs(t, err, ErrEncodingOverflow)

		// an untracked residue wraps, and lands between the decode bands
		raw, err := enc.Encrypt(en.Mantissa)
		require.NoError(t, err)
		doubled, err := eval.Add(raw, raw)
		require.NoError(t, err)
		_, err = DecryptFloat(ctx, dec, encoder, doubled)
		require.ErrorIs(t, err, ErrEncodingOverflow)
	}
}

func TestEdgeCaseZeroCiphertexts(t *testing.T) {
	sk, pk := testKeys(t)
	enc := NewEncryptor(pk)
	dec := NewDecryptor(sk)
	eval := NewEvaluator(pk)

	zero, err := enc.EncryptFloat(0)
	require.NoError(t, err)
	x, err := enc.EncryptFloat(-12.5)
	require.NoError(t, err)

	scaled, err := eval.MultiplyFloat(x, 0)
	require.NoError(t, err)
	got, err := DecryptFloat(context.Background(), dec, enc.Encoder(), scaled)
	require.NoError(t, err)
	require.Zero(t, got)

	sum, err := eval.Add(zero, x)
	require.NoError(t, err)
	got, err = DecryptFloat(context.Background(), dec, enc.Encoder(), sum)
	require.NoError(t, err)
	require.Equal(t, -12.5, got)
}

// ============================================================================
// PROPERTY-BASED TESTS - Mathematical properties must hold
// ============================================================================

func TestPropertyCommutativity(t *testing.T) {
	sk, pk := testKeys(t)
	enc := NewEncryptor(pk)
	dec := NewDecryptor(sk)
	eval := NewEvaluator(pk)
	ctx := context.Background()

	values := []float64{0.125, -3, 1e-9, 42}
	for i, a := range values {
		for _, b := range values[i:] {
			ca, err := enc.EncryptFloat(a)
			require.NoError(t, err)
			cb, err := enc.EncryptFloat(b)
			require.NoError(t, err)

			ab, err := eval.Add(ca, cb)
			require.NoError(t, err)
			ba, err := eval.Add(cb, ca)
			require.NoError(t, err)
			require.Equal(t, ab.Exponent(), ba.Exponent())

			mab, err := dec.Decrypt(ctx, ab)
			require.NoError(t, err)
			mba, err := dec.Decrypt(ctx, ba)
			require.NoError(t, err)
			require.Zero(t, mab.Cmp(mba), "%v + %v", a, b)
		}
	}
}

func TestPropertyDistributivity(t *testing.T) {
	sk, pk := testKeys(t)
	enc := NewEncryptor(pk)
	dec := NewDecryptor(sk)
	eval := NewEvaluator(pk)
	ctx := context.Background()

	a, b, k := big.NewInt(1234), big.NewInt(-77), big.NewInt(31)
	encoder := enc.Encoder()
	ea, err := encoder.EncodeInt(a)
	require.NoError(t, err)
	eb, err := encoder.EncodeInt(b)
	require.NoError(t, err)
	ca, err := enc.EncryptEncoded(ea)
	require.NoError(t, err)
	cb, err := enc.EncryptEncoded(eb)
	require.NoError(t, err)

	// k*(a+b) == k*a + k*b
	sum, err := eval.Add(ca, cb)
	require.NoError(t, err)
	left, err := eval.ScalarMultiply(sum, k)
	require.NoError(t, err)

	ka, err := eval.ScalarMultiply(ca, k)
	require.NoError(t, err)
	kb, err := eval.ScalarMultiply(cb, k)
	require.NoError(t, err)
	right, err := eval.Add(ka, kb)
	require.NoError(t, err)

	ml, err := dec.Decrypt(ctx, left)
	require.NoError(t, err)
	mr, err := dec.Decrypt(ctx, right)
	require.NoError(t, err)
	require.Zero(t, ml.Cmp(mr))

	signed, err := encoder.Signed(EncodedNumber{Mantissa: ml, Exponent: 0})
	require.NoError(t, err)
	require.Equal(t, int64(31*(1234-77)), signed.Int64())
}

// ============================================================================
// CONCURRENT ACCESS TESTS - Thread safety
// ============================================================================

func TestConcurrentEncryption(t *testing.T) {
	sk, pk := testKeys(t)
	enc := NewEncryptor(pk)
	dec := NewDecryptor(sk)
	eval := NewEvaluator(pk)

	const numGoroutines = 8
	const numOperations = 4

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*numOperations)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				value := float64(id*numOperations+j) / 4
				ct, err := enc.EncryptFloat(value)
				if err != nil {
					errs <- fmt.Errorf("goroutine %d op %d: encrypt failed: %v", id, j, err)
					continue
				}
				doubled, err := eval.MultiplyFloat(ct, 2)
				if err != nil {
					errs <- fmt.Errorf("goroutine %d op %d: multiply failed: %v", id, j, err)
					continue
				}
				got, err := DecryptFloat(context.Background(), dec, eval.Encoder(), doubled)
				if err != nil {
					errs <- fmt.Errorf("goroutine %d op %d: decrypt failed: %v", id, j, err)
					continue
				}
				if got != 2*value {
					errs <- fmt.Errorf("goroutine %d op %d: got %v, want %v", id, j, got, 2*value)
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

// ============================================================================
// STRESS TESTS - Many operations
// ============================================================================

func TestStressChainedAdditions(t *testing.T) {
	sk, pk := testKeys(t)
	enc := NewEncryptor(pk)
	dec := NewDecryptor(sk)
	eval := NewEvaluator(pk)

	acc, err := enc.EncryptFloat(0)
	require.NoError(t, err)
	want := 0.0
	for i := 1; i <= 50; i++ {
		v := float64(i) * 0.5
		ct, err := enc.EncryptFloat(v)
		require.NoError(t, err)
		acc, err = eval.Add(acc, ct)
		require.NoError(t, err)
		want += v
	}

	got, err := DecryptFloat(context.Background(), dec, eval.Encoder(), acc)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
