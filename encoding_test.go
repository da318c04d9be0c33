// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package phe

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	_, pk := testKeys(t)
	encoder := NewEncoder(pk)

	values := []float64{
		0, 1, -1, 0.5, -0.5,
		1e-12, -3.14159e-7, 0.707106781186547,
		15, 123456789, -987654321,
		1.7976931348623157e+100, -2.5e-300,
	}
	for _, v := range values {
		en, err := encoder.Encode(v)
		require.NoError(t, err, "encode %v", v)
		require.True(t, en.Mantissa.Sign() >= 0 && en.Mantissa.Cmp(pk.N) < 0, "mantissa must be a residue mod n")

		got, err := encoder.Decode(en)
		require.NoError(t, err, "decode %v", v)
		require.Equal(t, v, got)
	}
}

func TestEncodePrecisionExponent(t *testing.T) {
	_, pk := testKeys(t)
	encoder := NewEncoder(pk)

	en, err := encoder.Encode(1.0)
	require.NoError(t, err)
	// frexp(1.0) = 0.5 * 2^1, lsb at 2^-52, floor(-52/4) = -13
	require.Equal(t, -13, en.Exponent)
	require.Zero(t, en.Mantissa.Cmp(new(big.Int).Lsh(one, 52)))

	en, err = encoder.EncodeAtMostExponent(1.0, -20)
	require.NoError(t, err)
	require.Equal(t, -20, en.Exponent)
}

func TestEncodeNegativeIsResidue(t *testing.T) {
	_, pk := testKeys(t)
	encoder := NewEncoder(pk)

	en, err := encoder.EncodeInt(big.NewInt(-5))
	require.NoError(t, err)
	require.Zero(t, en.Mantissa.Cmp(new(big.Int).Sub(pk.N, big.NewInt(5))))

	signed, err := encoder.Signed(en)
	require.NoError(t, err)
	require.Equal(t, int64(-5), signed.Int64())
}

func TestEncodeOverflow(t *testing.T) {
	_, pk := testKeys(t)
	encoder := NewEncoder(pk)

	t.Run("NonFinite", func(t *testing.T) {
		for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			_, err := encoder.Encode(v)
			require.ErrorIs(t, err, ErrEncodingOverflow)
		}
	})

	t.Run("TooLarge", func(t *testing.T) {
		tooBig := new(big.Int).Add(encoder.MaxInt(), one)
		_, err := encoder.EncodeInt(tooBig)
		require.ErrorIs(t, err, ErrEncodingOverflow)

		_, err = encoder.EncodeInt(encoder.MaxInt())
		require.NoError(t, err)
	})

	t.Run("WrappedAccumulation", func(t *testing.T) {
		middle := new(big.Int).Rsh(pk.N, 1)
		_, err := encoder.Decode(EncodedNumber{Mantissa: middle, Exponent: 0})
		require.ErrorIs(t, err, ErrEncodingOverflow)
	})

	t.Run("OutsideRing", func(t *testing.T) {
		_, err := encoder.Decode(EncodedNumber{Mantissa: pk.N, Exponent: 0})
		require.ErrorIs(t, err, ErrEncodingOverflow)
	})
}

func TestDecreaseExponent(t *testing.T) {
	_, pk := testKeys(t)
	encoder := NewEncoder(pk)

	en, err := encoder.Encode(-2.75)
	require.NoError(t, err)

	lower, err := encoder.DecreaseExponentTo(en, en.Exponent-3)
	require.NoError(t, err)
	require.Equal(t, en.Exponent-3, lower.Exponent)

	got, err := encoder.Decode(lower)
	require.NoError(t, err)
	require.Equal(t, -2.75, got)

	_, err = encoder.DecreaseExponentTo(en, en.Exponent+1)
	require.ErrorIs(t, err, ErrExponentRange)
}

func TestFloorDiv(t *testing.T) {
	require.Equal(t, -14, floorDiv(-53, 4))
	require.Equal(t, -13, floorDiv(-52, 4))
	require.Equal(t, 2, floorDiv(9, 4))
	require.Equal(t, 0, floorDiv(0, 4))
}

func TestEncodeVectorSharesLargestExponent(t *testing.T) {
	_, pk := testKeys(t)
	encoder := NewEncoder(pk)

	encoded, err := encoder.EncodeVector([]float64{1, 5e-324, -0.5})
	require.NoError(t, err)
	require.Len(t, encoded, 3)

	for _, en := range encoded {
		require.Equal(t, -13, en.Exponent)
	}
	// below the resolution of the largest component
	tiny, err := encoder.Decode(encoded[1])
	require.NoError(t, err)
	require.Zero(t, tiny)

	half, err := encoder.Decode(encoded[2])
	require.NoError(t, err)
	require.Equal(t, -0.5, half)

	_, err = encoder.EncodeVector([]float64{1, math.Inf(1)})
	require.ErrorIs(t, err, ErrEncodingOverflow)

	zeros, err := encoder.EncodeVector([]float64{0, 0})
	require.NoError(t, err)
	for _, en := range zeros {
		require.Zero(t, en.Mantissa.Sign())
	}
}
