// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package phe

import (
	"fmt"
	"math"
	"math/big"
)

const (
	// EncodingBase is the fixed-point base B
	EncodingBase = 16
	log2Base     = 4

	// float64 significand, implicit bit included
	floatMantissaBits = 53
)

// EncodedNumber is a fixed-point value: Mantissa * B^Exponent, with the
// mantissa stored as its residue mod n.
type EncodedNumber struct {
	Mantissa *big.Int
	Exponent int
}

// Encoder maps float64 values to and from the plaintext ring Z_n.
// Mantissas are bounded by maxInt = n/3 - 1, which leaves room for
// homomorphic accumulation before a result can wrap.
type Encoder struct {
	n      *big.Int
	maxInt *big.Int
	negMin *big.Int // n - maxInt
}

// NewEncoder creates an encoder for the plaintext space of pk
func NewEncoder(pk *PublicKey) *Encoder {
	maxInt := new(big.Int).Div(pk.N, big.NewInt(3))
	maxInt.Sub(maxInt, one)
	return &Encoder{
		n:      pk.N,
		maxInt: maxInt,
		negMin: new(big.Int).Sub(pk.N, maxInt),
	}
}

// MaxInt returns the largest representable mantissa magnitude
func (e *Encoder) MaxInt() *big.Int {
	return new(big.Int).Set(e.maxInt)
}

// Encode encodes v at the exponent that preserves its full float64 precision.
func (e *Encoder) Encode(v float64) (EncodedNumber, error) {
	return e.EncodeAtMostExponent(v, math.MaxInt32)
}

// EncodeAtMostExponent encodes v at the precision exponent of v, or at
// maxExponent if that is smaller. A smaller exponent never loses precision.
func (e *Encoder) EncodeAtMostExponent(v float64, maxExponent int) (EncodedNumber, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return EncodedNumber{}, fmt.Errorf("%w: cannot encode %v", ErrEncodingOverflow, v)
	}

	exponent := precisionExponent(v)
	if exponent > maxExponent {
		exponent = maxExponent
	}
	return e.encodeAt(v, exponent)
}

// EncodeVector encodes v at one shared exponent, the precision exponent of
// its largest magnitude. Components are exact to within half a unit of
// B^exponent, so mantissas stay below B * 2^53 however small a component
// is and products of two encoded vectors never need realignment.
func (e *Encoder) EncodeVector(v []float64) ([]EncodedNumber, error) {
	maxAbs := 0.0
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: component %d is %v", ErrEncodingOverflow, i, x)
		}
		maxAbs = math.Max(maxAbs, math.Abs(x))
	}

	exponent := precisionExponent(maxAbs)
	out := make([]EncodedNumber, len(v))
	for i, x := range v {
		en, err := e.encodeAt(x, exponent)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		out[i] = en
	}
	return out, nil
}

func (e *Encoder) encodeAt(v float64, exponent int) (EncodedNumber, error) {
	scaled := new(big.Rat).SetFloat64(v)
	scaled.Mul(scaled, ratPow16(-exponent))
	return e.fromSigned(roundHalfAway(scaled), exponent)
}

// precisionExponent is the largest exponent that still represents every
// bit of v's significand.
func precisionExponent(v float64) int {
	_, binExp := math.Frexp(v)
	return floorDiv(binExp-floatMantissaBits, log2Base)
}

// EncodeInt encodes an integer exactly at exponent 0
func (e *Encoder) EncodeInt(v *big.Int) (EncodedNumber, error) {
	return e.fromSigned(new(big.Int).Set(v), 0)
}

func (e *Encoder) fromSigned(mantissa *big.Int, exponent int) (EncodedNumber, error) {
	if new(big.Int).Abs(mantissa).Cmp(e.maxInt) > 0 {
		return EncodedNumber{}, fmt.Errorf("%w: mantissa exceeds n/3 at exponent %d", ErrEncodingOverflow, exponent)
	}
	return EncodedNumber{
		Mantissa: mantissa.Mod(mantissa, e.n),
		Exponent: exponent,
	}, nil
}

// Signed returns the mantissa as a signed integer. Residues between maxInt
// and n - maxInt mean the value wrapped during accumulation.
func (e *Encoder) Signed(en EncodedNumber) (*big.Int, error) {
	m := en.Mantissa
	if m == nil || m.Sign() < 0 || m.Cmp(e.n) >= 0 {
		return nil, fmt.Errorf("%w: mantissa outside [0, n)", ErrEncodingOverflow)
	}
	switch {
	case m.Cmp(e.maxInt) <= 0:
		return new(big.Int).Set(m), nil
	case m.Cmp(e.negMin) >= 0:
		return new(big.Int).Sub(m, e.n), nil
	default:
		return nil, fmt.Errorf("%w: accumulated value wrapped around n", ErrEncodingOverflow)
	}
}

// Decode returns Mantissa * B^Exponent as the nearest float64
func (e *Encoder) Decode(en EncodedNumber) (float64, error) {
	signed, err := e.Signed(en)
	if err != nil {
		return 0, err
	}
	f := new(big.Float).SetInt(signed)
	f.SetMantExp(f, log2Base*en.Exponent)
	v, _ := f.Float64()
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: decoded value exceeds float64 range", ErrEncodingOverflow)
	}
	return v, nil
}

// DecreaseExponentTo rescales en to a smaller exponent without changing
// the value it represents.
func (e *Encoder) DecreaseExponentTo(en EncodedNumber, exponent int) (EncodedNumber, error) {
	if exponent > en.Exponent {
		return EncodedNumber{}, fmt.Errorf("%w: %d > %d", ErrExponentRange, exponent, en.Exponent)
	}
	signed, err := e.Signed(en)
	if err != nil {
		return EncodedNumber{}, err
	}
	signed.Mul(signed, intPow16(en.Exponent-exponent))
	return e.fromSigned(signed, exponent)
}

// intPow16 returns B^k for k >= 0
func intPow16(k int) *big.Int {
	return new(big.Int).Lsh(one, uint(log2Base*k))
}

// ratPow16 returns B^k for any k
func ratPow16(k int) *big.Rat {
	if k >= 0 {
		return new(big.Rat).SetInt(intPow16(k))
	}
	return new(big.Rat).SetFrac(one, intPow16(-k))
}

// roundHalfAway rounds r to the nearest integer, ties away from zero
func roundHalfAway(r *big.Rat) *big.Int {
	num, den := r.Num(), r.Denom()
	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	rem.Abs(rem).Lsh(rem, 1)
	if rem.Cmp(den) >= 0 {
		if num.Sign() < 0 {
			q.Sub(q, one)
		} else {
			q.Add(q, one)
		}
	}
	return q
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
