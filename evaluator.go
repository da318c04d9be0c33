// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package phe

import (
	"context"
	"fmt"
	"math/big"

	"golang.org/x/sync/errgroup"
)

// Evaluator performs homomorphic operations on ciphertexts.
// SECURITY: This evaluator does NOT require the private key.
type Evaluator struct {
	pk      *PublicKey
	encoder *Encoder
}

// NewEvaluator creates a new evaluator for ciphertexts under pk
func NewEvaluator(pk *PublicKey) *Evaluator {
	return &Evaluator{
		pk:      pk,
		encoder: NewEncoder(pk),
	}
}

// Encoder returns the encoder used for plaintext multipliers
func (eval *Evaluator) Encoder() *Encoder {
	return eval.encoder
}

// Add returns a ciphertext of Dec(a) + Dec(b). Operands with different
// exponents are aligned to the smaller exponent first.
func (eval *Evaluator) Add(a, b *Ciphertext) (*Ciphertext, error) {
	if err := eval.pk.ValidateCiphertext(a); err != nil {
		return nil, fmt.Errorf("add lhs: %w", err)
	}
	if err := eval.pk.ValidateCiphertext(b); err != nil {
		return nil, fmt.Errorf("add rhs: %w", err)
	}

	var err error
	switch {
	case a.exponent > b.exponent:
		if a, err = eval.DecreaseExponentTo(a, b.exponent); err != nil {
			return nil, err
		}
	case b.exponent > a.exponent:
		if b, err = eval.DecreaseExponentTo(b, a.exponent); err != nil {
			return nil, err
		}
	}

	bound, err := eval.addBounds(a.bound, b.bound)
	if err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}
	return &Ciphertext{
		value:    eval.rawAdd(a.value, b.value),
		exponent: a.exponent,
		bound:    bound,
	}, nil
}

// Sum folds Add over cts
func (eval *Evaluator) Sum(cts ...*Ciphertext) (*Ciphertext, error) {
	if len(cts) == 0 {
		return nil, fmt.Errorf("sum: %w: no operands", ErrDimensionMismatch)
	}
	acc := cts[0]
	if len(cts) == 1 {
		if err := eval.pk.ValidateCiphertext(acc); err != nil {
			return nil, fmt.Errorf("sum: %w", err)
		}
		return acc.CopyNew(), nil
	}
	for i := 1; i < len(cts); i++ {
		next, err := eval.Add(acc, cts[i])
		if err != nil {
			return nil, fmt.Errorf("sum term %d: %w", i, err)
		}
		acc = next
	}
	return acc, nil
}

// ScalarMultiply returns a ciphertext of Dec(ct) * k mod n. Negative k is
// taken as its residue mod n. The exponent is unchanged. A tracked
// ciphertext whose bound times |k| exceeds MaxInt is ErrEncodingOverflow.
func (eval *Evaluator) ScalarMultiply(ct *Ciphertext, k *big.Int) (*Ciphertext, error) {
	if err := eval.pk.ValidateCiphertext(ct); err != nil {
		return nil, fmt.Errorf("scalar multiply: %w", err)
	}
	bound, err := eval.scaleBound(ct.bound, new(big.Int).Abs(k))
	if err != nil {
		return nil, fmt.Errorf("scalar multiply: %w", err)
	}
	return &Ciphertext{
		value:    eval.rawMul(ct.value, k),
		exponent: ct.exponent,
		bound:    bound,
	}, nil
}

// MultiplyEncoded multiplies ct by a fixed-point plaintext. Exponents add.
func (eval *Evaluator) MultiplyEncoded(ct *Ciphertext, en EncodedNumber) (*Ciphertext, error) {
	if err := eval.pk.ValidateCiphertext(ct); err != nil {
		return nil, fmt.Errorf("multiply: %w", err)
	}
	signed, err := eval.encoder.Signed(en)
	if err != nil {
		return nil, fmt.Errorf("multiply: %w", err)
	}
	bound, err := eval.scaleBound(ct.bound, signed.Abs(signed))
	if err != nil {
		return nil, fmt.Errorf("multiply: %w", err)
	}
	return &Ciphertext{
		value:    eval.rawMul(ct.value, en.Mantissa),
		exponent: ct.exponent + en.Exponent,
		bound:    bound,
	}, nil
}

// MultiplyFloat encodes v with the evaluator's encoder and multiplies ct by it
func (eval *Evaluator) MultiplyFloat(ct *Ciphertext, v float64) (*Ciphertext, error) {
	en, err := eval.encoder.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("encode multiplier: %w", err)
	}
	return eval.MultiplyEncoded(ct, en)
}

// DecreaseExponentTo rescales ct to a smaller exponent by multiplying the
// encrypted mantissa by B^(ct.exponent - exponent).
func (eval *Evaluator) DecreaseExponentTo(ct *Ciphertext, exponent int) (*Ciphertext, error) {
	if exponent > ct.exponent {
		return nil, fmt.Errorf("%w: %d > %d", ErrExponentRange, exponent, ct.exponent)
	}
	if exponent == ct.exponent {
		return ct, nil
	}
	factor := intPow16(ct.exponent - exponent)
	bound, err := eval.scaleBound(ct.bound, factor)
	if err != nil {
		return nil, fmt.Errorf("rescale to exponent %d: %w", exponent, err)
	}
	return &Ciphertext{
		value:    eval.rawMul(ct.value, factor),
		exponent: exponent,
		bound:    bound,
	}, nil
}

// DotProduct returns an encryption of <vec, plain>, folding Add over the
// per-dimension products. The multipliers share one exponent (see
// Encoder.EncodeVector), so the products of a shared-exponent vector add
// without realignment.
func (eval *Evaluator) DotProduct(vec EncryptedVector, plain []float64) (*Ciphertext, error) {
	encoded, err := eval.encodeAll(plain)
	if err != nil {
		return nil, err
	}
	return eval.DotProductEncoded(vec, encoded)
}

// DotProductEncoded is DotProduct with multipliers already encoded
func (eval *Evaluator) DotProductEncoded(vec EncryptedVector, plain []EncodedNumber) (*Ciphertext, error) {
	if len(vec) == 0 || len(vec) != len(plain) {
		return nil, fmt.Errorf("%w: %d ciphertexts, %d multipliers", ErrDimensionMismatch, len(vec), len(plain))
	}

	var acc *Ciphertext
	for i := range vec {
		term, err := eval.MultiplyEncoded(vec[i], plain[i])
		if err != nil {
			return nil, fmt.Errorf("dimension %d: %w", i, err)
		}
		if acc == nil {
			acc = term
			continue
		}
		if acc, err = eval.Add(acc, term); err != nil {
			return nil, fmt.Errorf("dimension %d: %w", i, err)
		}
	}
	return acc, nil
}

// ParallelDotProduct computes the per-dimension products on up to workers
// goroutines and folds them in index order once all are done.
func (eval *Evaluator) ParallelDotProduct(ctx context.Context, vec EncryptedVector, plain []float64, workers int) (*Ciphertext, error) {
	encoded, err := eval.encodeAll(plain)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 || len(vec) != len(encoded) {
		return nil, fmt.Errorf("%w: %d ciphertexts, %d multipliers", ErrDimensionMismatch, len(vec), len(encoded))
	}

	products := make([]*Ciphertext, len(vec))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range vec {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			term, err := eval.MultiplyEncoded(vec[i], encoded[i])
			if err != nil {
				return fmt.Errorf("dimension %d: %w", i, err)
			}
			products[i] = term
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return eval.Sum(products...)
}

func (eval *Evaluator) encodeAll(plain []float64) ([]EncodedNumber, error) {
	encoded, err := eval.encoder.EncodeVector(plain)
	if err != nil {
		return nil, fmt.Errorf("encode multipliers: %w", err)
	}
	return encoded, nil
}

// scaleBound returns bound * k, or ErrEncodingOverflow once it passes
// MaxInt. Untracked bounds stay untracked.
func (eval *Evaluator) scaleBound(bound, k *big.Int) (*big.Int, error) {
	if bound == nil {
		return nil, nil
	}
	return eval.checkBound(new(big.Int).Mul(bound, k))
}

func (eval *Evaluator) addBounds(a, b *big.Int) (*big.Int, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	return eval.checkBound(new(big.Int).Add(a, b))
}

func (eval *Evaluator) checkBound(bound *big.Int) (*big.Int, error) {
	if bound.Cmp(eval.encoder.maxInt) > 0 {
		return nil, fmt.Errorf("%w: |mantissa| may reach %d bits, limit is %d",
			ErrEncodingOverflow, bound.BitLen(), eval.encoder.maxInt.BitLen())
	}
	return bound, nil
}

// rawAdd multiplies two raw ciphertexts mod n^2. Callers align exponents.
func (eval *Evaluator) rawAdd(a, b *big.Int) *big.Int {
	c := new(big.Int).Mul(a, b)
	return c.Mod(c, eval.pk.NSquared())
}

// rawMul computes c^k mod n^2 for k reduced mod n. Residues in the
// negative band use (c^-1)^(n-k), which encrypts the same plaintext with a
// much shorter exponent.
func (eval *Evaluator) rawMul(c, k *big.Int) *big.Int {
	n2 := eval.pk.NSquared()
	residue := new(big.Int).Mod(k, eval.pk.N)

	if residue.Cmp(eval.encoder.negMin) >= 0 {
		inv := new(big.Int).ModInverse(c, n2)
		if inv != nil {
			return inv.Exp(inv, residue.Sub(eval.pk.N, residue), n2)
		}
	}
	return new(big.Int).Exp(c, residue, n2)
}
