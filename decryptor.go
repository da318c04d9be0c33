// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package phe

import (
	"context"
	"fmt"
	"math/big"
)

// Decryptor recovers the plaintext residue of a ciphertext. The pipeline
// only ever sees this interface, so decryption can happen in-process,
// across threshold parties, or at a remote keyholder.
type Decryptor interface {
	Decrypt(ctx context.Context, ct *Ciphertext) (*big.Int, error)
}

// LocalDecryptor decrypts with a private key held in this process
type LocalDecryptor struct {
	sk *PrivateKey
}

// NewDecryptor creates a new decryptor from a private key
func NewDecryptor(sk *PrivateKey) *LocalDecryptor {
	return &LocalDecryptor{sk: sk}
}

// Decrypt decrypts ct to its residue in [0, n)
func (dec *LocalDecryptor) Decrypt(ctx context.Context, ct *Ciphertext) (*big.Int, error) {
	if ct == nil {
		return nil, fmt.Errorf("%w: nil ciphertext", ErrDecryption)
	}
	return dec.DecryptRaw(ct.value)
}

// DecryptRaw computes L(c^lambda mod n^2) * mu mod n with L(u) = (u-1)/n.
// Values outside Z*_{n^2} are rejected rather than decrypted to garbage.
func (dec *LocalDecryptor) DecryptRaw(c *big.Int) (*big.Int, error) {
	pk := &dec.sk.PublicKey
	if c == nil {
		return nil, fmt.Errorf("%w: nil ciphertext", ErrDecryption)
	}
	if err := pk.validateRaw(c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	u := new(big.Int).Exp(c, dec.sk.Lambda, pk.NSquared())
	// u = 1 mod n for every genuine ciphertext
	l, rem := new(big.Int).QuoRem(u.Sub(u, one), pk.N, new(big.Int))
	if rem.Sign() != 0 {
		return nil, fmt.Errorf("%w: c^lambda is not 1 mod n", ErrDecryption)
	}

	m := l.Mul(l, dec.sk.Mu)
	return m.Mod(m, pk.N), nil
}

// DecryptFloat decrypts ct with d and decodes the residue at the
// ciphertext's exponent.
func DecryptFloat(ctx context.Context, d Decryptor, encoder *Encoder, ct *Ciphertext) (float64, error) {
	m, err := d.Decrypt(ctx, ct)
	if err != nil {
		return 0, err
	}
	return encoder.Decode(EncodedNumber{Mantissa: m, Exponent: ct.exponent})
}
