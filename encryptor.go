// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package phe

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// Encryptor encrypts plaintexts under a public key. It never needs the
// private key.
type Encryptor struct {
	pk      *PublicKey
	encoder *Encoder
	random  io.Reader
}

// NewEncryptor creates a new encryptor drawing randomizers from crypto/rand
func NewEncryptor(pk *PublicKey) *Encryptor {
	return NewEncryptorWithReader(pk, rand.Reader)
}

// NewEncryptorWithReader creates a new encryptor drawing randomizers from random
func NewEncryptorWithReader(pk *PublicKey, random io.Reader) *Encryptor {
	return &Encryptor{
		pk:      pk,
		encoder: NewEncoder(pk),
		random:  random,
	}
}

// PublicKey returns the encryption key
func (enc *Encryptor) PublicKey() *PublicKey {
	return enc.pk
}

// Encoder returns the fixed-point encoder bound to the public key
func (enc *Encryptor) Encoder() *Encoder {
	return enc.encoder
}

// Encrypt encrypts m in [0, n) at exponent 0. The result is a raw residue:
// homomorphic operations on it wrap mod n without magnitude checks.
func (enc *Encryptor) Encrypt(m *big.Int) (*Ciphertext, error) {
	c, err := enc.encryptRaw(m)
	if err != nil {
		return nil, err
	}
	return &Ciphertext{value: c, exponent: 0}, nil
}

// EncryptEncoded encrypts a fixed-point value, keeping its exponent. The
// ciphertext records |mantissa| so later operations can detect overflow.
func (enc *Encryptor) EncryptEncoded(en EncodedNumber) (*Ciphertext, error) {
	signed, err := enc.encoder.Signed(en)
	if err != nil {
		return nil, err
	}
	c, err := enc.encryptRaw(en.Mantissa)
	if err != nil {
		return nil, err
	}
	return &Ciphertext{value: c, exponent: en.Exponent, bound: signed.Abs(signed)}, nil
}

// EncryptFloat encodes v and encrypts it
func (enc *Encryptor) EncryptFloat(v float64) (*Ciphertext, error) {
	en, err := enc.encoder.Encode(v)
	if err != nil {
		return nil, err
	}
	return enc.EncryptEncoded(en)
}

// EncryptVector encrypts every component of v at the shared exponent
// chosen by Encoder.EncodeVector.
func (enc *Encryptor) EncryptVector(v []float64) (EncryptedVector, error) {
	encoded, err := enc.encoder.EncodeVector(v)
	if err != nil {
		return nil, fmt.Errorf("encode vector: %w", err)
	}

	out := make(EncryptedVector, len(v))
	for i, en := range encoded {
		ct, err := enc.EncryptEncoded(en)
		if err != nil {
			return nil, fmt.Errorf("encrypt component %d: %w", i, err)
		}
		out[i] = ct
	}
	return out, nil
}

// encryptRaw computes g^m * r^n mod n^2 with a fresh r from Z*_n.
// With g = n+1, g^m = 1 + n*m mod n^2.
func (enc *Encryptor) encryptRaw(m *big.Int) (*big.Int, error) {
	if m == nil || m.Sign() < 0 || m.Cmp(enc.pk.N) >= 0 {
		return nil, ErrMessageRange
	}

	r, err := randomUnit(enc.random, enc.pk.N)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	n2 := enc.pk.NSquared()
	gm := new(big.Int).Mul(enc.pk.N, m)
	gm.Add(gm, one)

	rn := new(big.Int).Exp(r, enc.pk.N, n2)

	c := gm.Mul(gm, rn)
	return c.Mod(c, n2), nil
}
