// Package phe implements the Paillier partially homomorphic cryptosystem
// over fixed-point encoded real numbers.
//
// Ciphertexts can be added together and multiplied by plaintext scalars
// without the private key, which is what allows a threat-signature catalog
// to stay encrypted while similarity scores against live vectors are
// computed:
//   - KeyGenerator produces the (n, g = n+1) public key and (lambda, mu) private key
//   - Encryptor performs randomized encryption under the public key
//   - Decryptor recovers plaintexts (locally, by threshold parties, or remotely)
//   - Evaluator adds ciphertexts and multiplies them by encoded scalars
//   - Encoder maps float64 values to and from the plaintext ring Z_n
//
// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
package phe

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

var (
	zero = big.NewInt(0)
	one  = big.NewInt(1)
)

// Parameters defines the Paillier parameter set
type Parameters struct {
	modulusBits int
	maxAttempts int
}

// ParametersLiteral is a user-friendly parameter specification
type ParametersLiteral struct {
	// ModulusBits is the bit length of n = p*q
	ModulusBits int
	// MaxAttempts bounds the number of prime pairs tried during key generation
	MaxAttempts int
}

// Standard parameter sets
var (
	// PN2048 is the default modulus size (~112-bit security)
	PN2048 = ParametersLiteral{
		ModulusBits: 2048,
		MaxAttempts: 16,
	}

	// PN3072 provides ~128-bit security
	PN3072 = ParametersLiteral{
		ModulusBits: 3072,
		MaxAttempts: 16,
	}

	// PN4096 trades speed for margin
	PN4096 = ParametersLiteral{
		ModulusBits: 4096,
		MaxAttempts: 16,
	}

	// PN512 is INSECURE and only meant for tests and local experiments
	PN512 = ParametersLiteral{
		ModulusBits: 512,
		MaxAttempts: 16,
	}
)

const (
	minModulusBits     = 256
	defaultMaxAttempts = 16
)

// NewParametersFromLiteral creates Parameters from a literal specification
func NewParametersFromLiteral(lit ParametersLiteral) (Parameters, error) {
	if lit.ModulusBits < minModulusBits {
		return Parameters{}, fmt.Errorf("modulus size %d below minimum %d bits", lit.ModulusBits, minModulusBits)
	}
	if lit.ModulusBits%2 != 0 {
		return Parameters{}, fmt.Errorf("modulus size %d must be even", lit.ModulusBits)
	}
	attempts := lit.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return Parameters{
		modulusBits: lit.ModulusBits,
		maxAttempts: attempts,
	}, nil
}

// ModulusBits returns the bit length of n
func (p Parameters) ModulusBits() int {
	return p.modulusBits
}

// MaxAttempts returns the key generation attempt bound
func (p Parameters) MaxAttempts() int {
	return p.maxAttempts
}

// PublicKey is the Paillier public key (n, g). g is always n+1.
type PublicKey struct {
	N *big.Int
	G *big.Int

	nSquared *big.Int
}

// NewPublicKey rebuilds a public key from its modulus
func NewPublicKey(n *big.Int) (*PublicKey, error) {
	if n == nil || n.Cmp(big.NewInt(3)) < 0 {
		return nil, fmt.Errorf("%w: modulus too small", ErrInvalidKey)
	}
	if n.Bit(0) == 0 {
		return nil, fmt.Errorf("%w: modulus is even", ErrInvalidKey)
	}
	nn := new(big.Int).Set(n)
	return &PublicKey{
		N:        nn,
		G:        new(big.Int).Add(nn, one),
		nSquared: new(big.Int).Mul(nn, nn),
	}, nil
}

// NSquared returns n^2, the ciphertext modulus
func (pk *PublicKey) NSquared() *big.Int {
	if pk.nSquared == nil {
		pk.nSquared = new(big.Int).Mul(pk.N, pk.N)
	}
	return pk.nSquared
}

// Equal reports whether both keys share the same modulus
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	return pk.N.Cmp(other.N) == 0
}

// ValidateCiphertext checks that ct lies in Z*_{n^2}.
func (pk *PublicKey) ValidateCiphertext(ct *Ciphertext) error {
	if ct == nil || ct.value == nil {
		return fmt.Errorf("%w: nil ciphertext", ErrInvalidCiphertext)
	}
	return pk.validateRaw(ct.value)
}

func (pk *PublicKey) validateRaw(c *big.Int) error {
	if c.Sign() <= 0 || c.Cmp(pk.NSquared()) >= 0 {
		return fmt.Errorf("%w: value outside (0, n^2)", ErrInvalidCiphertext)
	}
	if new(big.Int).GCD(nil, nil, c, pk.N).Cmp(one) != 0 {
		return fmt.Errorf("%w: value not coprime to n", ErrInvalidCiphertext)
	}
	return nil
}

// PrivateKey is the Paillier private key. It must stay inside the
// decryption trust boundary.
type PrivateKey struct {
	PublicKey
	// Lambda is lcm(p-1, q-1)
	Lambda *big.Int
	// Mu is lambda^-1 mod n
	Mu *big.Int
}

// Public returns the public half of the key
func (sk *PrivateKey) Public() *PublicKey {
	return &sk.PublicKey
}

// Ciphertext is an element of Z*_{n^2} together with the fixed-point
// exponent of the value it encrypts.
type Ciphertext struct {
	value    *big.Int
	exponent int

	// bound is an upper bound on |mantissa| of the encrypted value, or nil
	// for raw residues that are not tracked.
	bound *big.Int
}

// NewCiphertext wraps a raw ciphertext value. The value is copied.
func NewCiphertext(value *big.Int, exponent int) *Ciphertext {
	return &Ciphertext{
		value:    new(big.Int).Set(value),
		exponent: exponent,
	}
}

// Value returns a copy of the raw ciphertext value
func (ct *Ciphertext) Value() *big.Int {
	return new(big.Int).Set(ct.value)
}

// Exponent returns the fixed-point exponent of the encrypted value
func (ct *Ciphertext) Exponent() int {
	return ct.exponent
}

// MagnitudeBound returns the tracked upper bound on |mantissa|, or nil if
// the ciphertext is an untracked raw residue.
func (ct *Ciphertext) MagnitudeBound() *big.Int {
	if ct.bound == nil {
		return nil
	}
	return new(big.Int).Set(ct.bound)
}

// CopyNew returns a deep copy of the ciphertext
func (ct *Ciphertext) CopyNew() *Ciphertext {
	out := NewCiphertext(ct.value, ct.exponent)
	out.bound = ct.MagnitudeBound()
	return out
}

// EncryptedVector is one ciphertext per dimension
type EncryptedVector []*Ciphertext

// KeyGenerator generates Paillier key pairs
type KeyGenerator struct {
	params Parameters
	random io.Reader
}

// NewKeyGenerator creates a key generator drawing from crypto/rand
func NewKeyGenerator(params Parameters) *KeyGenerator {
	return NewKeyGeneratorWithReader(params, rand.Reader)
}

// NewKeyGeneratorWithReader creates a key generator drawing primes from random
func NewKeyGeneratorWithReader(params Parameters, random io.Reader) *KeyGenerator {
	return &KeyGenerator{
		params: params,
		random: random,
	}
}

// GenKeyPair generates a private key and the corresponding public key.
// Every failure wraps ErrKeyGeneration.
func (kg *KeyGenerator) GenKeyPair() (*PrivateKey, *PublicKey, error) {
	half := kg.params.modulusBits / 2

	for attempt := 0; attempt < kg.params.maxAttempts; attempt++ {
		p, err := rand.Prime(kg.random, half)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: generate p: %v", ErrKeyGeneration, err)
		}
		q, err := rand.Prime(kg.random, half)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: generate q: %v", ErrKeyGeneration, err)
		}
		if p.Cmp(q) == 0 {
			continue
		}

		n := new(big.Int).Mul(p, q)
		if n.BitLen() != kg.params.modulusBits {
			continue
		}

		pMinus1 := new(big.Int).Sub(p, one)
		qMinus1 := new(big.Int).Sub(q, one)
		phi := new(big.Int).Mul(pMinus1, qMinus1)
		if new(big.Int).GCD(nil, nil, n, phi).Cmp(one) != 0 {
			continue
		}

		// lambda = lcm(p-1, q-1)
		gcd := new(big.Int).GCD(nil, nil, pMinus1, qMinus1)
		lambda := new(big.Int).Div(phi, gcd)

		mu := new(big.Int).ModInverse(lambda, n)
		if mu == nil {
			return nil, nil, fmt.Errorf("%w: lambda not invertible mod n", ErrKeyGeneration)
		}

		pk, err := NewPublicKey(n)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
		}
		sk := &PrivateKey{
			PublicKey: *pk,
			Lambda:    lambda,
			Mu:        mu,
		}
		return sk, &sk.PublicKey, nil
	}

	return nil, nil, fmt.Errorf("%w: no suitable primes after %d attempts", ErrKeyGeneration, kg.params.maxAttempts)
}
