// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package phe

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// ========== Public Key Serialization ==========

type publicKeyData struct {
	N []byte `cbor:"1,keyasint"`
}

// MarshalBinary serializes the public key to CBOR
func (pk *PublicKey) MarshalBinary() ([]byte, error) {
	data, err := cbor.Marshal(publicKeyData{N: pk.N.Bytes()})
	if err != nil {
		return nil, fmt.Errorf("serialize public key: %w", err)
	}
	return data, nil
}

// UnmarshalBinary deserializes the public key from CBOR
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	var raw publicKeyData
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("deserialize public key: %w", err)
	}
	decoded, err := NewPublicKey(new(big.Int).SetBytes(raw.N))
	if err != nil {
		return fmt.Errorf("deserialize public key: %w", err)
	}
	*pk = *decoded
	return nil
}

// ========== Private Key Serialization ==========

type privateKeyData struct {
	N      []byte `cbor:"1,keyasint"`
	Lambda []byte `cbor:"2,keyasint"`
	Mu     []byte `cbor:"3,keyasint"`
}

// MarshalBinary serializes the private key to CBOR. The output is secret.
func (sk *PrivateKey) MarshalBinary() ([]byte, error) {
	data, err := cbor.Marshal(privateKeyData{
		N:      sk.N.Bytes(),
		Lambda: sk.Lambda.Bytes(),
		Mu:     sk.Mu.Bytes(),
	})
	if err != nil {
		return nil, fmt.Errorf("serialize private key: %w", err)
	}
	return data, nil
}

// UnmarshalBinary deserializes the private key from CBOR and checks that
// mu is the inverse of lambda mod n.
func (sk *PrivateKey) UnmarshalBinary(data []byte) error {
	var raw privateKeyData
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("deserialize private key: %w", err)
	}
	pk, err := NewPublicKey(new(big.Int).SetBytes(raw.N))
	if err != nil {
		return fmt.Errorf("deserialize private key: %w", err)
	}
	lambda := new(big.Int).SetBytes(raw.Lambda)
	mu := new(big.Int).SetBytes(raw.Mu)

	check := new(big.Int).Mul(lambda, mu)
	if check.Mod(check, pk.N).Cmp(one) != 0 {
		return fmt.Errorf("deserialize private key: %w: mu is not lambda^-1 mod n", ErrInvalidKey)
	}

	*sk = PrivateKey{
		PublicKey: *pk,
		Lambda:    lambda,
		Mu:        mu,
	}
	return nil
}

// ========== Ciphertext Serialization ==========

type ciphertextData struct {
	Value    []byte `cbor:"1,keyasint"`
	Exponent int    `cbor:"2,keyasint"`
	Tracked  bool   `cbor:"3,keyasint,omitempty"`
	Bound    []byte `cbor:"4,keyasint,omitempty"`
}

// MarshalBinary serializes the ciphertext to CBOR
func (ct *Ciphertext) MarshalBinary() ([]byte, error) {
	data, err := cbor.Marshal(ct.data())
	if err != nil {
		return nil, fmt.Errorf("serialize ciphertext: %w", err)
	}
	return data, nil
}

// UnmarshalBinary deserializes the ciphertext from CBOR. Range checks
// against a key happen when the ciphertext is used.
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	var raw ciphertextData
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("deserialize ciphertext: %w", err)
	}
	ct.fromData(raw)
	return nil
}

func (ct *Ciphertext) data() ciphertextData {
	raw := ciphertextData{
		Value:    ct.value.Bytes(),
		Exponent: ct.exponent,
	}
	if ct.bound != nil {
		raw.Tracked = true
		raw.Bound = ct.bound.Bytes()
	}
	return raw
}

func (ct *Ciphertext) fromData(raw ciphertextData) {
	ct.value = new(big.Int).SetBytes(raw.Value)
	ct.exponent = raw.Exponent
	ct.bound = nil
	if raw.Tracked {
		ct.bound = new(big.Int).SetBytes(raw.Bound)
	}
}

// ========== Encrypted Vector Serialization ==========

// MarshalBinary serializes the vector to CBOR
func (v EncryptedVector) MarshalBinary() ([]byte, error) {
	raw := make([]ciphertextData, len(v))
	for i, ct := range v {
		raw[i] = ct.data()
	}
	data, err := cbor.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("serialize vector: %w", err)
	}
	return data, nil
}

// UnmarshalBinary deserializes the vector from CBOR
func (v *EncryptedVector) UnmarshalBinary(data []byte) error {
	var raw []ciphertextData
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("deserialize vector: %w", err)
	}
	out := make(EncryptedVector, len(raw))
	for i := range raw {
		out[i] = new(Ciphertext)
		out[i].fromData(raw[i])
	}
	*v = out
	return nil
}
