// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"fmt"
	"math"

	"github.com/luxfi/phe"
)

// SignatureEntry is one encrypted, unit-normalized signature.
type SignatureEntry struct {
	Name   string
	Vector phe.EncryptedVector
}

// SignatureStore is the immutable encrypted signature catalog. Building it
// needs only the public key.
type SignatureStore struct {
	pk      *phe.PublicKey
	entries []SignatureEntry
	index   map[string]int
	dim     int
}

// NewSignatureStore normalizes and encrypts every reference under the
// encryptor's public key. References must be non-empty, uniquely named and
// share one dimension.
func NewSignatureStore(enc *phe.Encryptor, catalog []Reference) (*SignatureStore, error) {
	if err := validateCatalog(catalog); err != nil {
		return nil, err
	}

	entries := make([]SignatureEntry, len(catalog))
	for i, ref := range catalog {
		vec, err := enc.EncryptVector(Normalize(ref.Vector))
		if err != nil {
			return nil, fmt.Errorf("encrypt signature %s: %w", ref.Name, err)
		}
		entries[i] = SignatureEntry{Name: ref.Name, Vector: vec}
	}
	return newStore(enc.PublicKey(), entries)
}

func validateCatalog(catalog []Reference) error {
	if len(catalog) == 0 {
		return ErrEmptyCatalog
	}
	for _, ref := range catalog {
		if ref.Name == "" {
			return fmt.Errorf("%w: empty name", ErrInvalidSignature)
		}
		for i, x := range ref.Vector {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return fmt.Errorf("%w: %s component %d is not finite", ErrInvalidSignature, ref.Name, i)
			}
		}
	}
	return nil
}

// newStore indexes entries and checks the catalog invariants shared by
// freshly encrypted and deserialized catalogs.
func newStore(pk *phe.PublicKey, entries []SignatureEntry) (*SignatureStore, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}

	s := &SignatureStore{
		pk:      pk,
		entries: entries,
		index:   make(map[string]int, len(entries)),
		dim:     len(entries[0].Vector),
	}
	for i, e := range entries {
		if _, dup := s.index[e.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSignature, e.Name)
		}
		if len(e.Vector) == 0 {
			return nil, fmt.Errorf("%w: %s has no components", ErrInvalidSignature, e.Name)
		}
		if len(e.Vector) != s.dim {
			return nil, fmt.Errorf("%w: %s has dimension %d, want %d", phe.ErrDimensionMismatch, e.Name, len(e.Vector), s.dim)
		}
		exp := e.Vector[0].Exponent()
		for j, ct := range e.Vector {
			if err := pk.ValidateCiphertext(ct); err != nil {
				return nil, fmt.Errorf("%w: %s component %d: %v", ErrInvalidSignature, e.Name, j, err)
			}
			if ct.Exponent() != exp {
				return nil, fmt.Errorf("%w: %s component %d has exponent %d, want %d", ErrInvalidSignature, e.Name, j, ct.Exponent(), exp)
			}
		}
		s.index[e.Name] = i
	}
	return s, nil
}

// PublicKey returns the key the catalog is encrypted under.
func (s *SignatureStore) PublicKey() *phe.PublicKey {
	return s.pk
}

// Dimension returns the shared signature dimension.
func (s *SignatureStore) Dimension() int {
	return s.dim
}

// Len returns the number of signatures.
func (s *SignatureStore) Len() int {
	return len(s.entries)
}

// Entries returns the signatures in catalog order. The returned slices are
// copies; the ciphertexts themselves are immutable.
func (s *SignatureStore) Entries() []SignatureEntry {
	out := make([]SignatureEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = SignatureEntry{
			Name:   e.Name,
			Vector: append(phe.EncryptedVector(nil), e.Vector...),
		}
	}
	return out
}

// Lookup returns the named signature.
func (s *SignatureStore) Lookup(name string) (SignatureEntry, bool) {
	i, ok := s.index[name]
	if !ok {
		return SignatureEntry{}, false
	}
	e := s.entries[i]
	return SignatureEntry{
		Name:   e.Name,
		Vector: append(phe.EncryptedVector(nil), e.Vector...),
	}, true
}

// Names returns the signature names in catalog order.
func (s *SignatureStore) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Name
	}
	return names
}
