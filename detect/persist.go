// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/luxfi/phe"
	"github.com/luxfi/phe/internal/storage"
)

type manifest struct {
	PublicKey []byte          `cbor:"1,keyasint"`
	Entries   []manifestEntry `cbor:"2,keyasint"`
}

type manifestEntry struct {
	Name   string `cbor:"1,keyasint"`
	Vector []byte `cbor:"2,keyasint"`
}

// MarshalBinary serializes the public key and encrypted catalog to CBOR.
func (s *SignatureStore) MarshalBinary() ([]byte, error) {
	pkData, err := s.pk.MarshalBinary()
	if err != nil {
		return nil, err
	}
	m := manifest{
		PublicKey: pkData,
		Entries:   make([]manifestEntry, len(s.entries)),
	}
	for i, e := range s.entries {
		vec, err := e.Vector.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("signature %s: %w", e.Name, err)
		}
		m.Entries[i] = manifestEntry{Name: e.Name, Vector: vec}
	}
	data, err := cbor.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("serialize catalog: %w", err)
	}
	return data, nil
}

// UnmarshalStore rebuilds a store from MarshalBinary output, re-checking
// every catalog invariant.
func UnmarshalStore(data []byte) (*SignatureStore, error) {
	var m manifest
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("deserialize catalog: %w", err)
	}
	pk := new(phe.PublicKey)
	if err := pk.UnmarshalBinary(m.PublicKey); err != nil {
		return nil, fmt.Errorf("deserialize catalog: %w", err)
	}
	entries := make([]SignatureEntry, len(m.Entries))
	for i, me := range m.Entries {
		var vec phe.EncryptedVector
		if err := vec.UnmarshalBinary(me.Vector); err != nil {
			return nil, fmt.Errorf("deserialize signature %s: %w", me.Name, err)
		}
		entries[i] = SignatureEntry{Name: me.Name, Vector: vec}
	}
	s, err := newStore(pk, entries)
	if err != nil {
		return nil, fmt.Errorf("deserialize catalog: %w", err)
	}
	return s, nil
}

// SaveStore writes the catalog to st and returns its handle.
func SaveStore(ctx context.Context, st storage.Storage, s *SignatureStore) (storage.Handle, error) {
	data, err := s.MarshalBinary()
	if err != nil {
		return "", err
	}
	h, err := st.Store(ctx, data)
	if err != nil {
		return "", fmt.Errorf("store catalog: %w", err)
	}
	return h, nil
}

// LoadStore reads a catalog saved by SaveStore. A non-nil pk must match
// the key the catalog was encrypted under.
func LoadStore(ctx context.Context, st storage.Storage, h storage.Handle, pk *phe.PublicKey) (*SignatureStore, error) {
	data, err := st.Load(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", h, err)
	}
	s, err := UnmarshalStore(data)
	if err != nil {
		return nil, err
	}
	if pk != nil && !pk.Equal(s.pk) {
		return nil, ErrKeyMismatch
	}
	return s, nil
}
