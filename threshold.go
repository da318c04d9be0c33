// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package phe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/niclabs/tcpaillier"
)

// ShareHolder is one party of a threshold key. Only ciphertexts cross
// this boundary; the key share never leaves the holder.
type ShareHolder interface {
	PartialDecrypt(ctx context.Context, c *big.Int) (*tcpaillier.DecryptionShare, error)
}

// ThresholdKeys is the output of a trusted-dealer threshold key generation.
// Shares are meant to be handed to distinct parties.
type ThresholdKeys struct {
	PublicKey *PublicKey
	Shares    []*tcpaillier.KeyShare
	Quorum    int

	tpk *tcpaillier.PubKey
}

// GenThresholdKeys deals parties key shares of which any quorum can
// decrypt. The public key is an ordinary (n, n+1) Paillier key, so the
// Encryptor and Evaluator work unchanged on top of it.
func GenThresholdKeys(params Parameters, parties, quorum int) (*ThresholdKeys, error) {
	if parties < 1 || parties > math.MaxUint8 {
		return nil, fmt.Errorf("%w: parties %d out of range", ErrKeyGeneration, parties)
	}
	if quorum < 1 || quorum > parties {
		return nil, fmt.Errorf("%w: quorum %d of %d parties", ErrKeyGeneration, quorum, parties)
	}

	shares, tpk, err := tcpaillier.NewKey(params.modulusBits, 1, uint8(parties), uint8(quorum))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	pk, err := NewPublicKey(tpk.N)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	return &ThresholdKeys{
		PublicKey: pk,
		Shares:    shares,
		Quorum:    quorum,
		tpk:       tpk,
	}, nil
}

// LocalHolders wraps every share as an in-process ShareHolder
func (k *ThresholdKeys) LocalHolders() []ShareHolder {
	holders := make([]ShareHolder, len(k.Shares))
	for i, share := range k.Shares {
		holders[i] = NewKeyShareHolder(share)
	}
	return holders
}

// KeyShareHolder is a ShareHolder backed by a key share in memory
type KeyShareHolder struct {
	share *tcpaillier.KeyShare
}

// NewKeyShareHolder wraps a single key share
func NewKeyShareHolder(share *tcpaillier.KeyShare) *KeyShareHolder {
	return &KeyShareHolder{share: share}
}

// PartialDecrypt computes this party's decryption share of c
func (h *KeyShareHolder) PartialDecrypt(ctx context.Context, c *big.Int) (*tcpaillier.DecryptionShare, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.share.PartialDecrypt(c)
}

// ThresholdDecryptor combines partial decryptions from a quorum of holders
type ThresholdDecryptor struct {
	keys    *ThresholdKeys
	holders []ShareHolder
}

// NewThresholdDecryptor creates a decryptor asking holders in order until
// a quorum of shares is collected.
func NewThresholdDecryptor(keys *ThresholdKeys, holders []ShareHolder) (*ThresholdDecryptor, error) {
	if len(holders) < keys.Quorum {
		return nil, fmt.Errorf("%w: %d holders for quorum %d", ErrNotEnoughShares, len(holders), keys.Quorum)
	}
	return &ThresholdDecryptor{
		keys:    keys,
		holders: holders,
	}, nil
}

// Decrypt decrypts ct once Quorum holders have answered. Holders that fail
// are skipped; their errors are returned only if the quorum is missed.
func (dec *ThresholdDecryptor) Decrypt(ctx context.Context, ct *Ciphertext) (*big.Int, error) {
	if err := dec.keys.PublicKey.ValidateCiphertext(ct); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	shares := make([]*tcpaillier.DecryptionShare, 0, dec.keys.Quorum)
	var errs []error
	for i, holder := range dec.holders {
		if len(shares) == dec.keys.Quorum {
			break
		}
		share, err := holder.PartialDecrypt(ctx, ct.value)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			errs = append(errs, fmt.Errorf("holder %d: %w", i, err))
			continue
		}
		shares = append(shares, share)
	}
	if len(shares) < dec.keys.Quorum {
		return nil, fmt.Errorf("%w: %w: %w", ErrDecryption, ErrNotEnoughShares, errors.Join(errs...))
	}

	m, err := dec.keys.tpk.CombineShares(shares...)
	if err != nil {
		return nil, fmt.Errorf("%w: combine shares: %v", ErrDecryption, err)
	}
	return m, nil
}
