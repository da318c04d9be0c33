// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"sync"
	"testing"

	"github.com/luxfi/phe"
	"github.com/stretchr/testify/require"
)

var (
	fixtureOnce  sync.Once
	fixtureSK    *phe.PrivateKey
	fixtureStore *SignatureStore
	fixtureErr   error
)

// fixture returns a 512-bit key and the default catalog encrypted under it,
// shared by the package tests.
func fixture(t *testing.T) (*phe.PrivateKey, *SignatureStore) {
	t.Helper()
	fixtureOnce.Do(func() {
		params, err := phe.NewParametersFromLiteral(phe.PN512)
		if err != nil {
			fixtureErr = err
			return
		}
		var pk *phe.PublicKey
		fixtureSK, pk, fixtureErr = phe.NewKeyGenerator(params).GenKeyPair()
		if fixtureErr != nil {
			return
		}
		fixtureStore, fixtureErr = NewSignatureStore(phe.NewEncryptor(pk), DefaultCatalog())
	})
	require.NoError(t, fixtureErr)
	return fixtureSK, fixtureStore
}
