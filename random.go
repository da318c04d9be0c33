// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package phe

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// maxUnitDraws bounds rejection sampling in randomUnit. For a genuine
// modulus the chance of a single rejection is about 2/sqrt(n).
const maxUnitDraws = 64

var errNoUnit = errors.New("no unit of Z_n found")

// randomUnit draws r uniformly from Z*_n. Every call reads fresh bytes
// from random; nothing is cached between encryptions.
func randomUnit(random io.Reader, n *big.Int) (*big.Int, error) {
	gcd := new(big.Int)
	for i := 0; i < maxUnitDraws; i++ {
		r, err := rand.Int(random, n)
		if err != nil {
			return nil, fmt.Errorf("draw randomizer: %w", err)
		}
		if r.Sign() == 0 {
			continue
		}
		if gcd.GCD(nil, nil, r, n).Cmp(one) == 0 {
			return r, nil
		}
	}
	return nil, errNoUnit
}
