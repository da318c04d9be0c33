// Package phe - Security Levels
//
// Paillier security rests on the hardness of factoring n, so the modulus
// size follows the NIST SP 800-57 equivalences for integer-factorization
// cryptography:
//
//	Level        Modulus bits
//	-------------------------
//	Security112  2048
//	Security128  3072
//	Security192  7680
//	Security256  15360
//
// Key generation cost grows roughly with the fourth power of the modulus
// size; levels above Security128 are rarely practical for a streaming
// detector.
//
// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
package phe

import "fmt"

// SecurityLevel represents the target security level in bits
type SecurityLevel int

const (
	Security112 SecurityLevel = 112
	Security128 SecurityLevel = 128
	Security192 SecurityLevel = 192
	Security256 SecurityLevel = 256
)

// ModulusBits returns the modulus size for the level, or 0 if unknown
func (l SecurityLevel) ModulusBits() int {
	switch l {
	case Security112:
		return 2048
	case Security128:
		return 3072
	case Security192:
		return 7680
	case Security256:
		return 15360
	default:
		return 0
	}
}

// ParametersForSecurity returns the parameter literal for a security level
func ParametersForSecurity(level SecurityLevel) (ParametersLiteral, error) {
	bits := level.ModulusBits()
	if bits == 0 {
		return ParametersLiteral{}, fmt.Errorf("unknown security level %d", level)
	}
	return ParametersLiteral{
		ModulusBits: bits,
		MaxAttempts: defaultMaxAttempts,
	}, nil
}

// SecurityOf returns the highest level met by a modulus size
func SecurityOf(modulusBits int) (SecurityLevel, bool) {
	best := SecurityLevel(0)
	for _, l := range []SecurityLevel{Security112, Security128, Security192, Security256} {
		if modulusBits >= l.ModulusBits() {
			best = l
		}
	}
	return best, best != 0
}
