// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package phe

import "errors"

// Common errors.
var (
	// ErrKeyGeneration is fatal: no usable prime pair or inverse was found.
	ErrKeyGeneration = errors.New("key generation failed")
	// ErrEncodingOverflow means a value does not fit the representable range
	// of the plaintext ring, either when encoding or after accumulation.
	ErrEncodingOverflow = errors.New("encoding overflow")
	// ErrDecryption means a ciphertext could not be decrypted.
	ErrDecryption = errors.New("decryption failed")

	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrInvalidKey        = errors.New("invalid key")
	ErrMessageRange      = errors.New("message outside [0, n)")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrExponentRange     = errors.New("exponent cannot be increased")
	ErrNotEnoughShares   = errors.New("not enough decryption shares")
)
