// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package detect matches streamed feature vectors against an encrypted
// catalog of threat signatures.
//
// Signature vectors are unit-normalized and encrypted component-wise under a
// Paillier public key once, when the SignatureStore is built. Each live
// vector is normalized in the clear and its cosine similarity to every
// signature is computed as an encrypted dot product; only the resulting
// score is handed to a phe.Decryptor. The decryptor is pluggable: it can
// hold the private key locally, combine threshold key shares, or call a
// remote keyholder that only ever sees ciphertexts.
//
// Pipeline life cycle:
//
//	Initializing -> Ready -> Processing -> Ready -> ... -> Drained
//
// Per-line failures (parse, schema, encoding, decryption) are reported and
// skipped; they never stop the stream.
package detect
