// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"errors"
	"fmt"

	"github.com/luxfi/phe"
)

var (
	ErrParse              = errors.New("malformed record")
	ErrSchema             = errors.New("record does not match schema")
	ErrLineTooLong        = errors.New("record exceeds maximum line length")
	ErrEmptyCatalog       = errors.New("signature catalog is empty")
	ErrDuplicateSignature = errors.New("duplicate signature name")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrKeyMismatch        = errors.New("catalog was encrypted under a different public key")
	ErrPipelineDrained    = errors.New("pipeline already drained")
	ErrPipelineBusy       = errors.New("pipeline is already running")
)

// Kind classifies a recoverable per-line failure.
type Kind uint8

const (
	KindParse Kind = iota + 1
	KindSchema
	KindEncoding
	KindDecryption
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindSchema:
		return "schema"
	case KindEncoding:
		return "encoding"
	case KindDecryption:
		return "decryption"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindParse:
		return ErrParse
	case KindSchema:
		return ErrSchema
	case KindEncoding:
		return phe.ErrEncodingOverflow
	case KindDecryption:
		return phe.ErrDecryption
	default:
		return nil
	}
}

// LineError is a recoverable failure of one record or one signature
// comparison. It matches its kind's sentinel with errors.Is.
type LineError struct {
	Kind Kind
	Err  error
}

func (e *LineError) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *LineError) Unwrap() []error {
	if s := e.Kind.sentinel(); s != nil && !errors.Is(e.Err, s) {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

func lineError(kind Kind, format string, args ...any) *LineError {
	return &LineError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// classify maps an error from the phe package to the per-line kind.
func classify(err error) Kind {
	switch {
	case errors.Is(err, phe.ErrEncodingOverflow), errors.Is(err, phe.ErrMessageRange):
		return KindEncoding
	case errors.Is(err, phe.ErrDimensionMismatch):
		return KindSchema
	default:
		return KindDecryption
	}
}
