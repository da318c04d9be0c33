// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxLineBytes caps one record read by a LineSource.
const DefaultMaxLineBytes = 1 << 20

// Source yields raw records. Next is the pipeline's only suspension point;
// io.EOF ends the stream.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// LineSource reads newline-delimited records from a reader.
type LineSource struct {
	r       *bufio.Reader
	maxLine int
}

// NewLineSource creates a source over r with the default line cap.
func NewLineSource(r io.Reader) *LineSource {
	return NewLineSourceSize(r, DefaultMaxLineBytes)
}

// NewLineSourceSize creates a source that rejects lines longer than
// maxLine bytes.
func NewLineSourceSize(r io.Reader, maxLine int) *LineSource {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	return &LineSource{
		r:       bufio.NewReaderSize(r, min(maxLine, 64*1024)),
		maxLine: maxLine,
	}
}

// Next returns the next line without its terminator. An oversized line
// is consumed and reported as a KindParse *LineError.
func (s *LineSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var line []byte
	tooLong := false
	for {
		chunk, err := s.r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > s.maxLine {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if tooLong {
				return nil, &LineError{Kind: KindParse, Err: ErrLineTooLong}
			}
			if len(line) == 0 {
				return nil, io.EOF
			}
			return bytes.TrimRight(line, "\r\n"), nil
		case err != nil:
			return nil, fmt.Errorf("read line: %w", err)
		}

		if tooLong {
			return nil, &LineError{Kind: KindParse, Err: ErrLineTooLong}
		}
		return bytes.TrimRight(line, "\r\n"), nil
	}
}
