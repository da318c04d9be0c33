// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriterSinkFormat(t *testing.T) {
	p := newTestPipeline(t, Config{})

	input := strings.Join([]string{
		`{"v": [123456789, 15]}`,
		`garbage`,
		`{"v": [1, 2, 3]}`,
		`{"v": [1, 1]}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, p.Run(context.Background(), NewLineSource(strings.NewReader(input)), NewWriterSink(&out)))

	text := out.String()
	require.Contains(t, text, "\n[>] Analyzing Vector: [123456789, 15]\n")
	require.Contains(t, text, "   - Similarity to APT_GROUP_A: 1.0000\n")
	require.Contains(t, text, "   [!!!] ALERT: MATCH FOUND FOR APT_GROUP_A\n")
	require.Contains(t, text, "[>] Analyzing Vector: [1, 1]\n")
	require.Contains(t, text, "   - Similarity to APT_GROUP_A: 0.7071\n")
	require.Contains(t, text, "[!] Error: line 3: schema:")
	require.NotContains(t, text, "garbage")
	require.NotContains(t, text, "line 2")
	require.Equal(t, 2, strings.Count(text, "[!!!] ALERT"))
}

func TestFormatVector(t *testing.T) {
	require.Equal(t, "[123456789, 15]", FormatVector([]float64{123456789, 15}))
	require.Equal(t, "[-0.5, 0, 1e-07, 1e+25]", FormatVector([]float64{-0.5, 0, 1e-7, 1e25}))
	require.Equal(t, "[]", FormatVector(nil))
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))
	ctx := context.Background()

	require.NoError(t, sink.Emit(ctx, &Report{
		Line: 1,
		Results: []DetectionResult{
			{SignatureName: "APT_GROUP_A", Similarity: 0.999, Alert: true},
			{SignatureName: "ROOTKIT_INSTALL", Similarity: 0.2},
		},
	}))
	require.NoError(t, sink.Emit(ctx, &Report{Line: 2, Err: &LineError{Kind: KindParse, Err: ErrParse}}))

	matches := logs.FilterMessage("Signature match").All()
	require.Len(t, matches, 1)
	require.Equal(t, zapcore.WarnLevel, matches[0].Level)
	require.Equal(t, "APT_GROUP_A", matches[0].ContextMap()["signature"])

	require.Equal(t, 1, logs.FilterMessage("Similarity computed").Len())
	skipped := logs.FilterMessage("Skipping malformed record").All()
	require.Len(t, skipped, 1)
	require.Equal(t, zapcore.DebugLevel, skipped[0].Level)
}

func TestMultiSink(t *testing.T) {
	var a, b collector
	failing := SinkFunc(func(context.Context, *Report) error { return errors.New("down") })

	err := MultiSink{&a, failing, &b}.Emit(context.Background(), &Report{Line: 7})
	require.Error(t, err)
	require.Len(t, a.reports, 1)
	require.Len(t, b.reports, 1)
}
