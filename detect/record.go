// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// VectorField is the record field holding the live feature vector.
const VectorField = "v"

// Record is one parsed input line.
type Record struct {
	Vector []float64
}

// ParseRecord parses a newline-delimited JSON record such as
// {"v": [123456789, 15]}. Failures are *LineError values: KindParse for
// text that is not JSON, KindSchema for JSON of the wrong shape and
// KindEncoding for numbers outside the float64 range.
func ParseRecord(line []byte) (Record, error) {
	line = bytes.TrimSpace(line)
	if !json.Valid(line) {
		return Record{}, lineError(KindParse, "%w: not valid JSON", ErrParse)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Record{}, lineError(KindSchema, "%w: record is not an object", ErrSchema)
	}
	raw, ok := fields[VectorField]
	if !ok {
		return Record{}, lineError(KindSchema, "%w: missing field %q", ErrSchema, VectorField)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return Record{}, lineError(KindSchema, "%w: field %q is not an array", ErrSchema, VectorField)
	}
	if len(items) == 0 {
		return Record{}, lineError(KindSchema, "%w: field %q is empty", ErrSchema, VectorField)
	}

	vec := make([]float64, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		var num json.Number
		// json.Number also accepts quoted numbers; records must carry bare ones.
		if len(item) == 0 || item[0] == '"' {
			return Record{}, lineError(KindSchema, "%w: component %d is not a number", ErrSchema, i)
		}
		if err := json.Unmarshal(item, &num); err != nil || num == "" {
			return Record{}, lineError(KindSchema, "%w: component %d is not a number", ErrSchema, i)
		}
		x, err := strconv.ParseFloat(num.String(), 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return Record{}, lineError(KindEncoding, "component %d: %s is out of range", i, num)
			}
			return Record{}, lineError(KindSchema, "%w: component %d: %v", ErrSchema, i, err)
		}
		vec[i] = x
	}
	return Record{Vector: vec}, nil
}
