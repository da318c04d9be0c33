// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"encoding/json"
	"fmt"
	"os"
)

// Reference is a named plaintext signature vector.
type Reference struct {
	Name   string    `json:"name"`
	Vector []float64 `json:"vector"`
}

// DefaultCatalog returns the built-in reference signatures, each a
// [hash, length] pair.
func DefaultCatalog() []Reference {
	return []Reference{
		{Name: "APT_GROUP_A", Vector: []float64{123456789, 15}},
		{Name: "ROOTKIT_INSTALL", Vector: []float64{987654321, 20}},
	}
}

// LoadCatalogFile reads a JSON array of references:
//
//	[{"name": "APT_GROUP_A", "vector": [123456789, 15]}, ...]
func LoadCatalogFile(path string) ([]Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var refs []Reference
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("parse catalog %s: %w", path, ErrEmptyCatalog)
	}
	return refs, nil
}
