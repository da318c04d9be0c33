// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads sentinel settings from flags, environment variables
// and an optional JSON or YAML file.
package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/luxfi/phe"
	"github.com/luxfi/phe/internal/queue"
	"github.com/luxfi/phe/internal/storage"
	"go.uber.org/zap/zapcore"
)

// Config is the complete sentinel configuration.
type Config struct {
	KeyBits           int     `mapstructure:"key-bits"`
	SecurityLevel     int     `mapstructure:"security-level"`
	AllowInsecureKeys bool    `mapstructure:"allow-insecure-keys"`
	Threshold         float64 `mapstructure:"threshold"`
	Workers           int     `mapstructure:"workers"`

	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`
	MetricsAddr string `mapstructure:"metrics-addr"`

	Input      string `mapstructure:"input"`
	RedisAddr  string `mapstructure:"redis-addr"`
	RedisDB    int    `mapstructure:"redis-db"`
	RedisQueue string `mapstructure:"redis-queue"`
	Drain      bool   `mapstructure:"drain"`
	Publish    bool   `mapstructure:"publish"`

	CatalogFile   string `mapstructure:"catalog-file"`
	CatalogHandle string `mapstructure:"catalog-handle"`
	Storage       string `mapstructure:"storage"`
	StoragePath   string `mapstructure:"storage-path"`

	Decryptor    string `mapstructure:"decryptor"`
	Parties      int    `mapstructure:"parties"`
	Quorum       int    `mapstructure:"quorum"`
	KeyholderURL string `mapstructure:"keyholder-url"`
}

var errInvalidConfig = errors.New("invalid configuration")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks ranges and cross-field requirements.
func (c *Config) Validate() error {
	params, err := c.Parameters()
	if err != nil {
		if c.SecurityLevel != 0 {
			return invalid("%s: %v", SecurityLevelKey, err)
		}
		return invalid("%s: %v", KeyBitsKey, err)
	}
	if _, ok := phe.SecurityOf(params.ModulusBits()); !ok && !c.AllowInsecureKeys {
		return invalid("%s %d is below %d bits; set %s only for tests",
			KeyBitsKey, params.ModulusBits(), phe.Security112.ModulusBits(), AllowInsecureKeysKey)
	}
	if math.IsNaN(c.Threshold) || c.Threshold <= 0 || c.Threshold > 1 {
		return invalid("%s must be in (0, 1], got %v", ThresholdKey, c.Threshold)
	}
	if c.Workers < 0 {
		return invalid("%s must not be negative", WorkersKey)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return invalid("%s: %v", LogLevelKey, err)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return invalid("%s must be console or json, got %q", LogFormatKey, c.LogFormat)
	}

	switch c.Input {
	case InputStdin:
		if c.Publish {
			return invalid("%s requires %s=%s", PublishKey, InputKey, InputRedis)
		}
	case InputRedis:
		if c.RedisAddr == "" || c.RedisQueue == "" {
			return invalid("%s=%s requires %s and %s", InputKey, InputRedis, RedisAddrKey, RedisQueueKey)
		}
	default:
		return invalid("unknown %s %q", InputKey, c.Input)
	}

	switch c.Storage {
	case StorageMemory:
	case StorageFile:
		if c.StoragePath == "" {
			return invalid("%s=%s requires %s", StorageKey, StorageFile, StoragePathKey)
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			return invalid("%s=%s requires %s", StorageKey, StorageRedis, RedisAddrKey)
		}
	default:
		return invalid("unknown %s %q", StorageKey, c.Storage)
	}
	if c.CatalogHandle != "" {
		if err := storage.Handle(c.CatalogHandle).Validate(); err != nil {
			return invalid("%s: %v", CatalogHandleKey, err)
		}
		if c.Storage == StorageMemory {
			return invalid("%s cannot be loaded from %s storage", CatalogHandleKey, StorageMemory)
		}
	}

	switch c.Decryptor {
	case DecryptorLocal:
	case DecryptorThreshold:
		if c.Parties < 1 || c.Parties > math.MaxUint8 {
			return invalid("%s must be in [1, 255], got %d", PartiesKey, c.Parties)
		}
		if c.Quorum < 1 || c.Quorum > c.Parties {
			return invalid("%s must be in [1, %s], got %d", QuorumKey, PartiesKey, c.Quorum)
		}
	case DecryptorRemote:
		if c.KeyholderURL == "" {
			return invalid("%s=%s requires %s", DecryptorKey, DecryptorRemote, KeyholderURLKey)
		}
	default:
		return invalid("unknown %s %q", DecryptorKey, c.Decryptor)
	}
	if c.CatalogHandle != "" && c.Decryptor != DecryptorRemote {
		return invalid("a stored catalog needs %s=%s; local keys are generated per run", DecryptorKey, DecryptorRemote)
	}
	return nil
}

// Parameters returns the cryptosystem parameters. A non-zero SecurityLevel
// takes precedence over KeyBits.
func (c *Config) Parameters() (phe.Parameters, error) {
	if c.SecurityLevel != 0 {
		lit, err := phe.ParametersForSecurity(phe.SecurityLevel(c.SecurityLevel))
		if err != nil {
			return phe.Parameters{}, err
		}
		return phe.NewParametersFromLiteral(lit)
	}
	return phe.NewParametersFromLiteral(phe.ParametersLiteral{ModulusBits: c.KeyBits})
}

// StorageConfig returns the blob storage settings.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Kind: c.Storage,
		Path: c.StoragePath,
		Redis: storage.RedisConfig{
			Addr: c.RedisAddr,
			DB:   c.RedisDB,
		},
	}
}

// QueueConfig returns the input queue settings.
func (c *Config) QueueConfig() queue.RedisConfig {
	return queue.RedisConfig{
		Addr:           c.RedisAddr,
		DB:             c.RedisDB,
		PopTimeout:     5 * time.Second,
		DrainWhenEmpty: c.Drain,
		MaxResults:     10000,
	}
}
