// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"

	// Environment variables are the upper-cased keys with this prefix, and
	// hyphens replaced with underscores: SENTINEL_KEY_BITS.
	EnvPrefix = "SENTINEL"

	// Cryptosystem and detection
	KeyBitsKey           = "key-bits"
	SecurityLevelKey     = "security-level"
	AllowInsecureKeysKey = "allow-insecure-keys"
	ThresholdKey         = "threshold"
	WorkersKey           = "workers"

	// Logging and metrics
	LogLevelKey    = "log-level"
	LogFormatKey   = "log-format"
	MetricsAddrKey = "metrics-addr"

	// Input
	InputKey      = "input"
	RedisAddrKey  = "redis-addr"
	RedisDBKey    = "redis-db"
	RedisQueueKey = "redis-queue"
	DrainKey      = "drain"
	PublishKey    = "publish"

	// Catalog and storage
	CatalogFileKey   = "catalog-file"
	CatalogHandleKey = "catalog-handle"
	StorageKey       = "storage"
	StoragePathKey   = "storage-path"

	// Decryption authority
	DecryptorKey    = "decryptor"
	PartiesKey      = "parties"
	QuorumKey       = "quorum"
	KeyholderURLKey = "keyholder-url"
)

const (
	defaultKeyBits    = 2048
	defaultThreshold  = 0.99
	defaultLogLevel   = "info"
	defaultLogFormat  = "console"
	defaultInput      = InputStdin
	defaultRedisAddr  = "localhost:6379"
	defaultRedisQueue = "sentinel"
	defaultStorage    = StorageMemory
	defaultDecryptor  = DecryptorLocal
	defaultParties    = 3
	defaultQuorum     = 2
)

// Input sources
const (
	InputStdin = "stdin"
	InputRedis = "redis"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// Decryptors
const (
	DecryptorLocal     = "local"
	DecryptorThreshold = "threshold"
	DecryptorRemote    = "remote"
)
