// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AddFlags registers every configuration key on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFileKey, "", "path to a JSON or YAML config file")

	fs.Int(KeyBitsKey, defaultKeyBits, "Paillier modulus size in bits")
	fs.Int(SecurityLevelKey, 0, "security level in bits (112, 128, 192, 256); overrides key-bits")
	fs.Bool(AllowInsecureKeysKey, false, "accept moduli below 2048 bits (tests only)")
	fs.Float64(ThresholdKey, defaultThreshold, "similarity above which a signature alerts")
	fs.Int(WorkersKey, 0, "signatures scored concurrently per record (0 or 1 = sequential)")

	fs.String(LogLevelKey, defaultLogLevel, "log level (debug, info, warn, error)")
	fs.String(LogFormatKey, defaultLogFormat, "log encoding (console, json)")
	fs.String(MetricsAddrKey, "", "serve Prometheus metrics on this address")

	fs.String(InputKey, defaultInput, "record source (stdin, redis)")
	fs.String(RedisAddrKey, defaultRedisAddr, "Redis address")
	fs.Int(RedisDBKey, 0, "Redis database number")
	fs.String(RedisQueueKey, defaultRedisQueue, "Redis queue name")
	fs.Bool(DrainKey, false, "stop when the Redis queue is empty")
	fs.Bool(PublishKey, false, "publish reports to the Redis results list")

	fs.String(CatalogFileKey, "", "JSON signature catalog (default: built-in catalog)")
	fs.String(CatalogHandleKey, "", "load the encrypted catalog with this handle from storage")
	fs.String(StorageKey, defaultStorage, "catalog storage (memory, file, redis)")
	fs.String(StoragePathKey, "", "directory for file storage")

	fs.String(DecryptorKey, defaultDecryptor, "decryption authority (local, threshold, remote)")
	fs.Int(PartiesKey, defaultParties, "threshold key shares to deal")
	fs.Int(QuorumKey, defaultQuorum, "shares needed to decrypt")
	fs.String(KeyholderURLKey, "", "base URL of a remote keyholder")
}

// BuildViper binds fs and the environment, and reads the config file if
// one is named.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Map flag names to env var names. Hyphens are replaced with underscores.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if filename := v.GetString(ConfigFileKey); filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return v, nil
}

func SetDefaultConfigValues(v *viper.Viper) {
	v.SetDefault(KeyBitsKey, defaultKeyBits)
	v.SetDefault(ThresholdKey, defaultThreshold)
	v.SetDefault(LogLevelKey, defaultLogLevel)
	v.SetDefault(LogFormatKey, defaultLogFormat)
	v.SetDefault(InputKey, defaultInput)
	v.SetDefault(RedisAddrKey, defaultRedisAddr)
	v.SetDefault(RedisQueueKey, defaultRedisQueue)
	v.SetDefault(StorageKey, defaultStorage)
	v.SetDefault(DecryptorKey, defaultDecryptor)
	v.SetDefault(PartiesKey, defaultParties)
	v.SetDefault(QuorumKey, defaultQuorum)
}

// BuildConfig constructs the config using Viper.
// The following precedence order is used. Each item takes precedence over the item below it:
//  1. Flags
//  2. Environment variables
//  3. Config file
//  4. Defaults
func BuildConfig(v *viper.Viper) (Config, error) {
	SetDefaultConfigValues(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	return cfg, nil
}

func NewConfig(v *viper.Viper) (Config, error) {
	cfg, err := BuildConfig(v)
	if err != nil {
		return cfg, err
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}
