// Lux PHE Keyholder - decryption authority for sentinel
//
// Holds the Paillier private key (or every share of a threshold key) and
// decrypts similarity ciphertexts over HTTP. The detector only ever sees
// the public key.
//
// Run next to sentinel:
//
//	phe-keyholder --addr :8449 --key ./keys/private.key
//	sentinel run --decryptor remote --keyholder-url http://localhost:8449
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/phe"
	"github.com/luxfi/phe/internal/logging"
	"github.com/luxfi/phe/server"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("phe-keyholder", pflag.ContinueOnError)
	var (
		addr      = fs.String("addr", ":8449", "HTTP server address")
		keyFile   = fs.String("key", "", "CBOR private key written by sentinel keygen (default: generate one)")
		keyBits   = fs.Int("key-bits", 2048, "modulus size when generating a key")
		insecure  = fs.Bool("allow-insecure-keys", false, "accept moduli below 2048 bits (tests only)")
		parties   = fs.Int("parties", 0, "deal a threshold key with this many shares (0 = plain key)")
		quorum    = fs.Int("quorum", 2, "shares needed to decrypt a threshold key")
		logLevel  = fs.String("log-level", "info", "log level")
		logFormat = fs.String("log-format", "console", "log encoding (console, json)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, ok := phe.SecurityOf(*keyBits); !ok && *keyFile == "" && !*insecure {
		return fmt.Errorf("--key-bits %d is below %d bits; set --allow-insecure-keys only for tests",
			*keyBits, phe.Security112.ModulusBits())
	}

	logger, err := logging.NewLogger(*logLevel, *logFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pk, dec, err := loadAuthority(logger, *keyFile, *keyBits, *parties, *quorum)
	if err != nil {
		return err
	}

	httpServer := server.New(pk, dec, logger).HTTPServer(server.Config{
		Address:      *addr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Keyholder listening",
			zap.String("addr", *addr),
			zap.Int("modulusBits", pk.N.BitLen()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down keyholder")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// loadAuthority reads or generates the decryption key.
func loadAuthority(logger *zap.Logger, keyFile string, keyBits, parties, quorum int) (*phe.PublicKey, phe.Decryptor, error) {
	if keyFile != "" {
		if parties > 0 {
			return nil, nil, errors.New("--key and --parties are mutually exclusive")
		}
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read private key: %w", err)
		}
		sk := new(phe.PrivateKey)
		if err := sk.UnmarshalBinary(data); err != nil {
			return nil, nil, err
		}
		logger.Info("Loaded private key", zap.String("path", keyFile))
		return sk.Public(), phe.NewDecryptor(sk), nil
	}

	params, err := phe.NewParametersFromLiteral(phe.ParametersLiteral{ModulusBits: keyBits})
	if err != nil {
		return nil, nil, err
	}

	if parties > 0 {
		logger.Info("Dealing threshold key shares",
			zap.Int("bits", keyBits),
			zap.Int("parties", parties),
			zap.Int("quorum", quorum),
		)
		keys, err := phe.GenThresholdKeys(params, parties, quorum)
		if err != nil {
			return nil, nil, err
		}
		holders := make([]phe.ShareHolder, len(keys.Shares))
		for i, share := range keys.Shares {
			holders[i] = phe.NewKeyShareHolder(share)
			logger.Debug("Share holder ready", zap.Int("share", i+1))
		}
		dec, err := phe.NewThresholdDecryptor(keys, holders)
		if err != nil {
			return nil, nil, err
		}
		return keys.PublicKey, dec, nil
	}

	logger.Info("Generating Paillier key pair", zap.Int("bits", keyBits))
	sk, pk, err := phe.NewKeyGenerator(params).GenKeyPair()
	if err != nil {
		return nil, nil, err
	}
	return pk, phe.NewDecryptor(sk), nil
}
