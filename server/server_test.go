package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/luxfi/phe"
	"github.com/luxfi/phe/detect"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*phe.PrivateKey, *httptest.Server) {
	t.Helper()
	params, err := phe.NewParametersFromLiteral(phe.PN512)
	require.NoError(t, err)
	sk, pk, err := phe.NewKeyGenerator(params).GenKeyPair()
	require.NoError(t, err)

	ts := httptest.NewServer(New(pk, phe.NewDecryptor(sk), zap.NewNop()).Handler())
	t.Cleanup(ts.Close)
	return sk, ts
}

func TestRemoteDecryptor(t *testing.T) {
	sk, ts := newTestServer(t)
	ctx := context.Background()

	remote := NewRemoteDecryptor(ts.URL+"/", ts.Client())
	pk, err := remote.FetchPublicKey(ctx)
	require.NoError(t, err)
	require.True(t, pk.Equal(sk.Public()))

	enc := phe.NewEncryptor(pk)
	local := phe.NewDecryptor(sk)

	for _, m := range []int64{0, 1, 42, 1 << 50} {
		ct, err := enc.Encrypt(big.NewInt(m))
		require.NoError(t, err)

		got, err := remote.Decrypt(ctx, ct)
		require.NoError(t, err)
		want, err := local.Decrypt(ctx, ct)
		require.NoError(t, err)
		require.Zero(t, want.Cmp(got))
	}

	t.Run("Float", func(t *testing.T) {
		ct, err := enc.EncryptFloat(-0.7071)
		require.NoError(t, err)
		got, err := phe.DecryptFloat(ctx, remote, phe.NewEncoder(pk), ct)
		require.NoError(t, err)
		require.Equal(t, -0.7071, got)
	})

	t.Run("Forged", func(t *testing.T) {
		_, err := remote.Decrypt(ctx, phe.NewCiphertext(pk.N, 0))
		require.ErrorIs(t, err, phe.ErrDecryption)
	})
}

func TestPipelineWithRemoteDecryptor(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()

	remote := NewRemoteDecryptor(ts.URL, ts.Client())
	pk, err := remote.FetchPublicKey(ctx)
	require.NoError(t, err)

	// the detector only ever holds the public key
	store, err := detect.NewSignatureStore(phe.NewEncryptor(pk), detect.DefaultCatalog())
	require.NoError(t, err)
	p, err := detect.NewWithStore(store, remote, detect.Config{})
	require.NoError(t, err)

	report, err := p.Detect(ctx, []float64{123456789, 15})
	require.NoError(t, err)
	require.Empty(t, report.Failures)
	require.Len(t, report.Alerts(), 2)

	report, err = p.Detect(ctx, []float64{1, 1})
	require.NoError(t, err)
	require.Empty(t, report.Alerts())
}

func TestKeyholderEndpoints(t *testing.T) {
	_, ts := newTestServer(t)
	client := ts.Client()

	t.Run("Health", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var status map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		require.Equal(t, "ok", status["status"])
		require.Equal(t, float64(512), status["modulus_bits"])
	})

	t.Run("DecryptRequiresPost", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/decrypt")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("GarbageBody", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/decrypt", cborContentType, bytes.NewReader([]byte{0xff}))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var errResp ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
		require.NotEmpty(t, errResp.Error)
	})

	t.Run("OversizedBody", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/decrypt", cborContentType, bytes.NewReader(make([]byte, MaxCiphertextBytes+1)))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.True(t, strings.Contains(string(body), `keyholder_decrypt_requests_total{outcome="bad_request"}`))
	})
}
