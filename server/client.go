package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/luxfi/phe"
)

// RemoteDecryptor implements phe.Decryptor by calling a keyholder. Only
// ciphertexts leave the process.
type RemoteDecryptor struct {
	baseURL string
	client  *http.Client
	pk      *phe.PublicKey
}

// NewRemoteDecryptor creates a client for the keyholder at baseURL. A nil
// client uses one with a 30 second timeout.
func NewRemoteDecryptor(baseURL string, client *http.Client) *RemoteDecryptor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RemoteDecryptor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// FetchPublicKey retrieves the keyholder's public key and pins it; later
// plaintexts are range-checked against it.
func (d *RemoteDecryptor) FetchPublicKey(ctx context.Context) (*phe.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/publickey", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	body, err := d.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch public key: %w", err)
	}

	pk := new(phe.PublicKey)
	if err := pk.UnmarshalBinary(body); err != nil {
		return nil, fmt.Errorf("fetch public key: %w", err)
	}
	d.pk = pk
	return pk, nil
}

// Decrypt sends ct to the keyholder. A rejected ciphertext wraps
// phe.ErrDecryption.
func (d *RemoteDecryptor) Decrypt(ctx context.Context, ct *phe.Ciphertext) (*big.Int, error) {
	if ct == nil {
		return nil, fmt.Errorf("%w: nil ciphertext", phe.ErrDecryption)
	}
	payload, err := ct.MarshalBinary()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/decrypt", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", cborContentType)

	body, err := d.do(req)
	if err != nil {
		return nil, fmt.Errorf("remote decrypt: %w", err)
	}

	var resp DecryptResponse
	if err := cbor.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("remote decrypt: decode response: %w", err)
	}
	m := new(big.Int).SetBytes(resp.Plaintext)
	if d.pk != nil && m.Cmp(d.pk.N) >= 0 {
		return nil, fmt.Errorf("%w: keyholder returned a plaintext outside [0, n)", phe.ErrDecryption)
	}
	return m, nil
}

func (d *RemoteDecryptor) do(req *http.Request) ([]byte, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxCiphertextBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	msg := strings.TrimSpace(string(body))
	var errResp ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		msg = errResp.Error
	}
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, fmt.Errorf("%w: keyholder: %s", phe.ErrDecryption, msg)
	}
	return nil, fmt.Errorf("keyholder: status %d: %s", resp.StatusCode, msg)
}
