// internal/signer/bridge.go
package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// Bridge is a signing oracle that forwards requests to a wallet bridge, a
// small local HTTP service relaying to a browser wallet's signDirect API.
//
// Requests carry no client-side timeout: the user may take a while to answer
// the wallet prompt. Callers bound the wait through ctx.
type Bridge struct {
	baseURL string
	client  *http.Client
}

var _ network.SigningOracle = (*Bridge)(nil)

// NewBridge creates a Bridge for baseURL (e.g. "http://127.0.0.1:9870").
// A nil client selects a client without timeout.
func NewBridge(baseURL string, client *http.Client) (*Bridge, error) {
	if baseURL == "" {
		return nil, &network.ConfigError{Field: "signer.bridge_url", Message: "bridge URL is required"}
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, &network.ConfigError{Field: "signer.bridge_url", Message: err.Error()}
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Bridge{baseURL: strings.TrimRight(baseURL, "/"), client: client}, nil
}

type enableRequest struct {
	ChainID string `json:"chain_id"`
}

// bridgeSignDoc follows the wallet's signDirect shape; account_number is a
// decimal string to survive JavaScript number precision.
type bridgeSignDoc struct {
	BodyBytes     []byte `json:"body_bytes"`
	AuthInfoBytes []byte `json:"auth_info_bytes"`
	ChainID       string `json:"chain_id"`
	AccountNumber string `json:"account_number"`
}

type signDirectRequest struct {
	ChainID string        `json:"chain_id"`
	Signer  string        `json:"signer"`
	SignDoc bridgeSignDoc `json:"sign_doc"`
}

type signDirectResponse struct {
	Signed    bridgeSignDoc `json:"signed"`
	Signature struct {
		Signature []byte `json:"signature"`
		PubKey    struct {
			Type  string `json:"type"`
			Value []byte `json:"value"`
		} `json:"pub_key"`
	} `json:"signature"`
}

type bridgeError struct {
	Error string `json:"error"`
}

// Enable asks the wallet to expose keys for chainID.
func (b *Bridge) Enable(ctx context.Context, chainID string) error {
	return b.post(ctx, "enable", "/v1/enable", enableRequest{ChainID: chainID}, nil)
}

// Sign forwards the SignDoc to the wallet and returns what it signed.
func (b *Bridge) Sign(ctx context.Context, req *network.SignRequest) (*network.SignResponse, error) {
	body := signDirectRequest{
		ChainID: req.ChainID,
		Signer:  req.Signer,
		SignDoc: bridgeSignDoc{
			BodyBytes:     req.Doc.BodyBytes,
			AuthInfoBytes: req.Doc.AuthInfoBytes,
			ChainID:       req.Doc.ChainID,
			AccountNumber: strconv.FormatUint(req.Doc.AccountNumber, 10),
		},
	}

	var resp signDirectResponse
	if err := b.post(ctx, "sign", "/v1/sign-direct", body, &resp); err != nil {
		return nil, err
	}

	// The wallet must not move the tx to another chain or account.
	if resp.Signed.ChainID != "" && resp.Signed.ChainID != req.Doc.ChainID {
		return nil, &network.SignerError{Op: "sign", Err: fmt.Errorf("wallet signed for chain %q, requested %q", resp.Signed.ChainID, req.Doc.ChainID)}
	}
	if resp.Signed.AccountNumber != "" && resp.Signed.AccountNumber != body.SignDoc.AccountNumber {
		return nil, &network.SignerError{Op: "sign", Err: fmt.Errorf("wallet signed for account number %s, requested %s", resp.Signed.AccountNumber, body.SignDoc.AccountNumber)}
	}

	return &network.SignResponse{
		Signature:     resp.Signature.Signature,
		BodyBytes:     resp.Signed.BodyBytes,
		AuthInfoBytes: resp.Signed.AuthInfoBytes,
		PubKey:        resp.Signature.PubKey.Value,
	}, nil
}

func (b *Bridge) post(ctx context.Context, op, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &network.SignerError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &network.SignerError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			return &network.SignerError{Op: op, Err: fmt.Errorf("%w: %s not reachable", network.ErrSignerUnavailable, b.baseURL)}
		}
		return &network.SignerError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &network.SignerError{Op: op, Err: err}
	}

	var bErr bridgeError
	_ = json.Unmarshal(data, &bErr)

	switch {
	case resp.StatusCode == http.StatusForbidden || isRejection(bErr.Error):
		return &network.SignerError{Op: op, Err: fmt.Errorf("%w: %s", network.ErrUserRejected, orDefault(bErr.Error, "request rejected"))}
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusServiceUnavailable:
		return &network.SignerError{Op: op, Err: fmt.Errorf("%w: bridge answered %d", network.ErrSignerUnavailable, resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return &network.SignerError{Op: op, Err: fmt.Errorf("bridge answered %d: %s", resp.StatusCode, orDefault(bErr.Error, string(data)))}
	case bErr.Error != "":
		return &network.SignerError{Op: op, Err: errors.New(bErr.Error)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &network.SignerError{Op: op, Err: fmt.Errorf("failed to parse bridge response: %w", err)}
	}
	return nil
}

// isRejection matches the wallet's "Request rejected" message.
func isRejection(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "request rejected")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
