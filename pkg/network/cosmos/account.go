// pkg/network/cosmos/account.go
package cosmos

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// Account type URLs accepted as signers. Vesting accounts sign with their
// embedded base account.
const (
	typeBaseAccount              = "/cosmos.auth.v1beta1.BaseAccount"
	typeModuleAccount            = "/cosmos.auth.v1beta1.ModuleAccount"
	typeContinuousVestingAccount = "/cosmos.vesting.v1beta1.ContinuousVestingAccount"
	typeDelayedVestingAccount    = "/cosmos.vesting.v1beta1.DelayedVestingAccount"
	typePeriodicVestingAccount   = "/cosmos.vesting.v1beta1.PeriodicVestingAccount"
	typePermanentLockedAccount   = "/cosmos.vesting.v1beta1.PermanentLockedAccount"
)

// Default client timings.
const (
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultPollInterval = time.Second
	DefaultBlockTimeout = 60 * time.Second
)

// ClientConfig configures the ledger transports.
type ClientConfig struct {
	// Endpoint is the REST base URL, gRPC target or CometBFT RPC URL.
	Endpoint string

	// HTTPClient overrides the default HTTP client (REST and RPC only).
	HTTPClient *http.Client

	// PollInterval is the delay between inclusion checks in block mode.
	PollInterval time.Duration

	// BlockTimeout bounds the wait for inclusion in block mode.
	BlockTimeout time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = DefaultBlockTimeout
	}
	return c
}

// RESTClient talks to a node's gRPC-gateway REST API.
type RESTClient struct {
	endpoint     string
	client       *http.Client
	pollInterval time.Duration
	blockTimeout time.Duration
}

var (
	_ network.AccountResolver = (*RESTClient)(nil)
	_ network.Broadcaster     = (*RESTClient)(nil)
)

// NewRESTClient creates a REST transport.
func NewRESTClient(cfg ClientConfig) (*RESTClient, error) {
	if cfg.Endpoint == "" {
		return nil, &network.ConfigError{Field: "endpoints.rest", Message: "REST endpoint is required"}
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, &network.ConfigError{Field: "endpoints.rest", Message: err.Error()}
	}
	cfg = cfg.withDefaults()

	return &RESTClient{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		client:       cfg.HTTPClient,
		pollInterval: cfg.PollInterval,
		blockTimeout: cfg.BlockTimeout,
	}, nil
}

// Endpoint returns the configured base URL.
func (c *RESTClient) Endpoint() string {
	return c.endpoint
}

// accountResponse represents the REST API response for account queries.
type accountResponse struct {
	Account accountWrapper `json:"account"`
}

// accountWrapper handles base and vesting account shapes.
type accountWrapper struct {
	Type          string         `json:"@type"`
	Address       string         `json:"address"`
	AccountNumber string         `json:"account_number"`
	Sequence      string         `json:"sequence"`
	PubKey        *pubKeyWrapper `json:"pub_key"`

	// For vesting account types
	BaseVestingAccount *struct {
		BaseAccount *baseAccountInfo `json:"base_account"`
	} `json:"base_vesting_account"`
}

// baseAccountInfo is used for nested account info.
type baseAccountInfo struct {
	Address       string         `json:"address"`
	AccountNumber string         `json:"account_number"`
	Sequence      string         `json:"sequence"`
	PubKey        *pubKeyWrapper `json:"pub_key"`
}

// pubKeyWrapper handles public key info from the API response.
type pubKeyWrapper struct {
	Type string `json:"@type"`
	Key  string `json:"key"`
}

// gatewayError is the gRPC-gateway error body.
type gatewayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Resolve queries the account information for the given address.
func (c *RESTClient) Resolve(ctx context.Context, address string) (*network.Account, error) {
	if address == "" {
		return nil, &network.InvalidFormatError{Input: address, Reason: "address is required"}
	}

	reqURL := fmt.Sprintf("%s/cosmos/auth/v1beta1/accounts/%s", c.endpoint, url.PathEscape(address))
	body, status, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, &network.NetworkError{Operation: "account query", Endpoint: c.endpoint, Err: err}
	}

	if isNotFound(status, body) {
		return nil, &network.AccountNotFoundError{Address: address}
	}
	if status != http.StatusOK {
		return nil, &network.NetworkError{
			Operation: "account query",
			Endpoint:  c.endpoint,
			Err:       fmt.Errorf("unexpected status code %d: %s", status, string(body)),
		}
	}

	var accResp accountResponse
	if err := json.Unmarshal(body, &accResp); err != nil {
		return nil, &network.NetworkError{
			Operation: "account query",
			Endpoint:  c.endpoint,
			Err:       fmt.Errorf("failed to parse account response: %w", err),
		}
	}

	return parseAccountInfo(address, &accResp.Account)
}

func (c *RESTClient) get(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// isNotFound recognises both a plain 404 and a gateway body carrying
// gRPC code NotFound, which some nodes send with other HTTP statuses.
func isNotFound(status int, body []byte) bool {
	if status == http.StatusNotFound {
		return true
	}
	if status == http.StatusOK {
		return false
	}
	var gwErr gatewayError
	if err := json.Unmarshal(body, &gwErr); err != nil {
		return false
	}
	return gwErr.Code == int(codes.NotFound)
}

// parseAccountInfo extracts an Account from the account wrapper.
func parseAccountInfo(address string, wrapper *accountWrapper) (*network.Account, error) {
	var info *baseAccountInfo

	switch wrapper.Type {
	case typeBaseAccount:
		info = &baseAccountInfo{
			Address:       wrapper.Address,
			AccountNumber: wrapper.AccountNumber,
			Sequence:      wrapper.Sequence,
			PubKey:        wrapper.PubKey,
		}
	case typeContinuousVestingAccount, typeDelayedVestingAccount, typePeriodicVestingAccount, typePermanentLockedAccount:
		if wrapper.BaseVestingAccount != nil {
			info = wrapper.BaseVestingAccount.BaseAccount
		}
	case typeModuleAccount:
		// Module accounts have no private key and cannot sign.
		return nil, &network.UnexpectedAccountError{Address: address, Type: wrapper.Type}
	default:
		return nil, &network.UnexpectedAccountError{Address: address, Type: wrapper.Type}
	}
	if info == nil {
		return nil, &network.UnexpectedAccountError{Address: address, Type: wrapper.Type + " (missing base account)"}
	}

	accountNumber, err := strconv.ParseUint(info.AccountNumber, 10, 64)
	if err != nil {
		return nil, &network.InvalidFormatError{Input: info.AccountNumber, Reason: "failed to parse account number"}
	}

	sequence, err := strconv.ParseUint(info.Sequence, 10, 64)
	if err != nil {
		return nil, &network.InvalidFormatError{Input: info.Sequence, Reason: "failed to parse sequence"}
	}

	account := &network.Account{
		AccountNumber: accountNumber,
		Sequence:      sequence,
		Type:          wrapper.Type,
	}

	// The address is decoded by the caller's codec; keep the raw bech32
	// payload here so equality checks stay byte-exact.
	addr := info.Address
	if addr == "" {
		addr = address
	}
	if bz, err := decodeAnyPrefix(addr); err == nil {
		account.Address = bz
	}

	if info.PubKey != nil && info.PubKey.Key != "" {
		key, err := base64.StdEncoding.DecodeString(info.PubKey.Key)
		if err != nil {
			return nil, &network.InvalidFormatError{Input: info.PubKey.Key, Reason: "public key is not base64"}
		}
		account.PubKey = key
	}

	return account, nil
}
