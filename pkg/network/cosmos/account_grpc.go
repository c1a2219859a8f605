// pkg/network/cosmos/account_grpc.go
package cosmos

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/cosmos/cosmos-sdk/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	vestingtypes "github.com/cosmos/cosmos-sdk/x/auth/vesting/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// GRPCClient talks to a node's gRPC server.
type GRPCClient struct {
	target       string
	conn         *grpc.ClientConn
	cdc          *codec.ProtoCodec
	authClient   authtypes.QueryClient
	txClient     txtypes.ServiceClient
	pollInterval time.Duration
	blockTimeout time.Duration
}

var (
	_ network.AccountResolver = (*GRPCClient)(nil)
	_ network.Broadcaster     = (*GRPCClient)(nil)
)

// NewGRPCClient creates a gRPC transport. Targets on port 443 use TLS;
// extra dial options are appended after the transport credentials.
func NewGRPCClient(cfg ClientConfig, opts ...grpc.DialOption) (*GRPCClient, error) {
	if cfg.Endpoint == "" {
		return nil, &network.ConfigError{Field: "endpoints.grpc", Message: "gRPC endpoint is required"}
	}
	cfg = cfg.withDefaults()

	creds := grpc.WithTransportCredentials(insecure.NewCredentials())
	if strings.HasSuffix(cfg.Endpoint, ":443") {
		creds = grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12}))
	}

	// Gogoproto messages need the SDK's codec on the wire.
	cdc := NewCodec()
	dialOpts := append([]grpc.DialOption{
		creds,
		grpc.WithDefaultCallOptions(grpc.ForceCodec(cdc.GRPCCodec())),
	}, opts...)

	conn, err := grpc.NewClient(cfg.Endpoint, dialOpts...)
	if err != nil {
		return nil, &network.ConfigError{Field: "endpoints.grpc", Message: err.Error()}
	}

	return &GRPCClient{
		target:       cfg.Endpoint,
		conn:         conn,
		cdc:          cdc,
		authClient:   authtypes.NewQueryClient(conn),
		txClient:     txtypes.NewServiceClient(conn),
		pollInterval: cfg.PollInterval,
		blockTimeout: cfg.BlockTimeout,
	}, nil
}

// Endpoint returns the gRPC target.
func (c *GRPCClient) Endpoint() string {
	return c.target
}

// Close closes the gRPC connection.
func (c *GRPCClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Resolve queries the auth module for address.
func (c *GRPCClient) Resolve(ctx context.Context, address string) (*network.Account, error) {
	if address == "" {
		return nil, &network.InvalidFormatError{Input: address, Reason: "address is required"}
	}

	res, err := c.authClient.Account(ctx, &authtypes.QueryAccountRequest{Address: address})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, &network.AccountNotFoundError{Address: address}
		}
		return nil, &network.NetworkError{Operation: "account query", Endpoint: c.target, Err: err}
	}
	if res.Account == nil {
		return nil, &network.AccountNotFoundError{Address: address}
	}

	var account sdk.AccountI
	if err := c.cdc.UnpackAny(res.Account, &account); err != nil {
		return nil, &network.UnexpectedAccountError{Address: address, Type: res.Account.TypeUrl}
	}

	base, err := signingBaseAccount(account)
	if err != nil {
		return nil, &network.UnexpectedAccountError{Address: address, Type: res.Account.TypeUrl}
	}

	result := &network.Account{
		AccountNumber: base.AccountNumber,
		Sequence:      base.Sequence,
		Type:          res.Account.TypeUrl,
	}

	// base.GetAddress would go through the SDK's global prefix; decode the
	// string field directly instead.
	addr := base.Address
	if addr == "" {
		addr = address
	}
	if bz, err := decodeAnyPrefix(addr); err == nil {
		result.Address = bz
	}
	if pk := base.GetPubKey(); pk != nil {
		result.PubKey = pk.Bytes()
	}
	return result, nil
}

// signingBaseAccount returns the base account that signs for account.
func signingBaseAccount(account sdk.AccountI) (*authtypes.BaseAccount, error) {
	switch acc := account.(type) {
	case *authtypes.BaseAccount:
		return acc, nil
	case *vestingtypes.ContinuousVestingAccount:
		return vestingBase(acc.BaseVestingAccount)
	case *vestingtypes.DelayedVestingAccount:
		return vestingBase(acc.BaseVestingAccount)
	case *vestingtypes.PeriodicVestingAccount:
		return vestingBase(acc.BaseVestingAccount)
	case *vestingtypes.PermanentLockedAccount:
		return vestingBase(acc.BaseVestingAccount)
	default:
		return nil, fmt.Errorf("account type %T cannot sign", account)
	}
}

func vestingBase(bva *vestingtypes.BaseVestingAccount) (*authtypes.BaseAccount, error) {
	if bva == nil || bva.BaseAccount == nil {
		return nil, fmt.Errorf("vesting account has no base account")
	}
	return bva.BaseAccount, nil
}
