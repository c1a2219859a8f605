// internal/pipeline/send.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/altuslabsxyz/txpipe/pkg/network"
	"github.com/altuslabsxyz/txpipe/pkg/network/cosmos"
)

// Transport names accepted by Endpoints.Broadcast.
const (
	TransportREST = "rest"
	TransportGRPC = "grpc"
	TransportRPC  = "rpc"
)

// Endpoints addresses a node. Accounts are resolved over gRPC when GRPC is
// set and over REST otherwise; CometBFT RPC can only broadcast.
type Endpoints struct {
	REST string `yaml:"rest" toml:"rest"`
	GRPC string `yaml:"grpc" toml:"grpc"`
	RPC  string `yaml:"rpc" toml:"rpc"`

	// Broadcast selects the submit transport. Empty picks grpc, rest, rpc
	// in that order of availability.
	Broadcast string `yaml:"broadcast" toml:"broadcast"`

	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval"`
	BlockTimeout time.Duration `yaml:"block_timeout" toml:"block_timeout"`
}

// BroadcastTransport returns the effective submit transport.
func (e Endpoints) BroadcastTransport() string {
	if t := strings.ToLower(strings.TrimSpace(e.Broadcast)); t != "" {
		return t
	}
	switch {
	case e.GRPC != "":
		return TransportGRPC
	case e.REST != "":
		return TransportREST
	default:
		return TransportRPC
	}
}

// Clients is a dialed set of ledger transports.
type Clients struct {
	Resolver    network.AccountResolver
	Broadcaster network.Broadcaster

	// RPC is set when an RPC endpoint is configured; it serves node info.
	RPC *cosmos.RPCClient

	closers []io.Closer
}

// Close releases every connection opened by Dial.
func (c *Clients) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dial creates the transports described by eps. No request is sent; gRPC
// connections are established lazily.
func Dial(eps Endpoints) (*Clients, error) {
	if eps.REST == "" && eps.GRPC == "" {
		return nil, &network.ConfigError{Field: "endpoints", Message: "a rest or grpc endpoint is required to resolve accounts"}
	}

	base := cosmos.ClientConfig{PollInterval: eps.PollInterval, BlockTimeout: eps.BlockTimeout}
	clients := &Clients{}

	var rest *cosmos.RESTClient
	if eps.REST != "" {
		cfg := base
		cfg.Endpoint = eps.REST
		c, err := cosmos.NewRESTClient(cfg)
		if err != nil {
			return nil, err
		}
		rest = c
	}

	var grpcClient *cosmos.GRPCClient
	if eps.GRPC != "" {
		cfg := base
		cfg.Endpoint = eps.GRPC
		c, err := cosmos.NewGRPCClient(cfg)
		if err != nil {
			return nil, err
		}
		grpcClient = c
		clients.closers = append(clients.closers, c)
	}

	if eps.RPC != "" {
		cfg := base
		cfg.Endpoint = eps.RPC
		c, err := cosmos.NewRPCClient(cfg)
		if err != nil {
			_ = clients.Close()
			return nil, err
		}
		clients.RPC = c
	}

	if grpcClient != nil {
		clients.Resolver = grpcClient
	} else {
		clients.Resolver = rest
	}

	transport := eps.BroadcastTransport()
	switch {
	case transport == TransportGRPC && grpcClient != nil:
		clients.Broadcaster = grpcClient
	case transport == TransportREST && rest != nil:
		clients.Broadcaster = rest
	case transport == TransportRPC && clients.RPC != nil:
		clients.Broadcaster = clients.RPC
	default:
		_ = clients.Close()
		return nil, &network.ConfigError{
			Field:   "endpoints.broadcast",
			Message: fmt.Sprintf("transport %q has no configured endpoint", transport),
		}
	}
	return clients, nil
}

// Send dials eps, runs one attempt and closes the transports.
func Send(ctx context.Context, eps Endpoints, req Request, oracle network.SigningOracle, opts ...Option) (*Outcome, error) {
	clients, err := Dial(eps)
	if err != nil {
		return &Outcome{State: StateFailed}, err
	}
	defer clients.Close()

	return New(clients.Resolver, oracle, clients.Broadcaster, opts...).Execute(ctx, req)
}
