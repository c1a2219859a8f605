// pkg/network/cosmos/grpc_test.go
package cosmos

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	vestingtypes "github.com/cosmos/cosmos-sdk/x/auth/vesting/types"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

type fakeAuthServer struct {
	authtypes.UnimplementedQueryServer
	accounts map[string]*codectypes.Any
}

func (s *fakeAuthServer) Account(_ context.Context, req *authtypes.QueryAccountRequest) (*authtypes.QueryAccountResponse, error) {
	acc, ok := s.accounts[req.Address]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "account %s not found", req.Address)
	}
	return &authtypes.QueryAccountResponse{Account: acc}, nil
}

type fakeTxServer struct {
	txtypes.UnimplementedServiceServer
	broadcastCode uint32
	lastMode      txtypes.BroadcastMode
	pendingGets   atomic.Int32
}

func (s *fakeTxServer) BroadcastTx(_ context.Context, req *txtypes.BroadcastTxRequest) (*txtypes.BroadcastTxResponse, error) {
	s.lastMode = req.Mode
	return &txtypes.BroadcastTxResponse{TxResponse: &sdk.TxResponse{
		TxHash:    TxHash(req.TxBytes),
		Code:      s.broadcastCode,
		Codespace: "sdk",
	}}, nil
}

func (s *fakeTxServer) GetTx(_ context.Context, req *txtypes.GetTxRequest) (*txtypes.GetTxResponse, error) {
	if s.pendingGets.Add(-1) >= 0 {
		return nil, status.Errorf(codes.NotFound, "tx not found: %s", req.Hash)
	}
	return &txtypes.GetTxResponse{TxResponse: &sdk.TxResponse{
		TxHash:  req.Hash,
		Height:  55,
		GasUsed: 70000,
	}}, nil
}

func newTestGRPCClient(t *testing.T, auth *fakeAuthServer, tx *fakeTxServer) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.ForceServerCodec(NewCodec().GRPCCodec()))
	authtypes.RegisterQueryServer(server, auth)
	txtypes.RegisterServiceServer(server, tx)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	client, err := NewGRPCClient(ClientConfig{
		Endpoint:     "passthrough:///bufnet",
		PollInterval: 10 * time.Millisecond,
		BlockTimeout: time.Second,
	}, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func packAccount(t *testing.T, acc sdk.AccountI) *codectypes.Any {
	t.Helper()
	anyAcc, err := codectypes.NewAnyWithValue(acc)
	require.NoError(t, err)
	return anyAcc
}

func TestGRPCResolve(t *testing.T) {
	codec := mustCodec(t, "cosmos")
	alice := newTestKey(t, codec, "alice")
	bob := newTestKey(t, codec, "bob")

	base := authtypes.NewBaseAccount(sdk.AccAddress(alice.id), alice.pub, 42, 7)
	base.Address = alice.address

	vesting := &vestingtypes.DelayedVestingAccount{
		BaseVestingAccount: &vestingtypes.BaseVestingAccount{
			BaseAccount: &authtypes.BaseAccount{Address: bob.address, AccountNumber: 9, Sequence: 1},
		},
	}

	module := authtypes.NewEmptyModuleAccount("fee_collector")

	auth := &fakeAuthServer{accounts: map[string]*codectypes.Any{
		alice.address:   packAccount(t, base),
		bob.address:     packAccount(t, vesting),
		"cosmos1module": packAccount(t, module),
	}}
	client := newTestGRPCClient(t, auth, &fakeTxServer{})

	account, err := client.Resolve(context.Background(), alice.address)
	require.NoError(t, err)
	require.Equal(t, uint64(42), account.AccountNumber)
	require.Equal(t, uint64(7), account.Sequence)
	require.True(t, account.Address.Equal(alice.id))
	require.Equal(t, alice.pub.Key, account.PubKey)

	account, err = client.Resolve(context.Background(), bob.address)
	require.NoError(t, err)
	require.Equal(t, uint64(9), account.AccountNumber)
	require.Nil(t, account.PubKey)

	_, err = client.Resolve(context.Background(), "cosmos1module")
	require.True(t, network.IsAccountNotFound(err))
	var unexpected *network.UnexpectedAccountError
	require.ErrorAs(t, err, &unexpected)

	_, err = client.Resolve(context.Background(), "cosmos1missing")
	require.True(t, network.IsAccountNotFound(err))
	require.False(t, network.IsNetwork(err))
}

func TestGRPCBroadcast_BlockPolls(t *testing.T) {
	tx := &fakeTxServer{}
	tx.pendingGets.Store(2)
	client := newTestGRPCClient(t, &fakeAuthServer{}, tx)

	result, err := client.Broadcast(context.Background(), testTxBytes, network.BroadcastModeBlock)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, int64(55), result.Height)
	require.Equal(t, int64(70000), result.GasUsed)
	require.Equal(t, TxHash(testTxBytes), result.TxHash)
	require.Equal(t, txtypes.BroadcastMode_BROADCAST_MODE_SYNC, tx.lastMode)
}

func TestGRPCBroadcast_Rejected(t *testing.T) {
	tx := &fakeTxServer{broadcastCode: 13}
	client := newTestGRPCClient(t, &fakeAuthServer{}, tx)

	result, err := client.Broadcast(context.Background(), testTxBytes, network.BroadcastModeAsync)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, uint32(13), result.Code)
	require.Equal(t, txtypes.BroadcastMode_BROADCAST_MODE_ASYNC, tx.lastMode)
}

func TestGRPCQueryTx_NotFound(t *testing.T) {
	tx := &fakeTxServer{}
	tx.pendingGets.Store(1)
	client := newTestGRPCClient(t, &fakeAuthServer{}, tx)

	_, err := client.QueryTx(context.Background(), "ABCD")
	require.ErrorIs(t, err, network.ErrTxNotFound)

	result, err := client.QueryTx(context.Background(), "ABCD")
	require.NoError(t, err)
	require.Equal(t, "ABCD", result.TxHash)
}
