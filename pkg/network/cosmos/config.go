// pkg/network/cosmos/config.go
package cosmos

import (
	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/std"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	vestingtypes "github.com/cosmos/cosmos-sdk/x/auth/vesting/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
)

// NewInterfaceRegistry creates an interface registry with the types a
// transfer pipeline encounters: crypto keys, account records and bank msgs.
func NewInterfaceRegistry() codectypes.InterfaceRegistry {
	interfaceRegistry := codectypes.NewInterfaceRegistry()

	// Register standard types (crypto keys, sdk.Msg, tx types)
	std.RegisterInterfaces(interfaceRegistry)

	// Register module interfaces
	authtypes.RegisterInterfaces(interfaceRegistry)
	vestingtypes.RegisterInterfaces(interfaceRegistry)
	banktypes.RegisterInterfaces(interfaceRegistry)

	return interfaceRegistry
}

// NewCodec creates a proto codec backed by NewInterfaceRegistry.
// No SDK global configuration is read or written.
func NewCodec() *codec.ProtoCodec {
	return codec.NewProtoCodec(NewInterfaceRegistry())
}
