// pkg/network/cosmos/msgs.go
package cosmos

import (
	"fmt"
	"regexp"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"

	"github.com/altuslabsxyz/txpipe/pkg/network"
)

var (
	amountPattern   = regexp.MustCompile(`^\d+$`)
	coinPattern     = regexp.MustCompile(`^(\d+)([a-zA-Z][a-zA-Z0-9/:._-]*)$`)
	gasPricePattern = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)([a-zA-Z][a-zA-Z0-9/:._-]*)$`)
)

// ParseTransferAmount validates a base-denomination amount string.
// Only unsigned base-10 integers are accepted; zero is allowed.
func ParseTransferAmount(amount string) (sdkmath.Int, error) {
	if !amountPattern.MatchString(amount) {
		return sdkmath.Int{}, &network.InvalidFormatError{Input: amount, Reason: "amount must be a non-negative integer"}
	}

	value, ok := sdkmath.NewIntFromString(amount)
	if !ok {
		return sdkmath.Int{}, &network.InvalidFormatError{Input: amount, Reason: "amount out of range"}
	}
	return value, nil
}

// ValidateTransferDenom checks a transfer denomination with the SDK's denom rules.
func ValidateTransferDenom(denom string) error {
	if err := sdk.ValidateDenom(denom); err != nil {
		return &network.InvalidFormatError{Input: denom, Reason: err.Error()}
	}
	return nil
}

// NewMsgSend converts a TransferMessage into a bank MsgSend, rendering
// addresses with the codec's prefix.
func NewMsgSend(codec AddressCodec, msg network.TransferMessage) (*banktypes.MsgSend, error) {
	if err := ValidateTransferDenom(msg.Denom); err != nil {
		return nil, err
	}

	amount, err := ParseTransferAmount(msg.Amount)
	if err != nil {
		return nil, err
	}

	from, err := codec.Encode(msg.Sender)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	to, err := codec.Encode(msg.Recipient)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}

	// sdk.NewCoins would drop a zero coin; keep the amount exactly as given.
	return &banktypes.MsgSend{
		FromAddress: from,
		ToAddress:   to,
		Amount:      sdk.Coins{sdk.NewCoin(msg.Denom, amount)},
	}, nil
}

// DecodeTransfer extracts the bank send carried by serialized TxBody bytes.
func DecodeTransfer(bodyBytes []byte) (*banktypes.MsgSend, string, error) {
	var body txtypes.TxBody
	if err := body.Unmarshal(bodyBytes); err != nil {
		return nil, "", fmt.Errorf("decode tx body: %w", err)
	}
	if len(body.Messages) != 1 {
		return nil, "", fmt.Errorf("expected exactly one message, got %d", len(body.Messages))
	}

	anyMsg := body.Messages[0]
	if anyMsg.TypeUrl != sdk.MsgTypeURL(&banktypes.MsgSend{}) {
		return nil, "", fmt.Errorf("unexpected message type %s", anyMsg.TypeUrl)
	}

	var msg banktypes.MsgSend
	if err := msg.Unmarshal(anyMsg.Value); err != nil {
		return nil, "", fmt.Errorf("decode MsgSend: %w", err)
	}
	return &msg, body.Memo, nil
}

// ParseGasPrice parses a gas price string like "0.025stake" into a DecCoin.
func ParseGasPrice(s string) (sdk.DecCoin, error) {
	if s == "" {
		return sdk.DecCoin{}, fmt.Errorf("gas price cannot be empty")
	}

	// The format is <amount><denom> where amount can be decimal
	matches := gasPricePattern.FindStringSubmatch(s)
	if len(matches) != 3 {
		return sdk.DecCoin{}, fmt.Errorf("invalid gas price format: %s (expected format like '0.025stake')", s)
	}

	amountStr := matches[1]
	denom := matches[2]
	if err := sdk.ValidateDenom(denom); err != nil {
		return sdk.DecCoin{}, fmt.Errorf("invalid gas price denom: %w", err)
	}

	amount, err := sdkmath.LegacyNewDecFromStr(amountStr)
	if err != nil {
		return sdk.DecCoin{}, fmt.Errorf("failed to parse gas price amount: %w", err)
	}

	return sdk.NewDecCoinFromDec(denom, amount), nil
}

// ParseAmount parses an amount string like "1000stake" into a Coin.
func ParseAmount(s string) (sdk.Coin, error) {
	if s == "" {
		return sdk.Coin{}, fmt.Errorf("amount cannot be empty")
	}

	// The format is <amount><denom> where amount is an integer
	matches := coinPattern.FindStringSubmatch(s)
	if len(matches) != 3 {
		return sdk.Coin{}, fmt.Errorf("invalid amount format: %s (expected format like '1000stake')", s)
	}

	amountStr := matches[1]
	denom := matches[2]
	if err := sdk.ValidateDenom(denom); err != nil {
		return sdk.Coin{}, fmt.Errorf("invalid denom: %w", err)
	}

	amount, ok := sdkmath.NewIntFromString(amountStr)
	if !ok {
		return sdk.Coin{}, fmt.Errorf("failed to parse amount: %s", amountStr)
	}

	return sdk.NewCoin(denom, amount), nil
}

// NewFee builds the fee limit from a gas limit and either a fixed fee
// amount ("5000uatom") or a gas price ("0.025uatom"). Setting both is an error.
func NewFee(gasLimit uint64, feeAmount, gasPrice string) (network.Fee, error) {
	if gasLimit == 0 {
		gasLimit = network.DefaultGasLimit
	}
	if feeAmount != "" && gasPrice != "" {
		return network.Fee{}, &network.ConfigError{Field: "fee", Message: "set either fee or gas_price, not both"}
	}

	fee := network.Fee{GasLimit: gasLimit}
	switch {
	case feeAmount != "":
		coin, err := ParseAmount(feeAmount)
		if err != nil {
			return network.Fee{}, &network.ConfigError{Field: "fee", Message: err.Error()}
		}
		fee.Amount = sdk.NewCoins(coin)
	case gasPrice != "":
		price, err := ParseGasPrice(gasPrice)
		if err != nil {
			return network.Fee{}, &network.ConfigError{Field: "gas_price", Message: err.Error()}
		}
		// Fee = ceil(gasLimit * gasPrice)
		amount := price.Amount.MulInt64(int64(gasLimit)).Ceil().TruncateInt()
		fee.Amount = sdk.NewCoins(sdk.NewCoin(price.Denom, amount))
	}
	return fee, nil
}
