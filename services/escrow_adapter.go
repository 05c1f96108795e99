package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// orderPaymentABI describes the external surface of the OrderPayment escrow
// contract. The contract itself is an opaque collaborator: it is deployed
// from prebuilt bytecode and only ever driven through this ABI.
const orderPaymentABI = `[
  {"type":"constructor","inputs":[
    {"name":"_owner","type":"address"},
    {"name":"_courier","type":"address"},
    {"name":"_customer","type":"address"},
    {"name":"_price","type":"uint256"}],"stateMutability":"nonpayable"},
  {"type":"function","name":"pay","inputs":[],"outputs":[],"stateMutability":"payable"},
  {"type":"function","name":"isPaid","inputs":[],"outputs":[{"type":"bool"}],"stateMutability":"view"},
  {"type":"function","name":"getAmountPaid","inputs":[],"outputs":[{"type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"assignCourier","inputs":[{"name":"_courier","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"courier_address","inputs":[],"outputs":[{"type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"confirmDelivery","inputs":[],"outputs":[],"stateMutability":"nonpayable"}
]`

// Gas limits match what the contract was provisioned with originally.
const (
	deployGasLimit = 2_000_000
	writeGasLimit  = 200_000
	payGasLimit    = 200_000
)

// PaymentTransaction is an unsigned transaction descriptor returned to the
// paying party. The system never holds the customer's key: an invoice is a
// request for payment, and signing and submitting it happens outside.
type PaymentTransaction struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Value    *big.Int `json:"value"`
	Gas      uint64   `json:"gas"`
	GasPrice *big.Int `json:"gasPrice"`
	Nonce    uint64   `json:"nonce"`
	Data     string   `json:"data"`
	ChainID  int64    `json:"chainId"`
}

// EscrowAdapter translates order-domain operations into OrderPayment contract
// calls. Read methods returning false/zero successfully are valid outcomes;
// only transport and revert failures surface as errors.
type EscrowAdapter interface {
	// Deploy creates a new escrow instance for an order. The courier slot is
	// initialized to the zero address; the caller must not persist a contract
	// address unless this returns one.
	Deploy(ctx context.Context, customer common.Address, priceUnits *big.Int) (common.Address, error)
	IsPaid(ctx context.Context, contract common.Address) (bool, error)
	AmountPaid(ctx context.Context, contract common.Address) (*big.Int, error)
	CourierAddress(ctx context.Context, contract common.Address) (common.Address, error)
	// BuildPaymentTransaction prepares an unsigned pay() transaction carrying
	// the given amount. It never signs and never submits.
	BuildPaymentTransaction(ctx context.Context, contract, from common.Address, amount *big.Int) (*PaymentTransaction, error)
	// AssignCourier binds the courier on-chain. The transaction is paid for by
	// the system owner account, not the courier.
	AssignCourier(ctx context.Context, contract, courier common.Address) error
	// ConfirmDelivery releases the escrowed funds.
	ConfirmDelivery(ctx context.Context, contract common.Address) error
}

// EthEscrowAdapter is the production EscrowAdapter backed by a chain gateway
// and the owner signing account.
type EthEscrowAdapter struct {
	gw       ChainGateway
	owner    *OwnerAccount
	abi      abi.ABI
	bytecode []byte
	chainID  int64
}

// NewEthEscrowAdapter parses the contract ABI and loads the deployment
// bytecode from binPath.
func NewEthEscrowAdapter(gw ChainGateway, owner *OwnerAccount, binPath string, chainID int64) (*EthEscrowAdapter, error) {
	parsed, err := abi.JSON(strings.NewReader(orderPaymentABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	raw, err := os.ReadFile(binPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract bytecode: %w", err)
	}
	bytecode, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(string(raw), "0x")))
	if err != nil {
		return nil, fmt.Errorf("contract bytecode is not valid hex: %w", err)
	}
	return &EthEscrowAdapter{
		gw:       gw,
		owner:    owner,
		abi:      parsed,
		bytecode: bytecode,
		chainID:  chainID,
	}, nil
}

// Deploy submits the contract-creation transaction and waits for its receipt.
func (a *EthEscrowAdapter) Deploy(ctx context.Context, customer common.Address, priceUnits *big.Int) (common.Address, error) {
	args, err := a.abi.Pack("", a.owner.Address(), common.Address{}, customer, priceUnits)
	if err != nil {
		return common.Address{}, ErrChainWrite("Contract deployment failed.", err)
	}
	data := append(append([]byte{}, a.bytecode...), args...)

	receipt, err := a.owner.SignAndSend(ctx, a.gw, func(nonce uint64, gasPrice *big.Int) *gethtypes.Transaction {
		return gethtypes.NewContractCreation(nonce, common.Big0, deployGasLimit, gasPrice, data)
	})
	if err != nil {
		return common.Address{}, ErrChainWrite("Contract deployment failed.", err)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return common.Address{}, ErrChainWrite("Contract deployment failed.", fmt.Errorf("receipt carries no contract address"))
	}
	return receipt.ContractAddress, nil
}

// IsPaid reads whether the escrow has received the full order price.
func (a *EthEscrowAdapter) IsPaid(ctx context.Context, contract common.Address) (bool, error) {
	out, err := a.call(ctx, contract, "isPaid")
	if err != nil {
		return false, ErrChainRead("Error checking payment status.", err)
	}
	paid, ok := out[0].(bool)
	if !ok {
		return false, ErrChainRead("Error checking payment status.", fmt.Errorf("unexpected isPaid result %T", out[0]))
	}
	return paid, nil
}

// AmountPaid reads the cumulative amount paid into the escrow so far.
func (a *EthEscrowAdapter) AmountPaid(ctx context.Context, contract common.Address) (*big.Int, error) {
	out, err := a.call(ctx, contract, "getAmountPaid")
	if err != nil {
		return nil, ErrChainRead("Error checking payment status.", err)
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return nil, ErrChainRead("Error checking payment status.", fmt.Errorf("unexpected getAmountPaid result %T", out[0]))
	}
	return amount, nil
}

// CourierAddress reads the bound courier; the zero address means unassigned.
func (a *EthEscrowAdapter) CourierAddress(ctx context.Context, contract common.Address) (common.Address, error) {
	out, err := a.call(ctx, contract, "courier_address")
	if err != nil {
		return common.Address{}, ErrChainRead("Error checking courier assignment.", err)
	}
	courier, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, ErrChainRead("Error checking courier assignment.", fmt.Errorf("unexpected courier_address result %T", out[0]))
	}
	return courier, nil
}

// BuildPaymentTransaction returns the unsigned pay() descriptor for the
// customer to sign externally.
func (a *EthEscrowAdapter) BuildPaymentTransaction(ctx context.Context, contract, from common.Address, amount *big.Int) (*PaymentTransaction, error) {
	data, err := a.abi.Pack("pay")
	if err != nil {
		return nil, ErrChainRead("Error generating invoice.", err)
	}
	nonce, err := a.gw.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, ErrChainRead("Error generating invoice.", err)
	}
	gasPrice, err := a.gw.SuggestGasPrice(ctx)
	if err != nil {
		return nil, ErrChainRead("Error generating invoice.", err)
	}
	return &PaymentTransaction{
		From:     from.Hex(),
		To:       contract.Hex(),
		Value:    new(big.Int).Set(amount),
		Gas:      payGasLimit,
		GasPrice: gasPrice,
		Nonce:    nonce,
		Data:     "0x" + hex.EncodeToString(data),
		ChainID:  a.chainID,
	}, nil
}

// AssignCourier submits assignCourier signed by the owner account.
func (a *EthEscrowAdapter) AssignCourier(ctx context.Context, contract, courier common.Address) error {
	data, err := a.abi.Pack("assignCourier", courier)
	if err != nil {
		return ErrChainWrite("Error assigning courier.", err)
	}
	if _, err := a.owner.SignAndSend(ctx, a.gw, func(nonce uint64, gasPrice *big.Int) *gethtypes.Transaction {
		return gethtypes.NewTransaction(nonce, contract, common.Big0, writeGasLimit, gasPrice, data)
	}); err != nil {
		return ErrChainWrite("Error assigning courier.", err)
	}
	return nil
}

// ConfirmDelivery submits confirmDelivery, releasing the escrowed funds.
func (a *EthEscrowAdapter) ConfirmDelivery(ctx context.Context, contract common.Address) error {
	data, err := a.abi.Pack("confirmDelivery")
	if err != nil {
		return ErrChainWrite("Error confirming delivery.", err)
	}
	if _, err := a.owner.SignAndSend(ctx, a.gw, func(nonce uint64, gasPrice *big.Int) *gethtypes.Transaction {
		return gethtypes.NewTransaction(nonce, contract, common.Big0, writeGasLimit, gasPrice, data)
	}); err != nil {
		return ErrChainWrite("Error confirming delivery.", err)
	}
	return nil
}

func (a *EthEscrowAdapter) call(ctx context.Context, contract common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := a.abi.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	raw, err := a.gw.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data})
	if err != nil {
		return nil, err
	}
	out, err := a.abi.Unpack(method, raw)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty result from %s", method)
	}
	return out, nil
}
