package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ChainGateway is the subset of the Ethereum RPC surface this application
// uses. Everything that talks to the chain goes through this interface so
// tests can substitute a mock.
type ChainGateway interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// EthGateway implements ChainGateway against a real node. Every call is
// bounded by callTimeout; receipt waits by receiptTimeout. A missed deadline
// is surfaced as a KindChainTimeout domain error rather than blocking the
// request indefinitely.
type EthGateway struct {
	client         *ethclient.Client
	callTimeout    time.Duration
	receiptTimeout time.Duration
}

// receiptPollInterval is how often a pending transaction is re-checked while
// waiting for it to be mined.
const receiptPollInterval = 500 * time.Millisecond

// DialGateway connects to the node at url and returns a gateway with the
// given call and receipt-wait deadlines.
func DialGateway(url string, callTimeout, receiptTimeout time.Duration) (*EthGateway, error) {
	if url == "" {
		return nil, fmt.Errorf("blockchain url required")
	}
	client, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to blockchain node: %w", err)
	}
	return &EthGateway{
		client:         client,
		callTimeout:    callTimeout,
		receiptTimeout: receiptTimeout,
	}, nil
}

// Close releases the underlying RPC connection.
func (g *EthGateway) Close() {
	g.client.Close()
}

func (g *EthGateway) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.callTimeout)
}

// timeoutErr converts a missed deadline into the chain-timeout domain error;
// other errors pass through untouched.
func timeoutErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &DomainError{Kind: KindChainTimeout, Message: "Chain call timed out.", Err: err}
	}
	return err
}

// ChainID reports the connected network's chain id.
func (g *EthGateway) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := g.withCallTimeout(ctx)
	defer cancel()
	id, err := g.client.ChainID(ctx)
	return id, timeoutErr(ctx, err)
}

// BalanceAt reads the current balance of an account.
func (g *EthGateway) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	ctx, cancel := g.withCallTimeout(ctx)
	defer cancel()
	balance, err := g.client.BalanceAt(ctx, account, nil)
	return balance, timeoutErr(ctx, err)
}

// PendingNonceAt reads the next transaction nonce for an account, including
// transactions still in the mempool.
func (g *EthGateway) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	ctx, cancel := g.withCallTimeout(ctx)
	defer cancel()
	nonce, err := g.client.PendingNonceAt(ctx, account)
	return nonce, timeoutErr(ctx, err)
}

// SuggestGasPrice reads the node's current gas price estimate.
func (g *EthGateway) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := g.withCallTimeout(ctx)
	defer cancel()
	price, err := g.client.SuggestGasPrice(ctx)
	return price, timeoutErr(ctx, err)
}

// SendTransaction submits a signed transaction.
func (g *EthGateway) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	ctx, cancel := g.withCallTimeout(ctx)
	defer cancel()
	return timeoutErr(ctx, g.client.SendTransaction(ctx, tx))
}

// WaitForReceipt polls until the transaction is mined or the receipt deadline
// passes. Cancelling the enclosing request context aborts the wait.
func (g *EthGateway) WaitForReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, g.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := g.client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, timeoutErr(ctx, err)
		}

		select {
		case <-ctx.Done():
			return nil, timeoutErr(ctx, fmt.Errorf("waiting for receipt of %s: %w", txHash.Hex(), ctx.Err()))
		case <-ticker.C:
		}
	}
}

// CallContract executes a read-only contract call.
func (g *EthGateway) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	ctx, cancel := g.withCallTimeout(ctx)
	defer cancel()
	out, err := g.client.CallContract(ctx, msg, nil)
	return out, timeoutErr(ctx, err)
}
