package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// MockChainGateway is an in-memory ChainGateway for tests. Submitted
// transactions are recorded and succeed immediately unless a failure is
// scripted.
type MockChainGateway struct {
	mu sync.Mutex

	Balances map[common.Address]*big.Int
	Nonces   map[common.Address]uint64
	GasPrice *big.Int

	// CallFn, when set, answers CallContract invocations.
	CallFn func(msg ethereum.CallMsg) ([]byte, error)

	// SendErr fails the next SendTransaction when set.
	SendErr error
	// RevertNext makes the next submitted transaction's receipt report failure.
	RevertNext bool

	Sent     []*gethtypes.Transaction
	receipts map[common.Hash]*gethtypes.Receipt
}

// NewMockChainGateway creates a gateway with empty state and a 1 gwei gas price.
func NewMockChainGateway() *MockChainGateway {
	return &MockChainGateway{
		Balances: make(map[common.Address]*big.Int),
		Nonces:   make(map[common.Address]uint64),
		GasPrice: big.NewInt(1_000_000_000),
		receipts: make(map[common.Hash]*gethtypes.Receipt),
	}
}

// ChainID returns a fixed test chain id.
func (m *MockChainGateway) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1337), nil
}

// BalanceAt returns the scripted balance, zero by default.
func (m *MockChainGateway) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if balance, ok := m.Balances[account]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

// PendingNonceAt returns the account's next nonce.
func (m *MockChainGateway) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Nonces[account], nil
}

// SuggestGasPrice returns the configured gas price.
func (m *MockChainGateway) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(m.GasPrice), nil
}

// SendTransaction records the transaction and prepares its receipt.
func (m *MockChainGateway) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendErr != nil {
		err := m.SendErr
		m.SendErr = nil
		return err
	}

	m.Sent = append(m.Sent, tx)

	status := gethtypes.ReceiptStatusSuccessful
	if m.RevertNext {
		status = gethtypes.ReceiptStatusFailed
		m.RevertNext = false
	}
	receipt := &gethtypes.Receipt{
		TxHash:      tx.Hash(),
		Status:      status,
		BlockNumber: big.NewInt(int64(len(m.Sent))),
	}
	if tx.To() == nil {
		// Contract creation: derive a deterministic fake address.
		receipt.ContractAddress = common.BytesToAddress(tx.Hash().Bytes()[:20])
	}
	m.receipts[tx.Hash()] = receipt
	return nil
}

// WaitForReceipt returns the receipt recorded at submission time.
func (m *MockChainGateway) WaitForReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, ok := m.receipts[txHash]
	if !ok {
		return nil, fmt.Errorf("no receipt for %s", txHash.Hex())
	}
	return receipt, nil
}

// CallContract delegates to CallFn.
func (m *MockChainGateway) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if m.CallFn == nil {
		return nil, fmt.Errorf("no call handler configured")
	}
	return m.CallFn(msg)
}

// SentCount returns how many transactions were submitted.
func (m *MockChainGateway) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
