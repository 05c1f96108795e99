package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// mockContractState is the scripted on-chain state of one escrow instance.
type mockContractState struct {
	customer   common.Address
	priceUnits *big.Int
	amountPaid *big.Int
	courier    common.Address
	released   bool
}

// MockEscrowAdapter simulates the OrderPayment contract in memory. Tests
// script payments with Pay and failures with the Fail* fields.
type MockEscrowAdapter struct {
	mu        sync.Mutex
	contracts map[common.Address]*mockContractState
	nextID    int

	FailDeploy          error
	FailAssignCourier   error
	FailConfirmDelivery error

	AssignCourierCalls   int
	ConfirmDeliveryCalls int
}

// NewMockEscrowAdapter creates an adapter with no deployed contracts.
func NewMockEscrowAdapter() *MockEscrowAdapter {
	return &MockEscrowAdapter{contracts: make(map[common.Address]*mockContractState)}
}

// Deploy registers a new simulated contract and returns its address.
func (m *MockEscrowAdapter) Deploy(ctx context.Context, customer common.Address, priceUnits *big.Int) (common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailDeploy != nil {
		return common.Address{}, ErrChainWrite("Contract deployment failed.", m.FailDeploy)
	}

	m.nextID++
	address := common.BigToAddress(big.NewInt(int64(0x1000 + m.nextID)))
	m.contracts[address] = &mockContractState{
		customer:   customer,
		priceUnits: new(big.Int).Set(priceUnits),
		amountPaid: big.NewInt(0),
	}
	return address, nil
}

// Pay simulates the customer paying amount into the escrow. Overpayment is
// rejected the way the contract would reject it.
func (m *MockEscrowAdapter) Pay(contract common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.contracts[contract]
	if !ok {
		return fmt.Errorf("unknown contract %s", contract.Hex())
	}
	next := new(big.Int).Add(state.amountPaid, amount)
	if next.Cmp(state.priceUnits) > 0 {
		return fmt.Errorf("payment exceeds price")
	}
	state.amountPaid = next
	return nil
}

// IsPaid reports whether the full price has been paid in.
func (m *MockEscrowAdapter) IsPaid(ctx context.Context, contract common.Address) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.contracts[contract]
	if !ok {
		return false, ErrChainRead("Error checking payment status.", fmt.Errorf("unknown contract %s", contract.Hex()))
	}
	return state.amountPaid.Cmp(state.priceUnits) >= 0, nil
}

// AmountPaid returns the cumulative paid amount.
func (m *MockEscrowAdapter) AmountPaid(ctx context.Context, contract common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.contracts[contract]
	if !ok {
		return nil, ErrChainRead("Error checking payment status.", fmt.Errorf("unknown contract %s", contract.Hex()))
	}
	return new(big.Int).Set(state.amountPaid), nil
}

// CourierAddress returns the bound courier, zero address when unassigned.
func (m *MockEscrowAdapter) CourierAddress(ctx context.Context, contract common.Address) (common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.contracts[contract]
	if !ok {
		return common.Address{}, ErrChainRead("Error checking courier assignment.", fmt.Errorf("unknown contract %s", contract.Hex()))
	}
	return state.courier, nil
}

// BuildPaymentTransaction returns a descriptor without touching any state.
func (m *MockEscrowAdapter) BuildPaymentTransaction(ctx context.Context, contract, from common.Address, amount *big.Int) (*PaymentTransaction, error) {
	return &PaymentTransaction{
		From:     from.Hex(),
		To:       contract.Hex(),
		Value:    new(big.Int).Set(amount),
		Gas:      payGasLimit,
		GasPrice: big.NewInt(1_000_000_000),
		Nonce:    0,
		Data:     "0x1b9265b8", // pay() selector
		ChainID:  1337,
	}, nil
}

// AssignCourier binds the courier unless a failure is scripted.
func (m *MockEscrowAdapter) AssignCourier(ctx context.Context, contract, courier common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AssignCourierCalls++
	if m.FailAssignCourier != nil {
		return ErrChainWrite("Error assigning courier.", m.FailAssignCourier)
	}

	state, ok := m.contracts[contract]
	if !ok {
		return ErrChainWrite("Error assigning courier.", fmt.Errorf("unknown contract %s", contract.Hex()))
	}
	if state.courier != (common.Address{}) {
		return ErrChainWrite("Error assigning courier.", fmt.Errorf("courier already assigned"))
	}
	state.courier = courier
	return nil
}

// ConfirmDelivery releases the escrow unless a failure is scripted.
func (m *MockEscrowAdapter) ConfirmDelivery(ctx context.Context, contract common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConfirmDeliveryCalls++
	if m.FailConfirmDelivery != nil {
		return ErrChainWrite("Error confirming delivery.", m.FailConfirmDelivery)
	}

	state, ok := m.contracts[contract]
	if !ok {
		return ErrChainWrite("Error confirming delivery.", fmt.Errorf("unknown contract %s", contract.Hex()))
	}
	if state.courier == (common.Address{}) {
		return ErrChainWrite("Error confirming delivery.", fmt.Errorf("no courier assigned"))
	}
	state.released = true
	return nil
}

// Released reports whether the contract's funds were released (for assertions).
func (m *MockEscrowAdapter) Released(contract common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.contracts[contract]
	return ok && state.released
}
