package services

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBytecodeHex = "6080604052348015600f57600080fd5b50603f80601d6000396000f3fe"

func newTestAdapter(t *testing.T) (*EthEscrowAdapter, *MockChainGateway, *OwnerAccount) {
	t.Helper()

	binPath := filepath.Join(t.TempDir(), "OrderPayment.bin")
	require.NoError(t, os.WriteFile(binPath, []byte(testBytecodeHex+"\n"), 0o644))

	gw := NewMockChainGateway()
	owner := newTestOwner(t)
	adapter, err := NewEthEscrowAdapter(gw, owner, binPath, 1337)
	require.NoError(t, err)
	return adapter, gw, owner
}

// scriptCalls answers contract reads by method selector with ABI-encoded
// results.
func scriptCalls(t *testing.T, gw *MockChainGateway, results map[string][]interface{}) {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(orderPaymentABI))
	require.NoError(t, err)

	gw.CallFn = func(msg ethereum.CallMsg) ([]byte, error) {
		for name, values := range results {
			method := parsed.Methods[name]
			if bytes.Equal(msg.Data[:4], method.ID) {
				return method.Outputs.Pack(values...)
			}
		}
		t.Fatalf("unexpected contract call %x", msg.Data[:4])
		return nil, nil
	}
}

func TestNewEthEscrowAdapterRejectsBadBytecode(t *testing.T) {
	binPath := filepath.Join(t.TempDir(), "OrderPayment.bin")
	require.NoError(t, os.WriteFile(binPath, []byte("not hex at all"), 0o644))

	_, err := NewEthEscrowAdapter(NewMockChainGateway(), newTestOwner(t), binPath, 1337)
	assert.ErrorContains(t, err, "not valid hex")

	_, err = NewEthEscrowAdapter(NewMockChainGateway(), newTestOwner(t), filepath.Join(t.TempDir(), "missing.bin"), 1337)
	assert.ErrorContains(t, err, "failed to read contract bytecode")
}

func TestDeploySubmitsCreationTransaction(t *testing.T) {
	adapter, gw, _ := newTestAdapter(t)
	customer := common.HexToAddress("0x3A3652a47A9a351F98149ecC76806F83B7719294")

	address, err := adapter.Deploy(context.Background(), customer, big.NewInt(10000))
	require.NoError(t, err)
	assert.NotEqual(t, common.Address{}, address)

	require.Equal(t, 1, gw.SentCount())
	sent := gw.Sent[0]
	assert.Nil(t, sent.To())
	assert.Equal(t, uint64(deployGasLimit), sent.Gas())

	// Creation data starts with the contract bytecode, constructor args appended.
	assert.True(t, bytes.HasPrefix(sent.Data(), adapter.bytecode))
	assert.Greater(t, len(sent.Data()), len(adapter.bytecode))
}

func TestDeployRevertSurfacesChainWriteError(t *testing.T) {
	adapter, gw, _ := newTestAdapter(t)
	gw.RevertNext = true

	_, err := adapter.Deploy(context.Background(), common.HexToAddress("0x3A3652a47A9a351F98149ecC76806F83B7719294"), big.NewInt(10000))
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindChainWrite, de.Kind)
	assert.Equal(t, "Contract deployment failed.", de.Message)
}

func TestContractReads(t *testing.T) {
	adapter, gw, _ := newTestAdapter(t)
	contract := common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984")
	courier := common.HexToAddress("0xab602Fac892e965d883691120AC9619e1168F36f")

	scriptCalls(t, gw, map[string][]interface{}{
		"isPaid":          {false},
		"getAmountPaid":   {big.NewInt(4000)},
		"courier_address": {courier},
	})

	paid, err := adapter.IsPaid(context.Background(), contract)
	require.NoError(t, err)
	assert.False(t, paid)

	amount, err := adapter.AmountPaid(context.Background(), contract)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), amount.Int64())

	bound, err := adapter.CourierAddress(context.Background(), contract)
	require.NoError(t, err)
	assert.Equal(t, courier, bound)
}

func TestContractReadFailureKeepsKind(t *testing.T) {
	adapter, gw, _ := newTestAdapter(t)
	gw.CallFn = func(msg ethereum.CallMsg) ([]byte, error) {
		return nil, errors.New("connection refused")
	}

	_, err := adapter.IsPaid(context.Background(), common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"))
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindChainRead, de.Kind)
	assert.Equal(t, "Error checking payment status.", de.Message)
}

func TestBuildPaymentTransactionNeverSubmits(t *testing.T) {
	adapter, gw, _ := newTestAdapter(t)
	contract := common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984")
	payer := common.HexToAddress("0x3A3652a47A9a351F98149ecC76806F83B7719294")
	gw.Nonces[payer] = 12

	invoice, err := adapter.BuildPaymentTransaction(context.Background(), contract, payer, big.NewInt(4000))
	require.NoError(t, err)

	assert.Equal(t, payer.Hex(), invoice.From)
	assert.Equal(t, contract.Hex(), invoice.To)
	assert.Equal(t, int64(4000), invoice.Value.Int64())
	assert.Equal(t, uint64(payGasLimit), invoice.Gas)
	assert.Equal(t, uint64(12), invoice.Nonce)
	assert.Equal(t, int64(1337), invoice.ChainID)
	assert.Equal(t, "0x1b9265b8", invoice.Data) // pay() selector

	// An invoice is a request for payment: nothing was signed or sent.
	assert.Zero(t, gw.SentCount())
}

func TestAssignCourierSubmitsOwnerSignedCall(t *testing.T) {
	adapter, gw, owner := newTestAdapter(t)
	contract := common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984")
	courier := common.HexToAddress("0xab602Fac892e965d883691120AC9619e1168F36f")
	gw.Nonces[owner.Address()] = 3

	require.NoError(t, adapter.AssignCourier(context.Background(), contract, courier))

	require.Equal(t, 1, gw.SentCount())
	sent := gw.Sent[0]
	assert.Equal(t, contract, *sent.To())
	assert.Equal(t, uint64(3), sent.Nonce())
	assert.Equal(t, uint64(writeGasLimit), sent.Gas())
	// Calldata is the assignCourier selector plus the padded courier address.
	assert.Len(t, sent.Data(), 4+32)
	assert.Equal(t, courier.Bytes(), sent.Data()[4+12:])
}

func TestConfirmDeliveryRevertSurfacesChainWriteError(t *testing.T) {
	adapter, gw, _ := newTestAdapter(t)
	gw.RevertNext = true

	err := adapter.ConfirmDelivery(context.Background(), common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"))
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindChainWrite, de.Kind)
	assert.Equal(t, "Error confirming delivery.", de.Message)
}
