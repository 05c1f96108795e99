package services

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// OwnerAccount holds the system account that pays for contract deployments,
// courier assignments and delivery confirmations. All submissions signed by
// this account are serialized through a single mutex so concurrent requests
// cannot race on the account nonce.
type OwnerAccount struct {
	address common.Address
	key     *ecdsa.PrivateKey
	chainID *big.Int
	log     *zap.Logger

	mu sync.Mutex // guards nonce selection through receipt wait
}

// fundingGasLimit is the fixed gas for a plain value transfer.
const fundingGasLimit = 21000

// LoadOwnerAccount decrypts the owner's Ethereum v3 keystore file with the
// configured passphrase.
func LoadOwnerAccount(path, passphrase string, chainID *big.Int, log *zap.Logger) (*OwnerAccount, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read owner keystore: %w", err)
	}
	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt owner keystore: %w", err)
	}
	return &OwnerAccount{
		address: crypto.PubkeyToAddress(decrypted.PrivateKey.PublicKey),
		key:     decrypted.PrivateKey,
		chainID: chainID,
		log:     log,
	}, nil
}

// NewOwnerAccountFromKey builds an owner account from a raw private key.
// Used by tests and local tooling; production loads from the keystore.
func NewOwnerAccountFromKey(key *ecdsa.PrivateKey, chainID *big.Int, log *zap.Logger) *OwnerAccount {
	return &OwnerAccount{
		address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
		chainID: chainID,
		log:     log,
	}
}

// Address returns the owner's address.
func (a *OwnerAccount) Address() common.Address {
	return a.address
}

// EnsureFunded tops the owner account up from the faucet key when its balance
// is below floor. This is a deployment convenience for disposable dev chains;
// it is disabled entirely when no faucet key is configured.
func (a *OwnerAccount) EnsureFunded(ctx context.Context, gw ChainGateway, faucetKeyHex string, floor *big.Int) error {
	if faucetKeyHex == "" || floor == nil || floor.Sign() <= 0 {
		return nil
	}

	balance, err := gw.BalanceAt(ctx, a.address)
	if err != nil {
		return fmt.Errorf("failed to read owner balance: %w", err)
	}
	if balance.Cmp(floor) >= 0 {
		return nil
	}

	faucetKey, err := crypto.HexToECDSA(strings.TrimPrefix(faucetKeyHex, "0x"))
	if err != nil {
		return fmt.Errorf("invalid faucet key: %w", err)
	}
	faucetAddress := crypto.PubkeyToAddress(faucetKey.PublicKey)

	nonce, err := gw.PendingNonceAt(ctx, faucetAddress)
	if err != nil {
		return fmt.Errorf("failed to read faucet nonce: %w", err)
	}
	gasPrice, err := gw.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to read gas price: %w", err)
	}

	topUp := new(big.Int).Sub(floor, balance)
	tx := gethtypes.NewTransaction(nonce, a.address, topUp, fundingGasLimit, gasPrice, nil)
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(a.chainID), faucetKey)
	if err != nil {
		return fmt.Errorf("failed to sign funding transaction: %w", err)
	}
	if err := gw.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("failed to submit funding transaction: %w", err)
	}
	receipt, err := gw.WaitForReceipt(ctx, signed.Hash())
	if err != nil {
		return fmt.Errorf("funding transaction not mined: %w", err)
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return errors.New("funding transaction reverted")
	}

	a.log.Info("owner account funded from faucet",
		zap.String("owner", a.address.Hex()),
		zap.String("amount_wei", topUp.String()))
	return nil
}

// SignAndSend builds a transaction via build (given a fresh nonce and gas
// price), signs it with the owner key, submits it and waits for the receipt.
// The whole sequence runs under the account lock: owner-signed submissions
// are strictly serialized, which keeps nonce selection collision-free under
// concurrent requests.
func (a *OwnerAccount) SignAndSend(
	ctx context.Context,
	gw ChainGateway,
	build func(nonce uint64, gasPrice *big.Int) *gethtypes.Transaction,
) (*gethtypes.Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	nonce, err := gw.PendingNonceAt(ctx, a.address)
	if err != nil {
		return nil, fmt.Errorf("failed to read owner nonce: %w", err)
	}
	gasPrice, err := gw.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read gas price: %w", err)
	}

	tx := build(nonce, gasPrice)
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(a.chainID), a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := gw.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to submit transaction: %w", err)
	}

	receipt, err := gw.WaitForReceipt(ctx, signed.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("transaction %s reverted", signed.Hash().Hex())
	}
	return receipt, nil
}
