package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/textpay-hq/textpay-backend/internal/domain"
)

// Ledger settles transfers against the vault contract. Account addresses are
// derived deterministically from the vault owner address and the party
// identifier, so the same party always maps to the same on-chain account.
type Ledger struct {
	client        *ethclient.Client
	vault         *Vault
	key           *ecdsa.PrivateKey
	owner         common.Address
	chainID       *big.Int
	tokenDecimals int32
	logger        *zap.Logger
}

// NewLedger connects to the chain and binds the vault contract. The signing
// key is passed in explicitly so callers control where it comes from.
func NewLedger(rpcURL, vaultAddress, ownerPrivateKey string, chainID int64, tokenDecimals int32, logger *zap.Logger) (*Ledger, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rpc endpoint: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(ownerPrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid owner private key: %w", err)
	}

	vault, err := NewVault(common.HexToAddress(vaultAddress), client)
	if err != nil {
		return nil, fmt.Errorf("failed to bind vault contract: %w", err)
	}

	return &Ledger{
		client:        client,
		vault:         vault,
		key:           key,
		owner:         crypto.PubkeyToAddress(key.PublicKey),
		chainID:       big.NewInt(chainID),
		tokenDecimals: tokenDecimals,
		logger:        logger,
	}, nil
}

// DeriveAddress returns the vault account address for a party. Pure
// derivation, no chain access.
func (l *Ledger) DeriveAddress(party string) string {
	return deriveAddress(l.owner, party).Hex()
}

func deriveAddress(owner common.Address, seed string) common.Address {
	hash := crypto.Keccak256(owner.Bytes(), []byte(seed))
	return common.BytesToAddress(hash[12:])
}

// GetAccount looks up a vault account. Returns domain.ErrAccountNotFound when
// the account has not been created yet, which is the only condition under
// which callers may create it.
func (l *Ledger) GetAccount(ctx context.Context, address string) (*domain.LedgerAccount, error) {
	addr := common.HexToAddress(address)
	opts := &bind.CallOpts{Context: ctx}

	exists, err := l.vault.AccountExists(opts, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to check vault account: %w", err)
	}
	if !exists {
		return nil, domain.ErrAccountNotFound
	}

	balance, err := l.vault.BalanceOf(opts, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vault balance: %w", err)
	}

	return &domain.LedgerAccount{
		Address: addr.Hex(),
		Balance: toMinorUnits(balance, l.tokenDecimals),
	}, nil
}

// CreateAccount creates the vault account for a party and waits for the
// transaction to be mined
func (l *Ledger) CreateAccount(ctx context.Context, address string, party string) (*domain.LedgerAccount, error) {
	opts, err := l.transactOpts(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := l.vault.CreateAccount(opts, common.HexToAddress(address), party)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault account: %w", err)
	}

	if _, err := bind.WaitMined(ctx, l.client, tx); err != nil {
		return nil, fmt.Errorf("failed to wait for account creation: %w", err)
	}

	l.logger.Info("vault account created",
		zap.String("address", address),
		zap.String("tx", tx.Hash().Hex()))

	return &domain.LedgerAccount{Address: address}, nil
}

// Transfer moves amountMinorUnits between two vault accounts and returns the
// transaction hash once the transfer is mined
func (l *Ledger) Transfer(ctx context.Context, fromAddress, toAddress string, amountMinorUnits int64) (string, error) {
	opts, err := l.transactOpts(ctx)
	if err != nil {
		return "", err
	}

	amount := toBaseUnits(amountMinorUnits, l.tokenDecimals)
	tx, err := l.vault.Transfer(opts, common.HexToAddress(fromAddress), common.HexToAddress(toAddress), amount)
	if err != nil {
		return "", fmt.Errorf("failed to submit transfer: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, l.client, tx)
	if err != nil {
		return "", fmt.Errorf("failed to wait for transfer: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("transfer reverted: %s", tx.Hash().Hex())
	}

	l.logger.Info("transfer settled",
		zap.String("from", fromAddress),
		zap.String("to", toAddress),
		zap.Int64("amount", amountMinorUnits),
		zap.String("tx", tx.Hash().Hex()))

	return tx.Hash().Hex(), nil
}

func (l *Ledger) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(l.key, l.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// Amounts are held as minor units (two decimal places) in the database while
// the vault token carries tokenDecimals places.
func toBaseUnits(amountMinorUnits int64, tokenDecimals int32) *big.Int {
	return decimal.New(amountMinorUnits, tokenDecimals-2).BigInt()
}

func toMinorUnits(base *big.Int, tokenDecimals int32) int64 {
	return decimal.NewFromBigInt(base, 2-tokenDecimals).IntPart()
}
