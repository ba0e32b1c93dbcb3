package settlement

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/textpay-hq/textpay-backend/internal/domain"
)

// TransferProcessor settles transfer intents by moving value between the two
// parties' ledger accounts. It is state-free: everything it needs comes from
// the intent and the ledger gateway.
type TransferProcessor struct {
	ledger domain.Ledger
	logger *zap.Logger
}

// NewTransferProcessor creates a new TransferProcessor instance.
func NewTransferProcessor(ledger domain.Ledger, logger *zap.Logger) *TransferProcessor {
	return &TransferProcessor{
		ledger: ledger,
		logger: logger,
	}
}

// Settle derives both parties' accounts, creates any that do not exist yet,
// and executes the on-ledger transfer of the intent amount.
func (p *TransferProcessor) Settle(ctx context.Context, intent *domain.Intent) (*Result, error) {
	if intent.Amount <= 0 || intent.FromParty == "" || intent.ToParty == "" {
		return nil, fmt.Errorf("invalid transfer parameters for intent %s", intent.ID)
	}

	p.logger.Info("Executing transfer for confirmed intent",
		zap.String("id", intent.ID.String()),
		zap.Int64("amount", intent.Amount),
	)

	from, err := p.accountFor(ctx, intent.FromParty)
	if err != nil {
		return nil, err
	}

	to, err := p.accountFor(ctx, intent.ToParty)
	if err != nil {
		return nil, err
	}

	txID, err := p.ledger.Transfer(ctx, from.Address, to.Address, intent.Amount)
	if err != nil {
		return nil, fmt.Errorf("transferring %d from %s to %s: %w",
			intent.Amount, from.Address, to.Address, err)
	}

	p.logger.Info("Transfer executed successfully",
		zap.String("id", intent.ID.String()),
		zap.String("transaction_id", txID),
	)

	return &Result{
		ExternalTransactionID: txID,
		PaymentMethod:         domain.PaymentMethodOnChain,
		AmountReceived:        intent.Amount,
	}, nil
}

// accountFor resolves a party to its ledger account, creating the account on
// first use. "Account not found" is the only creation trigger; any other
// fetch failure is surfaced as-is.
func (p *TransferProcessor) accountFor(ctx context.Context, party string) (*domain.LedgerAccount, error) {
	address := p.ledger.DeriveAddress(party)

	account, err := p.ledger.GetAccount(ctx, address)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("fetching account for %s: %w", party, err)
	}

	p.logger.Info("Account not found, creating account",
		zap.String("party", party),
		zap.String("address", address),
	)

	account, err = p.ledger.CreateAccount(ctx, address, party)
	if err != nil {
		return nil, fmt.Errorf("creating account for %s: %w", party, err)
	}

	return account, nil
}
