package wallet

import (
	"context"

	"go.uber.org/zap"

	"github.com/textpay-hq/textpay-backend/internal/domain"
	"github.com/textpay-hq/textpay-backend/internal/phone"
)

// Service answers balance lookups against the settlement ledger. Balances
// live on the ledger only; nothing is cached or persisted locally.
type Service struct {
	ledger domain.Ledger
	logger *zap.Logger
}

// NewService creates a new wallet Service instance.
func NewService(ledger domain.Ledger, logger *zap.Logger) *Service {
	return &Service{
		ledger: ledger,
		logger: logger,
	}
}

// Balance returns a party's ledger balance in minor currency units. A party
// whose account has not been created yet has no wallet to report.
func (s *Service) Balance(ctx context.Context, party string) (int64, error) {
	if err := phone.Validate(party); err != nil {
		return 0, domain.NewValidationError(err.Error())
	}

	address := s.ledger.DeriveAddress(party)

	account, err := s.ledger.GetAccount(ctx, address)
	if err != nil {
		s.logger.Error("Error fetching wallet balance",
			zap.String("party", party),
			zap.String("address", address),
			zap.Error(err),
		)
		return 0, domain.NewNotFoundError("Wallet not found")
	}

	return account.Balance, nil
}
