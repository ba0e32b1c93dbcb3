package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/textpay-hq/textpay-backend/internal/domain"
	"github.com/textpay-hq/textpay-backend/internal/metrics"
	"github.com/textpay-hq/textpay-backend/internal/phone"
	"github.com/textpay-hq/textpay-backend/internal/usecase/settlement"
)

// CreateIntentInput represents the input for opening a new intent.
type CreateIntentInput struct {
	FromParty   string
	Kind        domain.Kind
	Application domain.Application // defaults to the service's application
	Description string
}

// CardIntentInput represents a completed card payment ingested from the
// payment processor's webhook. The payment is already settled, so the
// resulting cashout intent is recorded as confirmed with its settlement
// fields populated.
type CardIntentInput struct {
	FromParty             string
	ToParty               string
	Amount                int64
	Currency              string
	ExternalTransactionID string
}

// UpdateIntentInput represents a caller-driven partial update. Amount is the
// raw caller value and may carry thousands separators.
type UpdateIntentInput struct {
	FromParty   *string
	ToParty     *string
	Amount      *string
	Currency    *string
	Description *string
}

// Service orchestrates the intent lifecycle: creation, caller updates,
// confirmation with settlement dispatch and compensation, cancellation,
// deletion and lookups.
type Service struct {
	repo        domain.IntentRepository
	registry    *settlement.Registry
	application domain.Application
	secretSalt  []byte
	logger      *zap.Logger
}

// NewService creates a new intent Service instance. application scopes every
// read to the channel this deployment serves; secretSalt keys the client
// secret derivation.
func NewService(
	repo domain.IntentRepository,
	registry *settlement.Registry,
	application domain.Application,
	secretSalt []byte,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:        repo,
		registry:    registry,
		application: application,
		secretSalt:  secretSalt,
		logger:      logger,
	}
}

// ClientSecret derives the confirmation token for a party. The same party
// always yields the same secret for a given deployment.
func (s *Service) ClientSecret(party string) string {
	return deriveClientSecret(s.secretSalt, party)
}

// Create opens a new pending intent for the given party and kind.
func (s *Service) Create(ctx context.Context, input CreateIntentInput) (*domain.Intent, error) {
	if input.FromParty == "" {
		return nil, domain.NewValidationError("from_party is required")
	}
	if err := phone.Validate(input.FromParty); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if input.Kind == "" {
		return nil, domain.NewValidationError("kind is required")
	}

	application := input.Application
	if application == "" {
		application = s.application
	}

	record := &domain.Intent{
		ID:           uuid.New(),
		Application:  application,
		Kind:         input.Kind,
		FromParty:    input.FromParty,
		Description:  input.Description,
		ClientSecret: s.ClientSecret(input.FromParty),
		CreatedAt:    time.Now().UTC(),
	}

	s.logger.Info("Creating new intent",
		zap.String("id", record.ID.String()),
		zap.String("kind", string(record.Kind)),
		zap.String("from_party", record.FromParty),
	)

	created, err := s.repo.Insert(ctx, record)
	if err != nil {
		s.logger.Error("Error creating intent", zap.Error(err))
		return nil, domain.NewDatabaseError("Failed to create intent", err)
	}

	metrics.IntentsCreated.WithLabelValues(string(created.Kind), string(created.Application)).Inc()
	s.logger.Info("Intent created successfully", zap.String("id", created.ID.String()))
	return created, nil
}

// CreateCardIntent records a completed card payment as an already-settled
// cashout intent. The processor's session id becomes the external
// transaction id so inbound webhook retries can be matched idempotently.
func (s *Service) CreateCardIntent(ctx context.Context, input CardIntentInput) (*domain.Intent, error) {
	if input.FromParty == "" {
		return nil, domain.NewValidationError("from_party is required")
	}
	// Webhook payloads are not caller input, but the party identifiers they
	// carry feed the same address derivation as everything else.
	if err := phone.Validate(input.FromParty); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if input.ToParty != "" {
		if err := phone.Validate(input.ToParty); err != nil {
			return nil, domain.NewValidationError(err.Error())
		}
	}
	if input.ExternalTransactionID == "" {
		return nil, domain.NewValidationError("external_transaction_id is required")
	}
	if input.Amount <= 0 {
		return nil, domain.NewValidationError("amount must be positive")
	}

	now := time.Now().UTC()
	record := &domain.Intent{
		ID:                    uuid.New(),
		Application:           domain.ApplicationCard,
		Kind:                  domain.KindCashout,
		FromParty:             input.FromParty,
		ToParty:               input.ToParty,
		Amount:                input.Amount,
		AmountReceived:        input.Amount,
		Currency:              input.Currency,
		PaymentMethod:         domain.PaymentMethodCard,
		ExternalTransactionID: input.ExternalTransactionID,
		ClientSecret:          s.ClientSecret(input.FromParty),
		CreatedAt:             now,
		ConfirmedAt:           &now,
	}

	s.logger.Info("Creating cashout intent from card payment",
		zap.String("id", record.ID.String()),
		zap.String("external_transaction_id", record.ExternalTransactionID),
	)

	created, err := s.repo.Insert(ctx, record)
	if err != nil {
		s.logger.Error("Error creating cashout intent", zap.Error(err))
		return nil, domain.NewDatabaseError("Failed to create intent", err)
	}

	metrics.IntentsCreated.WithLabelValues(string(created.Kind), string(created.Application)).Inc()
	return created, nil
}

// Update applies a caller-driven partial update to a pending intent.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateIntentInput) (*domain.Intent, error) {
	fetched, err := s.fetchForMutation(ctx, id, "update")
	if err != nil {
		return nil, err
	}

	if reason := domain.CanUpdate(fetched); reason != "" {
		s.logger.Warn("Intent validation failed", zap.String("id", id.String()), zap.String("reason", reason))
		return nil, domain.NewValidationError("Intent cannot be updated. " + reason)
	}

	patch := domain.IntentPatch{
		Currency:    input.Currency,
		Description: input.Description,
	}
	if input.FromParty != nil {
		if err := phone.Validate(*input.FromParty); err != nil {
			return nil, domain.NewValidationError(err.Error())
		}
		patch.FromParty = input.FromParty
	}
	if input.ToParty != nil {
		if err := phone.Validate(*input.ToParty); err != nil {
			return nil, domain.NewValidationError(err.Error())
		}
		patch.ToParty = input.ToParty
	}
	if input.Amount != nil {
		amount, err := ParseAmount(*input.Amount)
		if err != nil {
			return nil, err
		}
		patch.Amount = &amount
	}

	s.logger.Info("Updating intent", zap.String("id", id.String()))

	updated, err := s.repo.UpdateIfPending(ctx, id, patch)
	if err != nil {
		if errors.Is(err, domain.ErrStaleIntent) {
			return nil, domain.NewValidationError("Intent cannot be updated. Intent object is already confirmed or cancelled")
		}
		s.logger.Error("Error updating intent", zap.String("id", id.String()), zap.Error(err))
		return nil, domain.NewDatabaseError("Failed to update intent", err)
	}

	s.logger.Info("Intent updated successfully", zap.String("id", id.String()))
	return updated, nil
}

// Confirm marks an intent confirmed and dispatches settlement for its kind.
// A settlement failure triggers exactly one compensating cancellation before
// the error is surfaced as an OnChainError.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*domain.Intent, error) {
	fetched, err := s.fetchForMutation(ctx, id, "confirmation")
	if err != nil {
		return nil, err
	}

	if reason := domain.CanConfirm(fetched); reason != "" {
		s.logger.Warn("Intent validation failed", zap.String("id", id.String()), zap.String("reason", reason))
		return nil, domain.NewValidationError("Intent is not ready to be confirmed. " + reason)
	}

	s.logger.Info("Confirming intent", zap.String("id", id.String()))

	// The mark-confirmed write only succeeds while the record is still
	// pending, so concurrent confirmations of the same intent can pass the
	// readiness check above but only one of them settles.
	confirmed, err := s.repo.MarkConfirmed(ctx, id, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrStaleIntent) {
			return nil, domain.NewValidationError("Intent is not ready to be confirmed. Intent object is already confirmed or cancelled")
		}
		s.logger.Error("Error confirming intent", zap.String("id", id.String()), zap.Error(err))
		return nil, domain.NewDatabaseError("Failed to confirm intent", err)
	}

	processor, ok := s.registry.Lookup(confirmed.Kind)
	if !ok {
		// No settlement required for this kind; confirmation stands.
		s.logger.Warn("No processor registered for intent kind",
			zap.String("id", id.String()),
			zap.String("kind", string(confirmed.Kind)),
		)
		return confirmed, nil
	}

	start := time.Now()
	result, err := processor.Settle(ctx, confirmed)
	metrics.SettlementDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Settlements.WithLabelValues(string(confirmed.Kind), "failure").Inc()
		return nil, s.compensate(ctx, id, err)
	}
	metrics.Settlements.WithLabelValues(string(confirmed.Kind), "success").Inc()

	patch := domain.IntentPatch{
		PaymentMethod:         &result.PaymentMethod,
		AmountReceived:        &result.AmountReceived,
		ExternalTransactionID: &result.ExternalTransactionID,
	}
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		s.logger.Error("Error recording settlement result", zap.String("id", id.String()), zap.Error(err))
		return nil, domain.NewDatabaseError("Failed to update intent", err)
	}

	return updated, nil
}

// compensate cancels a confirmed intent after a failed settlement. A failure
// of the compensating write is logged alongside the settlement error but
// never masks it: the caller always sees the OnChainError.
func (s *Service) compensate(ctx context.Context, id uuid.UUID, settlementErr error) error {
	reason := "Transfer failed: " + settlementErr.Error()

	s.logger.Error("Transfer failed for confirmed intent, cancelling",
		zap.String("id", id.String()),
		zap.Error(settlementErr),
	)

	if _, err := s.repo.MarkCancelled(ctx, id, time.Now().UTC(), reason, true); err != nil {
		s.logger.Error("Compensating cancellation failed",
			zap.String("id", id.String()),
			zap.Error(err),
			zap.NamedError("settlement_error", settlementErr),
		)
	} else {
		metrics.CompensatingCancellations.Inc()
		s.logger.Info("Intent cancelled after failed settlement", zap.String("id", id.String()))
	}

	return domain.NewOnChainError("Intent confirmed but transfer failed. Intent has been cancelled.", settlementErr)
}

// Cancel cancels a pending intent with a caller-supplied reason.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*domain.Intent, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.NewValidationError("Cancellation reason cannot be empty")
	}

	fetched, err := s.fetchForMutation(ctx, id, "cancellation")
	if err != nil {
		return nil, err
	}

	if vreason := domain.CanCancel(fetched); vreason != "" {
		s.logger.Warn("Intent validation failed", zap.String("id", id.String()), zap.String("reason", vreason))
		return nil, domain.NewValidationError("Intent is not ready to be cancelled. " + vreason)
	}

	s.logger.Info("Cancelling intent",
		zap.String("id", id.String()),
		zap.String("cancellation_reason", reason),
	)

	cancelled, err := s.repo.MarkCancelled(ctx, id, time.Now().UTC(), reason, false)
	if err != nil {
		if errors.Is(err, domain.ErrStaleIntent) {
			return nil, domain.NewValidationError("Intent is not ready to be cancelled. Intent object is already confirmed or cancelled")
		}
		s.logger.Error("Error cancelling intent", zap.String("id", id.String()), zap.Error(err))
		return nil, domain.NewDatabaseError("Failed to cancel intent", err)
	}

	s.logger.Info("Intent cancelled successfully", zap.String("id", id.String()))
	return cancelled, nil
}

// Delete hard-deletes a cancelled intent.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	fetched, err := s.fetchForMutation(ctx, id, "deletion")
	if err != nil {
		return err
	}

	if reason := domain.CanDelete(fetched); reason != "" {
		s.logger.Warn("Intent validation failed", zap.String("id", id.String()), zap.String("reason", reason))
		return domain.NewValidationError("Intent is not ready to be deleted. " + reason)
	}

	s.logger.Info("Deleting intent", zap.String("id", id.String()))

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("Error deleting intent", zap.String("id", id.String()), zap.Error(err))
		return domain.NewDatabaseError("Failed to delete intent", err)
	}

	s.logger.Info("Intent deleted successfully", zap.String("id", id.String()))
	return nil
}

// Search finds intents whose description or cancellation reason contains the
// query.
func (s *Service) Search(ctx context.Context, query string) ([]*domain.Intent, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewValidationError("Search query cannot be empty")
	}

	results, err := s.repo.Search(ctx, query, s.application)
	if err != nil {
		s.logger.Error("Error searching intents", zap.String("query", query), zap.Error(err))
		return nil, domain.NewDatabaseError("Failed to search intents", err)
	}

	s.logger.Info("Intents search completed", zap.String("query", query), zap.Int("count", len(results)))
	return results, nil
}

// GetByID fetches an intent by id. Returns nil without error when no intent
// matches; only the mutating paths treat absence as an error.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.Intent, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrIntentNotFound) {
			return nil, nil
		}
		s.logger.Error("Error fetching intent", zap.String("id", id.String()), zap.Error(err))
		return nil, domain.NewDatabaseError("Failed to fetch intent", err)
	}
	return record, nil
}

// GetByExternalTransactionID fetches the intent holding the given settlement
// or payment-processor reference. Returns nil without error when no intent
// matches.
func (s *Service) GetByExternalTransactionID(ctx context.Context, externalID string) (*domain.Intent, error) {
	record, err := s.repo.GetByExternalTransactionID(ctx, externalID)
	if err != nil {
		if errors.Is(err, domain.ErrIntentNotFound) {
			return nil, nil
		}
		s.logger.Error("Error fetching intent by external transaction id",
			zap.String("external_transaction_id", externalID), zap.Error(err))
		return nil, domain.NewDatabaseError("Failed to fetch intent", err)
	}
	return record, nil
}

// List fetches all intents for this deployment's application.
func (s *Service) List(ctx context.Context) ([]*domain.Intent, error) {
	records, err := s.repo.List(ctx, s.application)
	if err != nil {
		s.logger.Error("Error fetching all intents", zap.Error(err))
		return nil, domain.NewDatabaseError("Failed to fetch intents", err)
	}
	return records, nil
}

// ListForParty fetches all intents created by the given party.
func (s *Service) ListForParty(ctx context.Context, party string) ([]*domain.Intent, error) {
	records, err := s.repo.ListForParty(ctx, party, s.application)
	if err != nil {
		s.logger.Error("Error fetching party intents", zap.String("party", party), zap.Error(err))
		return nil, domain.NewDatabaseError("Failed to fetch intents", err)
	}
	return records, nil
}

// fetchForMutation loads the record a mutating operation is about to act on.
// Validation always runs against this freshly fetched state, never against
// caller-supplied state.
func (s *Service) fetchForMutation(ctx context.Context, id uuid.UUID, op string) (*domain.Intent, error) {
	s.logger.Info("Fetching intent for "+op, zap.String("id", id.String()))

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrIntentNotFound) {
			s.logger.Warn("Intent not found for "+op, zap.String("id", id.String()))
			return nil, domain.NewNotFoundError(fmt.Sprintf("Intent with id %s not found", id))
		}
		s.logger.Error("Error fetching intent", zap.String("id", id.String()), zap.Error(err))
		return nil, domain.NewDatabaseError("Failed to fetch intent for "+op, err)
	}

	return record, nil
}
