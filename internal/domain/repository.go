package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrIntentNotFound is returned by repository reads when no row matches.
var ErrIntentNotFound = errors.New("intent not found")

// ErrStaleIntent is returned by conditional writes when the intent is no
// longer in the state the transition requires. The fetch-then-write sequences
// in the service re-check state at write time through these conditional
// updates, so two concurrent confirmations can never both settle.
var ErrStaleIntent = errors.New("intent is not in the expected state")

// ErrAccountNotFound is returned by Ledger.GetAccount when the derived
// account has not been created yet.
var ErrAccountNotFound = errors.New("ledger account not found")

// IntentPatch carries the fields of a partial update. Nil fields are left
// untouched; the repository writes only what changed.
type IntentPatch struct {
	FromParty             *string
	ToParty               *string
	Amount                *int64
	Currency              *string
	Description           *string
	PaymentMethod         *PaymentMethod
	AmountReceived        *int64
	ExternalTransactionID *string
}

// IntentRepository defines the interface for intent persistence operations.
type IntentRepository interface {
	// Insert persists a new intent and returns the stored record.
	Insert(ctx context.Context, intent *Intent) (*Intent, error)

	// GetByID retrieves an intent by its ID.
	// Returns ErrIntentNotFound if no row matches.
	GetByID(ctx context.Context, id uuid.UUID) (*Intent, error)

	// GetByExternalTransactionID retrieves the intent holding the given
	// settlement-ledger or payment-processor reference.
	// Returns ErrIntentNotFound if no row matches.
	GetByExternalTransactionID(ctx context.Context, externalID string) (*Intent, error)

	// List retrieves all intents for an application.
	List(ctx context.Context, application Application) ([]*Intent, error)

	// ListForParty retrieves all intents created by the given party,
	// scoped to an application.
	ListForParty(ctx context.Context, party string, application Application) ([]*Intent, error)

	// Search retrieves intents whose description or cancellation reason
	// contains the query, scoped to an application.
	Search(ctx context.Context, query string, application Application) ([]*Intent, error)

	// Update applies the patch unconditionally and returns the updated row.
	// Used for settlement-result merges on already-confirmed intents.
	Update(ctx context.Context, id uuid.UUID, patch IntentPatch) (*Intent, error)

	// UpdateIfPending applies the patch only while the intent has no
	// terminal timestamp. Returns ErrStaleIntent when the guard fails.
	UpdateIfPending(ctx context.Context, id uuid.UUID, patch IntentPatch) (*Intent, error)

	// MarkConfirmed sets confirmed_at only while the intent is pending.
	// Returns ErrStaleIntent when the intent was confirmed or cancelled
	// in the meantime.
	MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (*Intent, error)

	// MarkCancelled sets cancelled_at and the cancellation reason.
	// With fromConfirmed false the intent must still be pending; with
	// fromConfirmed true a confirmed intent may also be cancelled, which is
	// the compensating transition used after a failed settlement.
	// Returns ErrStaleIntent when the guard fails.
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time, reason string, fromConfirmed bool) (*Intent, error)

	// Delete hard-deletes an intent.
	Delete(ctx context.Context, id uuid.UUID) error
}

// LedgerAccount is an account on the external value-transfer ledger.
// Balance is expressed in minor currency units.
type LedgerAccount struct {
	Address string
	Balance int64
}

// Ledger defines the interface to the external settlement ledger.
// The service's signing authority is a construction-time dependency of the
// implementation, not a call-time parameter.
type Ledger interface {
	// DeriveAddress derives the account address for a party identifier.
	// The derivation is a pure function of the signing key and the party:
	// the same party always yields the same address.
	DeriveAddress(party string) string

	// GetAccount fetches the account at the given address.
	// Returns ErrAccountNotFound if the account has not been created.
	GetAccount(ctx context.Context, address string) (*LedgerAccount, error)

	// CreateAccount creates the account at the given derived address.
	CreateAccount(ctx context.Context, address string, party string) (*LedgerAccount, error)

	// Transfer moves amount minor units between two accounts under the
	// service's signing authority and returns the ledger transaction
	// reference.
	Transfer(ctx context.Context, fromAddress, toAddress string, amountMinorUnits int64) (string, error)
}
