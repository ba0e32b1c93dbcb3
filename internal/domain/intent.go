package domain

import (
	"time"

	"github.com/google/uuid"
)

// Kind selects the settlement processor that runs after an intent is confirmed.
type Kind string

const (
	KindTransfer Kind = "transfer"
	KindCashout  Kind = "cashout"
)

// Application identifies the channel that created an intent.
type Application string

const (
	ApplicationDefault Application = "default"
	ApplicationCard    Application = "card"
)

// PaymentMethod records how an intent was settled.
// It is populated by the settlement step, never by the caller.
type PaymentMethod string

const (
	PaymentMethodOnChain PaymentMethod = "onchain"
	PaymentMethodCard    PaymentMethod = "card"
)

// Status is the derived lifecycle state of an intent.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Intent represents a requested value movement awaiting confirmation and
// settlement. Amounts are integer minor currency units.
type Intent struct {
	ID                    uuid.UUID
	Application           Application
	Kind                  Kind
	FromParty             string
	ToParty               string
	Amount                int64
	AmountReceived        int64
	Currency              string
	Description           string
	CancellationReason    string
	PaymentMethod         PaymentMethod
	ExternalTransactionID string
	ClientSecret          string
	CreatedAt             time.Time
	ConfirmedAt           *time.Time
	CancelledAt           *time.Time
}

// Status derives the lifecycle state from the terminal timestamps.
// At most one of ConfirmedAt/CancelledAt may ever be non-nil, with the single
// exception of an intent cancelled by settlement compensation, which keeps
// its ConfirmedAt and is reported as cancelled.
func (i *Intent) Status() Status {
	if i.CancelledAt != nil {
		return StatusCancelled
	}
	if i.ConfirmedAt != nil {
		return StatusConfirmed
	}
	return StatusPending
}

// IsTerminal reports whether the intent has reached a terminal state.
func (i *Intent) IsTerminal() bool {
	return i.ConfirmedAt != nil || i.CancelledAt != nil
}
