package settlement

import (
	"context"

	"github.com/textpay-hq/textpay-backend/internal/domain"
)

// Result carries the settlement-derived fields merged back into the intent
// record after a processor succeeds.
type Result struct {
	ExternalTransactionID string
	PaymentMethod         domain.PaymentMethod
	AmountReceived        int64
}

// Processor settles a confirmed intent against the external ledger.
// Processors never mutate the intent record; turning a failure into a
// compensating cancellation is the intent service's job alone.
type Processor interface {
	Settle(ctx context.Context, intent *domain.Intent) (*Result, error)
}

// Registry maps intent kinds to their settlement processors. The table is
// built once at startup and never mutated afterwards.
type Registry struct {
	processors map[domain.Kind]Processor
}

// NewRegistry builds the dispatch table. Kinds without a processor (such as
// cashout intents, which arrive already settled by the card processor) are
// simply absent: dispatching them is not an error.
func NewRegistry(transfer Processor) *Registry {
	return &Registry{
		processors: map[domain.Kind]Processor{
			domain.KindTransfer: transfer,
		},
	}
}

// Lookup returns the processor registered for kind, if any.
func (r *Registry) Lookup(kind domain.Kind) (Processor, bool) {
	p, ok := r.processors[kind]
	return p, ok
}
