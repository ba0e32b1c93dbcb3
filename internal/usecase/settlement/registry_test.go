package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/textpay-hq/textpay-backend/internal/domain"
)

func TestRegistry_Lookup(t *testing.T) {
	transfer := NewTransferProcessor(new(MockLedger), zap.NewNop())
	registry := NewRegistry(transfer)

	p, ok := registry.Lookup(domain.KindTransfer)
	assert.True(t, ok)
	assert.Same(t, transfer, p)

	// Kinds without a processor are not an error: no settlement required.
	_, ok = registry.Lookup(domain.KindCashout)
	assert.False(t, ok)

	_, ok = registry.Lookup(domain.Kind("unknown"))
	assert.False(t, ok)
}
