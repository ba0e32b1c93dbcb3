package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/textpay-hq/textpay-backend/internal/domain"
	"github.com/textpay-hq/textpay-backend/internal/usecase/settlement"
)

// MockIntentRepository is a mock implementation of domain.IntentRepository for testing
type MockIntentRepository struct {
	mock.Mock
}

func (m *MockIntentRepository) Insert(ctx context.Context, intent *domain.Intent) (*domain.Intent, error) {
	args := m.Called(ctx, intent)
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	if args.Get(0) == nil {
		// Echo the inserted record, like the real store does.
		return intent, nil
	}
	return args.Get(0).(*domain.Intent), args.Error(1)
}

func (m *MockIntentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Intent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Intent), args.Error(1)
}

func (m *MockIntentRepository) GetByExternalTransactionID(ctx context.Context, externalID string) (*domain.Intent, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Intent), args.Error(1)
}

func (m *MockIntentRepository) List(ctx context.Context, application domain.Application) ([]*domain.Intent, error) {
	args := m.Called(ctx, application)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Intent), args.Error(1)
}

func (m *MockIntentRepository) ListForParty(ctx context.Context, party string, application domain.Application) ([]*domain.Intent, error) {
	args := m.Called(ctx, party, application)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Intent), args.Error(1)
}

func (m *MockIntentRepository) Search(ctx context.Context, query string, application domain.Application) ([]*domain.Intent, error) {
	args := m.Called(ctx, query, application)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Intent), args.Error(1)
}

func (m *MockIntentRepository) Update(ctx context.Context, id uuid.UUID, patch domain.IntentPatch) (*domain.Intent, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Intent), args.Error(1)
}

func (m *MockIntentRepository) UpdateIfPending(ctx context.Context, id uuid.UUID, patch domain.IntentPatch) (*domain.Intent, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Intent), args.Error(1)
}

func (m *MockIntentRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Intent, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Intent), args.Error(1)
}

func (m *MockIntentRepository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time, reason string, fromConfirmed bool) (*domain.Intent, error) {
	args := m.Called(ctx, id, at, reason, fromConfirmed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Intent), args.Error(1)
}

func (m *MockIntentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProcessor is a mock implementation of settlement.Processor for testing
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Settle(ctx context.Context, intent *domain.Intent) (*settlement.Result, error) {
	args := m.Called(ctx, intent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Result), args.Error(1)
}

func newTestService(repo *MockIntentRepository, processor *MockProcessor) *Service {
	registry := settlement.NewRegistry(processor)
	return NewService(repo, registry, domain.ApplicationDefault, []byte("test-salt"), zap.NewNop())
}

func readyIntent() *domain.Intent {
	return &domain.Intent{
		ID:          uuid.New(),
		Application: domain.ApplicationDefault,
		Kind:        domain.KindTransfer,
		FromParty:   "+14155550100",
		ToParty:     "+14155550200",
		Amount:      1000,
		Currency:    "USD",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestCreate_GeneratesIDAndClientSecret(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	repo.On("Insert", ctx, mock.MatchedBy(func(i *domain.Intent) bool {
		return i.FromParty == "+14155550100" && i.Kind == domain.KindTransfer
	})).Return(nil, nil)

	result, err := service.Create(ctx, CreateIntentInput{
		FromParty: "+14155550100",
		Kind:      domain.KindTransfer,
	})

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.NotEqual(t, uuid.Nil, result.ID)
	assert.Equal(t, service.ClientSecret("+14155550100"), result.ClientSecret)
	assert.Equal(t, domain.ApplicationDefault, result.Application)
	assert.Equal(t, domain.StatusPending, result.Status())
	repo.AssertExpectations(t)
}

func TestCreate_InvalidParty(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	_, err := service.Create(ctx, CreateIntentInput{FromParty: "not-a-number", Kind: domain.KindTransfer})

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	repo.AssertNotCalled(t, "Insert")
}

func TestCreate_MissingKind(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	_, err := service.Create(ctx, CreateIntentInput{FromParty: "+14155550100"})

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "kind is required", verr.Message)
	repo.AssertNotCalled(t, "Insert")
}

func TestClientSecret_Deterministic(t *testing.T) {
	service := newTestService(new(MockIntentRepository), new(MockProcessor))

	first := service.ClientSecret("+14155550100")
	second := service.ClientSecret("+14155550100")
	other := service.ClientSecret("+14155550200")

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
}

func TestConfirm_SettlementSucceeds(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	processor := new(MockProcessor)
	service := newTestService(repo, processor)

	pending := readyIntent()

	now := time.Now().UTC()
	confirmed := *pending
	confirmed.ConfirmedAt = &now

	settled := confirmed
	settled.PaymentMethod = domain.PaymentMethodOnChain
	settled.AmountReceived = 1000
	settled.ExternalTransactionID = "0xdeadbeef"

	repo.On("GetByID", ctx, pending.ID).Return(pending, nil)
	repo.On("MarkConfirmed", ctx, pending.ID, mock.AnythingOfType("time.Time")).Return(&confirmed, nil)
	processor.On("Settle", ctx, &confirmed).Return(&settlement.Result{
		ExternalTransactionID: "0xdeadbeef",
		PaymentMethod:         domain.PaymentMethodOnChain,
		AmountReceived:        1000,
	}, nil)
	repo.On("Update", ctx, pending.ID, mock.MatchedBy(func(p domain.IntentPatch) bool {
		return p.PaymentMethod != nil && *p.PaymentMethod == domain.PaymentMethodOnChain &&
			p.AmountReceived != nil && *p.AmountReceived == 1000 &&
			p.ExternalTransactionID != nil && *p.ExternalTransactionID == "0xdeadbeef"
	})).Return(&settled, nil)

	result, err := service.Confirm(ctx, pending.ID)

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodOnChain, result.PaymentMethod)
	assert.Equal(t, int64(1000), result.AmountReceived)
	assert.NotNil(t, result.ConfirmedAt)
	assert.Nil(t, result.CancelledAt)
	repo.AssertExpectations(t)
	processor.AssertExpectations(t)
}

func TestConfirm_SettlementFails_Compensates(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	processor := new(MockProcessor)
	service := newTestService(repo, processor)

	pending := readyIntent()

	now := time.Now().UTC()
	confirmed := *pending
	confirmed.ConfirmedAt = &now

	cancelled := confirmed
	cancelled.CancelledAt = &now
	cancelled.CancellationReason = "Transfer failed: ledger unavailable"

	repo.On("GetByID", ctx, pending.ID).Return(pending, nil)
	repo.On("MarkConfirmed", ctx, pending.ID, mock.AnythingOfType("time.Time")).Return(&confirmed, nil)
	processor.On("Settle", ctx, &confirmed).Return(nil, errors.New("ledger unavailable"))
	repo.On("MarkCancelled", ctx, pending.ID, mock.AnythingOfType("time.Time"),
		"Transfer failed: ledger unavailable", true).Return(&cancelled, nil)

	result, err := service.Confirm(ctx, pending.ID)

	assert.Nil(t, result)
	var ocerr *domain.OnChainError
	assert.ErrorAs(t, err, &ocerr)
	assert.Equal(t, "Intent confirmed but transfer failed. Intent has been cancelled.", ocerr.Message)

	// The compensating write is the only follow-up: no settlement fields are merged.
	repo.AssertNotCalled(t, "Update")
	repo.AssertExpectations(t)
	processor.AssertExpectations(t)
}

func TestConfirm_CompensationFailure_StillSurfacesSettlementError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	processor := new(MockProcessor)
	service := newTestService(repo, processor)

	pending := readyIntent()

	now := time.Now().UTC()
	confirmed := *pending
	confirmed.ConfirmedAt = &now

	repo.On("GetByID", ctx, pending.ID).Return(pending, nil)
	repo.On("MarkConfirmed", ctx, pending.ID, mock.AnythingOfType("time.Time")).Return(&confirmed, nil)
	processor.On("Settle", ctx, &confirmed).Return(nil, errors.New("ledger unavailable"))
	repo.On("MarkCancelled", ctx, pending.ID, mock.AnythingOfType("time.Time"),
		"Transfer failed: ledger unavailable", true).Return(nil, errors.New("store down"))

	_, err := service.Confirm(ctx, pending.ID)

	var ocerr *domain.OnChainError
	assert.ErrorAs(t, err, &ocerr)
	assert.ErrorContains(t, ocerr.Cause, "ledger unavailable")
}

func TestConfirm_MissingFields(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	incomplete := readyIntent()
	incomplete.Currency = ""
	incomplete.ToParty = ""

	repo.On("GetByID", ctx, incomplete.ID).Return(incomplete, nil)

	_, err := service.Confirm(ctx, incomplete.ID)

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "Missing required fields: currency, to_party")

	// The stored record is left untouched.
	repo.AssertNotCalled(t, "MarkConfirmed")
	repo.AssertNotCalled(t, "Update")
}

func TestConfirm_AlreadyTerminal(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	for _, setup := range []func(*domain.Intent){
		func(i *domain.Intent) { i.ConfirmedAt = &now },
		func(i *domain.Intent) { i.CancelledAt = &now },
	} {
		repo := new(MockIntentRepository)
		service := newTestService(repo, new(MockProcessor))

		terminal := readyIntent()
		setup(terminal)
		repo.On("GetByID", ctx, terminal.ID).Return(terminal, nil)

		_, err := service.Confirm(ctx, terminal.ID)

		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
		repo.AssertNotCalled(t, "MarkConfirmed")
	}
}

func TestConfirm_LostRace(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	processor := new(MockProcessor)
	service := newTestService(repo, processor)

	pending := readyIntent()

	// The readiness check passes, but another confirmation wins the
	// conditional write.
	repo.On("GetByID", ctx, pending.ID).Return(pending, nil)
	repo.On("MarkConfirmed", ctx, pending.ID, mock.AnythingOfType("time.Time")).
		Return(nil, domain.ErrStaleIntent)

	_, err := service.Confirm(ctx, pending.ID)

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "already confirmed or cancelled")
	processor.AssertNotCalled(t, "Settle")
}

func TestConfirm_UnregisteredKind(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	processor := new(MockProcessor)
	service := newTestService(repo, processor)

	pending := readyIntent()
	pending.Kind = domain.KindCashout

	now := time.Now().UTC()
	confirmed := *pending
	confirmed.ConfirmedAt = &now

	repo.On("GetByID", ctx, pending.ID).Return(pending, nil)
	repo.On("MarkConfirmed", ctx, pending.ID, mock.AnythingOfType("time.Time")).Return(&confirmed, nil)

	result, err := service.Confirm(ctx, pending.ID)

	assert.NoError(t, err)
	assert.NotNil(t, result.ConfirmedAt)
	processor.AssertNotCalled(t, "Settle")
	repo.AssertNotCalled(t, "Update")
}

func TestConfirm_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	id := uuid.New()
	repo.On("GetByID", ctx, id).Return(nil, domain.ErrIntentNotFound)

	_, err := service.Confirm(ctx, id)

	var nferr *domain.NotFoundError
	assert.ErrorAs(t, err, &nferr)
	assert.Contains(t, nferr.Message, id.String())
}

func TestUpdate_CoercesAmountString(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	pending := readyIntent()
	updated := *pending
	updated.Amount = 1000

	amount := "1,000"
	repo.On("GetByID", ctx, pending.ID).Return(pending, nil)
	repo.On("UpdateIfPending", ctx, pending.ID, mock.MatchedBy(func(p domain.IntentPatch) bool {
		return p.Amount != nil && *p.Amount == 1000
	})).Return(&updated, nil)

	result, err := service.Update(ctx, pending.ID, UpdateIntentInput{Amount: &amount})

	assert.NoError(t, err)
	assert.Equal(t, int64(1000), result.Amount)
	repo.AssertExpectations(t)
}

func TestUpdate_RejectsFractionalAmount(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	pending := readyIntent()
	amount := "10.13"
	repo.On("GetByID", ctx, pending.ID).Return(pending, nil)

	_, err := service.Update(ctx, pending.ID, UpdateIntentInput{Amount: &amount})

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "Amount should be an integer", verr.Message)
	repo.AssertNotCalled(t, "UpdateIfPending")
}

func TestUpdate_TerminalIntent(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	now := time.Now().UTC()
	confirmed := readyIntent()
	confirmed.ConfirmedAt = &now

	desc := "updated"
	repo.On("GetByID", ctx, confirmed.ID).Return(confirmed, nil)

	_, err := service.Update(ctx, confirmed.ID, UpdateIntentInput{Description: &desc})

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "Intent cannot be updated")
	repo.AssertNotCalled(t, "UpdateIfPending")
}

func TestCancel_NotFoundCarriesID(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	id := uuid.New()
	repo.On("GetByID", ctx, id).Return(nil, domain.ErrIntentNotFound)

	_, err := service.Cancel(ctx, id, "x")

	var nferr *domain.NotFoundError
	assert.ErrorAs(t, err, &nferr)
	assert.Contains(t, nferr.Message, id.String())
}

func TestCancel_RequiresReason(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	_, err := service.Cancel(ctx, uuid.New(), "  ")

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "Cancellation reason cannot be empty", verr.Message)
	repo.AssertNotCalled(t, "GetByID")
}

func TestCancel_Pending(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	pending := readyIntent()
	now := time.Now().UTC()
	cancelled := *pending
	cancelled.CancelledAt = &now
	cancelled.CancellationReason = "changed my mind"

	repo.On("GetByID", ctx, pending.ID).Return(pending, nil)
	repo.On("MarkCancelled", ctx, pending.ID, mock.AnythingOfType("time.Time"),
		"changed my mind", false).Return(&cancelled, nil)

	result, err := service.Cancel(ctx, pending.ID, "changed my mind")

	assert.NoError(t, err)
	assert.NotNil(t, result.CancelledAt)
	assert.Nil(t, result.ConfirmedAt)
	repo.AssertExpectations(t)
}

func TestCancel_ConfirmedRejected(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	now := time.Now().UTC()
	confirmed := readyIntent()
	confirmed.ConfirmedAt = &now

	repo.On("GetByID", ctx, confirmed.ID).Return(confirmed, nil)

	_, err := service.Cancel(ctx, confirmed.ID, "too late")

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	repo.AssertNotCalled(t, "MarkCancelled")
}

func TestDelete_OnlyCancelled(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	pending := readyIntent()
	repo.On("GetByID", ctx, pending.ID).Return(pending, nil)

	err := service.Delete(ctx, pending.ID)

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	repo.AssertNotCalled(t, "Delete")
}

func TestDelete_Cancelled(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	now := time.Now().UTC()
	cancelled := readyIntent()
	cancelled.CancelledAt = &now

	repo.On("GetByID", ctx, cancelled.ID).Return(cancelled, nil)
	repo.On("Delete", ctx, cancelled.ID).Return(nil)

	assert.NoError(t, service.Delete(ctx, cancelled.ID))
	repo.AssertExpectations(t)
}

func TestSearch_EmptyQuery(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	_, err := service.Search(ctx, "   ")

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	repo.AssertNotCalled(t, "Search")
}

func TestSearch_Delegates(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	matches := []*domain.Intent{readyIntent()}
	repo.On("Search", ctx, "groceries", domain.ApplicationDefault).Return(matches, nil)

	results, err := service.Search(ctx, "groceries")

	assert.NoError(t, err)
	assert.Len(t, results, 1)
	repo.AssertExpectations(t)
}

func TestGetByID_AbsentReturnsNil(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	id := uuid.New()
	repo.On("GetByID", ctx, id).Return(nil, domain.ErrIntentNotFound)

	result, err := service.GetByID(ctx, id)

	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestCreateCardIntent_RecordsSettledPayment(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	repo.On("Insert", ctx, mock.MatchedBy(func(i *domain.Intent) bool {
		return i.Kind == domain.KindCashout &&
			i.Application == domain.ApplicationCard &&
			i.PaymentMethod == domain.PaymentMethodCard &&
			i.ConfirmedAt != nil &&
			i.ExternalTransactionID == "cs_session_123"
	})).Return(nil, nil)

	result, err := service.CreateCardIntent(ctx, CardIntentInput{
		FromParty:             "+14155550100",
		ToParty:               "+14155550200",
		Amount:                2500,
		Currency:              "usd",
		ExternalTransactionID: "cs_session_123",
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(2500), result.AmountReceived)
	assert.NotNil(t, result.ConfirmedAt)
	repo.AssertExpectations(t)
}

func TestCreateCardIntent_InvalidParty(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIntentRepository)
	service := newTestService(repo, new(MockProcessor))

	base := CardIntentInput{
		FromParty:             "+14155550100",
		ToParty:               "+14155550200",
		Amount:                2500,
		Currency:              "usd",
		ExternalTransactionID: "cs_session_123",
	}

	malformedFrom := base
	malformedFrom.FromParty = "415-555-0100"
	_, err := service.CreateCardIntent(ctx, malformedFrom)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	malformedTo := base
	malformedTo.ToParty = "not-a-number"
	_, err = service.CreateCardIntent(ctx, malformedTo)
	assert.ErrorAs(t, err, &verr)

	repo.AssertNotCalled(t, "Insert")
}
