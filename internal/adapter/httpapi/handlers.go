package httpapi

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/textpay-hq/textpay-backend/internal/domain"
	"github.com/textpay-hq/textpay-backend/internal/usecase/intent"
)

// intentResponse is the wire representation of an intent.
type intentResponse struct {
	ID                    string     `json:"id"`
	Application           string     `json:"application"`
	Kind                  string     `json:"kind"`
	Status                string     `json:"status"`
	FromParty             string     `json:"from_party"`
	ToParty               string     `json:"to_party,omitempty"`
	Amount                int64      `json:"amount"`
	AmountReceived        int64      `json:"amount_received,omitempty"`
	Currency              string     `json:"currency,omitempty"`
	Description           string     `json:"description,omitempty"`
	CancellationReason    string     `json:"cancellation_reason,omitempty"`
	PaymentMethod         string     `json:"payment_method,omitempty"`
	ExternalTransactionID string     `json:"external_transaction_id,omitempty"`
	ClientSecret          string     `json:"client_secret"`
	CreatedAt             time.Time  `json:"created_at"`
	ConfirmedAt           *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt           *time.Time `json:"cancelled_at,omitempty"`
}

func toResponse(i *domain.Intent) intentResponse {
	return intentResponse{
		ID:                    i.ID.String(),
		Application:           string(i.Application),
		Kind:                  string(i.Kind),
		Status:                string(i.Status()),
		FromParty:             i.FromParty,
		ToParty:               i.ToParty,
		Amount:                i.Amount,
		AmountReceived:        i.AmountReceived,
		Currency:              i.Currency,
		Description:           i.Description,
		CancellationReason:    i.CancellationReason,
		PaymentMethod:         string(i.PaymentMethod),
		ExternalTransactionID: i.ExternalTransactionID,
		ClientSecret:          i.ClientSecret,
		CreatedAt:             i.CreatedAt,
		ConfirmedAt:           i.ConfirmedAt,
		CancelledAt:           i.CancelledAt,
	}
}

func toResponseList(intents []*domain.Intent) []intentResponse {
	out := make([]intentResponse, 0, len(intents))
	for _, i := range intents {
		out = append(out, toResponse(i))
	}
	return out
}

type createIntentRequest struct {
	FromParty   string `json:"from_party"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}

type updateIntentRequest struct {
	FromParty   *string       `json:"from_party,omitempty"`
	ToParty     *string       `json:"to_party,omitempty"`
	Amount      *amountString `json:"amount,omitempty"`
	Currency    *string       `json:"currency,omitempty"`
	Description *string       `json:"description,omitempty"`
}

// amountString accepts a JSON number or string. Callers send amounts both
// ways; the service parses the textual form either way.
type amountString string

func (a *amountString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = amountString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = amountString(n.String())
	return nil
}

type cancelIntentRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCreate(c *fiber.Ctx) error {
	var req createIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	created, err := s.service.Create(c.Context(), intent.CreateIntentInput{
		FromParty:   req.FromParty,
		Kind:        domain.Kind(req.Kind),
		Description: req.Description,
	})
	if err != nil {
		return s.mapError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toResponse(created))
}

func (s *Server) handleList(c *fiber.Ctx) error {
	intents, err := s.service.List(c.Context())
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(fiber.Map{"intents": toResponseList(intents)})
}

func (s *Server) handleListForParty(c *fiber.Ctx) error {
	intents, err := s.service.ListForParty(c.Context(), c.Params("party"))
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(fiber.Map{"intents": toResponseList(intents)})
}

// handleWalletBalance reports a party's ledger balance. Amounts are stored as
// integer minor units; the wire format is the display form.
func (s *Server) handleWalletBalance(c *fiber.Ctx) error {
	balance, err := s.wallet.Balance(c.Context(), c.Params("party"))
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(fiber.Map{"balance": decimal.New(balance, -2).StringFixed(2)})
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	intents, err := s.service.Search(c.Context(), c.Query("query"))
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(fiber.Map{"intents": toResponseList(intents)})
}

func (s *Server) handleGetByID(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid intent id")
	}

	record, err := s.service.GetByID(c.Context(), id)
	if err != nil {
		return s.mapError(c, err)
	}
	if record == nil {
		return notFound(c, "intent not found")
	}
	return c.JSON(toResponse(record))
}

func (s *Server) handleGetByExternalID(c *fiber.Ctx) error {
	record, err := s.service.GetByExternalTransactionID(c.Context(), c.Params("external_id"))
	if err != nil {
		return s.mapError(c, err)
	}
	if record == nil {
		return notFound(c, "intent not found")
	}
	return c.JSON(toResponse(record))
}

func (s *Server) handleUpdate(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid intent id")
	}

	var req updateIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	input := intent.UpdateIntentInput{
		FromParty:   req.FromParty,
		ToParty:     req.ToParty,
		Currency:    req.Currency,
		Description: req.Description,
	}
	if req.Amount != nil {
		amount := string(*req.Amount)
		input.Amount = &amount
	}

	updated, err := s.service.Update(c.Context(), id, input)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(toResponse(updated))
}

func (s *Server) handleConfirm(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid intent id")
	}

	confirmed, err := s.service.Confirm(c.Context(), id)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(toResponse(confirmed))
}

func (s *Server) handleCancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid intent id")
	}

	var req cancelIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	cancelled, err := s.service.Cancel(c.Context(), id, req.Reason)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(toResponse(cancelled))
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid intent id")
	}

	if err := s.service.Delete(c.Context(), id); err != nil {
		return s.mapError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// mapError translates domain errors into HTTP responses. Database causes are
// already logged at the source, so only the generic message travels out.
func (s *Server) mapError(c *fiber.Ctx, err error) error {
	var (
		validationErr *domain.ValidationError
		notFoundErr   *domain.NotFoundError
		onChainErr    *domain.OnChainError
		databaseErr   *domain.DatabaseError
	)

	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr.Message})
	case errors.As(err, &notFoundErr):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": notFoundErr.Message})
	case errors.As(err, &onChainErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": onChainErr.Message})
	case errors.As(err, &databaseErr):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": databaseErr.Message})
	default:
		s.logger.Error("Unhandled error", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func notFound(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": message})
}
