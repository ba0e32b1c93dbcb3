package httpapi

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
	"go.uber.org/zap"

	"github.com/textpay-hq/textpay-backend/internal/usecase/intent"
)

// handleStripeWebhook ingests completed card checkouts as settled cashout
// intents. Stripe retries deliveries, so the session id is checked against
// existing intents before a new one is recorded.
func (s *Server) handleStripeWebhook(c *fiber.Ctx) error {
	event, err := webhook.ConstructEvent(c.Body(), c.Get("Stripe-Signature"), s.stripeWebhookSecret)
	if err != nil {
		s.logger.Warn("Invalid webhook signature", zap.Error(err))
		return badRequest(c, "Invalid signature")
	}

	if event.Type != "checkout.session.completed" {
		return c.JSON(fiber.Map{"received": true})
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		s.logger.Error("Error parsing checkout session", zap.Error(err))
		return badRequest(c, "invalid event payload")
	}

	existing, err := s.service.GetByExternalTransactionID(c.Context(), session.ID)
	if err != nil {
		return s.mapError(c, err)
	}
	if existing != nil {
		s.logger.Info("Checkout session already recorded", zap.String("session_id", session.ID))
		return c.JSON(fiber.Map{"received": true})
	}

	input := intent.CardIntentInput{
		Amount:                session.AmountTotal,
		Currency:              strings.ToUpper(string(session.Currency)),
		ExternalTransactionID: session.ID,
	}
	if session.CustomerDetails != nil {
		input.FromParty = session.CustomerDetails.Phone
	}
	// The payee number is collected as a custom checkout field.
	if len(session.CustomFields) > 0 && session.CustomFields[0].Text != nil {
		input.ToParty = session.CustomFields[0].Text.Value
	}

	created, err := s.service.CreateCardIntent(c.Context(), input)
	if err != nil {
		return s.mapError(c, err)
	}

	s.logger.Info("Cashout intent created from card payment",
		zap.String("id", created.ID.String()),
		zap.String("session_id", session.ID),
	)
	return c.JSON(fiber.Map{"received": true})
}
