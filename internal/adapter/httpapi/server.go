package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/textpay-hq/textpay-backend/internal/domain"
	"github.com/textpay-hq/textpay-backend/internal/usecase/intent"
)

// IntentService is the slice of the intent use case the HTTP layer depends on.
type IntentService interface {
	Create(ctx context.Context, input intent.CreateIntentInput) (*domain.Intent, error)
	CreateCardIntent(ctx context.Context, input intent.CardIntentInput) (*domain.Intent, error)
	Update(ctx context.Context, id uuid.UUID, input intent.UpdateIntentInput) (*domain.Intent, error)
	Confirm(ctx context.Context, id uuid.UUID) (*domain.Intent, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*domain.Intent, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string) ([]*domain.Intent, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Intent, error)
	GetByExternalTransactionID(ctx context.Context, externalID string) (*domain.Intent, error)
	List(ctx context.Context) ([]*domain.Intent, error)
	ListForParty(ctx context.Context, party string) ([]*domain.Intent, error)
}

// WalletService answers party balance lookups.
type WalletService interface {
	Balance(ctx context.Context, party string) (int64, error)
}

// Server exposes the intent lifecycle over HTTP.
type Server struct {
	app                 *fiber.App
	service             IntentService
	wallet              WalletService
	stripeWebhookSecret string
	logger              *zap.Logger
}

// NewServer builds the fiber application with all routes registered. apiKey
// protects the intent and wallet routes; the webhook route is protected by
// its own signature check instead.
func NewServer(service IntentService, wallet WalletService, apiKey string, stripeWebhookSecret string, logger *zap.Logger) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			// Party identifiers are phone numbers, so "+" arrives
			// percent-encoded in route parameters.
			UnescapePath: true,
		}),
		service:             service,
		wallet:              wallet,
		stripeWebhookSecret: stripeWebhookSecret,
		logger:              logger,
	}

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := s.app.Group("/v1")
	v1.Post("/webhooks/stripe", s.handleStripeWebhook)

	intents := v1.Group("/intents", APIKeyAuth(apiKey))
	intents.Post("/", s.handleCreate)
	intents.Get("/", s.handleList)
	intents.Get("/search", s.handleSearch)
	intents.Get("/external/:external_id", s.handleGetByExternalID)
	intents.Get("/:id", s.handleGetByID)
	intents.Patch("/:id", s.handleUpdate)
	intents.Post("/:id/confirm", s.handleConfirm)
	intents.Post("/:id/cancel", s.handleCancel)
	intents.Delete("/:id", s.handleDelete)

	v1.Get("/parties/:party/intents", APIKeyAuth(apiKey), s.handleListForParty)
	v1.Get("/parties/:party/balance", APIKeyAuth(apiKey), s.handleWalletBalance)

	return s
}

// Listen starts serving on the given address and blocks until shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("HTTP server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
