package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/textpay-hq/textpay-backend/internal/domain"
)

// intentRepository implements domain.IntentRepository
type intentRepository struct {
	db *DB
}

// NewIntentRepository creates a new intent repository
func NewIntentRepository(db *DB) domain.IntentRepository {
	return &intentRepository{db: db}
}

const intentColumns = `id, application, kind, from_party, to_party, amount, amount_received,
	currency, description, cancellation_reason, payment_method, external_transaction_id,
	client_secret, created_at, confirmed_at, cancelled_at`

// Insert persists a new intent and returns the stored row
func (r *intentRepository) Insert(ctx context.Context, intent *domain.Intent) (*domain.Intent, error) {
	query := `
		INSERT INTO intents (` + intentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + intentColumns

	row := r.db.QueryRowContext(ctx, query,
		intent.ID,
		string(intent.Application),
		string(intent.Kind),
		intent.FromParty,
		intent.ToParty,
		intent.Amount,
		intent.AmountReceived,
		intent.Currency,
		intent.Description,
		intent.CancellationReason,
		string(intent.PaymentMethod),
		intent.ExternalTransactionID,
		intent.ClientSecret,
		intent.CreatedAt,
		intent.ConfirmedAt,
		intent.CancelledAt,
	)

	stored, err := scanIntent(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert intent: %w", err)
	}
	return stored, nil
}

// GetByID retrieves an intent by its ID
func (r *intentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM intents WHERE id = $1`

	intent, err := scanIntent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to fetch intent: %w", err)
	}
	return intent, nil
}

// GetByExternalTransactionID retrieves the intent holding the given
// settlement or payment-processor reference
func (r *intentRepository) GetByExternalTransactionID(ctx context.Context, externalID string) (*domain.Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM intents WHERE external_transaction_id = $1`

	intent, err := scanIntent(r.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to fetch intent by external transaction id: %w", err)
	}
	return intent, nil
}

// List retrieves all intents for an application
func (r *intentRepository) List(ctx context.Context, application domain.Application) ([]*domain.Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM intents WHERE application = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, string(application))
	if err != nil {
		return nil, fmt.Errorf("failed to list intents: %w", err)
	}
	defer rows.Close()

	return collectIntents(rows)
}

// ListForParty retrieves all intents created by the given party
func (r *intentRepository) ListForParty(ctx context.Context, party string, application domain.Application) ([]*domain.Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM intents
		WHERE from_party = $1 AND application = $2 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, party, string(application))
	if err != nil {
		return nil, fmt.Errorf("failed to list party intents: %w", err)
	}
	defer rows.Close()

	return collectIntents(rows)
}

// Search retrieves intents whose description or cancellation reason contains
// the query
func (r *intentRepository) Search(ctx context.Context, query string, application domain.Application) ([]*domain.Intent, error) {
	stmt := `SELECT ` + intentColumns + ` FROM intents
		WHERE (description ILIKE '%' || $1 || '%' OR cancellation_reason ILIKE '%' || $1 || '%')
		AND application = $2
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, stmt, query, string(application))
	if err != nil {
		return nil, fmt.Errorf("failed to search intents: %w", err)
	}
	defer rows.Close()

	return collectIntents(rows)
}

// Update applies the patch unconditionally and returns the updated row
func (r *intentRepository) Update(ctx context.Context, id uuid.UUID, patch domain.IntentPatch) (*domain.Intent, error) {
	return r.update(ctx, id, patch, "")
}

// UpdateIfPending applies the patch only while the intent has no terminal
// timestamp
func (r *intentRepository) UpdateIfPending(ctx context.Context, id uuid.UUID, patch domain.IntentPatch) (*domain.Intent, error) {
	return r.update(ctx, id, patch, "AND confirmed_at IS NULL AND cancelled_at IS NULL")
}

func (r *intentRepository) update(ctx context.Context, id uuid.UUID, patch domain.IntentPatch, guard string) (*domain.Intent, error) {
	sets, args := buildPatch(patch)
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE intents SET %s WHERE id = $%d %s RETURNING %s`,
		strings.Join(sets, ", "), len(args), guard, intentColumns)

	intent, err := scanIntent(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The row was fetched moments ago by the service, so zero rows
			// means the guard failed, not that the intent vanished.
			return nil, domain.ErrStaleIntent
		}
		return nil, fmt.Errorf("failed to update intent: %w", err)
	}
	return intent, nil
}

// MarkConfirmed sets confirmed_at only while the intent is still pending.
// This conditional write is what closes the double-settlement race: of two
// concurrent confirmations, exactly one sees a row to update.
func (r *intentRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Intent, error) {
	query := `UPDATE intents SET confirmed_at = $1
		WHERE id = $2 AND confirmed_at IS NULL AND cancelled_at IS NULL
		RETURNING ` + intentColumns

	intent, err := scanIntent(r.db.QueryRowContext(ctx, query, at, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStaleIntent
		}
		return nil, fmt.Errorf("failed to confirm intent: %w", err)
	}
	return intent, nil
}

// MarkCancelled sets cancelled_at and the cancellation reason. fromConfirmed
// selects between the explicit transition (pending only) and the
// compensating transition (confirmed intents allowed)
func (r *intentRepository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time, reason string, fromConfirmed bool) (*domain.Intent, error) {
	guard := "AND confirmed_at IS NULL"
	if fromConfirmed {
		guard = ""
	}

	query := fmt.Sprintf(`UPDATE intents SET cancelled_at = $1, cancellation_reason = $2
		WHERE id = $3 AND cancelled_at IS NULL %s
		RETURNING %s`, guard, intentColumns)

	intent, err := scanIntent(r.db.QueryRowContext(ctx, query, at, reason, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStaleIntent
		}
		return nil, fmt.Errorf("failed to cancel intent: %w", err)
	}
	return intent, nil
}

// Delete hard-deletes an intent
func (r *intentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM intents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete intent: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete intent: %w", err)
	}
	if affected == 0 {
		return domain.ErrIntentNotFound
	}
	return nil
}

// buildPatch turns the non-nil patch fields into SET clauses. Only the
// fields that changed are written.
func buildPatch(patch domain.IntentPatch) ([]string, []interface{}) {
	var sets []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.FromParty != nil {
		add("from_party", *patch.FromParty)
	}
	if patch.ToParty != nil {
		add("to_party", *patch.ToParty)
	}
	if patch.Amount != nil {
		add("amount", *patch.Amount)
	}
	if patch.Currency != nil {
		add("currency", *patch.Currency)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.PaymentMethod != nil {
		add("payment_method", string(*patch.PaymentMethod))
	}
	if patch.AmountReceived != nil {
		add("amount_received", *patch.AmountReceived)
	}
	if patch.ExternalTransactionID != nil {
		add("external_transaction_id", *patch.ExternalTransactionID)
	}

	return sets, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanIntent maps a row onto the domain entity
func scanIntent(row rowScanner) (*domain.Intent, error) {
	var (
		intent        domain.Intent
		application   string
		kind          string
		paymentMethod string
		confirmedAt   sql.NullTime
		cancelledAt   sql.NullTime
	)

	err := row.Scan(
		&intent.ID,
		&application,
		&kind,
		&intent.FromParty,
		&intent.ToParty,
		&intent.Amount,
		&intent.AmountReceived,
		&intent.Currency,
		&intent.Description,
		&intent.CancellationReason,
		&paymentMethod,
		&intent.ExternalTransactionID,
		&intent.ClientSecret,
		&intent.CreatedAt,
		&confirmedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	intent.Application = domain.Application(application)
	intent.Kind = domain.Kind(kind)
	intent.PaymentMethod = domain.PaymentMethod(paymentMethod)
	if confirmedAt.Valid {
		t := confirmedAt.Time
		intent.ConfirmedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		intent.CancelledAt = &t
	}

	return &intent, nil
}

func collectIntents(rows *sql.Rows) ([]*domain.Intent, error) {
	intents := make([]*domain.Intent, 0)
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intent: %w", err)
		}
		intents = append(intents, intent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read intents: %w", err)
	}
	return intents, nil
}
