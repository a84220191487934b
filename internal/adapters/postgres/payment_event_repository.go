package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

const defaultPaymentEventLimit = 100

// PaymentEventRepository is the append-only provider notification log
type PaymentEventRepository struct {
	db *DBExecutor
}

var _ ports.PaymentEventRepository = (*PaymentEventRepository)(nil)

// NewPaymentEventRepository creates a new payment event repository
func NewPaymentEventRepository(db *DBExecutor) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

// Insert relies on the (invoice_id, event_type) unique constraint, so concurrent redeliveries
// cannot both create a row.
func (r *PaymentEventRepository) Insert(ctx context.Context, event *domain.PaymentEvent) (bool, error) {
	err := r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO payment_events
			(channel_id, event_type, currency, invoice_id, order_code, subscription_id, collection_method, charge)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (invoice_id, event_type) DO NOTHING
		RETURNING id, created_at`,
		event.ChannelID, event.EventType, event.Currency, event.InvoiceID, event.OrderCode,
		event.SubscriptionID, event.CollectionMethod, event.Charge,
	).Scan(&event.ID, &event.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, persistenceError(err, "insert payment event")
	}
	return true, nil
}

func (r *PaymentEventRepository) List(ctx context.Context, filter domain.PaymentEventFilter) ([]domain.PaymentEvent, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.ChannelID != "" {
		add("channel_id = $%d", filter.ChannelID)
	}
	if filter.OrderCode != "" {
		add("order_code = $%d", filter.OrderCode)
	}
	if filter.EventType != "" {
		add("event_type = $%d", filter.EventType)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPaymentEventLimit
	}

	query := `SELECT id, channel_id, event_type, currency, invoice_id, order_code, subscription_id,
		collection_method, charge, created_at FROM payment_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, persistenceError(err, "list payment events")
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		var e domain.PaymentEvent
		if err := rows.Scan(&e.ID, &e.ChannelID, &e.EventType, &e.Currency, &e.InvoiceID, &e.OrderCode,
			&e.SubscriptionID, &e.CollectionMethod, &e.Charge, &e.CreatedAt); err != nil {
			return nil, persistenceError(err, "scan payment event")
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError(err, "list payment events")
	}
	return events, nil
}
