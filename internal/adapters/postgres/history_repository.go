package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// HistoryRepository stores order history entries as JSONB
type HistoryRepository struct {
	db *DBExecutor
}

var _ ports.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *DBExecutor) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) AppendOrderHistory(ctx context.Context, orderID string, entryType string, data domain.HistoryData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal history data: %w", err)
	}
	if _, err := r.db.Conn(ctx).Exec(ctx,
		`INSERT INTO order_history (order_id, type, data) VALUES ($1, $2, $3)`,
		orderID, entryType, raw); err != nil {
		return persistenceError(err, "append order history")
	}
	return nil
}

func (r *HistoryRepository) ListOrderHistory(ctx context.Context, orderID string) ([]domain.HistoryEntry, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, `
		SELECT id::text, order_id, type, data, created_at
		FROM order_history WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, persistenceError(err, "list order history")
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			e   domain.HistoryEntry
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Type, &raw, &e.CreatedAt); err != nil {
			return nil, persistenceError(err, "scan order history")
		}
		if err := json.Unmarshal(raw, &e.Data); err != nil {
			return nil, fmt.Errorf("unmarshal history data: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError(err, "list order history")
	}
	return entries, nil
}
