package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kevin07696/subscription-billing/internal/domain"
)

// nullText creates a pgtype.Text with empty string handling
func nullText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func nullTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// notFoundOr maps pgx.ErrNoRows to domain.ErrNotFound and wraps anything else as a persistence error
func notFoundOr(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WrapError(domain.ErrorCodeNotFound, op+": record not found", err)
	}
	return persistenceError(err, op)
}

func persistenceError(err error, op string) error {
	return domain.WrapError(domain.ErrorCodePersistenceFailed, op, fmt.Errorf("%s: %w", op, err))
}
