package ports

import (
	"context"

	"github.com/kevin07696/subscription-billing/internal/domain"
)

// ScheduleRepository stores merchant schedules per channel
type ScheduleRepository interface {
	Upsert(ctx context.Context, schedule *domain.Schedule) (*domain.Schedule, error)
	Delete(ctx context.Context, channelID, id string) error
	List(ctx context.Context, channelID string) ([]domain.Schedule, error)
}
