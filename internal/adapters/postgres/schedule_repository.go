package postgres

import (
	"context"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// ScheduleRepository stores merchant schedules
type ScheduleRepository struct {
	db *DBExecutor
}

var _ ports.ScheduleRepository = (*ScheduleRepository)(nil)

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *DBExecutor) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id::text, channel_id, name, interval_unit, interval_count, duration_unit, duration_count,
	start_moment, fixed_start_date, downpayment_amount, paid_up_front, auto_renew, created_at, updated_at`

// Upsert inserts a schedule without an id, otherwise updates the channel's schedule with that id
func (r *ScheduleRepository) Upsert(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	args := []interface{}{
		s.ChannelID, s.Name, string(s.IntervalUnit), s.IntervalCount, nullText(string(s.DurationUnit)),
		s.DurationCount, string(s.StartMoment), nullTime(s.FixedStartDate), s.DownpaymentAmount,
		s.PaidUpFront, s.AutoRenew,
	}

	var sr scheduleRow
	if s.ID == "" {
		err := r.db.Conn(ctx).QueryRow(ctx, `
			INSERT INTO schedules (channel_id, name, interval_unit, interval_count, duration_unit, duration_count,
				start_moment, fixed_start_date, downpayment_amount, paid_up_front, auto_renew)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING `+scheduleColumns, args...).Scan(sr.dest()...)
		if err != nil {
			return nil, persistenceError(err, "insert schedule")
		}
		return sr.toDomain(), nil
	}

	args = append(args, s.ID)
	err := r.db.Conn(ctx).QueryRow(ctx, `
		UPDATE schedules SET name = $2, interval_unit = $3, interval_count = $4, duration_unit = $5,
			duration_count = $6, start_moment = $7, fixed_start_date = $8, downpayment_amount = $9,
			paid_up_front = $10, auto_renew = $11, updated_at = NOW()
		WHERE channel_id = $1 AND id = $12::uuid
		RETURNING `+scheduleColumns, args...).Scan(sr.dest()...)
	if err != nil {
		return nil, notFoundOr(err, "update schedule")
	}
	return sr.toDomain(), nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, channelID, id string) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM schedules WHERE channel_id = $1 AND id = $2::uuid`, channelID, id)
	if err != nil {
		return persistenceError(err, "delete schedule")
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeNotFound, "schedule not found").WithDetail("schedule_id", id)
	}
	return nil
}

func (r *ScheduleRepository) List(ctx context.Context, channelID string) ([]domain.Schedule, error) {
	rows, err := r.db.Conn(ctx).Query(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE channel_id = $1 ORDER BY created_at, id`, channelID)
	if err != nil {
		return nil, persistenceError(err, "list schedules")
	}
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		var sr scheduleRow
		if err := rows.Scan(sr.dest()...); err != nil {
			return nil, persistenceError(err, "scan schedule")
		}
		schedules = append(schedules, *sr.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError(err, "list schedules")
	}
	return schedules, nil
}
