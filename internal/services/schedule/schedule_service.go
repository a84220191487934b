// Package schedule manages the recurring billing plans merchants attach to variants
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// Service upserts, deletes and lists schedules of a channel
type Service struct {
	repo     ports.ScheduleRepository
	channels ports.ChannelResolver
	validate *validator.Validate
	logger   ports.Logger
}

// NewService creates a new schedule service
func NewService(repo ports.ScheduleRepository, channels ports.ChannelResolver, logger ports.Logger) *Service {
	return &Service{
		repo:     repo,
		channels: channels,
		validate: validator.New(),
		logger:   logger,
	}
}

// Upsert validates and stores a schedule. An empty ID creates a new schedule.
func (s *Service) Upsert(ctx context.Context, channelToken string, schedule domain.Schedule) (*domain.Schedule, error) {
	channel, err := s.channels.Resolve(ctx, channelToken)
	if err != nil {
		return nil, err
	}
	schedule.ChannelID = channel.ID

	if err := s.validate.Struct(schedule); err != nil {
		return nil, validationError(err)
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	saved, err := s.repo.Upsert(ctx, &schedule)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "schedule not found", err).
			WithDetail("schedule_id", schedule.ID)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("Saved schedule",
		ports.String("schedule_id", saved.ID),
		ports.String("channel_id", channel.ID),
		ports.String("name", saved.Name))
	return saved, nil
}

// Delete removes a schedule; variants using it stop being sold on subscription
func (s *Service) Delete(ctx context.Context, channelToken, id string) error {
	channel, err := s.channels.Resolve(ctx, channelToken)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, channel.ID, id); err != nil {
		return err
	}
	s.logger.Info("Deleted schedule", ports.String("schedule_id", id), ports.String("channel_id", channel.ID))
	return nil
}

// List returns the schedules of a channel
func (s *Service) List(ctx context.Context, channelToken string) ([]domain.Schedule, error) {
	channel, err := s.channels.Resolve(ctx, channelToken)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, channel.ID)
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.WrapError(domain.ErrorCodeValidationFailed, "invalid schedule", err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return domain.WrapError(domain.ErrorCodeValidationFailed, "invalid schedule", err).
		WithDetail("fields", strings.Join(fields, "; "))
}
