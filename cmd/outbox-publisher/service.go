package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/zazmarga/online-cinema/pkg/config"
	"github.com/zazmarga/online-cinema/pkg/db/models"
	"github.com/zazmarga/online-cinema/pkg/logger"
	"github.com/zazmarga/online-cinema/pkg/metrics"
	"github.com/zazmarga/online-cinema/pkg/outbox"
)

const (
	defaultBatchSize       = 50
	defaultPollMs          = 500
	defaultDispatchTimeout = 15 * time.Second
	defaultMaxAttempts     = 10
	maxBackoff             = 10 * time.Second
	jitterWindow           = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pinger interface {
	Ping(context.Context) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*outbox.ResolvedEvent, error)
}

type eventHandler interface {
	HandleEvent(ctx context.Context, event *outbox.ResolvedEvent) error
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Redis      pinger
	Repository outboxRepository
	Registry   registryResolver
	Handler    eventHandler
	Metrics    *metrics.OutboxMetrics
}

type Service struct {
	logg         *logger.Logger
	db           dbClient
	redis        pinger
	repo         outboxRepository
	registry     registryResolver
	handler      eventHandler
	metrics      *metrics.OutboxMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if params.Handler == nil {
		return nil, errors.New("event handler is required")
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		redis:        params.Redis,
		repo:         params.Repository,
		registry:     params.Registry,
		handler:      params.Handler,
		metrics:      params.Metrics,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	err := pingDependency(ctx, s.logg, "database", s.db.Ping)
	if s.redis != nil {
		err = multierr.Append(err, pingDependency(ctx, s.logg, "redis", s.redis.Ping))
	}
	return err
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	interval := s.pollInterval
	if interval <= 0 {
		interval = time.Duration(defaultPollMs) * time.Millisecond
	}
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		if processed {
			continue
		}

		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

// processBatch locks a batch of unpublished rows and hands each to the
// handler. A failing row never blocks the rest of the batch.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		processed = true
		var markErrs error
		for _, event := range events {
			markErrs = multierr.Append(markErrs, s.processEvent(ctx, tx, event))
		}
		return markErrs
	})
	return processed, err
}

func (s *Service) processEvent(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	eventType := string(event.EventType)
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.park(ctx, tx, event, err, nil)
	}

	fields := s.eventFields(event, resolved.Envelope)
	dispatchCtx, cancel := context.WithTimeout(ctx, defaultDispatchTimeout)
	err = s.handler.HandleEvent(dispatchCtx, resolved)
	cancel()
	if err == nil {
		if markErr := s.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		s.metrics.IncPublished(eventType)
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event dispatched")
		return nil
	}

	var nonRetry outbox.NonRetryableError
	if errors.As(err, &nonRetry) {
		return s.park(ctx, tx, event, err, fields)
	}

	nextAttempt := event.AttemptCount + 1
	fields["attempt_count"] = nextAttempt
	if nextAttempt >= s.maxAttempts {
		fields["terminal_reason"] = "max_attempts"
		return s.park(ctx, tx, event, fmt.Errorf("max dispatch attempts reached: %w", err), fields)
	}

	logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error())
	s.logg.Warn(logCtx, "outbox dispatch failed")
	if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
	}
	s.metrics.IncFailed(eventType)
	return nil
}

// park stops retrying a row by pushing its attempt count to the ceiling.
func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, err error, fields map[string]any) error {
	if fields == nil {
		fields = s.eventFields(event, outbox.PayloadEnvelope{})
	}
	logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error())
	s.logg.Warn(logCtx, "outbox event will not be retried")

	if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	s.metrics.IncParked(string(event.EventType))
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"batch_size":     s.batchSize,
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
