package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/zazmarga/online-cinema/pkg/config"
	"github.com/zazmarga/online-cinema/pkg/db/models"
	"github.com/zazmarga/online-cinema/pkg/enums"
	"github.com/zazmarga/online-cinema/pkg/logger"
	"github.com/zazmarga/online-cinema/pkg/metrics"
	"github.com/zazmarga/online-cinema/pkg/outbox"
	"github.com/zazmarga/online-cinema/pkg/outbox/payloads"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	first := paymentEvent(t, "event-one", 0)
	second := paymentEvent(t, "event-two", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	handler := &fakeHandler{errs: []error{errors.New("smtp unavailable"), nil}}
	service := newTestService(t, repo, handler, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(handler.calls) != 2 {
		t.Fatalf("expected both events dispatched, got %d", len(handler.calls))
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("expected first event marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != second.ID {
		t.Fatalf("expected second event marked published, got %v", repo.published)
	}
	if len(repo.terminal) != 0 {
		t.Fatalf("transient failure must not park the row")
	}
}

func TestServiceProcessBatchEmpty(t *testing.T) {
	repo := &fakeRepo{}
	service := newTestService(t, repo, &fakeHandler{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("empty batch must not report processed")
	}
}

func TestServiceProcessBatchParksNonRetryable(t *testing.T) {
	event := paymentEvent(t, "bad-payload", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	handler := &fakeHandler{errs: []error{outbox.NonRetryableError{Err: errors.New("unexpected payload")}}}
	reg := prometheus.NewRegistry()
	om := metrics.NewOutboxMetrics(reg)
	service := newTestService(t, repo, handler, &serviceOverrides{metrics: om})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.terminal) != 1 || repo.terminal[0].id != event.ID {
		t.Fatalf("expected event parked, got %+v", repo.terminal)
	}
	if repo.terminal[0].attempts != 5 {
		t.Fatalf("expected terminal attempts to equal max attempts, got %d", repo.terminal[0].attempts)
	}
	if len(repo.failed) != 0 || len(repo.published) != 0 {
		t.Fatalf("parked row must not be marked failed or published")
	}
	if got := parkedCount(t, reg, string(enums.EventPaymentConfirmed)); got != 1 {
		t.Fatalf("expected parked counter 1, got %v", got)
	}
}

func TestServiceProcessBatchParksOnMaxAttempts(t *testing.T) {
	event := paymentEvent(t, "max-attempts", 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	handler := &fakeHandler{errs: []error{errors.New("transient")}}
	service := newTestService(t, repo, handler, &serviceOverrides{outbox: &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	}})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.terminal) != 1 || repo.terminal[0].attempts != 2 {
		t.Fatalf("expected event parked at max attempts, got %+v", repo.terminal)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("row at max attempts must not be marked failed")
	}
}

func TestServiceProcessBatchParksUnresolvableRow(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentConfirmed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`not-json`),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	handler := &fakeHandler{}
	service := newTestService(t, repo, handler, &serviceOverrides{registry: outbox.DefaultRegistry()})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(handler.calls) != 0 {
		t.Fatalf("handler must not see an unresolvable row")
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected unresolvable row parked")
	}
}

func TestServiceProcessBatchSurfacesMarkErrors(t *testing.T) {
	event := paymentEvent(t, "mark-fails", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}, markErr: errors.New("db gone")}
	service := newTestService(t, repo, &fakeHandler{}, nil)

	if _, err := service.processBatch(context.Background()); err == nil {
		t.Fatalf("expected mark error to roll back the batch")
	}
}

func TestEnsureReadinessCombinesErrors(t *testing.T) {
	repo := &fakeRepo{}
	service := newTestService(t, repo, &fakeHandler{}, &serviceOverrides{
		db:    &fakeDB{pingErr: errors.New("db down")},
		redis: &fakePinger{err: errors.New("redis down")},
	})

	err := service.ensureReadiness(context.Background())
	if err == nil {
		t.Fatalf("expected readiness error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "database ping failed") || !strings.Contains(msg, "redis ping failed") {
		t.Fatalf("expected both failures reported, got %q", msg)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakeHandler{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if err := service.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNextBackoffCaps(t *testing.T) {
	base := 100 * time.Millisecond
	if got := nextBackoff(base, base, time.Second); got != 200*time.Millisecond {
		t.Fatalf("expected doubled backoff, got %s", got)
	}
	if got := nextBackoff(800*time.Millisecond, base, time.Second); got != time.Second {
		t.Fatalf("expected capped backoff, got %s", got)
	}
	if got := withJitter(base); got < base || got >= base+jitterWindow {
		t.Fatalf("jitter out of range: %s", got)
	}
}

func TestNewServiceValidation(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard})
	cfg := &config.Config{}
	if _, err := NewService(ServiceParams{Logger: logg}); err == nil {
		t.Fatalf("expected config error")
	}
	if _, err := NewService(ServiceParams{Config: cfg, Logger: logg, DB: &fakeDB{}, Repository: &fakeRepo{}, Registry: &fakeRegistry{}}); err == nil {
		t.Fatalf("expected handler error")
	}
	service, err := NewService(ServiceParams{
		Config: cfg, Logger: logg, DB: &fakeDB{}, Repository: &fakeRepo{}, Registry: &fakeRegistry{}, Handler: &fakeHandler{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if service.batchSize != defaultBatchSize || service.maxAttempts != defaultMaxAttempts {
		t.Fatalf("expected defaults, got batch=%d attempts=%d", service.batchSize, service.maxAttempts)
	}
}

type serviceOverrides struct {
	outbox   *config.OutboxConfig
	registry registryResolver
	metrics  *metrics.OutboxMetrics
	db       dbClient
	redis    pinger
}

func newTestService(t *testing.T, repo outboxRepository, handler eventHandler, overrides *serviceOverrides) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	var registry registryResolver = &fakeRegistry{}
	var database dbClient = &fakeDB{}
	var om *metrics.OutboxMetrics
	var redisPinger pinger
	if overrides != nil {
		if overrides.outbox != nil {
			outboxCfg = *overrides.outbox
		}
		if overrides.registry != nil {
			registry = overrides.registry
		}
		if overrides.db != nil {
			database = overrides.db
		}
		om = overrides.metrics
		redisPinger = overrides.redis
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:     &config.Config{Outbox: outboxCfg},
		Logger:     logg,
		DB:         database,
		Redis:      redisPinger,
		Repository: repo,
		Registry:   registry,
		Handler:    handler,
		Metrics:    om,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func paymentEvent(tb testing.TB, eventID string, attempts int) models.OutboxEvent {
	tb.Helper()
	data, err := json.Marshal(payloads.PaymentConfirmedEvent{
		PaymentID:     uuid.New(),
		OrderID:       uuid.New(),
		UserID:        uuid.New(),
		CustomerEmail: "viewer@example.com",
	})
	if err != nil {
		tb.Fatalf("marshal payload: %v", err)
	}
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentConfirmed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func parkedCount(t *testing.T, reg *prometheus.Registry, eventType string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "outbox_parked_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "event_type" && label.GetValue() == eventType {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

type terminalMark struct {
	id       uuid.UUID
	attempts int
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []terminalMark
	markErr   error
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.terminal = append(f.terminal, terminalMark{id: id, attempts: terminalAttempts})
	return nil
}

type fakeDB struct {
	pingErr error
}

func (f *fakeDB) Ping(context.Context) error {
	return f.pingErr
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error {
	return f.err
}

type fakeHandler struct {
	errs  []error
	calls []*outbox.ResolvedEvent
}

func (f *fakeHandler) HandleEvent(_ context.Context, event *outbox.ResolvedEvent) error {
	f.calls = append(f.calls, event)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type fakeRegistry struct {
	err error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*outbox.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, outbox.NonRetryableError{Err: err}
	}
	return &outbox.ResolvedEvent{Row: event, Envelope: env, Payload: &payloads.PaymentConfirmedEvent{}}, nil
}
