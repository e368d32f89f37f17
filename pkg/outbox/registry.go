package outbox

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zazmarga/online-cinema/pkg/db/models"
	"github.com/zazmarga/online-cinema/pkg/enums"
	"github.com/zazmarga/online-cinema/pkg/outbox/payloads"
)

type decoderFunc func(payload json.RawMessage) (interface{}, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// ResolvedEvent is an outbox row with its envelope and typed payload decoded.
type ResolvedEvent struct {
	Row      models.OutboxEvent
	Envelope PayloadEnvelope
	Payload  interface{}
}

// NonRetryableError signals the publisher should park a row instead of retrying it.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

// DefaultRegistry knows every event type this service emits.
func DefaultRegistry() *DecoderRegistry {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventPaymentConfirmed, 1, func(payload json.RawMessage) (interface{}, error) {
		var evt payloads.PaymentConfirmedEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, err
		}
		return &evt, nil
	})
	return reg
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]; ok {
		return decoder(payload)
	}
	return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
}

// Resolve unwraps the envelope of a stored row and decodes its data.
// Undecodable rows are reported as NonRetryableError.
func (r *DecoderRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		return nil, NonRetryableError{Err: fmt.Errorf("decode envelope: %w", err)}
	}
	payload, err := r.Decode(row.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, NonRetryableError{Err: err}
	}
	return &ResolvedEvent{Row: row, Envelope: envelope, Payload: payload}, nil
}
