// Package stream fan-outs assessment events to live subscribers so a
// dashboard can follow a dossier as it is edited.
package stream

import (
	"context"
	"sync"
	"time"
)

// AssessmentEvent describes one change to the dossier: a record created,
// a batch applied, or an evaluation run.
type AssessmentEvent struct {
	Kind       string    `json:"kind"`
	Subject    string    `json:"subject,omitempty"`
	UnitCode   string    `json:"unit_code,omitempty"`
	Conformity *int      `json:"conformity,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event kinds published by the API.
const (
	KindUnitCreated      = "unit.created"
	KindUnitDeleted      = "unit.deleted"
	KindRiskCreated      = "risk.created"
	KindEquipmentAdded   = "equipment.added"
	KindCertificationAdd = "certification.added"
	KindEvaluationRun    = "evaluation.run"
	KindBatchApplied     = "batch.applied"
)

// Stream fan-outs assessment events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan AssessmentEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan AssessmentEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan AssessmentEvent {
	ch := make(chan AssessmentEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt AssessmentEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// SubscriberCount reports active subscribers, mainly for tests.
func (s *Stream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
