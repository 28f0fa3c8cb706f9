package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/monitoring"
	"github.com/Sriharan2222/medlog/pkg/types"
)

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second
)

// Writer persists audit entries
type Writer interface {
	Write(ctx context.Context, entry *types.AuditEntry) error
}

// Sink records audit entries off the request path. Record never blocks and
// never fails the caller; entries that cannot be queued or written are
// logged and dropped.
type Sink struct {
	logger       *logger.Logger
	writer       Writer
	metrics      *monitoring.MetricsCollector
	writeTimeout time.Duration
	now          func() time.Time

	queue  chan *types.AuditEntry
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewSink creates a sink and starts its worker
func NewSink(log *logger.Logger, writer Writer, metrics *monitoring.MetricsCollector, queueSize int, writeTimeout time.Duration) *Sink {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	s := &Sink{
		logger:       log,
		writer:       writer,
		metrics:      metrics,
		writeTimeout: writeTimeout,
		now:          time.Now,
		queue:        make(chan *types.AuditEntry, queueSize),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// Record queues an entry. details may be nil, a string, or any
// JSON-encodable value.
func (s *Sink) Record(ctx context.Context, userID, action, entity, entityID string, details interface{}) {
	entry := &types.AuditEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   encodeDetails(details),
		CreatedAt: s.now().UTC(),
	}

	s.logger.Audit(ctx, userID, action, entity, entityID, entry.Details)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.drop(ctx, entry, "audit sink closed")
		return
	}

	select {
	case s.queue <- entry:
	default:
		s.drop(ctx, entry, "audit queue full")
	}
}

// Close stops accepting entries and waits for queued ones to be written
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
}

// Depth returns the queued entry count and the queue capacity
func (s *Sink) Depth() (int, int) {
	return len(s.queue), cap(s.queue)
}

func (s *Sink) run() {
	defer s.wg.Done()

	for entry := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		err := s.writer.Write(ctx, entry)
		cancel()

		if err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"action":    entry.Action,
				"entity":    entry.Entity,
				"entity_id": entry.EntityID,
			}).Error("Failed to write audit entry")
		}
		s.metrics.RecordAuditEvent(entry.Action, err == nil)
	}
}

func (s *Sink) drop(ctx context.Context, entry *types.AuditEntry, reason string) {
	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"action":    entry.Action,
		"entity":    entry.Entity,
		"entity_id": entry.EntityID,
	}).Warn(reason)
	s.metrics.RecordAuditEvent(entry.Action, false)
}

func encodeDetails(details interface{}) string {
	switch d := details.(type) {
	case nil:
		return ""
	case string:
		return d
	}

	encoded, err := json.Marshal(details)
	if err != nil {
		return fmt.Sprint(details)
	}
	return string(encoded)
}
