package tracker

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"agriquest/models"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultEventLogBytes caps the serialized event log.
const DefaultEventLogBytes = 100_000

// EventLog is the append-only local telemetry record. When the serialized
// log outgrows its cap the oldest events are evicted first; verification is
// an "ever observed" check, so this only matters for very long sessions.
type EventLog struct {
	mu       sync.Mutex
	kv       KeyValueStore
	clock    clockwork.Clock
	logger   *zap.Logger
	maxBytes int
	subs     observers[models.Event]

	last []models.Event // last log read or written
}

// NewEventLog builds a log over kv. maxBytes <= 0 selects DefaultEventLogBytes.
func NewEventLog(kv KeyValueStore, clock clockwork.Clock, logger *zap.Logger, maxBytes int) *EventLog {
	if maxBytes <= 0 {
		maxBytes = DefaultEventLogBytes
	}
	return &EventLog{kv: kv, clock: clock, logger: logger, maxBytes: maxBytes}
}

// RecordEvent appends an event, persists the log and then notifies
// subscribers before returning.
func (l *EventLog) RecordEvent(kind models.EventKind, data map[string]any) (models.Event, error) {
	evt := models.Event{Type: kind, Data: data, TS: l.clock.Now().UnixMilli()}

	l.mu.Lock()
	events, err := l.load()
	var evicted int
	if err == nil {
		var raw string
		events = append(events, evt)
		raw, evicted, err = encodeBounded(events, l.maxBytes)
		if err == nil {
			err = l.kv.Set(EventsKey, raw)
		}
		if err == nil {
			l.last = events[evicted:]
		}
	}
	l.mu.Unlock()

	if err != nil {
		l.logger.Warn("[EVENTS] failed to persist event", zap.String("type", string(kind)), zap.Error(err))
		return evt, fmt.Errorf("record event %s: %w", kind, err)
	}
	if evicted > 0 {
		l.logger.Debug("[EVENTS] evicted oldest events", zap.Int("count", evicted))
	}
	l.logger.Debug("[EVENTS] recorded", zap.String("type", string(kind)), zap.Any("data", data))

	l.subs.notify(evt)
	return evt, nil
}

// Events returns the current log, oldest first. Missing or corrupt content
// reads as an empty log; a failed read returns the last log seen.
func (l *EventLog) Events() []models.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	events, err := l.load()
	if err != nil {
		return slices.Clone(l.last)
	}
	return events
}

// VerifiedSet recomputes the verified step ids from the whole log.
func (l *EventLog) VerifiedSet(rules RuleSet) VerifiedSet {
	return ComputeVerifiedSet(l.Events(), rules)
}

// Clear drops every recorded event.
func (l *EventLog) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = nil
	return l.kv.Delete(EventsKey)
}

// Subscribe registers fn to run after every recorded event.
func (l *EventLog) Subscribe(fn func(models.Event)) (unsubscribe func()) {
	return l.subs.add(fn)
}

// load must be called with l.mu held. A read error is returned so callers
// never write back a log they could not see.
func (l *EventLog) load() ([]models.Event, error) {
	raw, ok, err := l.kv.Get(EventsKey)
	if err != nil {
		l.logger.Warn("[EVENTS] failed to read event log", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrStateUnavailable, err)
	}
	var events []models.Event
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &events); err != nil {
			l.logger.Warn("[EVENTS] discarding corrupt event log", zap.Error(err))
			events = nil
		}
	}
	l.last = slices.Clone(events)
	return events, nil
}

// encodeBounded serializes events, dropping from the front until the result
// fits maxBytes. The newest event is always kept.
func encodeBounded(events []models.Event, maxBytes int) (string, int, error) {
	sizes := make([]int, len(events))
	total := 2 // brackets
	for i, e := range events {
		b, err := json.Marshal(e)
		if err != nil {
			return "", 0, err
		}
		sizes[i] = len(b)
		total += len(b)
	}
	if len(events) > 1 {
		total += len(events) - 1 // commas
	}

	start := 0
	for total > maxBytes && start < len(events)-1 {
		total -= sizes[start] + 1
		start++
	}

	b, err := json.Marshal(events[start:])
	if err != nil {
		return "", 0, err
	}
	return string(b), start, nil
}
