package daemon

import (
	"github.com/marcin-skalski/prwatch/internal/tracker"
)

type EventKind int

const (
	// EventRecordUpdated carries the record after any change, including the
	// start of a refresh (IsLoading) and rerun guard transitions.
	EventRecordUpdated EventKind = iota
	EventRecordRemoved
	// EventNotice is a transient, user-facing status note.
	EventNotice
	EventRerunFinished
)

type Event struct {
	Kind     EventKind
	RecordID string
	Record   tracker.Record
	Text     string
	Outcome  *RerunOutcome
}

const subscriberBuffer = 64

// Subscribe registers an event consumer. Events are dropped for a subscriber
// whose buffer is full. The returned func unsubscribes and closes the channel.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	return ch, func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
}

func (e *Engine) emit(ev Event) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			e.logger.Debug("event dropped for slow subscriber", "kind", ev.Kind)
		}
	}
}

func (e *Engine) emitRecord(id string) {
	rec, ok := e.store.Get(id)
	if !ok {
		return
	}
	e.emit(Event{Kind: EventRecordUpdated, RecordID: id, Record: rec})
}

func (e *Engine) notify(text string) {
	e.logger.Info(text)
	e.emit(Event{Kind: EventNotice, Text: text})
}
