package decision

import "time"

// Event is one of the logical notifications the pipeline emits:
// decision_tracked, decision_status_updated, decision_executed,
// feedback_processed, learning_completed, learning_reset.
type Event struct {
	Name      string                 `json:"name"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// Publisher delivers Events to interested listeners. A publication failure
// never rolls back the state already recorded. Tracker.Track and
// FeedbackProcessor.Record return it, and the Pipeline's MakeDecision and
// ProcessFeedback surface it to their caller; Tracker.UpdateStatus and the
// Pipeline's own event publications discard it without logging.
type Publisher interface {
	Publish(Event) error
}

// NoOpPublisher discards every event. It is the Tracker's default so a
// Pipeline can be exercised in tests without wiring a real notification
// sink.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(Event) error { return nil }

// FuncPublisher adapts a plain function to the Publisher interface, handy
// for tests that want to assert on emitted events.
type FuncPublisher func(Event) error

func (f FuncPublisher) Publish(e Event) error { return f(e) }

func newEvent(name string, payload map[string]interface{}) Event {
	return Event{Name: name, Payload: payload, Timestamp: time.Now()}
}
