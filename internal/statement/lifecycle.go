package statement

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

// Event is something a run observed that moves a statement between states.
type Event int

const (
	// EventExtracted: usable text came back from the extraction chain.
	EventExtracted Event = iota
	// EventLowContent: extraction succeeded but the text is below the minimum.
	EventLowContent
	// EventExhausted: every extraction provider failed.
	EventExhausted
	// EventPersisted: transactions and counters were committed.
	EventPersisted
	// EventPersistFailed: the bulk insert or signature load failed.
	EventPersistFailed
	// EventRunFailed: any other error or a panic inside the run.
	EventRunFailed
	// EventRetry: an operator asked for the statement to be processed again.
	EventRetry
)

var eventNames = [...]string{
	EventExtracted:     "extracted",
	EventLowContent:    "low_content",
	EventExhausted:     "exhausted",
	EventPersisted:     "persisted",
	EventPersistFailed: "persist_failed",
	EventRunFailed:     "run_failed",
	EventRetry:         "retry",
}

func (e Event) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", int(e))
}

var ErrInvalidTransition = errors.New("invalid status transition")

// transition is the complete lifecycle table. Pairs not listed are rejected.
func transition(from constants.StatementStatus, ev Event) (constants.StatementStatus, error) {
	switch from {
	case constants.StatusUploaded:
		switch ev {
		case EventExtracted:
			return constants.StatusExtracted, nil
		case EventLowContent:
			return constants.StatusNeedsReview, nil
		case EventExhausted, EventRunFailed:
			return constants.StatusFailed, nil
		case EventPersisted, EventPersistFailed, EventRetry:
		}
	case constants.StatusExtracted:
		switch ev {
		case EventPersisted:
			return constants.StatusCompleted, nil
		case EventPersistFailed, EventRunFailed:
			return constants.StatusFailed, nil
		case EventExtracted, EventLowContent, EventExhausted, EventRetry:
		}
	case constants.StatusNeedsReview, constants.StatusFailed, constants.StatusCompleted:
		switch ev {
		case EventRetry:
			return constants.StatusUploaded, nil
		case EventExtracted, EventLowContent, EventExhausted, EventPersisted, EventPersistFailed, EventRunFailed:
		}
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
}
