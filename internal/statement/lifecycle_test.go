package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

func TestTransition(t *testing.T) {
	type edge struct {
		from constants.StatementStatus
		ev   Event
	}
	allowed := map[edge]constants.StatementStatus{
		{constants.StatusUploaded, EventExtracted}:      constants.StatusExtracted,
		{constants.StatusUploaded, EventLowContent}:     constants.StatusNeedsReview,
		{constants.StatusUploaded, EventExhausted}:      constants.StatusFailed,
		{constants.StatusUploaded, EventRunFailed}:      constants.StatusFailed,
		{constants.StatusExtracted, EventPersisted}:     constants.StatusCompleted,
		{constants.StatusExtracted, EventPersistFailed}: constants.StatusFailed,
		{constants.StatusExtracted, EventRunFailed}:     constants.StatusFailed,
		{constants.StatusNeedsReview, EventRetry}:       constants.StatusUploaded,
		{constants.StatusFailed, EventRetry}:            constants.StatusUploaded,
		{constants.StatusCompleted, EventRetry}:         constants.StatusUploaded,
	}
	states := []constants.StatementStatus{
		constants.StatusUploaded, constants.StatusExtracted, constants.StatusNeedsReview,
		constants.StatusCompleted, constants.StatusFailed,
	}

	for _, from := range states {
		for ev := EventExtracted; ev <= EventRetry; ev++ {
			t.Run(string(from)+"/"+ev.String(), func(t *testing.T) {
				got, err := transition(from, ev)
				if want, ok := allowed[edge{from, ev}]; ok {
					require.NoError(t, err)
					assert.Equal(t, want, got)
					return
				}
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, from, got)
			})
		}
	}
}

func TestTransition_UnknownState(t *testing.T) {
	_, err := transition("archived", EventRetry)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "low_content", EventLowContent.String())
	assert.Equal(t, "event(42)", Event(42).String())
}
