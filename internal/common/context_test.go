package common

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	RunLogger(context.Background(), base).Info("plain")
	assert.NotContains(t, buf.String(), "run_id")

	buf.Reset()
	ctx := WithRun(context.Background(), "stmt-1", "run-9")
	RunLogger(ctx, base).Info("tagged")
	assert.Contains(t, buf.String(), "statement_id=stmt-1")
	assert.Contains(t, buf.String(), "run_id=run-9")

	stmt, run := RunFromContext(ctx)
	assert.Equal(t, "stmt-1", stmt)
	assert.Equal(t, "run-9", run)
}

func TestWithTimeout_NonPositiveKeepsParent(t *testing.T) {
	parent := context.Background()
	ctx, cancel := WithTimeout(parent, 0)
	defer cancel()
	assert.Equal(t, parent, ctx)

	ctx, cancel = WithTimeout(parent, time.Minute)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)
}
