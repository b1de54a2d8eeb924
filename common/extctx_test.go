package common

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerCarriesArgs(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, nil)
	ctx := CreateExtCtxWithLogArgsAndHandler(context.Background(), &LoggerArgs{
		Operation: "borrow",
		BatchId:   "batch-1",
		UserId:    "12",
		Other:     map[string]string{"bookId": "7"},
	}, handler)
	ctx.Logger().Info("dispatch")
	out := buf.String()
	assert.Contains(t, out, "operation=borrow")
	assert.Contains(t, out, "batchId=batch-1")
	assert.Contains(t, out, "userId=12")
	assert.Contains(t, out, "bookId=7")
	assert.Contains(t, out, "process=")
}

func TestWithArgsKeepsHandler(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, nil)
	ctx := CreateExtCtxWithLogArgsAndHandler(context.Background(), nil, handler)
	child := ctx.WithArgs(&LoggerArgs{Operation: "renew"})
	child.Logger().Info("go")
	assert.Contains(t, buf.String(), "operation=renew")
}

func TestContextValuesPropagate(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "v")
	ctx := CreateExtCtxWithArgs(base, nil)
	assert.Equal(t, "v", ctx.Value(key{}))
}
