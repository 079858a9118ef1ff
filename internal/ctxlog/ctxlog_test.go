package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("returns the embedded logger", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
		ctx := WithLogger(context.Background(), logger)
		assert.Same(t, logger, FromContext(ctx))
	})

	t.Run("panics without a logger", func(t *testing.T) {
		assert.Panics(t, func() { FromContext(context.Background()) })
	})
}

func TestWith(t *testing.T) {
	// --- Arrange ---
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	// --- Act ---
	FromContext(With(ctx, "group", "cycle")).Info("Iteration finished.")

	// --- Assert ---
	require.Contains(t, buf.String(), "group=cycle")
	require.Contains(t, buf.String(), `msg="Iteration finished."`)
}
