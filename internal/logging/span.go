package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times a logical unit of work within a request trace.
type Span struct {
	logger *slog.Logger
	start  time.Time
}

// StartSpan opens a span under the context's trace, minting the trace id
// on first use. The returned context carries a logger enriched with the
// span metadata; every entry logged through it names the span.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)

	traceID := traceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = withTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	spanID := uuid.NewString()
	logger = logger.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parent := spanIDFromContext(ctx); parent != "" {
		logger = logger.With(slog.String("parent_span_id", parent))
	}

	ctx = WithLogger(withSpanID(ctx, spanID), logger)

	return ctx, &Span{logger: logger, start: time.Now()}
}

// End emits the span's completion entry with its duration.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.logger.Info("span completed", slog.Duration("duration", time.Since(s.start)))
}
