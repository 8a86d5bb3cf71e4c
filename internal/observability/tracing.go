package observability

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "OK"
	SpanStatusError SpanStatus = "ERROR"
)

// Span times one unit of work: a request or a pipeline stage. Spans are
// emitted as log records when they end; there is no exporter.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	Status    SpanStatus        `json:"status"`
	Error     string            `json:"error,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   *time.Time        `json:"end_time,omitempty"`
	Duration  *time.Duration    `json:"duration,omitempty"`
}

type spanKey struct{}

// StartSpan begins a span, joining the trace of any span already in ctx.
func StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	s := &Span{
		SpanID:    newID(),
		Operation: operation,
		Status:    SpanStatusOK,
		Tags:      map[string]string{},
		StartTime: time.Now(),
	}
	if parent := GetSpan(ctx); parent != nil {
		s.TraceID, s.ParentID = parent.TraceID, parent.SpanID
	} else {
		s.TraceID = newID()
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

func GetSpan(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

func (s *Span) SetTag(key, value string) {
	if s.Tags == nil {
		s.Tags = map[string]string{}
	}
	s.Tags[key] = value
}

// SetError marks the span failed. A nil err still flips the status.
func (s *Span) SetError(err error) {
	s.Status = SpanStatusError
	if err != nil {
		s.Error = err.Error()
	}
}

// End stamps the end time and logs the span: debug on success, error on
// failure.
func (s *Span) End(logger *slog.Logger) {
	end := time.Now()
	elapsed := end.Sub(s.StartTime)
	s.EndTime, s.Duration = &end, &elapsed

	attrs := make([]slog.Attr, 0, 6+len(s.Tags))
	attrs = append(attrs,
		slog.String("operation", s.Operation),
		slog.String("trace_id", s.TraceID),
		slog.String("span_id", s.SpanID),
		slog.Duration("duration", elapsed),
	)
	if s.ParentID != "" {
		attrs = append(attrs, slog.String("parent_id", s.ParentID))
	}
	for k, v := range s.Tags {
		attrs = append(attrs, slog.String(k, v))
	}

	if s.Status == SpanStatusError {
		attrs = append(attrs, slog.String("error", s.Error))
		logger.LogAttrs(context.Background(), slog.LevelError, "span failed", attrs...)
		return
	}
	logger.LogAttrs(context.Background(), slog.LevelDebug, "span finished", attrs...)
}

// newID returns 16 hex characters drawn from a random uuid.
func newID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:8])
}
