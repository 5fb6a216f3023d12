package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/lexiz/internal/logger"
	"github.com/abhisek/lexiz/internal/store"
)

// EventRequest is the event kind appended for every provider call.
const EventRequest = "llm_request"

type ctxKey int

const (
	purposeKey ctxKey = iota
	userKey
)

// WithPurpose labels requests made with ctx, e.g. "hint".
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom returns the purpose label, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// WithUser attributes requests made with ctx to a learner.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

func userFrom(ctx context.Context) string {
	v, _ := ctx.Value(userKey).(string)
	return v
}

// RequestEvent is the payload of an llm_request event.
type RequestEvent struct {
	Model        string `json:"model"`
	Purpose      string `json:"purpose"`
	LatencyMs    int64  `json:"latency_ms"`
	Success      bool   `json:"success"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	Request      string `json:"request"`
	Response     string `json:"response,omitempty"`
	Error        string `json:"error,omitempty"`
}

// LoggingProvider logs each call and records it in the event log.
type LoggingProvider struct {
	inner  Provider
	log    *logger.Logger
	events store.EventLog
}

// WithLogging wraps p. A nil events log only logs.
func WithLogging(p Provider, log *logger.Logger, events store.EventLog) Provider {
	return &LoggingProvider{inner: p, log: logger.OrNop(log), events: events}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	data := RequestEvent{
		Model:     l.inner.ModelID(),
		Purpose:   PurposeFrom(ctx),
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
		Request:   describeRequest(req),
	}
	if resp != nil {
		data.Model = resp.Model
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Response = string(resp.Content)
	}
	if err != nil {
		data.Error = err.Error()
		l.log.Warn("llm request failed", "model", data.Model, "purpose", data.Purpose, "error", err)
	} else {
		l.log.Debug("llm request", "model", data.Model, "purpose", data.Purpose,
			"latency_ms", data.LatencyMs, "input_tokens", data.InputTokens, "output_tokens", data.OutputTokens)
	}

	l.record(ctx, data)
	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// record appends the event. Failures never fail the request.
func (l *LoggingProvider) record(ctx context.Context, data RequestEvent) {
	if l.events == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		l.log.Warn("encode llm request event", "error", err)
		return
	}
	ev := &store.Event{Kind: EventRequest, Owner: userFrom(ctx), Data: raw}
	if err := l.events.Append(context.WithoutCancel(ctx), ev); err != nil {
		l.log.Warn("append llm request event", "error", err)
	}
}

func describeRequest(req Request) string {
	var b strings.Builder
	if req.System != "" {
		fmt.Fprintf(&b, "[system]\n%s\n\n", req.System)
	}
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role, m.Content)
	}
	if req.Schema != nil {
		if def, err := json.Marshal(req.Schema.Definition); err == nil {
			fmt.Fprintf(&b, "[schema: %s]\n%s\n", req.Schema.Name, def)
		}
	}
	return b.String()
}
