package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abhisek/vitalq/internal/logging"
	"github.com/abhisek/vitalq/internal/store"
)

// LoggingProvider records every request as a durable event.
type LoggingProvider struct {
	inner    Provider
	provider string
	events   store.LLMEventRepo
	log      *slog.Logger
}

// WithLogging wraps p. A nil log discards warnings.
func WithLogging(p Provider, providerName string, events store.LLMEventRepo, log *slog.Logger) Provider {
	if log == nil {
		log = logging.NewNop()
	}
	return &LoggingProvider{inner: p, provider: providerName, events: events, log: log}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	ev := store.LLMEvent{
		AssessmentID: AssessmentFrom(ctx),
		Provider:     l.provider,
		Model:        l.inner.ModelID(),
		Purpose:      PurposeFrom(ctx),
		LatencyMs:    time.Since(start).Milliseconds(),
		Success:      err == nil,
		RequestBody:  serializeRequest(req),
	}
	if resp != nil {
		ev.InputTokens = resp.Usage.InputTokens
		ev.OutputTokens = resp.Usage.OutputTokens
		ev.Model = resp.Model
		ev.ResponseBody = string(resp.Content)
	}
	if err != nil {
		ev.ErrorMessage = err.Error()
	}

	// The request may already be past its deadline; the event still lands.
	if logErr := l.events.AppendLLMEvent(context.WithoutCancel(ctx), ev); logErr != nil {
		l.log.Warn("failed to record LLM event", "purpose", ev.Purpose, "error", logErr)
	}
	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

func serializeRequest(req Request) string {
	var b strings.Builder
	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
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
