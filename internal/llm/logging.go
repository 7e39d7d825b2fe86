package llm

import (
	"context"
	"log/slog"
	"time"
)

// LoggingProvider records latency and outcome of every completion.
type LoggingProvider struct {
	inner Provider
}

// WithLogging wraps a Provider with structured logging.
func WithLogging(p Provider) Provider {
	return &LoggingProvider{inner: p}
}

func (l *LoggingProvider) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := l.inner.Complete(ctx, prompt)
	attrs := []any{
		"model", l.inner.ModelID(),
		"latency_ms", time.Since(start).Milliseconds(),
		"prompt_chars", len(prompt),
	}
	if err != nil {
		slog.Warn("LLM completion failed", append(attrs, "error", err)...)
		return "", err
	}
	slog.Debug("LLM completion", append(attrs, "response_chars", len(out))...)
	return out, nil
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

func (l *LoggingProvider) Ping(ctx context.Context) error {
	return l.inner.Ping(ctx)
}
