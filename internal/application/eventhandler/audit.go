package eventhandler

import (
	"context"
	"log/slog"

	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// AuditHandler writes every published event to the log. Administrative and
// leaderboard events are logged at Info, per-message events at Debug.
type AuditHandler struct {
	logger *slog.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(logger *slog.Logger) *AuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandler{logger: logger.With("handler", "audit")}
}

// Handle implements shared.EventHandler.
func (h *AuditHandler) Handle(event shared.Event) error {
	level := slog.LevelInfo
	switch event.EventType() {
	case shared.EventXPAwarded, shared.EventLevelUp:
		level = slog.LevelDebug
	}

	attrs := make([]any, 0, 4)
	attrs = append(attrs,
		slog.String("event_type", string(event.EventType())),
		slog.String("aggregate_id", event.AggregateID()),
		slog.Time("occurred_at", event.OccurredAt()),
	)
	if payload := event.Payload(); len(payload) > 0 {
		attrs = append(attrs, slog.Any("payload", payload))
	}

	h.logger.Log(context.Background(), level, "domain event", attrs...)
	return nil
}
