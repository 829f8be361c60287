package audit

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/root-sector/group-chat-module-keylifecycle/interfaces"
	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

// ZerologAlertSink is an AlertSink writing critical audit events to the
// operational log. It is a reasonable default for deployments without a
// paging or notification integration.
type ZerologAlertSink struct {
	zLogger zerolog.Logger
}

// NewZerologAlertSink creates an alert sink backed by the given logger.
func NewZerologAlertSink(opLogger zerolog.Logger) *ZerologAlertSink {
	if opLogger.GetLevel() == zerolog.Disabled {
		opLogger = log.Logger
	}
	return &ZerologAlertSink{zLogger: opLogger.With().Str("component", "audit-alert").Logger()}
}

var _ interfaces.AlertSink = (*ZerologAlertSink)(nil)

// Alert logs the event at error level with its core fields.
func (s *ZerologAlertSink) Alert(ctx context.Context, event *types.AuditEvent) {
	if event == nil {
		return
	}

	logEvent := s.zLogger.Error().
		Str("auditId", event.ID).
		Time("timestamp", event.Timestamp).
		Str("eventType", event.EventType).
		Str("severity", string(event.Severity)).
		Str("status", string(event.Status))

	if event.UserID != "" {
		logEvent = logEvent.Str("userId", event.UserID)
	}
	if event.GroupID != "" {
		logEvent = logEvent.Str("groupId", event.GroupID)
	}
	if reason := event.Metadata["reason"]; reason != "" {
		logEvent = logEvent.Str("reason", reason)
	}
	if errMsg := event.Metadata["error"]; errMsg != "" {
		logEvent = logEvent.Str("error", errMsg)
	}

	logEvent.Msg("Critical audit event")
}
