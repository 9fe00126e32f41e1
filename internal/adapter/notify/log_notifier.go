package notify

import (
	"go.uber.org/zap"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

// LogNotifier writes every event to the process log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(e domain.Event) {
	fields := []zap.Field{
		zap.String("type", e.Type.String()),
		zap.String("title", e.Title),
		zap.String("description", e.Description),
	}
	if e.SessionID != "" {
		fields = append(fields, zap.String("session_id", e.SessionID))
	}

	switch e.Type {
	case domain.EventError:
		n.logger.Error("notification", fields...)
	case domain.EventWarning:
		n.logger.Warn("notification", fields...)
	default:
		n.logger.Info("notification", fields...)
	}
}
