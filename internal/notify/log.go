package notify

import (
	"context"

	"go.uber.org/zap"

	"campusride/internal/types"
)

// LogNotifier writes notifications to the log. Used in development and
// as the fallback when no push transport is configured.
type LogNotifier struct {
	log *zap.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, userID types.ID, event string, payload map[string]string) error {
	n.log.Info("notify",
		zap.String("user_id", string(userID)),
		zap.String("event", event),
		zap.Any("payload", payload),
	)
	return nil
}
