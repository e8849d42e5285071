package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the log instead of sending them.
// Used when no SMTP relay is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.logger.InfoContext(ctx, "notification",
		"to", to,
		"subject", subject,
		"body_bytes", len(body),
	)
	return nil
}
