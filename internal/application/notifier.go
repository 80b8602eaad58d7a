package application

import (
	"context"
	"log/slog"
)

type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _, _ string) error {
	return nil
}

// LogNotifier writes notifications to the log. It stands in when no push
// service is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, title, message string) error {
	n.Logger.Info("notification", "title", title, "message", message)
	return nil
}
