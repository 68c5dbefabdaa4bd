package progress

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes events to a zap logger
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink. A nil logger discards events.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Publish implements Sink
func (s *LogSink) Publish(_ context.Context, ev Event) error {
	fields := []zap.Field{
		zap.String("run_id", ev.RunID),
		zap.Int64("project_id", ev.ProjectID),
	}
	if ev.Stage != "" {
		fields = append(fields, zap.String("stage", ev.Stage))
	}
	if ev.Path != "" {
		fields = append(fields, zap.String("path", ev.Path), zap.Int("index", ev.Index))
	}

	msg := ev.Message
	if msg == "" {
		msg = string(ev.Kind)
	}
	switch ev.Kind {
	case KindWarning:
		s.logger.Warn(msg, fields...)
	case KindError:
		s.logger.Error(msg, fields...)
	case KindFile:
		s.logger.Debug(msg, fields...)
	default:
		s.logger.Info(msg, fields...)
	}
	return nil
}
