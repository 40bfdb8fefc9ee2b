package telemetry

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogReporter 以结构化日志输出事件
type LogReporter struct {
	log *zap.Logger
}

// NewLogReporter 创建日志 Reporter
func NewLogReporter(l *zap.Logger) *LogReporter {
	if l == nil {
		l = zap.NewNop()
	}
	return &LogReporter{log: l}
}

func (r *LogReporter) Report(_ context.Context, e Event) {
	level := zapcore.InfoLevel
	switch e.Kind {
	case EventAttempt:
		level = zapcore.DebugLevel
		if e.Result != ResultOK {
			level = zapcore.WarnLevel
		}
	case EventDegraded:
		level = zapcore.WarnLevel
	case EventFailed:
		level = zapcore.ErrorLevel
	}

	ce := r.log.Check(level, string(e.Kind))
	if ce == nil {
		return
	}

	fields := []zap.Field{
		zap.String("eventId", e.ID.String()),
		zap.String("track", e.Track),
		zap.String("quality", e.RequestedQuality),
		zap.Duration("latency", e.Latency),
	}
	if e.Source != "" {
		fields = append(fields, zap.String("source", e.Source.Lower()))
	}
	if e.Origin != "" {
		fields = append(fields, zap.String("origin", e.Origin))
	}
	if e.ActualQuality != "" {
		fields = append(fields, zap.String("actualQuality", e.ActualQuality))
	}
	if e.Result != "" {
		fields = append(fields, zap.String("result", e.Result))
	}
	if e.ErrorKind != "" {
		fields = append(fields, zap.String("errorKind", e.ErrorKind))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	if e.Shared {
		fields = append(fields, zap.Bool("shared", true))
	}
	ce.Write(fields...)
}
