// Package telemetry carries resolution events to logging and analytics
// collaborators. It defines no storage of its own.
package telemetry

import (
	"context"
	"time"

	"QFMResolver/model"

	"github.com/google/uuid"
)

// EventKind 事件类型
type EventKind string

const (
	EventHit      EventKind = "resolve_hit"
	EventDegraded EventKind = "resolve_degraded"
	EventFailed   EventKind = "resolve_failed"
	EventAttempt  EventKind = "source_attempt"
)

// 单次音源调用结果
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Event 解析事件，字段与 SearchLog / ApiUsage 对应
type Event struct {
	ID               uuid.UUID
	Time             time.Time
	Kind             EventKind
	Track            string // TrackKey.String()
	RequestedQuality string
	ActualQuality    string
	Source           model.MusicSource // 命中或尝试的音源
	Origin           string            // cache, durable, source
	Result           string
	ErrorKind        string
	Error            string
	Latency          time.Duration
	Shared           bool // 结果来自其他请求的 single-flight
}

// NewEvent 生成带 ID 和时间戳的事件
func NewEvent(kind EventKind, track model.TrackKey) Event {
	return Event{
		ID:    uuid.New(),
		Time:  time.Now(),
		Kind:  kind,
		Track: track.String(),
	}
}

// Reporter 接收解析事件，实现不能阻塞调用方
type Reporter interface {
	Report(ctx context.Context, e Event)
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, Event) {}

// Nop 丢弃所有事件
var Nop Reporter = nopReporter{}

type multiReporter []Reporter

func (m multiReporter) Report(ctx context.Context, e Event) {
	for _, r := range m {
		r.Report(ctx, e)
	}
}

// Multi 把事件分发给多个 Reporter，nil 会被跳过
func Multi(reporters ...Reporter) Reporter {
	var out multiReporter
	for _, r := range reporters {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return Nop
	}
	return out
}
