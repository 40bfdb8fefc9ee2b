package resolver

import "QFMResolver/model"

// Kind 解析结果类型
type Kind int

const (
	// KindHit 拿到了请求的音质
	KindHit Kind = iota
	// KindDegraded 拿到了可播放地址，但音质与请求不同
	KindDegraded
)

func (k Kind) String() string {
	if k == KindDegraded {
		return "degraded"
	}
	return "hit"
}

// Origin 结果来自哪一层
type Origin int

const (
	OriginCache Origin = iota
	OriginDurable
	OriginSource
)

func (o Origin) String() string {
	switch o {
	case OriginCache:
		return "cache"
	case OriginDurable:
		return "durable"
	default:
		return "source"
	}
}

// Outcome 一次成功的解析
type Outcome struct {
	Kind             Kind
	Origin           Origin
	Candidate        *model.PlaybackCandidate
	RequestedQuality string
	ActualQuality    string
	// Shared 为 true 表示结果来自其他请求发起的同一次获取
	Shared bool
	// SkippedTransient 表示有音源因限流或超时被跳过
	SkippedTransient bool
	// Attempts 只在 Origin 为 OriginSource 时有值
	Attempts []Attempt
}

// Source 返回实际提供地址的音源
func (o Outcome) Source() model.MusicSource {
	if o.Candidate == nil {
		return ""
	}
	return o.Candidate.Source
}

// Degraded reports whether the caller got something other than what it asked for.
func (o Outcome) Degraded() bool {
	return o.Kind == KindDegraded
}

func newOutcome(c *model.PlaybackCandidate, origin Origin, requested string) Outcome {
	out := Outcome{
		Kind:             KindHit,
		Origin:           origin,
		Candidate:        c,
		RequestedQuality: requested,
		ActualQuality:    c.Quality,
	}
	if requested != "" && !model.SameQuality(requested, c.Quality) {
		out.Kind = KindDegraded
	}
	return out
}
