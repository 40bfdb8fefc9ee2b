package resolver

import (
	"errors"
	"fmt"
	"strings"

	"QFMResolver/core/source"
	"QFMResolver/model"
)

var (
	// ErrInvalidRequest 请求参数不合法：TrackKey 无效、优先级里有未知音源、内部 ID 不存在
	ErrInvalidRequest = errors.New("resolver: invalid request")
	// ErrAllSourcesExhausted 所有音源都没能给出可用地址
	ErrAllSourcesExhausted = errors.New("resolver: all sources exhausted")
	// ErrNoAdapter 优先级中的音源没有注册适配器
	ErrNoAdapter = errors.New("resolver: no adapter registered")
)

// Attempt 一次音源调用的记录
type Attempt struct {
	Source model.MusicSource
	Kind   source.Kind // 成功时无意义
	Err    error
}

// OK reports whether the attempt produced the result.
func (a Attempt) OK() bool {
	return a.Err == nil
}

func (a Attempt) String() string {
	if a.Err == nil {
		return a.Source.Lower() + ": ok"
	}
	return fmt.Sprintf("%s: %s", a.Source.Lower(), a.Kind)
}

// ExhaustedError is returned when every source in the priority list failed.
// It matches ErrAllSourcesExhausted via errors.Is.
type ExhaustedError struct {
	Key      model.TrackKey
	Quality  string
	Attempts []Attempt
	// Cached 为 true 表示命中负缓存，本次没有调用任何音源
	Cached bool
}

func (e *ExhaustedError) Error() string {
	if e.Cached {
		return fmt.Sprintf("%s %s (%s): recently failed", ErrAllSourcesExhausted, e.Key, e.Quality)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.String())
	}
	return fmt.Sprintf("%s %s (%s): [%s]", ErrAllSourcesExhausted, e.Key, e.Quality, strings.Join(parts, ", "))
}

func (e *ExhaustedError) Unwrap() error {
	return ErrAllSourcesExhausted
}

// Retryable 区分“暂时拿不到”和“所有音源都没有这首歌”：
// 只有全部尝试都是 NotFound 时返回 false
func (e *ExhaustedError) Retryable() bool {
	if e.Cached || len(e.Attempts) == 0 {
		return true
	}
	for _, a := range e.Attempts {
		if a.Kind != source.KindNotFound {
			return true
		}
	}
	return false
}

// Kinds 返回出现过的失败类型
func (e *ExhaustedError) Kinds() []source.Kind {
	seen := make(map[source.Kind]bool)
	var out []source.Kind
	for _, a := range e.Attempts {
		if !seen[a.Kind] {
			seen[a.Kind] = true
			out = append(out, a.Kind)
		}
	}
	return out
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
