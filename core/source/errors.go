package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"QFMResolver/model"
)

// Kind 单次音源调用的失败类型
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindRateLimited
	KindTimeout
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Transient reports whether the failure may go away on its own.
func (k Kind) Transient() bool {
	return k == KindRateLimited || k == KindTimeout || k == KindUnknown
}

// AdapterError 单次音源调用失败
type AdapterError struct {
	Source model.MusicSource
	Kind   Kind
	Err    error
}

func (e *AdapterError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source.Lower(), e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source.Lower(), e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewError 构造 AdapterError
func NewError(src model.MusicSource, kind Kind, err error) *AdapterError {
	return &AdapterError{Source: src, Kind: kind, Err: err}
}

// KindOf classifies an error returned by an adapter.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindUnknown
}

// KindFromStatus 将上游 HTTP 状态码映射为失败类型
func KindFromStatus(code int) Kind {
	switch code {
	case http.StatusNotFound, http.StatusGone:
		return KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return KindTimeout
	default:
		return KindUnknown
	}
}

// classify wraps a raw error into an AdapterError unless it already is one.
func classify(src model.MusicSource, err error) error {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return err
	}
	return NewError(src, KindOf(err), err)
}
