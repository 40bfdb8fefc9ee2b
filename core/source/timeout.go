package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"QFMResolver/model"
)

// DefaultTimeout 适配器默认超时
const DefaultTimeout = 5 * time.Second

type timeoutAdapter struct {
	inner   Adapter
	timeout time.Duration
}

// WithTimeout bounds every Fetch of a to d. An adapter that ignores its
// context is abandoned when the deadline passes and reported as KindTimeout.
func WithTimeout(a Adapter, d time.Duration) Adapter {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &timeoutAdapter{inner: a, timeout: d}
}

func (t *timeoutAdapter) Source() model.MusicSource {
	return t.inner.Source()
}

type fetchResult struct {
	c   *model.PlaybackCandidate
	err error
}

func (t *timeoutAdapter) Fetch(ctx context.Context, sourceTrackID, quality string) (*model.PlaybackCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		c, err := t.inner.Fetch(ctx, sourceTrackID, quality)
		done <- fetchResult{c: c, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, NewError(t.Source(), KindTimeout, r.err)
			}
			return nil, classify(t.Source(), r.err)
		}
		return r.c, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewError(t.Source(), KindTimeout, fmt.Errorf("no response within %s", t.timeout))
		}
		return nil, ctx.Err()
	}
}
