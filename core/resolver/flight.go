package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"QFMResolver/core/source"
	"QFMResolver/core/telemetry"
	"QFMResolver/model"

	"go.uber.org/zap"
)

var errEmptyCandidate = errors.New("adapter returned no playable url")

// join SingleFlightJoin：同一个键同时只有一次上游获取。
// 等待者在自己的 context 取消时直接离开，不影响正在进行的获取；
// 发起者取消时释放键，拿到取消结果且自身仍有效的等待者会重新发起。
func (r *Resolver) join(ctx context.Context, req request) (Outcome, error) {
	for {
		var led atomic.Bool
		ch := r.flights.DoChan(req.cacheKey, func() (interface{}, error) {
			led.Store(true)
			return r.fetch(ctx, req)
		})

		select {
		case res := <-ch:
			if led.Load() {
				out, _ := res.Val.(Outcome)
				return out, res.Err
			}
			if res.Err != nil && isCancellation(res.Err) && ctx.Err() == nil {
				r.log.Debug("in-flight fetch abandoned by its owner, retrying",
					zap.String("key", req.cacheKey))
				continue
			}
			out, _ := res.Val.(Outcome)
			return shared(out), res.Err
		case <-ctx.Done():
			if led.Load() {
				r.flights.Forget(req.cacheKey)
			}
			return Outcome{}, ctx.Err()
		}
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// shared 给等待者一份独立的结果
func shared(out Outcome) Outcome {
	out.Shared = true
	if out.Candidate != nil {
		c := *out.Candidate
		out.Candidate = &c
	}
	if out.Attempts != nil {
		out.Attempts = append([]Attempt(nil), out.Attempts...)
	}
	return out
}

// fetch 在 flight 内执行：SourceFetch -> Persist | Exhausted
func (r *Resolver) fetch(ctx context.Context, req request) (Outcome, error) {
	// 上一次 flight 可能刚刚写入
	if out, ok := r.fromCache(ctx, req); ok {
		return out, nil
	}
	if out, ok := r.fromDurable(ctx, req); ok {
		return out, nil
	}

	var (
		attempts  []Attempt
		transient bool
	)
	for _, src := range req.priority {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		adapter, ok := r.registry.Get(src)
		if !ok {
			attempts = append(attempts, Attempt{Source: src, Kind: source.KindUnknown, Err: ErrNoAdapter})
			continue
		}

		began := time.Now()
		c, err := adapter.Fetch(ctx, req.key.SourceID, req.quality)
		latency := time.Since(began)

		if err == nil && !r.usable(c) {
			err = source.NewError(src, source.KindNotFound, errEmptyCandidate)
		}
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			kind := source.KindOf(err)
			if kind.Transient() {
				transient = true
			}
			attempts = append(attempts, Attempt{Source: src, Kind: kind, Err: err})
			r.reportAttempt(ctx, req, src, kind, err, latency)
			r.log.Debug("source attempt failed",
				zap.Stringer("track", req.key),
				zap.String("source", src.Lower()),
				zap.String("kind", kind.String()),
				zap.Error(err))
			continue
		}

		attempts = append(attempts, Attempt{Source: src})
		r.reportAttempt(ctx, req, src, source.KindUnknown, nil, latency)

		c.TrackKey = req.key
		c.Source = src
		c.IsActive = true
		c.Quality = model.NormalizeQuality(c.Quality)
		if c.Quality == "" {
			c.Quality = req.quality
		}
		r.persist(ctx, req, c)

		out := newOutcome(c, OriginSource, req.quality)
		out.Attempts = attempts
		out.SkippedTransient = transient
		return out, nil
	}

	r.negative.Mark(req.cacheKey, req.scope)
	return Outcome{}, &ExhaustedError{Key: req.key, Quality: req.quality, Attempts: attempts}
}

func (r *Resolver) usable(c *model.PlaybackCandidate) bool {
	if c == nil || c.URL == "" {
		return false
	}
	return !c.Expired(r.now())
}

// persist 先写仓库再写缓存；调用方取消后写入仍会完成
func (r *Resolver) persist(ctx context.Context, req request, c *model.PlaybackCandidate) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.PersistTimeout)
	defer cancel()

	if r.urls != nil {
		if err := r.urls.Upsert(ctx, c); err != nil {
			r.log.Warn("persist playback url failed",
				zap.Stringer("track", req.key),
				zap.String("source", c.Source.Lower()),
				zap.Error(err))
		}
	}
	r.writeCache(ctx, req, c)
	r.negative.Forget(req.cacheKey)
}

func (r *Resolver) reportAttempt(ctx context.Context, req request, src model.MusicSource, kind source.Kind, err error, latency time.Duration) {
	e := telemetry.NewEvent(telemetry.EventAttempt, req.key)
	e.RequestedQuality = req.quality
	e.Source = src
	e.Latency = latency
	e.Result = telemetry.ResultOK
	if err != nil {
		e.Result = telemetry.ResultFailed
		e.ErrorKind = kind.String()
		e.Error = err.Error()
	}
	r.reporter.Report(ctx, e)
}

func (r *Resolver) reportOutcome(ctx context.Context, req request, out Outcome, err error, start time.Time) {
	kind := telemetry.EventHit
	switch {
	case err != nil:
		kind = telemetry.EventFailed
	case out.Kind == KindDegraded:
		kind = telemetry.EventDegraded
	}

	e := telemetry.NewEvent(kind, req.key)
	e.RequestedQuality = req.quality
	e.Latency = time.Since(start)
	if err != nil {
		e.Result = telemetry.ResultFailed
		e.Error = err.Error()
		var ex *ExhaustedError
		if errors.As(err, &ex) && !ex.Retryable() {
			e.ErrorKind = source.KindNotFound.String()
		}
	} else {
		e.Result = telemetry.ResultOK
		e.Origin = out.Origin.String()
		e.Source = out.Source()
		e.ActualQuality = out.ActualQuality
		e.Shared = out.Shared
	}
	r.reporter.Report(ctx, e)
}
