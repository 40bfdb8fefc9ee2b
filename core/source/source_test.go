package source

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"QFMResolver/model"
)

type stubAdapter struct {
	src   model.MusicSource
	delay time.Duration
	honor bool // 是否响应 ctx 取消
	err   error
}

func (s *stubAdapter) Source() model.MusicSource { return s.src }

func (s *stubAdapter) Fetch(ctx context.Context, id, quality string) (*model.PlaybackCandidate, error) {
	if s.honor {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &model.PlaybackCandidate{Source: s.src, URL: "u", Quality: quality, IsActive: true}, nil
}

func TestWithTimeout(t *testing.T) {
	cases := []struct {
		name  string
		inner *stubAdapter
		want  Kind
	}{
		{"cooperative", &stubAdapter{src: model.SourceKugou, delay: time.Second, honor: true}, KindTimeout},
		{"ignores context", &stubAdapter{src: model.SourceKugou, delay: time.Second}, KindTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := WithTimeout(tc.inner, 20*time.Millisecond)
			start := time.Now()
			_, err := a.Fetch(context.Background(), "1", "high")
			if KindOf(err) != tc.want {
				t.Fatalf("err = %v, want %s", err, tc.want)
			}
			if time.Since(start) > 500*time.Millisecond {
				t.Errorf("timeout not enforced")
			}
		})
	}
}

func TestWithTimeoutPassesThrough(t *testing.T) {
	a := WithTimeout(&stubAdapter{src: model.SourceMigu}, time.Second)
	if a.Source() != model.SourceMigu {
		t.Errorf("source = %s", a.Source())
	}
	c, err := a.Fetch(context.Background(), "1", "high")
	if err != nil || c.URL != "u" {
		t.Fatalf("Fetch = %v, %v", c, err)
	}

	raw := errors.New("boom")
	a = WithTimeout(&stubAdapter{src: model.SourceMigu, err: raw}, time.Second)
	_, err = a.Fetch(context.Background(), "1", "high")
	var ae *AdapterError
	if !errors.As(err, &ae) || ae.Kind != KindUnknown || !errors.Is(err, raw) {
		t.Errorf("err = %v", err)
	}
}

func TestWithTimeoutParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := WithTimeout(&stubAdapter{src: model.SourceKuwo, delay: time.Second, honor: true}, time.Second)
	_, err := a.Fetch(ctx, "1", "high")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestKindFromStatus(t *testing.T) {
	cases := map[int]Kind{
		http.StatusNotFound:            KindNotFound,
		http.StatusGone:                KindNotFound,
		http.StatusUnauthorized:        KindUnauthorized,
		http.StatusForbidden:           KindUnauthorized,
		http.StatusTooManyRequests:     KindRateLimited,
		http.StatusGatewayTimeout:      KindTimeout,
		http.StatusInternalServerError: KindUnknown,
	}
	for code, want := range cases {
		if got := KindFromStatus(code); got != want {
			t.Errorf("KindFromStatus(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(context.DeadlineExceeded) != KindTimeout {
		t.Error("deadline should classify as timeout")
	}
	wrapped := NewError(model.SourceNetease, KindRateLimited, errors.New("slow down"))
	if KindOf(errors.Join(errors.New("outer"), wrapped)) != KindRateLimited {
		t.Error("wrapped adapter error lost its kind")
	}
	if !KindTimeout.Transient() || KindNotFound.Transient() || KindUnauthorized.Transient() {
		t.Error("transient classification wrong")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&stubAdapter{src: model.SourceGDStudio}, &stubAdapter{src: model.SourceNetease})
	r.Register(&stubAdapter{src: model.SourceKugou})

	got := r.Sources()
	want := []model.MusicSource{model.SourceNetease, model.SourceKugou, model.SourceGDStudio}
	if len(got) != len(want) {
		t.Fatalf("Sources = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sources[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if _, ok := r.Get(model.SourceMigu); ok {
		t.Error("unregistered source found")
	}
	if a, ok := r.Get(model.SourceKugou); !ok || a.Source() != model.SourceKugou {
		t.Error("registered source missing")
	}
}
