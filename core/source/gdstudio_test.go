package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"QFMResolver/model"
)

func TestGDStudioFetch(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("types") != "url" || q.Get("source") != "kuwo" || q.Get("id") != "9527" || q.Get("br") != "740" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"url":"https://other.example.com/9527.flac","br":740,"size":20480}`)
	}))
	defer srv.Close()

	a := NewGDStudioAdapter(model.SourceKuwo, srv.URL, 15*time.Minute)
	a.now = func() time.Time { return now }

	c, err := a.Fetch(context.Background(), "9527", "lossless")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if c.Source != model.SourceKuwo || c.Quality != model.QualityLossless || c.Format != "flac" {
		t.Errorf("candidate = %+v", c)
	}
	if c.FileSize == nil || *c.FileSize != 20480*1024 {
		t.Errorf("size = %v", c.FileSize)
	}
	if !c.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Errorf("expiresAt = %v", c.ExpiresAt)
	}
}

func TestGDStudioUpstreamNames(t *testing.T) {
	if a := NewGDStudioAdapter(model.SourceGDStudio, "", 0); a.upstream != "netease" || a.Source() != model.SourceGDStudio {
		t.Errorf("gdstudio upstream = %s", a.upstream)
	}
	if a := NewGDStudioAdapter(model.SourceBilibili, "", 0); a.upstream != "bilibili" {
		t.Errorf("bilibili upstream = %s", a.upstream)
	}
}

func TestGDStudioErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"empty url", 200, `{"url":"","br":0}`, KindNotFound},
		{"garbage", 200, `<html>oops</html>`, KindUnknown},
		{"rate limited", 429, ``, KindRateLimited},
		{"gone", 410, ``, KindNotFound},
		{"gateway timeout", 504, ``, KindTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			_, err := NewGDStudioAdapter(model.SourceMigu, srv.URL, 0).Fetch(context.Background(), "1", "high")
			if got := KindOf(err); got != tc.want {
				t.Errorf("kind = %s, want %s (err %v)", got, tc.want, err)
			}
		})
	}
}

func TestGDStudioQualityMapping(t *testing.T) {
	for _, q := range []string{"standard", "higher", "lossless", "hires"} {
		if got := gdstudioQuality(gdstudioBitrate(q)); got != q {
			t.Errorf("%s -> %d -> %s", q, gdstudioBitrate(q), got)
		}
	}
	if !model.SameQuality(gdstudioQuality(gdstudioBitrate("exhigh")), "exhigh") {
		t.Error("exhigh does not round trip to the same tier")
	}
}
