package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"QFMResolver/core/resolver"
	"QFMResolver/model"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Resolver 是 HTTP 层用到的解析接口
type Resolver interface {
	Resolve(ctx context.Context, key model.TrackKey, quality string, priority []model.MusicSource) (resolver.Outcome, error)
	MarkDead(ctx context.Context, key model.TrackKey, quality string, src model.MusicSource) error
	Invalidate(ctx context.Context, key model.TrackKey, quality string) error
}

// ResolveHandler 播放地址解析接口
type ResolveHandler struct {
	resolver Resolver
	timeout  time.Duration
	log      *zap.Logger
}

// NewResolveHandler 创建处理器；timeout 为单个请求的解析上限
func NewResolveHandler(r Resolver, timeout time.Duration, log *zap.Logger) *ResolveHandler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ResolveHandler{resolver: r, timeout: timeout, log: log}
}

type resolveResponse struct {
	URL              string     `json:"url"`
	Source           string     `json:"source"`
	Quality          string     `json:"quality"`
	RequestedQuality string     `json:"requestedQuality,omitempty"`
	Degraded         bool       `json:"degraded"`
	Origin           string     `json:"origin"`
	Bitrate          *int       `json:"bitrate,omitempty"`
	Format           string     `json:"format,omitempty"`
	FileSize         *int64     `json:"fileSize,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	Shared           bool       `json:"shared,omitempty"`
	Attempts         []attempt  `json:"attempts,omitempty"`
}

type attempt struct {
	Source string `json:"source"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

type errorResponse struct {
	Error     string    `json:"error"`
	Retryable bool      `json:"retryable"`
	Attempts  []attempt `json:"attempts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func toAttempts(in []resolver.Attempt) []attempt {
	out := make([]attempt, 0, len(in))
	for _, a := range in {
		item := attempt{Source: a.Source.Lower(), Result: "ok"}
		if a.Err != nil {
			item.Result = a.Kind.String()
			item.Error = a.Err.Error()
		}
		out = append(out, item)
	}
	return out
}

// parseTrackKey 解析路径参数，source 为 "id" 时表示内部歌曲 ID
func parseTrackKey(vars map[string]string) (model.TrackKey, error) {
	id := strings.TrimSpace(vars["id"])
	if strings.EqualFold(vars["source"], "id") {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			return model.TrackKey{}, errors.New("invalid internal id")
		}
		return model.TrackKey{InternalID: n}, nil
	}

	src, err := model.ParseMusicSource(vars["source"])
	if err != nil {
		return model.TrackKey{}, err
	}
	return model.TrackKey{Source: src, SourceID: id}, nil
}

// HandleResolve GET /api/resolve/{source}/{id}?quality=&priority=
func (h *ResolveHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	key, err := parseTrackKey(mux.Vars(r))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	q := r.URL.Query()
	priority, err := model.ParseSourceList(q.Get("priority"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	out, err := h.resolver.Resolve(ctx, key, q.Get("quality"), priority)
	if err != nil {
		h.writeResolveError(w, key, err)
		return
	}

	c := out.Candidate
	writeJSON(w, http.StatusOK, resolveResponse{
		URL:              c.URL,
		Source:           c.Source.Lower(),
		Quality:          out.ActualQuality,
		RequestedQuality: out.RequestedQuality,
		Degraded:         out.Degraded(),
		Origin:           out.Origin.String(),
		Bitrate:          c.Bitrate,
		Format:           c.Format,
		FileSize:         c.FileSize,
		ExpiresAt:        c.ExpiresAt,
		Shared:           out.Shared,
		Attempts:         toAttempts(out.Attempts),
	})
}

func (h *ResolveHandler) writeResolveError(w http.ResponseWriter, key model.TrackKey, err error) {
	var ex *resolver.ExhaustedError
	switch {
	case errors.Is(err, resolver.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &ex):
		status := http.StatusNotFound
		if ex.Retryable() {
			status = http.StatusServiceUnavailable
			w.Header().Set("Retry-After", "5")
		}
		writeJSON(w, status, errorResponse{
			Error:     "no playable url available",
			Retryable: ex.Retryable(),
			Attempts:  toAttempts(ex.Attempts),
		})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "resolution timed out", Retryable: true})
	case errors.Is(err, context.Canceled):
		// 客户端已断开
		h.log.Debug("client went away", zap.Stringer("track", key))
	default:
		h.log.Error("resolve failed", zap.Stringer("track", key), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Retryable: true})
	}
}

// HandleMarkDead POST /api/resolve/{source}/{id}/dead?quality=&source=
// 播放端发现地址失效（404/410）时调用
func (h *ResolveHandler) HandleMarkDead(w http.ResponseWriter, r *http.Request) {
	key, err := parseTrackKey(mux.Vars(r))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	q := r.URL.Query()
	quality := q.Get("quality")
	if quality == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quality is required"})
		return
	}
	src := key.Source
	if s := q.Get("source"); s != "" {
		if src, err = model.ParseMusicSource(s); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	if src == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "source is required"})
		return
	}

	if err := h.resolver.MarkDead(r.Context(), key, quality, src); err != nil {
		if errors.Is(err, resolver.ErrInvalidRequest) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		h.log.Error("mark dead failed", zap.Stringer("track", key), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Retryable: true})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleInvalidate DELETE /api/resolve/{source}/{id}?quality=
func (h *ResolveHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	key, err := parseTrackKey(mux.Vars(r))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := h.resolver.Invalidate(r.Context(), key, r.URL.Query().Get("quality")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, resolver.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
