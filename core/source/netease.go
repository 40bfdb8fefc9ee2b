package source

import (
	"context"
	"errors"
	"strings"
	"time"

	"QFMResolver/core/netease"
	"QFMResolver/model"

	"go.uber.org/zap"
)

// NeteaseAdapter 网易云音源，经由 NeteaseCloudMusicApi 兼容服务获取地址
type NeteaseAdapter struct {
	client      *netease.Client
	fetchDetail bool
	now         func() time.Time
	log         *zap.Logger
}

// NeteaseOption 网易云适配器选项
type NeteaseOption func(*NeteaseAdapter)

// WithTrackDetail 获取地址后顺带拉取歌曲元数据（失败不影响结果）
func WithTrackDetail() NeteaseOption {
	return func(a *NeteaseAdapter) { a.fetchDetail = true }
}

// WithNeteaseLogger 设置 logger
func WithNeteaseLogger(l *zap.Logger) NeteaseOption {
	return func(a *NeteaseAdapter) { a.log = l }
}

// NewNeteaseAdapter 创建网易云适配器
func NewNeteaseAdapter(client *netease.Client, opts ...NeteaseOption) *NeteaseAdapter {
	a := &NeteaseAdapter{
		client: client,
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *NeteaseAdapter) Source() model.MusicSource {
	return model.SourceNetease
}

// neteaseLevel 把通用音质名映射为网易云 level 参数
func neteaseLevel(quality string) string {
	switch model.NormalizeQuality(quality) {
	case model.QualityStandard:
		return "standard"
	case model.QualityHigher:
		return "higher"
	case model.QualityLossless:
		return "lossless"
	case model.QualityHiRes:
		return "hires"
	default:
		return "exhigh"
	}
}

// Fetch 获取播放地址
func (a *NeteaseAdapter) Fetch(ctx context.Context, sourceTrackID, quality string) (*model.PlaybackCandidate, error) {
	level := neteaseLevel(quality)
	su, err := a.client.GetSongURL(ctx, sourceTrackID, level)
	if err != nil {
		return nil, a.translate(err)
	}

	now := a.now()
	c := &model.PlaybackCandidate{
		TrackKey: model.TrackKey{Source: model.SourceNetease, SourceID: sourceTrackID},
		Source:   model.SourceNetease,
		Quality:  su.Level,
		Format:   su.Type,
		URL:      su.URL,
		IsActive: true,
	}
	if c.Quality == "" {
		c.Quality = level
	}
	if su.Bitrate > 0 {
		kbps := su.Bitrate / 1000
		c.Bitrate = &kbps
	}
	if su.Size > 0 {
		size := su.Size
		c.FileSize = &size
	}
	if su.Expi > 0 {
		exp := now.Add(time.Duration(su.Expi) * time.Second)
		c.ExpiresAt = &exp
	}
	if c.Format == "" {
		c.Format = formatFromURL(su.URL)
	}

	if a.fetchDetail {
		detail, err := a.client.GetSongDetail(ctx, sourceTrackID)
		if err != nil {
			a.log.Debug("获取歌曲详情失败", zap.String("songId", sourceTrackID), zap.Error(err))
		} else {
			c.Track = &model.Track{
				Source:   model.SourceNetease,
				SourceID: sourceTrackID,
				Title:    detail.Name,
				Artist:   strings.Join(detail.Artists, ","),
				Album:    detail.Album,
				Duration: float64(detail.Duration) / 1000.0,
			}
		}
	}

	return c, nil
}

func (a *NeteaseAdapter) translate(err error) error {
	var se *netease.StatusError
	if errors.As(err, &se) {
		return NewError(model.SourceNetease, KindFromStatus(se.StatusCode), err)
	}

	var ae *netease.APIError
	if errors.As(err, &ae) {
		switch ae.Code {
		case 301, 401:
			return NewError(model.SourceNetease, KindUnauthorized, err)
		case 404:
			return NewError(model.SourceNetease, KindNotFound, err)
		case 405, 429, -460, -462:
			return NewError(model.SourceNetease, KindRateLimited, err)
		}
		return NewError(model.SourceNetease, KindUnknown, err)
	}

	if errors.Is(err, netease.ErrEmptyURL) || errors.Is(err, netease.ErrSongNotFound) {
		return NewError(model.SourceNetease, KindNotFound, err)
	}
	return classify(model.SourceNetease, err)
}

func formatFromURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	if i := strings.LastIndexByte(u, '.'); i >= 0 && i > strings.LastIndexByte(u, '/') {
		return strings.ToLower(u[i+1:])
	}
	return ""
}
