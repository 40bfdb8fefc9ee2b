// Package source defines the pluggable upstream adapters, one per music source.
package source

import (
	"context"

	"QFMResolver/model"
)

// Adapter 从单个上游获取新的播放地址
//
// 实现只负责一次网络调用：不重试、不写缓存和数据库。
// 超时、回退、重试策略都由 resolver 统一处理。
type Adapter interface {
	Source() model.MusicSource
	Fetch(ctx context.Context, sourceTrackID, quality string) (*model.PlaybackCandidate, error)
}
