package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"QFMResolver/model"

	"github.com/tidwall/gjson"
)

// DefaultGDStudioURL GD音乐台公开接口
const DefaultGDStudioURL = "https://music-api.gdstudio.xyz/api.php"

// 上游名称，GDStudio 用 source 参数区分平台
var gdstudioNames = map[model.MusicSource]string{
	model.SourceNetease:  "netease",
	model.SourceTencent:  "tencent",
	model.SourceKugou:    "kugou",
	model.SourceKuwo:     "kuwo",
	model.SourceMigu:     "migu",
	model.SourceBilibili: "bilibili",
	model.SourceGDStudio: "netease",
}

// GDStudioAdapter 通过 GD音乐台聚合接口获取某一平台的播放地址
type GDStudioAdapter struct {
	source     model.MusicSource
	upstream   string
	baseURL    string
	httpClient *http.Client
	urlTTL     time.Duration
	now        func() time.Time
}

// NewGDStudioAdapter 为 src 创建适配器；接口不返回有效期，地址按 urlTTL 视为过期
func NewGDStudioAdapter(src model.MusicSource, baseURL string, urlTTL time.Duration) *GDStudioAdapter {
	if baseURL == "" {
		baseURL = DefaultGDStudioURL
	}
	if urlTTL <= 0 {
		urlTTL = 20 * time.Minute
	}
	upstream, ok := gdstudioNames[src]
	if !ok {
		upstream = src.Lower()
	}
	return &GDStudioAdapter{
		source:     src,
		upstream:   upstream,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		urlTTL:     urlTTL,
		now:        time.Now,
	}
}

// SetHTTPClient 替换底层 http.Client
func (a *GDStudioAdapter) SetHTTPClient(hc *http.Client) {
	a.httpClient = hc
}

func (a *GDStudioAdapter) Source() model.MusicSource {
	return a.source
}

// gdstudioBitrate 音质 -> br 参数
func gdstudioBitrate(quality string) int {
	switch model.NormalizeQuality(quality) {
	case model.QualityStandard:
		return 128
	case model.QualityHigher:
		return 192
	case model.QualityLossless:
		return 740
	case model.QualityHiRes:
		return 999
	default:
		return 320
	}
}

// gdstudioQuality br -> 音质
func gdstudioQuality(br int) string {
	switch {
	case br >= 999:
		return model.QualityHiRes
	case br >= 740:
		return model.QualityLossless
	case br >= 320:
		return model.QualityHigh
	case br >= 192:
		return model.QualityHigher
	default:
		return model.QualityStandard
	}
}

// Fetch 获取播放地址
func (a *GDStudioAdapter) Fetch(ctx context.Context, sourceTrackID, quality string) (*model.PlaybackCandidate, error) {
	params := url.Values{}
	params.Set("types", "url")
	params.Set("source", a.upstream)
	params.Set("id", sourceTrackID)
	params.Set("br", strconv.Itoa(gdstudioBitrate(quality)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, NewError(a.source, KindUnknown, err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, classify(a.source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(a.source, KindFromStatus(resp.StatusCode), fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(a.source, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, NewError(a.source, KindUnknown, fmt.Errorf("invalid response body"))
	}

	res := gjson.ParseBytes(body)
	u := res.Get("url").String()
	if u == "" {
		return nil, NewError(a.source, KindNotFound, fmt.Errorf("empty url for %s", sourceTrackID))
	}

	br := int(res.Get("br").Int())
	if br <= 0 {
		br = gdstudioBitrate(quality)
	}
	exp := a.now().Add(a.urlTTL)

	c := &model.PlaybackCandidate{
		TrackKey:  model.TrackKey{Source: a.source, SourceID: sourceTrackID},
		Source:    a.source,
		Quality:   gdstudioQuality(br),
		Bitrate:   &br,
		Format:    formatFromURL(u),
		URL:       u,
		ExpiresAt: &exp,
		IsActive:  true,
	}
	if size := res.Get("size").Int(); size > 0 {
		// size 单位为 KB
		bytes := size * 1024
		c.FileSize = &bytes
	}
	return c, nil
}
