package netease

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrEmptyURL 歌曲URL为空，通常是版权限制或需要VIP
var ErrEmptyURL = errors.New("歌曲URL为空，可能是版权限制")

// ErrSongNotFound 未找到歌曲数据
var ErrSongNotFound = errors.New("未找到歌曲数据")

// SongURL /song/url/v1 返回的一条播放地址
type SongURL struct {
	ID      int64
	URL     string
	Bitrate int   // bps
	Size    int64 // 字节
	Type    string
	Level   string
	Expi    int // 有效期（秒）
}

// SongDetail 歌曲详情
type SongDetail struct {
	ID       int64
	Name     string
	Artists  []string
	Album    string
	Duration int // 毫秒
}

// GetSongURL 获取指定音质的歌曲URL
func (c *Client) GetSongURL(ctx context.Context, songID, level string) (*SongURL, error) {
	params := url.Values{}
	params.Set("id", songID)
	params.Set("level", level)

	body, err := c.get(ctx, "/song/url/v1?"+params.Encode())
	if err != nil {
		return nil, err
	}

	res := gjson.ParseBytes(body)
	if code := res.Get("code").Int(); code != 200 {
		return nil, &APIError{Code: int(code), Msg: res.Get("msg").String()}
	}

	data := res.Get("data.0")
	if !data.Exists() {
		return nil, ErrSongNotFound
	}
	if data.Get("url").String() == "" {
		return nil, ErrEmptyURL
	}

	return &SongURL{
		ID:      data.Get("id").Int(),
		URL:     data.Get("url").String(),
		Bitrate: int(data.Get("br").Int()),
		Size:    data.Get("size").Int(),
		Type:    strings.ToLower(data.Get("type").String()),
		Level:   data.Get("level").String(),
		Expi:    int(data.Get("expi").Int()),
	}, nil
}

// GetSongDetail 获取歌曲详情
func (c *Client) GetSongDetail(ctx context.Context, songID string) (*SongDetail, error) {
	body, err := c.get(ctx, "/song/detail?ids="+url.QueryEscape(songID))
	if err != nil {
		return nil, err
	}

	res := gjson.ParseBytes(body)
	if code := res.Get("code").Int(); code != 200 {
		return nil, &APIError{Code: int(code), Msg: res.Get("msg").String()}
	}

	song := res.Get("songs.0")
	if !song.Exists() {
		return nil, fmt.Errorf("%w (ID: %s)", ErrSongNotFound, songID)
	}

	detail := &SongDetail{
		ID:       song.Get("id").Int(),
		Name:     song.Get("name").String(),
		Album:    song.Get("al.name").String(),
		Duration: int(song.Get("dt").Int()),
	}
	for _, ar := range song.Get("ar.#.name").Array() {
		detail.Artists = append(detail.Artists, ar.String())
	}
	return detail, nil
}
