package model

import (
	"fmt"
	"strings"
)

// MusicSource 上游音乐源
type MusicSource string

const (
	SourceNetease  MusicSource = "NETEASE"
	SourceTencent  MusicSource = "TENCENT"
	SourceKugou    MusicSource = "KUGOU"
	SourceKuwo     MusicSource = "KUWO"
	SourceBilibili MusicSource = "BILIBILI"
	SourceMigu     MusicSource = "MIGU"
	SourceGDStudio MusicSource = "GDSTUDIO"
)

var allSources = []MusicSource{
	SourceNetease,
	SourceTencent,
	SourceKugou,
	SourceKuwo,
	SourceBilibili,
	SourceMigu,
	SourceGDStudio,
}

// 常见的别名，兼容前端和旧数据里的小写写法
var sourceAliases = map[string]MusicSource{
	"netease":  SourceNetease,
	"163":      SourceNetease,
	"wy":       SourceNetease,
	"tencent":  SourceTencent,
	"qq":       SourceTencent,
	"qqmusic":  SourceTencent,
	"kugou":    SourceKugou,
	"kuwo":     SourceKuwo,
	"bilibili": SourceBilibili,
	"migu":     SourceMigu,
	"gdstudio": SourceGDStudio,
}

// AllSources 返回全部已知音乐源，顺序即默认优先级
func AllSources() []MusicSource {
	out := make([]MusicSource, len(allSources))
	copy(out, allSources)
	return out
}

// ParseMusicSource 解析音乐源名称，大小写不敏感
func ParseMusicSource(name string) (MusicSource, error) {
	name = strings.TrimSpace(name)
	if s, ok := sourceAliases[strings.ToLower(name)]; ok {
		return s, nil
	}
	s := MusicSource(strings.ToUpper(name))
	if s.Valid() {
		return s, nil
	}
	return "", fmt.Errorf("unknown music source: %q", name)
}

// ParseSourceList 解析逗号分隔的音乐源列表，空字符串返回 nil
func ParseSourceList(list string) ([]MusicSource, error) {
	var out []MusicSource
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		s, err := ParseMusicSource(part)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Valid 是否为已知音乐源
func (s MusicSource) Valid() bool {
	for _, known := range allSources {
		if s == known {
			return true
		}
	}
	return false
}

// Lower 返回小写名称，用于缓存键和上游 API 参数
func (s MusicSource) Lower() string {
	return strings.ToLower(string(s))
}

func (s MusicSource) String() string {
	return string(s)
}
