package model

import "strings"

// 音质等级，与网易云 level 参数保持一致
const (
	QualityStandard = "standard"
	QualityHigher   = "higher"
	QualityHigh     = "high"
	QualityExhigh   = "exhigh"
	QualityLossless = "lossless"
	QualityHiRes    = "hires"
)

var qualityRanks = map[string]int{
	QualityStandard: 1,
	QualityHigher:   2,
	QualityHigh:     3,
	QualityExhigh:   3,
	QualityLossless: 4,
	QualityHiRes:    5,
}

// NormalizeQuality lower-cases and trims a quality name.
func NormalizeQuality(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// QualityRank 返回音质排序值，未知音质返回 0
func QualityRank(q string) int {
	return qualityRanks[NormalizeQuality(q)]
}

// SameQuality reports whether two quality names denote the same tier.
// "high" and "exhigh" are both the 320k tier.
func SameQuality(a, b string) bool {
	a, b = NormalizeQuality(a), NormalizeQuality(b)
	if a == b {
		return true
	}
	ra, rb := qualityRanks[a], qualityRanks[b]
	return ra != 0 && ra == rb
}
