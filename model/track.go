package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTrackKey is returned when a TrackKey names neither an internal id
// nor a (source, sourceId) pair.
var ErrInvalidTrackKey = errors.New("invalid track key")

// Track 歌曲身份与元数据，(Source, SourceID) 唯一
type Track struct {
	ID       int64       `json:"id"`
	Source   MusicSource `json:"source"`
	SourceID string      `json:"sourceId"`
	Title    string      `json:"title"`
	Artist   string      `json:"artist"`
	Album    string      `json:"album"`
	Duration float64     `json:"duration"` // 秒
}

// Key 返回歌曲的外部标识
func (t *Track) Key() TrackKey {
	return TrackKey{Source: t.Source, SourceID: t.SourceID}
}

// TrackKey identifies a track either by its upstream identity or by the
// internal song id.
type TrackKey struct {
	Source     MusicSource `json:"source,omitempty"`
	SourceID   string      `json:"sourceId,omitempty"`
	InternalID int64       `json:"internalId,omitempty"`
}

// HasSourceID 是否带有上游标识
func (k TrackKey) HasSourceID() bool {
	return k.Source != "" && k.SourceID != ""
}

// Validate 校验 TrackKey
func (k TrackKey) Validate() error {
	if k.HasSourceID() {
		if !k.Source.Valid() {
			return fmt.Errorf("%w: unknown source %q", ErrInvalidTrackKey, k.Source)
		}
		if strings.ContainsAny(k.SourceID, " \t\n:") {
			return fmt.Errorf("%w: malformed source id %q", ErrInvalidTrackKey, k.SourceID)
		}
		return nil
	}
	if k.InternalID > 0 {
		return nil
	}
	return ErrInvalidTrackKey
}

func (k TrackKey) String() string {
	if k.HasSourceID() {
		return k.Source.Lower() + ":" + k.SourceID
	}
	return fmt.Sprintf("id:%d", k.InternalID)
}
