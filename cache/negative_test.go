package cache

import (
	"testing"
	"time"
)

func TestNegativeCache(t *testing.T) {
	n := NewNegativeCache(8, 50*time.Millisecond)
	if n.Has("k", "netease") {
		t.Fatal("empty cache reported a hit")
	}

	n.Mark("k", "netease")
	if !n.Has("k", "netease") {
		t.Fatal("marked key missing")
	}
	n.Forget("k")
	if n.Has("k", "netease") {
		t.Fatal("forgotten key still present")
	}

	n.Mark("k", "netease")
	time.Sleep(120 * time.Millisecond)
	if n.Has("k", "netease") {
		t.Error("entry outlived its ttl")
	}
}

func TestNegativeCacheScopes(t *testing.T) {
	n := NewNegativeCache(8, time.Minute)
	n.Mark("url:netease:1:high", "kugou")
	n.Mark("url:netease:1:high", "kuwo,migu")
	n.Mark("url:netease:10:high", "kugou")

	if n.Has("url:netease:1:high", "netease") {
		t.Error("scope that was never attempted reported a hit")
	}
	if !n.Has("url:netease:1:high", "kugou") || !n.Has("url:netease:1:high", "kuwo,migu") {
		t.Fatal("marked scopes missing")
	}

	n.Forget("url:netease:1:high")
	if n.Has("url:netease:1:high", "kugou") || n.Has("url:netease:1:high", "kuwo,migu") {
		t.Error("Forget left a scope behind")
	}
	// 前缀相同的其他键不受影响
	if !n.Has("url:netease:10:high", "kugou") {
		t.Error("Forget removed an unrelated key")
	}
}

func TestNegativeCacheDisabled(t *testing.T) {
	n := NewNegativeCache(8, 0)
	if n != nil {
		t.Fatal("zero ttl should disable the cache")
	}
	n.Mark("k", "netease")
	if n.Has("k", "netease") {
		t.Error("disabled cache reported a hit")
	}
	n.Forget("k")
}
