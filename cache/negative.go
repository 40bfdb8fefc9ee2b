package cache

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// NegativeCache 记录近期所有音源都失败的键，只用于限流，不作为权威结果。
// 同一个键按 scope（本次尝试过的音源列表）分别记录，换一组音源不会被拦下。
type NegativeCache struct {
	lru *expirable.LRU[string, struct{}]
}

// NewNegativeCache 创建负缓存；ttl <= 0 时返回 nil，nil 上的方法都是空操作
func NewNegativeCache(size int, ttl time.Duration) *NegativeCache {
	if ttl <= 0 {
		return nil
	}
	if size <= 0 {
		size = 1024
	}
	return &NegativeCache{lru: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

func negativeKey(key, scope string) string {
	return key + "|" + scope
}

// Mark 标记键在 scope 下最近解析失败
func (n *NegativeCache) Mark(key, scope string) {
	if n == nil {
		return
	}
	n.lru.Add(negativeKey(key, scope), struct{}{})
}

// Has 键在 scope 下是否仍处于失败冷却期
func (n *NegativeCache) Has(key, scope string) bool {
	if n == nil {
		return false
	}
	_, ok := n.lru.Get(negativeKey(key, scope))
	return ok
}

// Forget 清除键在所有 scope 下的失败标记
func (n *NegativeCache) Forget(key string) {
	if n == nil {
		return
	}
	prefix := negativeKey(key, "")
	for _, k := range n.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			n.lru.Remove(k)
		}
	}
}
