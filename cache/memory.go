package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"QFMResolver/model"

	"go.uber.org/zap"
)

// MemoryOptions 内存缓存配置
type MemoryOptions struct {
	Shards        int           // 分片数，默认 16
	SweepInterval time.Duration // 后台清理周期，<= 0 不启动清理协程
	Clock         func() time.Time
	Logger        *zap.Logger
}

type memoryShard struct {
	mu    sync.RWMutex
	items map[string]model.CacheRecord
}

// MemoryStore 分片的进程内 TTL 缓存：读时检查过期 + 周期性清理
type MemoryStore struct {
	shards []*memoryShard
	now    func() time.Time
	log    *zap.Logger

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存缓存，SweepInterval > 0 时启动后台清理
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	if opts.Shards <= 0 {
		opts.Shards = 16
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &MemoryStore{
		shards: make([]*memoryShard, opts.Shards),
		now:    opts.Clock,
		log:    opts.Logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &memoryShard{items: make(map[string]model.CacheRecord)}
	}

	if opts.SweepInterval > 0 {
		go s.janitor(opts.SweepInterval)
	} else {
		close(s.done)
	}
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Get 读取缓存，过期条目视为不存在并顺手删除
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	sh := s.shard(key)
	now := s.now()

	sh.mu.RLock()
	rec, ok := sh.items[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}

	if rec.ExpiredAt(now) {
		sh.mu.Lock()
		// 重新检查，避免删掉并发写入的新值
		if cur, ok := sh.items[key]; ok && cur.ExpiredAt(now) {
			delete(sh.items, key)
		}
		sh.mu.Unlock()
		return nil, ErrMiss
	}

	out := make([]byte, len(rec.Value))
	copy(out, rec.Value)
	return out, nil
}

// Set 写入缓存
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)

	rec := model.CacheRecord{
		Key:       key,
		Value:     v,
		ExpiresAt: expiresAt(s.now(), ttl),
	}

	sh := s.shard(key)
	sh.mu.Lock()
	sh.items[key] = rec
	sh.mu.Unlock()
	return nil
}

// Invalidate 删除缓存
func (s *MemoryStore) Invalidate(_ context.Context, key string) error {
	sh := s.shard(key)
	sh.mu.Lock()
	delete(sh.items, key)
	sh.mu.Unlock()
	return nil
}

// Len 返回物理条目数（包含尚未清理的过期条目）
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.items)
		sh.mu.RUnlock()
	}
	return n
}

// Sweep 清理所有过期条目，返回清理数量
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, rec := range sh.items {
			if rec.ExpiredAt(now) {
				delete(sh.items, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

func (s *MemoryStore) janitor(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, _ := s.Sweep(context.Background()); n > 0 {
				s.log.Debug("swept expired cache entries", zap.Int("removed", n))
			}
		case <-s.stop:
			return
		}
	}
}

// Close 停止后台清理协程，可重复调用
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
	return nil
}
