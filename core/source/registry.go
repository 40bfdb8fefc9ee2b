package source

import (
	"sync"

	"QFMResolver/model"
)

// Registry 音源适配器注册表，新增音源只需注册适配器
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.MusicSource]Adapter
}

// NewRegistry 创建注册表
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[model.MusicSource]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register 注册适配器，同一音源后注册的覆盖先注册的
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Source()] = a
}

// Get 获取指定音源的适配器
func (r *Registry) Get(src model.MusicSource) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[src]
	return a, ok
}

// Sources 返回已注册的音源，按 model.AllSources 的顺序
func (r *Registry) Sources() []model.MusicSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.MusicSource
	for _, s := range model.AllSources() {
		if _, ok := r.adapters[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
