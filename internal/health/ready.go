package health

import (
	"sort"
	"sync"
)

// Readiness 就绪状态聚合：启动时登记需要的子系统（tcp、serial、redis、postgres），
// 全部就绪后 /readyz 返回 200
type Readiness struct {
	mu    sync.RWMutex
	state map[string]bool
}

func New(components ...string) *Readiness {
	r := &Readiness{state: make(map[string]bool, len(components))}
	for _, c := range components {
		r.state[c] = false
	}
	return r
}

// Require 追加需要等待的子系统
func (r *Readiness) Require(name string) {
	r.mu.Lock()
	if _, ok := r.state[name]; !ok {
		r.state[name] = false
	}
	r.mu.Unlock()
}

// Set 更新子系统状态；未登记的名字同时登记
func (r *Readiness) Set(name string, ready bool) {
	r.mu.Lock()
	r.state[name] = ready
	r.mu.Unlock()
}

// Ready 总体就绪：各子系统均为 true
func (r *Readiness) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.state {
		if !v {
			return false
		}
	}
	return true
}

// Pending 尚未就绪的子系统，按名字排序
func (r *Readiness) Pending() []string {
	r.mu.RLock()
	var out []string
	for k, v := range r.state {
		if !v {
			out = append(out, k)
		}
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
