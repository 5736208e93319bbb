package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StreamInfo 单条设备数据流的运行状态
type StreamInfo struct {
	ID          string    `json:"id"`
	Transport   string    `json:"transport"`
	Remote      string    `json:"remote"`
	Channels    int       `json:"channels"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSample  time.Time `json:"last_sample,omitempty"`
	Samples     uint64    `json:"samples"`
	Failures    uint64    `json:"failures"`
	Dropped     uint64    `json:"dropped"`
}

// Manager 数据流注册表：记录每条连接最近一次收到样本的时间，判断是否活跃
type Manager struct {
	mu      sync.RWMutex
	streams map[string]*StreamInfo
	timeout time.Duration
}

func New(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Manager{streams: make(map[string]*StreamInfo), timeout: timeout}
}

// Bind 登记一条数据流，ID 为空时分配 uuid；重复 ID 覆盖
func (m *Manager) Bind(info StreamInfo) string {
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.streams[info.ID] = &info
	m.mu.Unlock()
	return info.ID
}

// Unbind 解除登记
func (m *Manager) Unbind(id string) {
	m.mu.Lock()
	delete(m.streams, id)
	m.mu.Unlock()
}

// OnSample 更新样本计数与最近样本时间
func (m *Manager) OnSample(id string, t time.Time) {
	m.mu.Lock()
	if s, ok := m.streams[id]; ok {
		s.Samples++
		s.LastSample = t
	}
	m.mu.Unlock()
}

// OnFailure 记录一次解码失败
func (m *Manager) OnFailure(id string) {
	m.mu.Lock()
	if s, ok := m.streams[id]; ok {
		s.Failures++
	}
	m.mu.Unlock()
}

// OnDropped 累加丢失的样本数
func (m *Manager) OnDropped(id string, n int) {
	m.mu.Lock()
	if s, ok := m.streams[id]; ok && n > 0 {
		s.Dropped += uint64(n)
	}
	m.mu.Unlock()
}

// Get 返回数据流状态快照
func (m *Manager) Get(id string) (StreamInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.streams[id]
	if !ok {
		return StreamInfo{}, false
	}
	return *s, true
}

// List 按接入时间排序的全部数据流快照
func (m *Manager) List() []StreamInfo {
	m.mu.RLock()
	out := make([]StreamInfo, 0, len(m.streams))
	for _, s := range m.streams {
		out = append(out, *s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// IsOnline 超时时间内收到过样本即为活跃
func (m *Manager) IsOnline(id string, now time.Time) bool {
	m.mu.RLock()
	s, ok := m.streams[id]
	var ts time.Time
	if ok {
		ts = s.LastSample
	}
	m.mu.RUnlock()
	if !ok || ts.IsZero() {
		return false
	}
	return now.Sub(ts) <= m.timeout
}

// OnlineCount 返回当前活跃数据流数量
func (m *Manager) OnlineCount(now time.Time) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.streams {
		if !s.LastSample.IsZero() && now.Sub(s.LastSample) <= m.timeout {
			count++
		}
	}
	return count
}
