package pipeline

import (
	"errors"
	"sync"
	"time"
)

// State 熔断器状态
type State int

const (
	StateClosed   State = iota // 正常写入
	StateOpen                  // 熔断，直接拒绝
	StateHalfOpen              // 试探恢复
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen 下游连续失败，熔断期内拒绝写入
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyProbes 半开状态试探请求已满
	ErrTooManyProbes = errors.New("too many probes in half-open state")
)

// Breaker 下游写入熔断器：连续失败 threshold 次后熔断 cooldown，
// 之后放行 probes 个试探请求，半数成功即恢复，任一失败重新熔断。
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	inflight  int
	openedAt  time.Time
	trips     int64

	threshold int
	cooldown  time.Duration
	probes    int
	now       func() time.Time

	onStateChange func(from, to State)
}

// NewBreaker threshold<=0 时为 5；cooldown<=0 时为 30s
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, probes: 4, now: time.Now}
}

// OnStateChange 状态变化回调，在锁外同步调用
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	b.onStateChange = fn
	b.mu.Unlock()
}

// Call 受熔断保护地执行 fn
func (b *Breaker) Call(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	var from State
	changed := false
	defer func() {
		cb := b.onStateChange
		b.mu.Unlock()
		if changed && cb != nil {
			cb(from, StateHalfOpen)
		}
	}()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		from, changed = b.state, true
		b.state = StateHalfOpen
		b.failures, b.successes, b.inflight = 0, 0, 0
		fallthrough
	case StateHalfOpen:
		if b.inflight >= b.probes {
			return ErrTooManyProbes
		}
		b.inflight++
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	from := b.state
	to := from

	if err != nil {
		b.failures++
		if (from == StateClosed && b.failures >= b.threshold) || from == StateHalfOpen {
			to = StateOpen
			b.openedAt = b.now()
			b.trips++
		}
	} else {
		switch from {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.successes++
			if b.successes >= b.probes/2 {
				to = StateClosed
				b.failures, b.successes = 0, 0
			}
		}
	}
	if from == StateHalfOpen && b.inflight > 0 {
		b.inflight--
	}
	b.state = to
	cb := b.onStateChange
	b.mu.Unlock()

	if to != from && cb != nil {
		cb(from, to)
	}
}

// State 当前状态
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Trips 累计熔断次数
func (b *Breaker) Trips() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}
