package obci

import (
	"fmt"
	"time"
)

// Gap 一次序号不连续
type Gap struct {
	Previous uint8
	Current  uint8
	Missing  []uint8
}

// Batch 一次 Process 的全部产出，顺序与线路顺序一致
type Batch struct {
	Results   []Result
	Daisy     []*DaisySample
	Gaps      []Gap
	Discarded int
}

// ContextConfig 单条连接的解码配置
type ContextConfig struct {
	Settings   ChannelSettings
	Transport  Transport
	Counts     bool
	TimeOffset time.Duration
	MaxBuffer  int
	Now        func() time.Time
}

// Context 单条连接的解码上下文：帧缓冲余量、加速度缓存、上一个序号、daisy 配对状态。
// 每条连接独立一个，不可并发使用。
type Context struct {
	cfg     ContextConfig
	decoder *StreamDecoder
	accel   AccelCarry
	last    int
	daisy   *DaisyAssembler
}

// NewContext 创建解码上下文
func NewContext(cfg ContextConfig) (*Context, error) {
	t, err := ParseTransport(string(cfg.Transport))
	if err != nil {
		return nil, err
	}
	cfg.Transport = t
	if cfg.Settings == nil && !cfg.Counts {
		return nil, fmt.Errorf("%w: channel settings missing", ErrInvalidChannelConfig)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := &Context{
		cfg:     cfg,
		decoder: NewStreamDecoder(cfg.MaxBuffer),
		last:    LastSampleUnknown,
	}
	if cfg.Settings.Daisy() {
		c.daisy = NewDaisyAssembler(t)
	}
	return c, nil
}

// Transport 连接的传输方式
func (c *Context) Transport() Transport { return c.cfg.Transport }

// SetTimeOffset 更新板载时间偏移（时间同步完成后调用）
func (c *Context) SetTimeOffset(d time.Duration) { c.cfg.TimeOffset = d }

// LastSampleNumber 上一个包序号，-1 表示尚未收到
func (c *Context) LastSampleNumber() int { return c.last }

// Buffered 未消耗字节数
func (c *Context) Buffered() int { return c.decoder.Buffered() }

// Reset 丢弃全部跨包状态（重连或重新开始采集时）
func (c *Context) Reset() {
	c.decoder.Reset()
	c.accel = AccelCarry{}
	c.last = LastSampleUnknown
	if c.daisy != nil {
		c.daisy.Reset()
	}
}

// Process 输入一块原始字节，解出其中全部完整帧
func (c *Context) Process(chunk []byte) Batch {
	packets, discarded := c.decoder.Feed(chunk)
	b := Batch{Discarded: discarded}
	if len(packets) == 0 {
		return b
	}
	now := c.cfg.Now()
	b.Results = make([]Result, 0, len(packets))
	for _, p := range packets {
		r, gap, merged := c.decodeOne(p, now)
		b.Results = append(b.Results, r)
		if gap != nil {
			b.Gaps = append(b.Gaps, *gap)
		}
		if merged != nil {
			b.Daisy = append(b.Daisy, merged)
		}
	}
	return b
}

// decodeOne 每个包（无论成功与否）之后都更新 last，供下一个包的 wifi daisy 半区判断
func (c *Context) decodeOne(packet []byte, now time.Time) (Result, *Gap, *DaisySample) {
	r := Decode(packet, ParseOptions{
		Settings:         c.cfg.Settings,
		Transport:        c.cfg.Transport,
		Counts:           c.cfg.Counts,
		LastSampleNumber: c.last,
		TimeOffset:       c.cfg.TimeOffset,
		ReceivedAt:       now,
		Accel:            &c.accel,
	})
	prev := c.last
	c.last = resultSampleNumber(r, packet)

	if r.Kind != ResultSample {
		return r, nil, nil
	}
	cur := r.Sample.SampleNumber

	var gap *Gap
	// wifi daisy 的第二个半包与前一包同号，不算丢包
	dup := c.cfg.Transport == TransportWifi && c.daisy != nil && prev == int(cur)
	if prev != LastSampleUnknown && !dup {
		if missing := CheckContinuity(uint8(prev), cur); len(missing) > 0 {
			gap = &Gap{Previous: uint8(prev), Current: cur, Missing: missing}
		}
	}

	var merged *DaisySample
	if c.daisy != nil {
		merged = c.daisy.Push(r.Sample)
	}
	return r, gap, merged
}
