package obci

// Handlers 解码事件回调，未设置的回调忽略对应事件
type Handlers struct {
	OnSample       func(*Sample)
	OnDaisy        func(*DaisySample)
	OnGap          func(Gap)
	OnFailure      func(Result)
	OnUnrecognized func(Result)
	OnDiscard      func(n int)
}

// Adapter OBCI 协议适配器：流式解码 + 事件分发
type Adapter struct {
	ctx *Context
	h   Handlers
}

// NewAdapter 为一条连接创建适配器
func NewAdapter(cfg ContextConfig, h Handlers) (*Adapter, error) {
	ctx, err := NewContext(cfg)
	if err != nil {
		return nil, err
	}
	return &Adapter{ctx: ctx, h: h}, nil
}

// Context 底层解码上下文
func (a *Adapter) Context() *Context { return a.ctx }

// ProcessBytes 处理上行字节流；坏包通过 OnFailure 上报，不返回错误
func (a *Adapter) ProcessBytes(p []byte) error {
	b := a.ctx.Process(p)
	if b.Discarded > 0 && a.h.OnDiscard != nil {
		a.h.OnDiscard(b.Discarded)
	}
	for _, g := range b.Gaps {
		if a.h.OnGap != nil {
			a.h.OnGap(g)
		}
	}
	for _, r := range b.Results {
		switch r.Kind {
		case ResultSample:
			if a.h.OnSample != nil {
				a.h.OnSample(r.Sample)
			}
		case ResultFailure:
			if a.h.OnFailure != nil {
				a.h.OnFailure(r)
			}
		case ResultUnrecognized:
			if a.h.OnUnrecognized != nil {
				a.h.OnUnrecognized(r)
			}
		}
	}
	for _, d := range b.Daisy {
		if a.h.OnDaisy != nil {
			a.h.OnDaisy(d)
		}
	}
	return nil
}

// Sniff 粗略判断是否为 OBCI 数据流：前缀中出现起始字节 0xA0
func (a *Adapter) Sniff(prefix []byte) bool {
	for _, b := range prefix {
		if b == ByteStart {
			return true
		}
	}
	return false
}
