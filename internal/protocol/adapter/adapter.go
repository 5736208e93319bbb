package adapter

// Adapter 协议适配器接口，供 TCP 复用器绑定：
// Sniff 根据首块数据判断是否为本协议；
// ProcessBytes 处理连接上的原始字节流（内部负责半包/粘包）。
// obci.Adapter 与 pipeline.Stream 均实现该接口。
type Adapter interface {
	Sniff(prefix []byte) bool
	ProcessBytes(p []byte) error
}
