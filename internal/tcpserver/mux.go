package tcpserver

import (
	"go.uber.org/zap"

	padapter "github.com/taoyao-code/obci-gateway/internal/protocol/adapter"
)

// sniffPrefix 初判使用的前缀长度：一个完整数据包内必有起始字节
const sniffPrefix = 33

// Mux 协议复用器：首块数据初判 -> 绑定适配器 -> 直通处理
type Mux struct {
	adapters []padapter.Adapter
}

func NewMux(adapters ...padapter.Adapter) *Mux { return &Mux{adapters: adapters} }

// BindToConn 为连接安装 onRead。识别前的数据投递给全部适配器，
// 由各自的流缓冲处理半包。
func (m *Mux) BindToConn(cc *ConnContext) {
	var handler padapter.Adapter
	log := zap.NewNop()
	if cc.s != nil {
		log = cc.s.log
	}

	cc.SetOnRead(func(p []byte) {
		if handler != nil {
			_ = handler.ProcessBytes(p)
			return
		}
		pref := p
		if len(pref) > sniffPrefix {
			pref = pref[:sniffPrefix]
		}
		for _, a := range m.adapters {
			if a.Sniff(pref) {
				handler = a
				log.Debug("protocol identified", zap.Uint64("conn", cc.id), zap.Int("adapter", indexOf(m.adapters, a)))
				_ = a.ProcessBytes(p)
				return
			}
		}
		for _, a := range m.adapters {
			_ = a.ProcessBytes(p)
		}
	})
}

func indexOf(list []padapter.Adapter, a padapter.Adapter) int {
	for i, x := range list {
		if x == a {
			return i
		}
	}
	return -1
}
