package gateway

import (
	"go.uber.org/zap"

	"github.com/taoyao-code/obci-gateway/internal/pipeline"
	"github.com/taoyao-code/obci-gateway/internal/protocol/obci"
	"github.com/taoyao-code/obci-gateway/internal/tcpserver"
)

// NewConnHandler 构建 TCP 连接处理器：每条连接一个解码流（按 wifi 传输处理），
// 经复用器接收上行字节，连接关闭时注销会话。
func NewConnHandler(p *pipeline.Pipeline, log *zap.Logger) func(*tcpserver.ConnContext) {
	if log == nil {
		log = zap.NewNop()
	}
	return func(cc *tcpserver.ConnContext) {
		remote := cc.RemoteAddr().String()
		stream, err := p.Open(cc.Context(), obci.TransportWifi, remote)
		if err != nil {
			log.Error("open stream failed", zap.String("remote", remote), zap.Error(err))
			_ = cc.Close()
			return
		}

		tcpserver.NewMux(stream).BindToConn(cc)

		go func() {
			<-cc.Done()
			stream.Close()
		}()
	}
}
