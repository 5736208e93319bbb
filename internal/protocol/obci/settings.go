package obci

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultGain ADS1299 上电默认增益
const DefaultGain = 24

// ChannelSetting 单通道配置，目前只关心增益
type ChannelSetting struct {
	Gain float64 `yaml:"gain" mapstructure:"gain"`
}

// ChannelSettings 有序通道配置；长度 4/8/16 分别对应压缩板/基板/daisy
type ChannelSettings []ChannelSetting

// DefaultChannelSettings 返回 n 个默认增益的通道配置
func DefaultChannelSettings(n int) ChannelSettings {
	cs := make(ChannelSettings, n)
	for i := range cs {
		cs[i].Gain = DefaultGain
	}
	return cs
}

// ChannelSettingsFromGains 由增益列表构造配置
func ChannelSettingsFromGains(gains []float64) ChannelSettings {
	if gains == nil {
		return nil
	}
	cs := make(ChannelSettings, len(gains))
	for i, g := range gains {
		cs[i].Gain = g
	}
	return cs
}

// Daisy 是否为 16 通道拓扑
func (cs ChannelSettings) Daisy() bool { return len(cs) == ChannelsDaisy }

// channelPreset 预设文件结构
type channelPreset struct {
	Channels ChannelSettings `yaml:"channels"`
}

// LoadChannelSettings 从 YAML 预设文件加载通道配置
//
//	channels:
//	  - gain: 24
//	  - gain: 12
func LoadChannelSettings(path string) (ChannelSettings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channel preset: %w", err)
	}
	var p channelPreset
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("unmarshal channel preset: %w", err)
	}
	switch len(p.Channels) {
	case ChannelsGanglion, ChannelsDefault, ChannelsDaisy:
	default:
		return nil, fmt.Errorf("%w: preset has %d channels", ErrInvalidChannelConfig, len(p.Channels))
	}
	return p.Channels, nil
}

// Transport 传输方式令牌
type Transport string

const (
	// TransportSerial 点对点（USB 串口无线接收器）
	TransportSerial Transport = "serial"
	// TransportWifi 网络（WiFi 扩展板）
	TransportWifi Transport = "wifi"
)

// ParseTransport 解析传输方式；空串按 serial 处理
func ParseTransport(s string) (Transport, error) {
	switch Transport(strings.ToLower(strings.TrimSpace(s))) {
	case "", TransportSerial:
		return TransportSerial, nil
	case TransportWifi:
		return TransportWifi, nil
	default:
		return "", fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidTransport, s, TransportSerial, TransportWifi)
	}
}
