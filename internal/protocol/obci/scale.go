package obci

import (
	"fmt"
	"math"
)

// LastSampleUnknown 尚未收到任何包时的 LastSampleNumber
const LastSampleUnknown = -1

// ScaleInput 通道换算所需上下文
type ScaleInput struct {
	Settings  ChannelSettings
	Transport Transport
	// SampleNumber 当前包序号，serial daisy 按奇偶选半区
	SampleNumber uint8
	// LastSampleNumber 上一个包序号，wifi daisy 用于判断是否为同号第二包；-1 表示未知
	LastSampleNumber int
}

// ChannelsPerPacket 单包通道数：配置 ≤4 为压缩板 4 通道，否则 8 通道（daisy 由两包复用）
func ChannelsPerPacket(settings int) int {
	if settings > ChannelsGanglion {
		return ChannelsDefault
	}
	return ChannelsGanglion
}

// gainScale ADS1299 每计数伏特数
func gainScale(gain float64) float64 {
	return ADS1299VRef / gain / countsFullScale
}

// upperHalf 16 通道配置下本包是否对应 9-16 通道
func (in ScaleInput) upperHalf() bool {
	if !in.Settings.Daisy() {
		return false
	}
	if in.Transport == TransportWifi {
		return in.LastSampleNumber == int(in.SampleNumber)
	}
	return in.SampleNumber%2 == 0
}

// ScaleChannels 把完整 33 字节包中的通道计数换算为伏特
func ScaleChannels(packet []byte, in ScaleInput) ([]float64, error) {
	if in.Settings == nil {
		return nil, fmt.Errorf("%w: channel settings missing", ErrInvalidChannelConfig)
	}
	transport := in.Transport
	if transport == "" {
		transport = TransportSerial
	}
	if transport != TransportSerial && transport != TransportWifi {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTransport, string(in.Transport))
	}
	in.Transport = transport

	n := ChannelsPerPacket(len(in.Settings))
	offset := 0
	if in.upperHalf() {
		offset = ChannelsDefault
	}
	// wifi 下非 8/16 通道配置（即 4 通道板）使用固定标度
	fixed := transport == TransportWifi && !in.Settings.Daisy() && len(in.Settings) != ChannelsDefault

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		idx := i + offset
		if idx >= len(in.Settings) {
			return nil, fmt.Errorf("%w: no channel setting at index %d", ErrInvalidChannelConfig, idx)
		}
		gain := in.Settings[idx].Gain
		if gain <= 0 || math.IsNaN(gain) || math.IsInf(gain, 0) {
			return nil, fmt.Errorf("%w: gain %v at index %d", ErrInvalidChannelConfig, gain, idx)
		}
		scale := gainScale(gain)
		if fixed {
			scale = GanglionScaleFactorPerCountVolts
		}
		out[i] = float64(channelCount(packet, i)) * scale
	}
	return out, nil
}

// RawCounts 返回前 n 个通道的原始 24 位计数
func RawCounts(packet []byte, n int) []int32 {
	if n > ChannelsDefault {
		n = ChannelsDefault
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = channelCount(packet, i)
	}
	return out
}

func channelCount(packet []byte, i int) int32 {
	start := PositionChannelDataStart + i*BytesPerChannel
	if start >= len(packet) {
		return 0
	}
	return DecodeInt24(packet[start:])
}
