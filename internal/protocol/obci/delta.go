package obci

import "fmt"

// 压缩板增量按 MSB 优先首尾相接打包，字段之间没有字节对齐。
// 下表为固件定义的各槽位起始 bit（槽位顺序：样本1 通道1-4，样本2 通道1-4）。
// 没有校验和，偏移错误会静默破坏数值，修改前务必对照固件。
var (
	deltaSlots18 = [GanglionSamplesPerPacket * ChannelsGanglion]uint{0, 18, 36, 54, 72, 90, 108, 126}
	deltaSlots19 = [GanglionSamplesPerPacket * ChannelsGanglion]uint{0, 19, 38, 57, 76, 95, 114, 133}
)

const (
	Delta18PayloadSize = 18
	Delta19PayloadSize = 19
)

// Deltas 2 个样本 × 4 通道的增量矩阵
type Deltas [GanglionSamplesPerPacket][ChannelsGanglion]int32

// DecompressDeltas18 解包 18 字节负载中的 18 位增量
func DecompressDeltas18(payload []byte) Deltas {
	return decompress(payload, 18, &deltaSlots18, DecodeInt18)
}

// DecompressDeltas19 解包 19 字节负载中的 19 位增量
func DecompressDeltas19(payload []byte) Deltas {
	return decompress(payload, 19, &deltaSlots19, DecodeInt19)
}

func decompress(payload []byte, bits uint, slots *[8]uint, conv func([]byte) int32) Deltas {
	var out Deltas
	for slot, start := range slots {
		v := extractBits(payload, start, bits)
		field := [3]byte{byte(v >> 16), byte(v >> 8), byte(v)}
		out[slot/ChannelsGanglion][slot%ChannelsGanglion] = conv(field[:])
	}
	return out
}

// extractBits 取出从 start 开始（MSB 优先）的 n 位，跨 1-4 个源字节
func extractBits(buf []byte, start, n uint) uint32 {
	first := start / 8
	last := (start + n - 1) / 8
	var acc uint64
	for i := first; i <= last; i++ {
		acc = acc<<8 | uint64(at(buf, int(i)))
	}
	shift := (last+1)*8 - (start + n)
	return uint32(acc>>shift) & (1<<n - 1)
}

// CompressionMode 压缩包的增量位宽
type CompressionMode int

const (
	ModeUnknown CompressionMode = iota
	Mode18Bit
	Mode19Bit
)

// 压缩板首字节取值区间（固件约定）
const (
	compressedID18Min = 1
	compressedID18Max = 100
	compressedID19Max = 200
)

// CompressionModeOf 根据首字节判断增量位宽
func CompressionModeOf(id byte) CompressionMode {
	switch {
	case id >= compressedID18Min && id <= compressedID18Max:
		return Mode18Bit
	case id > compressedID18Max && id <= compressedID19Max:
		return Mode19Bit
	default:
		return ModeUnknown
	}
}

func (m CompressionMode) String() string {
	switch m {
	case Mode18Bit:
		return "18bit"
	case Mode19Bit:
		return "19bit"
	default:
		return "unknown"
	}
}

// CompressedPacket 解包后的压缩帧；增量相对于调用方维护的绝对值上下文
type CompressedPacket struct {
	SampleNumber uint8
	Mode         CompressionMode
	Deltas       Deltas
}

// DecodeCompressed 解析 20 字节压缩帧。本函数不累计状态。
func DecodeCompressed(packet []byte) (*CompressedPacket, error) {
	if len(packet) == 0 {
		return nil, ErrUndefinedInput
	}
	if len(packet) != CompressedPacketSize {
		return nil, fmt.Errorf("%w: compressed packet want %d got %d", ErrInvalidLength, CompressedPacketSize, len(packet))
	}
	cp := &CompressedPacket{SampleNumber: packet[0], Mode: CompressionModeOf(packet[0])}
	switch cp.Mode {
	case Mode18Bit:
		cp.Deltas = DecompressDeltas18(packet[1 : 1+Delta18PayloadSize])
	case Mode19Bit:
		cp.Deltas = DecompressDeltas19(packet[1 : 1+Delta19PayloadSize])
	default:
		return nil, fmt.Errorf("%w: compressed id %d", ErrUnrecognizedPacketType, packet[0])
	}
	return cp, nil
}
