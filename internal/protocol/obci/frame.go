package obci

import "fmt"

// 帧布局（主系列 33 字节）：
// start[1]=0xA0 | sampleNumber[1] | channels[8*3 BE] | aux[6] | stop[1]=0xC0|type
// 压缩板（20 字节）：sampleNumber/id[1] | deltas[18|19] | ...
const (
	PacketSize           = 33
	CompressedPacketSize = 20

	ByteStart = 0xA0
	ByteStop  = 0xC0

	PositionSampleNumber     = 1
	PositionChannelDataStart = 2
	PositionStartAux         = 26
	PositionStopAux          = 31
	PositionTimeSyncAuxStart = 26
	PositionTimeSyncAuxStop  = 28 // 不含
	PositionTimeStart        = 28
	PositionStopByte         = 32

	TimeByteSize    = 4
	AccelByteSize   = 2
	AccelAxisCount  = 3
	BytesPerChannel = 3

	ChannelsDefault  = 8
	ChannelsDaisy    = 16
	ChannelsGanglion = 4

	SampleNumberMax = 255

	// 时间同步包中加速度计按 sampleNumber%10 轮转
	AccelAxisX = 7
	AccelAxisY = 8
	AccelAxisZ = 9

	GanglionSamplesPerPacket = 2
)

// 标度常量
const (
	ADS1299VRef      = 4.5
	ScaleFactorAccel = 0.002 / 16
	// 网络传输下 4 通道板使用的固定标度（V/count）
	GanglionScaleFactorPerCountVolts = 1.2 / (8388607.0 * 1.5 * 51.0)
	countsFullScale                  = 1<<23 - 1
)

// PacketType 停止字节低 4 位携带的包类型码（0-15）
type PacketType uint8

const (
	PacketStandardAccel     PacketType = 0x0
	PacketStandardRawAux    PacketType = 0x1
	PacketUserDefined       PacketType = 0x2
	PacketAccelTimeSyncSet  PacketType = 0x3
	PacketAccelTimeSynced   PacketType = 0x4
	PacketRawAuxTimeSyncSet PacketType = 0x5
	PacketRawAuxTimeSynced  PacketType = 0x6
)

// Shape 包体解析形态；两个类型码共享一个时间同步形态
type Shape int

const (
	ShapeUnrecognized Shape = iota
	ShapeStandardAccel
	ShapeStandardRawAux
	ShapeTimeSyncedAccel
	ShapeTimeSyncedRawAux
)

// PacketTypeOf 从停止字节取类型码
func PacketTypeOf(stop byte) PacketType { return PacketType(stop & 0x0F) }

// Shape 返回类型码对应的解析形态，未知/用户自定义返回 ShapeUnrecognized
func (t PacketType) Shape() Shape {
	switch t {
	case PacketStandardAccel:
		return ShapeStandardAccel
	case PacketStandardRawAux:
		return ShapeStandardRawAux
	case PacketAccelTimeSyncSet, PacketAccelTimeSynced:
		return ShapeTimeSyncedAccel
	case PacketRawAuxTimeSyncSet, PacketRawAuxTimeSynced:
		return ShapeTimeSyncedRawAux
	default:
		return ShapeUnrecognized
	}
}

func (t PacketType) String() string {
	switch t {
	case PacketStandardAccel:
		return "standard_accel"
	case PacketStandardRawAux:
		return "standard_raw_aux"
	case PacketUserDefined:
		return "user_defined"
	case PacketAccelTimeSyncSet:
		return "accel_time_sync_set"
	case PacketAccelTimeSynced:
		return "accel_time_synced"
	case PacketRawAuxTimeSyncSet:
		return "raw_aux_time_sync_set"
	case PacketRawAuxTimeSynced:
		return "raw_aux_time_synced"
	default:
		return fmt.Sprintf("unknown_0x%x", uint8(t)&0x0F)
	}
}

func (s Shape) String() string {
	switch s {
	case ShapeStandardAccel:
		return "standard_accel"
	case ShapeStandardRawAux:
		return "standard_raw_aux"
	case ShapeTimeSyncedAccel:
		return "time_synced_accel"
	case ShapeTimeSyncedRawAux:
		return "time_synced_raw_aux"
	default:
		return "unrecognized"
	}
}
