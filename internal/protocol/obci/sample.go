package obci

import "time"

// Sample 单个数据包解码结果，构造后不再修改
type Sample struct {
	SampleNumber uint8
	StartByte    byte
	StopByte     byte

	// ChannelData 与 ChannelDataCounts 互斥：前者为伏特，后者为原始计数
	ChannelData       []float64
	ChannelDataCounts []int32

	// AccelData 为 nil 或 3 轴（g）
	AccelData []float64
	AuxData   []byte

	// BoardTime 仅时间同步包携带（板载毫秒）
	BoardTime *int32
	Timestamp time.Time

	Valid     bool
	Err       error
	RawPacket []byte
}

// Type 返回原始包的类型码
func (s *Sample) Type() PacketType { return PacketTypeOf(s.StopByte) }

// AccelCarry 时间同步加速度计的跨包缓存，由调用方持有
type AccelCarry [AccelAxisCount]float64

// DaisyAux 上下两半各自的 aux 数据
type DaisyAux struct {
	Lower []byte
	Upper []byte
}

// DaisyTimestamps 合并前两半的原始时间戳
type DaisyTimestamps struct {
	Lower time.Time
	Upper time.Time
}

// DaisySample 两个 8 通道包合并得到的 16 通道样本
type DaisySample struct {
	SampleNumber      uint8
	ChannelData       []float64
	ChannelDataCounts []int32
	AccelData         []float64
	AuxData           DaisyAux
	Timestamp         time.Time
	Timestamps        DaisyTimestamps
}

func failedSample(packet []byte, err error) *Sample {
	raw := make([]byte, len(packet))
	copy(raw, packet)
	return &Sample{Valid: false, Err: err, RawPacket: raw}
}
