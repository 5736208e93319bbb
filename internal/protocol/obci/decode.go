package obci

import (
	"fmt"
	"time"
)

// ParseOptions 单包解析参数；Accel 与 LastSampleNumber 由调用方跨包维护
type ParseOptions struct {
	Settings  ChannelSettings
	Transport Transport
	// Counts 为 true 时输出原始计数，不做伏特换算
	Counts bool
	// LastSampleNumber 上一个包的序号，-1 表示未知
	LastSampleNumber int
	// TimeOffset 板载时间到主机时间的偏移
	TimeOffset time.Duration
	// ReceivedAt 非时间同步包的主机接收时间
	ReceivedAt time.Time
	Accel      *AccelCarry
}

// validatePacket 校验顺序：非空、长度、起始字节
func validatePacket(packet []byte) error {
	if len(packet) == 0 {
		return ErrUndefinedInput
	}
	if len(packet) != PacketSize {
		return fmt.Errorf("%w: want %d got %d", ErrInvalidLength, PacketSize, len(packet))
	}
	if packet[0] != ByteStart {
		return fmt.Errorf("%w: 0x%02x", ErrInvalidStartByte, packet[0])
	}
	return nil
}

func newSample(packet []byte) *Sample {
	return &Sample{
		SampleNumber: packet[PositionSampleNumber],
		StartByte:    packet[0],
		StopByte:     packet[PositionStopByte],
		Valid:        true,
	}
}

// fillChannels 按选项写入伏特值或原始计数
func fillChannels(s *Sample, packet []byte, opts ParseOptions) error {
	if opts.Counts {
		n := ChannelsDefault
		if opts.Settings != nil {
			n = ChannelsPerPacket(len(opts.Settings))
		}
		s.ChannelDataCounts = RawCounts(packet, n)
		return nil
	}
	data, err := ScaleChannels(packet, ScaleInput{
		Settings:         opts.Settings,
		Transport:        opts.Transport,
		SampleNumber:     packet[PositionSampleNumber],
		LastSampleNumber: opts.LastSampleNumber,
	})
	if err != nil {
		return err
	}
	s.ChannelData = data
	return nil
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// boardTime 字节 28-31 大端有符号毫秒
func boardTime(packet []byte) int32 {
	b := packet[PositionTimeStart : PositionTimeStart+TimeByteSize]
	return int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}

func setBoardTime(s *Sample, packet []byte, offset time.Duration) {
	t := boardTime(packet)
	s.BoardTime = &t
	s.Timestamp = time.UnixMilli(int64(t)).Add(offset)
}

// ParseStandardAccel 标准包：通道 + 字节 26-31 三轴加速度
func ParseStandardAccel(packet []byte, opts ParseOptions) (*Sample, error) {
	if err := validatePacket(packet); err != nil {
		return nil, err
	}
	s := newSample(packet)
	if err := fillChannels(s, packet, opts); err != nil {
		return nil, err
	}
	s.AccelData = make([]float64, AccelAxisCount)
	for i := range s.AccelData {
		off := PositionStartAux + i*AccelByteSize
		s.AccelData[i] = float64(DecodeInt16(packet[off:off+AccelByteSize])) * ScaleFactorAccel
	}
	s.AuxData = copyBytes(packet[PositionStartAux : PositionStopAux+1])
	s.Timestamp = opts.ReceivedAt
	return s, nil
}

// ParseStandardRawAux 标准包：通道 + 6 字节不透明 aux
func ParseStandardRawAux(packet []byte, opts ParseOptions) (*Sample, error) {
	if err := validatePacket(packet); err != nil {
		return nil, err
	}
	s := newSample(packet)
	if err := fillChannels(s, packet, opts); err != nil {
		return nil, err
	}
	s.AuxData = copyBytes(packet[PositionStartAux : PositionStopAux+1])
	s.Timestamp = opts.ReceivedAt
	return s, nil
}

// ParseTimeSyncedAccel 时间同步加速度包：每包只带一个轴，轴由 sampleNumber%10 决定；
// 只有写入 Z 轴时才附带完整三轴（opts.Accel 的拷贝）
func ParseTimeSyncedAccel(packet []byte, opts ParseOptions) (*Sample, error) {
	if err := validatePacket(packet); err != nil {
		return nil, err
	}
	s := newSample(packet)
	if err := fillChannels(s, packet, opts); err != nil {
		return nil, err
	}
	setBoardTime(s, packet, opts.TimeOffset)
	s.AuxData = copyBytes(packet[PositionTimeSyncAuxStart:PositionTimeSyncAuxStop])

	carry := opts.Accel
	if carry == nil {
		carry = new(AccelCarry)
	}
	v := float64(DecodeInt16(packet[PositionTimeSyncAuxStart:PositionTimeSyncAuxStop])) * ScaleFactorAccel
	switch s.SampleNumber % 10 {
	case AccelAxisX:
		carry[0] = v
	case AccelAxisY:
		carry[1] = v
	case AccelAxisZ:
		carry[2] = v
		s.AccelData = []float64{carry[0], carry[1], carry[2]}
	}
	return s, nil
}

// ParseTimeSyncedRawAux 时间同步 raw aux 包：通道 + 2 字节 aux + 板载时间
func ParseTimeSyncedRawAux(packet []byte, opts ParseOptions) (*Sample, error) {
	if err := validatePacket(packet); err != nil {
		return nil, err
	}
	s := newSample(packet)
	if err := fillChannels(s, packet, opts); err != nil {
		return nil, err
	}
	setBoardTime(s, packet, opts.TimeOffset)
	s.AuxData = copyBytes(packet[PositionTimeSyncAuxStart:PositionTimeSyncAuxStop])
	return s, nil
}

// ResultKind 单包解码结果分类
type ResultKind int

const (
	ResultSample ResultKind = iota
	ResultFailure
	ResultUnrecognized
)

func (k ResultKind) String() string {
	switch k {
	case ResultSample:
		return "sample"
	case ResultFailure:
		return "failure"
	case ResultUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// Result 单包解码结果。
// ResultSample：Sample 有效；ResultFailure：Sample.Valid=false 且带 Err/RawPacket；
// ResultUnrecognized：未调用任何解析器，Sample 为 nil。
type Result struct {
	Kind   ResultKind
	Type   PacketType
	Sample *Sample
	Err    error
}

type shapeParser func([]byte, ParseOptions) (*Sample, error)

var shapeParsers = map[Shape]shapeParser{
	ShapeStandardAccel:    ParseStandardAccel,
	ShapeStandardRawAux:   ParseStandardRawAux,
	ShapeTimeSyncedAccel:  ParseTimeSyncedAccel,
	ShapeTimeSyncedRawAux: ParseTimeSyncedRawAux,
}

// Decode 单包解码入口：解析错误与 panic 都转换为失败结果，不会向上抛出
func Decode(packet []byte, opts ParseOptions) (res Result) {
	t := PacketTypeOf(at(packet, PositionStopByte))
	res.Type = t

	parse, ok := shapeParsers[t.Shape()]
	if !ok {
		res.Kind = ResultUnrecognized
		res.Err = fmt.Errorf("%w: stop byte 0x%02x", ErrUnrecognizedPacketType, at(packet, PositionStopByte))
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("decode %s: panic: %v", t, r)
			res = Result{Kind: ResultFailure, Type: t, Sample: failedSample(packet, err), Err: err}
		}
	}()

	s, err := parse(packet, opts)
	if err != nil {
		res.Kind = ResultFailure
		res.Sample = failedSample(packet, err)
		res.Err = err
		return res
	}
	s.RawPacket = copyBytes(packet)
	res.Kind = ResultSample
	res.Sample = s
	return res
}

// DecodeBatch 逐包解码；每包之后把 opts.LastSampleNumber 更新为该包序号
// （无样本时取原始包第 1 字节），单个坏包不影响其余包。opts 为 nil 时按零值处理，序号未知
func DecodeBatch(packets [][]byte, opts *ParseOptions) []Result {
	if opts == nil {
		opts = &ParseOptions{LastSampleNumber: LastSampleUnknown}
	}
	out := make([]Result, 0, len(packets))
	for _, p := range packets {
		r := Decode(p, *opts)
		out = append(out, r)
		opts.LastSampleNumber = resultSampleNumber(r, p)
	}
	return out
}

func resultSampleNumber(r Result, packet []byte) int {
	if r.Kind == ResultSample {
		return int(r.Sample.SampleNumber)
	}
	return int(at(packet, PositionSampleNumber))
}
