package obci

import "encoding/binary"

// 合成包编码，只用于测试与回放。通道按默认增益 24 量化，向下取整。

var defaultChannelScale = gainScale(DefaultGain)

func newPacket(sampleNumber uint8, channels []float64, t PacketType) []byte {
	buf := make([]byte, PacketSize)
	buf[0] = ByteStart
	buf[PositionSampleNumber] = sampleNumber
	for i := 0; i < ChannelsDefault; i++ {
		var v float64
		if i < len(channels) {
			v = channels[i]
		}
		enc := EncodeInt24(v, defaultChannelScale)
		copy(buf[PositionChannelDataStart+i*BytesPerChannel:], enc[:])
	}
	buf[PositionStopByte] = MakeStopByte(int(t))
	return buf
}

// EncodeStandardAccel 由样本生成标准加速度包；AccelData 不足 3 轴的部分写 0
func EncodeStandardAccel(s *Sample) []byte {
	buf := newPacket(s.SampleNumber, s.ChannelData, PacketStandardAccel)
	for i := 0; i < AccelAxisCount && i < len(s.AccelData); i++ {
		enc := EncodeInt16(s.AccelData[i], ScaleFactorAccel)
		copy(buf[PositionStartAux+i*AccelByteSize:], enc[:])
	}
	return buf
}

// EncodeStandardRawAux 由样本生成标准 raw aux 包，AuxData 最多写 6 字节
func EncodeStandardRawAux(s *Sample) []byte {
	buf := newPacket(s.SampleNumber, s.ChannelData, PacketStandardRawAux)
	copy(buf[PositionStartAux:PositionStopAux+1], s.AuxData)
	return buf
}

func putBoardTime(buf []byte, s *Sample) {
	var t int32
	if s.BoardTime != nil {
		t = *s.BoardTime
	}
	binary.BigEndian.PutUint32(buf[PositionTimeStart:], uint32(t))
}

// EncodeAccelTimeSynced 时间同步加速度包；若 AccelData 完整，写入 sampleNumber%10 对应的轴
func EncodeAccelTimeSynced(s *Sample) []byte {
	return encodeAccelTimeSync(s, PacketAccelTimeSynced)
}

// EncodeAccelTimeSyncSet 同 EncodeAccelTimeSynced，类型码为 sync set
func EncodeAccelTimeSyncSet(s *Sample) []byte {
	return encodeAccelTimeSync(s, PacketAccelTimeSyncSet)
}

func encodeAccelTimeSync(s *Sample, t PacketType) []byte {
	buf := newPacket(s.SampleNumber, s.ChannelData, t)
	if len(s.AccelData) == AccelAxisCount {
		axis := -1
		switch s.SampleNumber % 10 {
		case AccelAxisX:
			axis = 0
		case AccelAxisY:
			axis = 1
		case AccelAxisZ:
			axis = 2
		}
		if axis >= 0 {
			enc := EncodeInt16(s.AccelData[axis], ScaleFactorAccel)
			copy(buf[PositionTimeSyncAuxStart:PositionTimeSyncAuxStop], enc[:])
		}
	}
	putBoardTime(buf, s)
	return buf
}

// EncodeRawAuxTimeSynced 时间同步 raw aux 包，AuxData 最多写 2 字节
func EncodeRawAuxTimeSynced(s *Sample) []byte {
	return encodeRawAuxTimeSync(s, PacketRawAuxTimeSynced)
}

// EncodeRawAuxTimeSyncSet 同 EncodeRawAuxTimeSynced，类型码为 sync set
func EncodeRawAuxTimeSyncSet(s *Sample) []byte {
	return encodeRawAuxTimeSync(s, PacketRawAuxTimeSyncSet)
}

func encodeRawAuxTimeSync(s *Sample, t PacketType) []byte {
	buf := newPacket(s.SampleNumber, s.ChannelData, t)
	copy(buf[PositionTimeSyncAuxStart:PositionTimeSyncAuxStop], s.AuxData)
	putBoardTime(buf, s)
	return buf
}
