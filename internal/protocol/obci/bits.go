package obci

import "math"

// at 越界读返回 0，保证定长解码函数对短输入不 panic
func at(b []byte, i int) byte {
	if i < len(b) {
		return b[i]
	}
	return 0
}

// DecodeInt16 大端 16 位有符号数（MSB 为符号位）
func DecodeInt16(b []byte) int32 {
	return int32(int16(uint16(at(b, 0))<<8 | uint16(at(b, 1))))
}

// DecodeInt24 大端 24 位有符号数（MSB 为符号位）
func DecodeInt24(b []byte) int32 {
	u := uint32(at(b, 0))<<24 | uint32(at(b, 1))<<16 | uint32(at(b, 2))<<8
	return int32(u) >> 8
}

// DecodeInt18 压缩板 18 位数：符号位在最后一个字节的 bit0，而不是 MSB
func DecodeInt18(b []byte) int32 { return decodeLSBSigned(b, 18) }

// DecodeInt19 压缩板 19 位数：符号位在最后一个字节的 bit0
func DecodeInt19(b []byte) int32 { return decodeLSBSigned(b, 19) }

func decodeLSBSigned(b []byte, bits uint) int32 {
	v := int32(uint32(at(b, 0))<<16 | uint32(at(b, 1))<<8 | uint32(at(b, 2)))
	if at(b, 2)&0x01 != 0 {
		v |= -1 << bits
	}
	return v
}

// EncodeInt24 DecodeInt24 的逆运算：value/scale 向下取整后按大端写入 3 字节。
// 不做溢出检查，只用于合成测试包。
func EncodeInt24(value, scale float64) [3]byte {
	counts := int64(math.Floor(value / scale))
	return [3]byte{byte(counts >> 16), byte(counts >> 8), byte(counts)}
}

// EncodeInt16 DecodeInt16 的逆运算（向下取整，大端）
func EncodeInt16(value, scale float64) [2]byte {
	counts := int64(math.Floor(value / scale))
	return [2]byte{byte(counts >> 8), byte(counts)}
}

// MakeStopByte 由类型码生成停止字节，类型码越界（非 0-15）按 0 处理
func MakeStopByte(typeCode int) byte {
	if typeCode < 0 || typeCode > 15 {
		typeCode = 0
	}
	return ByteStop | byte(typeCode)
}

// IsStopByte 高 4 位为 0xC 即为停止字节，与低 4 位无关
func IsStopByte(b byte) bool { return b&0xF0 == ByteStop }
