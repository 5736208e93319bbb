package obci

// ExtractPackets 从字节流中取出所有 33 字节帧。
// 命中条件：当前字节为 0xA0 且其后第 32 字节满足 IsStopByte；命中后把该窗口从工作缓冲中剔除再继续扫描，
// 因此夹在帧之间的杂字节会按原顺序留在 remainder 中。
// 不足一帧时原样返回；全部消耗时 remainder 为 nil（区别于“数据还不够”）。
// 入参 buf 不会被修改。
func ExtractPackets(buf []byte) (remainder []byte, packets [][]byte) {
	if len(buf) < PacketSize {
		return buf, nil
	}

	work := make([]byte, len(buf))
	copy(work, buf)

	p := 0
	for p <= len(work)-PacketSize {
		if work[p] != ByteStart || !IsStopByte(work[p+PacketSize-1]) {
			p++
			continue
		}
		pkt := make([]byte, PacketSize)
		copy(pkt, work[p:p+PacketSize])
		packets = append(packets, pkt)
		work = append(work[:p], work[p+PacketSize:]...)

		// 剔除只影响 p 之前 32 字节内位置的判定结果，更早的位置无需重扫
		p -= PacketSize - 1
		if p < 0 {
			p = 0
		}
	}

	if len(work) == 0 {
		return nil, packets
	}
	if len(packets) == 0 {
		return buf, nil
	}
	return work, packets
}

// DefaultMaxBuffer StreamDecoder 缓冲上限
const DefaultMaxBuffer = 4096

// StreamDecoder 处理半包/粘包的流式解码器，保存上一次的 remainder
type StreamDecoder struct {
	buf       []byte
	maxBuffer int // 保护上限，避免持续无帧的噪声占用过多内存
}

// NewStreamDecoder 创建流式解码器
func NewStreamDecoder(maxBuffer int) *StreamDecoder {
	if maxBuffer < PacketSize {
		maxBuffer = DefaultMaxBuffer
	}
	return &StreamDecoder{maxBuffer: maxBuffer}
}

// Feed 追加数据并尽可能解出多帧；discarded 为因超出上限被丢弃的字节数
func (d *StreamDecoder) Feed(p []byte) (packets [][]byte, discarded int) {
	if len(p) == 0 {
		return nil, 0
	}
	d.buf = append(d.buf, p...)
	rem, packets := ExtractPackets(d.buf)
	if rem == nil {
		d.buf = d.buf[:0]
		return packets, 0
	}
	if len(rem) > d.maxBuffer {
		// 只保留最后 32 字节，足以与下一块拼出跨边界的帧
		keep := PacketSize - 1
		discarded = len(rem) - keep
		rem = rem[len(rem)-keep:]
	}
	if len(packets) > 0 || discarded > 0 {
		d.buf = append(d.buf[:0], rem...)
	}
	return packets, discarded
}

// Buffered 当前缓存的未消耗字节数
func (d *StreamDecoder) Buffered() int { return len(d.buf) }

// Remainder 返回未消耗字节的副本
func (d *StreamDecoder) Remainder() []byte {
	if len(d.buf) == 0 {
		return nil
	}
	out := make([]byte, len(d.buf))
	copy(out, d.buf)
	return out
}

// Reset 清空缓冲
func (d *StreamDecoder) Reset() { d.buf = d.buf[:0] }
