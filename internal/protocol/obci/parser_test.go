package obci

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// samplePacket 8 通道计数为 1..8，aux 为 0,0,0,1,0,2
func samplePacket(sampleNumber uint8, typ PacketType) []byte {
	p := make([]byte, PacketSize)
	p[0] = ByteStart
	p[1] = sampleNumber
	for i := 0; i < ChannelsDefault; i++ {
		p[PositionChannelDataStart+i*3+2] = byte(i + 1)
	}
	copy(p[PositionStartAux:], []byte{0, 0, 0, 1, 0, 2})
	p[PositionStopByte] = MakeStopByte(int(typ))
	return p
}

// referenceExtract 每次命中后从 0 重新扫描
func referenceExtract(buf []byte) ([]byte, [][]byte) {
	if len(buf) < PacketSize {
		return buf, nil
	}
	work := append([]byte(nil), buf...)
	var packets [][]byte
	for p := 0; p <= len(work)-PacketSize; p++ {
		if work[p] == ByteStart && IsStopByte(work[p+PacketSize-1]) {
			packets = append(packets, append([]byte(nil), work[p:p+PacketSize]...))
			work = append(work[:p:p], work[p+PacketSize:]...)
			p = -1
		}
	}
	if len(work) == 0 {
		return nil, packets
	}
	return work, packets
}

func TestExtractPackets_Empty(t *testing.T) {
	rem, pkts := ExtractPackets(nil)
	assert.Nil(t, rem)
	assert.Empty(t, pkts)

	short := []byte{ByteStart, 1, 2}
	rem, pkts = ExtractPackets(short)
	assert.Equal(t, short, rem)
	assert.Empty(t, pkts)
}

func TestExtractPackets_Single(t *testing.T) {
	f := samplePacket(1, PacketStandardAccel)
	rem, pkts := ExtractPackets(f)
	assert.Nil(t, rem, "全部消耗时 remainder 为 nil")
	require.Len(t, pkts, 1)
	assert.Equal(t, f, pkts[0])
}

func TestExtractPackets_Interleaved(t *testing.T) {
	f0 := samplePacket(0, PacketStandardAccel)
	f1 := samplePacket(1, PacketStandardAccel)
	buf := append(append(append(append([]byte{}, f0...), 0x2C), f1...), 0x2C)

	rem, pkts := ExtractPackets(buf)
	assert.Equal(t, []byte{0x2C, 0x2C}, rem)
	require.Len(t, pkts, 2)
	assert.Equal(t, f0, pkts[0])
	assert.Equal(t, f1, pkts[1])
}

func TestExtractPackets_PartialTail(t *testing.T) {
	f0 := samplePacket(3, PacketStandardRawAux)
	f1 := samplePacket(4, PacketStandardRawAux)
	buf := append(append([]byte{}, f0...), f1[:20]...)

	rem, pkts := ExtractPackets(buf)
	require.Len(t, pkts, 1)
	assert.Equal(t, f1[:20], rem)
}

func TestExtractPackets_DoesNotMutateInput(t *testing.T) {
	f := samplePacket(9, PacketStandardAccel)
	buf := append([]byte{0x01, 0x02}, f...)
	orig := append([]byte(nil), buf...)
	_, _ = ExtractPackets(buf)
	assert.Equal(t, orig, buf)
}

// 帧中间夹了另一个帧：剔除内层帧后外层帧才闭合
func TestExtractPackets_NestedFrame(t *testing.T) {
	inner := samplePacket(7, PacketStandardAccel)
	outer := samplePacket(8, PacketStandardAccel)
	buf := make([]byte, 0, 2*PacketSize)
	buf = append(buf, outer[:10]...)
	buf = append(buf, inner...)
	buf = append(buf, outer[10:]...)

	wantRem, wantPkts := referenceExtract(buf)
	rem, pkts := ExtractPackets(buf)
	assert.Equal(t, wantRem, rem)
	if diff := cmp.Diff(wantPkts, pkts); diff != "" {
		t.Fatalf("packets mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, pkts, 2)
	assert.Equal(t, inner, pkts[0])
	assert.Equal(t, outer, pkts[1])
}

func TestExtractPackets_MatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	noise := []byte{ByteStart, 0xC0, 0xC5, 0x00, 0x2C, 0xA1, 0xFF}
	for iter := 0; iter < 500; iter++ {
		var buf []byte
		n := rng.Intn(6)
		for i := 0; i < n; i++ {
			for j := rng.Intn(40); j > 0; j-- {
				buf = append(buf, noise[rng.Intn(len(noise))])
			}
			buf = append(buf, samplePacket(uint8(rng.Intn(256)), PacketType(rng.Intn(16)))...)
		}
		for j := rng.Intn(40); j > 0; j-- {
			buf = append(buf, noise[rng.Intn(len(noise))])
		}

		wantRem, wantPkts := referenceExtract(buf)
		rem, pkts := ExtractPackets(buf)
		if !bytes.Equal(wantRem, rem) || (wantRem == nil) != (rem == nil) {
			t.Fatalf("iter %d: remainder mismatch\nwant % x\ngot  % x", iter, wantRem, rem)
		}
		if diff := cmp.Diff(wantPkts, pkts); diff != "" {
			t.Fatalf("iter %d: packets mismatch (-want +got):\n%s", iter, diff)
		}
		for _, p := range pkts {
			if p[0] != ByteStart || !IsStopByte(p[PacketSize-1]) {
				t.Fatalf("iter %d: bad frame % x", iter, p)
			}
		}
	}
}

func TestStreamDecoder_SplitChunks(t *testing.T) {
	d := NewStreamDecoder(0)
	f0 := samplePacket(1, PacketStandardAccel)
	f1 := samplePacket(2, PacketStandardAccel)
	stream := append(append([]byte{0x11}, f0...), f1...)

	var got [][]byte
	for i := 0; i < len(stream); i += 7 {
		end := i + 7
		if end > len(stream) {
			end = len(stream)
		}
		pkts, discarded := d.Feed(stream[i:end])
		assert.Zero(t, discarded)
		got = append(got, pkts...)
	}
	require.Len(t, got, 2)
	assert.Equal(t, f0, got[0])
	assert.Equal(t, f1, got[1])
	assert.Equal(t, []byte{0x11}, d.Remainder())
}

func TestStreamDecoder_BoundedBuffer(t *testing.T) {
	d := NewStreamDecoder(64)
	noise := bytes.Repeat([]byte{0x55}, 100)
	pkts, discarded := d.Feed(noise)
	assert.Empty(t, pkts)
	assert.Equal(t, 100-(PacketSize-1), discarded)
	assert.Equal(t, PacketSize-1, d.Buffered())

	// 被截断后仍能与后续数据拼出帧
	f := samplePacket(3, PacketStandardAccel)
	pkts, discarded = d.Feed(f)
	assert.Zero(t, discarded)
	require.Len(t, pkts, 1)
	assert.Equal(t, f, pkts[0])

	d.Reset()
	assert.Zero(t, d.Buffered())
	assert.Nil(t, d.Remainder())
}
