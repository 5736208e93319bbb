package obci

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticSample(n uint8) *Sample {
	return &Sample{
		SampleNumber: n,
		ChannelData:  []float64{0.0001, -0.0002, 0.0003, -0.0004, 0.05, -0.06, 0, 0.187},
		AccelData:    []float64{0.5, -1.0, 1.5},
	}
}

func assertChannelsClose(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 2*gainScale(DefaultGain), "channel %d", i)
	}
}

func TestEncodeStandardAccel_RoundTrip(t *testing.T) {
	in := syntheticSample(33)
	p := EncodeStandardAccel(in)
	require.Len(t, p, PacketSize)
	assert.Equal(t, byte(ByteStart), p[0])
	assert.Equal(t, byte(0xC0), p[PositionStopByte])

	r := Decode(p, defaultOpts())
	require.Equal(t, ResultSample, r.Kind, "err: %v", r.Err)
	assert.Equal(t, uint8(33), r.Sample.SampleNumber)
	assertChannelsClose(t, in.ChannelData, r.Sample.ChannelData)
	for i := range in.AccelData {
		assert.InDelta(t, in.AccelData[i], r.Sample.AccelData[i], 2*ScaleFactorAccel)
	}
}

func TestEncodeStandardRawAux_RoundTrip(t *testing.T) {
	in := syntheticSample(1)
	in.AuxData = []byte{9, 8, 7, 6, 5, 4}
	p := EncodeStandardRawAux(in)
	assert.Equal(t, PacketStandardRawAux, PacketTypeOf(p[PositionStopByte]))

	r := Decode(p, defaultOpts())
	require.Equal(t, ResultSample, r.Kind)
	assert.Equal(t, in.AuxData, r.Sample.AuxData)
	assertChannelsClose(t, in.ChannelData, r.Sample.ChannelData)
}

func TestEncodeAccelTimeSync_RoundTrip(t *testing.T) {
	for _, enc := range []struct {
		fn  func(*Sample) []byte
		typ PacketType
	}{
		{EncodeAccelTimeSynced, PacketAccelTimeSynced},
		{EncodeAccelTimeSyncSet, PacketAccelTimeSyncSet},
	} {
		t.Run(enc.typ.String(), func(t *testing.T) {
			var carry AccelCarry
			opts := defaultOpts()
			opts.Accel = &carry
			var last *Sample
			for n := uint8(7); n <= 9; n++ {
				in := syntheticSample(n)
				bt := int32(1000 + int32(n))
				in.BoardTime = &bt
				p := enc.fn(in)
				assert.Equal(t, enc.typ, PacketTypeOf(p[PositionStopByte]))
				r := Decode(p, opts)
				require.Equal(t, ResultSample, r.Kind)
				assert.Equal(t, bt, *r.Sample.BoardTime)
				last = r.Sample
			}
			require.Len(t, last.AccelData, 3)
			want := syntheticSample(9).AccelData
			for i := range want {
				assert.InDelta(t, want[i], last.AccelData[i], 2*ScaleFactorAccel)
			}
		})
	}
}

func TestEncodeRawAuxTimeSync_RoundTrip(t *testing.T) {
	for _, enc := range []struct {
		fn  func(*Sample) []byte
		typ PacketType
	}{
		{EncodeRawAuxTimeSynced, PacketRawAuxTimeSynced},
		{EncodeRawAuxTimeSyncSet, PacketRawAuxTimeSyncSet},
	} {
		t.Run(enc.typ.String(), func(t *testing.T) {
			in := syntheticSample(4)
			in.AuxData = []byte{0xAB, 0xCD}
			bt := int32(-5)
			in.BoardTime = &bt
			p := enc.fn(in)
			assert.Equal(t, enc.typ, PacketTypeOf(p[PositionStopByte]))

			r := Decode(p, defaultOpts())
			require.Equal(t, ResultSample, r.Kind)
			assert.Equal(t, []byte{0xAB, 0xCD}, r.Sample.AuxData)
			assert.Equal(t, int32(-5), *r.Sample.BoardTime)
			assertChannelsClose(t, in.ChannelData, r.Sample.ChannelData)
		})
	}
}

func TestEncode_ShortChannelData(t *testing.T) {
	p := EncodeStandardAccel(&Sample{SampleNumber: 1, ChannelData: []float64{0.001}})
	counts := RawCounts(p, ChannelsDefault)
	assert.NotZero(t, counts[0])
	for _, c := range counts[1:] {
		assert.Zero(t, c)
	}
}
