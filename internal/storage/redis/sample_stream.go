package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/taoyao-code/obci-gateway/internal/protocol/obci"
)

// streamAdder SampleStream 只依赖 XADD，便于测试替换
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// SampleStream 把解码后的样本写入 Redis Stream（每条数据流一个 key）。
// 字段：kind=sample|daisy|gap，n=序号，ts=毫秒时间戳，data=JSON 负载
type SampleStream struct {
	rdb    streamAdder
	prefix string
	maxLen int64
}

// NewSampleStream maxLen>0 时按近似长度裁剪
func NewSampleStream(rdb streamAdder, prefix string, maxLen int64) *SampleStream {
	return &SampleStream{rdb: rdb, prefix: prefix, maxLen: maxLen}
}

// Key 数据流对应的 stream key
func (s *SampleStream) Key(streamID string) string { return s.prefix + streamID }

type samplePayload struct {
	Type        string    `json:"type,omitempty"`
	Channels    []float64 `json:"channels,omitempty"`
	Counts      []int32   `json:"counts,omitempty"`
	Accel       []float64 `json:"accel,omitempty"`
	Aux         []int     `json:"aux,omitempty"`
	AuxUpper    []int     `json:"aux_upper,omitempty"`
	BoardTimeMs *int32    `json:"board_time_ms,omitempty"`
}

type gapPayload struct {
	Previous uint8 `json:"previous"`
	Current  uint8 `json:"current"`
	Missing  []int `json:"missing"`
}

// ints 避免 []byte 被 JSON 编码为 base64
func ints(b []byte) []int {
	if b == nil {
		return nil
	}
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

func (s *SampleStream) add(ctx context.Context, streamID, kind string, n int, tsMs int64, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	args := &redis.XAddArgs{
		Stream: s.Key(streamID),
		Values: map[string]any{
			"kind": kind,
			"n":    strconv.Itoa(n),
			"ts":   strconv.FormatInt(tsMs, 10),
			"data": string(data),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", args.Stream, err)
	}
	return nil
}

// PublishSample 写入单个样本
func (s *SampleStream) PublishSample(ctx context.Context, streamID string, smp *obci.Sample) error {
	var ts int64
	if !smp.Timestamp.IsZero() {
		ts = smp.Timestamp.UnixMilli()
	}
	return s.add(ctx, streamID, "sample", int(smp.SampleNumber), ts, samplePayload{
		Type:        smp.Type().String(),
		Channels:    smp.ChannelData,
		Counts:      smp.ChannelDataCounts,
		Accel:       smp.AccelData,
		Aux:         ints(smp.AuxData),
		BoardTimeMs: smp.BoardTime,
	})
}

// PublishDaisy 写入 16 通道合并样本
func (s *SampleStream) PublishDaisy(ctx context.Context, streamID string, d *obci.DaisySample) error {
	var ts int64
	if !d.Timestamp.IsZero() {
		ts = d.Timestamp.UnixMilli()
	}
	return s.add(ctx, streamID, "daisy", int(d.SampleNumber), ts, samplePayload{
		Channels: d.ChannelData,
		Counts:   d.ChannelDataCounts,
		Accel:    d.AccelData,
		Aux:      ints(d.AuxData.Lower),
		AuxUpper: ints(d.AuxData.Upper),
	})
}

// RecordGap 写入一次丢包事件
func (s *SampleStream) RecordGap(ctx context.Context, streamID string, g obci.Gap) error {
	return s.add(ctx, streamID, "gap", int(g.Current), 0, gapPayload{
		Previous: g.Previous,
		Current:  g.Current,
		Missing:  ints(g.Missing),
	})
}
