package obci

import "time"

// CheckContinuity 检查序号连续性（模 256）。
// 返回 nil 表示无丢包（含 255→0）；否则返回 previous 与 current 之间（不含两端）正向缺失的序号。
// previous == current 时返回空切片：没有缺失序号，但也不是正常递增。
func CheckContinuity(previous, current uint8) []uint8 {
	if current == previous+1 {
		return nil
	}
	if current == previous {
		return []uint8{}
	}
	missing := make([]uint8, 0, int(current-previous)-1)
	for n := previous + 1; n != current; n++ {
		missing = append(missing, n)
	}
	return missing
}

// MergeDaisy 点对点（serial）合并：lower 为奇数包（1-8 通道），upper 为偶数包（9-16 通道）。
// 序号取 upper/2，时间戳取两者平均。
func MergeDaisy(lower, upper *Sample) *DaisySample {
	d := mergeHalves(lower, upper)
	d.SampleNumber = upper.SampleNumber / 2
	d.Timestamp = midpoint(lower.Timestamp, upper.Timestamp)
	return d
}

// MergeDaisyNetworked 网络（wifi）合并：两包同号，序号与时间戳直接沿用
func MergeDaisyNetworked(lower, upper *Sample) *DaisySample {
	d := mergeHalves(lower, upper)
	d.SampleNumber = upper.SampleNumber
	d.Timestamp = lower.Timestamp
	return d
}

func mergeHalves(lower, upper *Sample) *DaisySample {
	d := &DaisySample{
		AuxData:    DaisyAux{Lower: lower.AuxData, Upper: upper.AuxData},
		Timestamps: DaisyTimestamps{Lower: lower.Timestamp, Upper: upper.Timestamp},
	}
	if lower.ChannelData != nil {
		d.ChannelData = make([]float64, 0, len(lower.ChannelData)+len(upper.ChannelData))
		d.ChannelData = append(append(d.ChannelData, lower.ChannelData...), upper.ChannelData...)
	}
	if lower.ChannelDataCounts != nil {
		d.ChannelDataCounts = make([]int32, 0, len(lower.ChannelDataCounts)+len(upper.ChannelDataCounts))
		d.ChannelDataCounts = append(append(d.ChannelDataCounts, lower.ChannelDataCounts...), upper.ChannelDataCounts...)
	}
	switch {
	case lower.AccelData != nil:
		d.AccelData = lower.AccelData
	case upper.AccelData != nil:
		d.AccelData = upper.AccelData
	}
	return d
}

// midpoint 两个时间的平均；任一为零值时取另一个
func midpoint(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	}
	return a.Add(b.Sub(a) / 2)
}

// DaisyAssembler 把 16 通道配置下相邻的两半配对合并。
// serial：奇数序号为 lower，紧随其后的偶数序号（lower+1）为 upper；
// wifi：同一序号连续出现两次，第一次为 lower。
// 不可并发使用。
type DaisyAssembler struct {
	transport Transport
	lower     *Sample
}

// NewDaisyAssembler 创建配对器，空 transport 按 serial 处理
func NewDaisyAssembler(t Transport) *DaisyAssembler {
	if t == "" {
		t = TransportSerial
	}
	return &DaisyAssembler{transport: t}
}

// Push 输入一个有效样本，凑齐一对时返回合并结果，否则返回 nil
func (a *DaisyAssembler) Push(s *Sample) *DaisySample {
	if s == nil || !s.Valid {
		return nil
	}
	if a.transport == TransportWifi {
		if a.lower != nil && a.lower.SampleNumber == s.SampleNumber {
			d := MergeDaisyNetworked(a.lower, s)
			a.lower = nil
			return d
		}
		a.lower = s
		return nil
	}

	if s.SampleNumber%2 == 1 {
		a.lower = s
		return nil
	}
	// uint8 运算，255→0 回绕时仍能配对
	if a.lower != nil && s.SampleNumber-1 == a.lower.SampleNumber {
		d := MergeDaisy(a.lower, s)
		a.lower = nil
		return d
	}
	// 孤立的 upper，丢弃已缓存的 lower
	a.lower = nil
	return nil
}

// Pending 是否有等待配对的 lower
func (a *DaisyAssembler) Pending() bool { return a.lower != nil }

// Reset 丢弃未配对的半包
func (a *DaisyAssembler) Reset() { a.lower = nil }
