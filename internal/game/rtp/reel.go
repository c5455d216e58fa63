package rtp

import (
	"errors"
	"sort"
)

var (
	ErrEmptyStrip           = errors.New("卷轴条不能为空")
	ErrWeightLengthMismatch = errors.New("权重向量与卷轴条长度不一致")
	ErrNegativeWeight       = errors.New("基准权重不能为负")
)

// minWeightMultiplier 权重调整系数下限
// 保证任何符号的权重不会被压到0，分布不退化，下游也不会除零
const minWeightMultiplier = 0.01

// Reel 单个卷轴
// strip为物理符号条（允许重复），baseWeights构造后不再变化，
// currentWeights每次调整都从baseWeights整体重算，不做增量累乘
type Reel struct {
	strip          []*Symbol
	baseWeights    []float64
	currentWeights []float64
	cumulative     []float64 // 抽样用的前缀和，Spin时重建
}

// NewReel 创建卷轴
func NewReel(strip []*Symbol, baseWeights []float64) (*Reel, error) {
	if len(strip) == 0 {
		return nil, ErrEmptyStrip
	}
	if len(strip) != len(baseWeights) {
		return nil, ErrWeightLengthMismatch
	}
	for _, w := range baseWeights {
		if w < 0 {
			return nil, ErrNegativeWeight
		}
	}

	base := make([]float64, len(baseWeights))
	copy(base, baseWeights)
	current := make([]float64, len(baseWeights))
	copy(current, baseWeights)

	return &Reel{
		strip:          strip,
		baseWeights:    base,
		currentWeights: current,
		cumulative:     make([]float64, len(baseWeights)),
	}, nil
}

// NewDefaultReel 按默认卷轴条创建卷轴
func NewDefaultReel() *Reel {
	strip := DefaultStrip()
	reel, _ := NewReel(strip, DefaultBaseWeights(len(strip)))
	return reel
}

// AdjustWeights 根据控制信号重算当前权重
// 中奖符号随信号同向调整，Miss符号反向调整：正信号放水、负信号收紧。
// 始终基于baseWeights重算，避免偏移在多步间复利累积。
func (r *Reel) AdjustWeights(signal float64) {
	for i, symbol := range r.strip {
		direction := -1.0
		if symbol.IsWin() {
			direction = 1.0
		}

		multiplier := 1.0 + signal*direction
		if multiplier < minWeightMultiplier {
			multiplier = minWeightMultiplier
		}

		r.currentWeights[i] = r.baseWeights[i] * multiplier
	}
}

// Spin 按当前权重抽取一个符号
// 权重和非正时退化为确定性返回第一格
func (r *Reel) Spin(rng RandomGenerator) *Symbol {
	total := 0.0
	for i, w := range r.currentWeights {
		total += w
		r.cumulative[i] = total
	}
	if total <= 0 {
		return r.strip[0]
	}

	target := rng.Next() * total
	index := sort.SearchFloat64s(r.cumulative, target)
	if index >= len(r.strip) {
		index = len(r.strip) - 1
	}
	return r.strip[index]
}

// Strip 获取符号条
func (r *Reel) Strip() []*Symbol {
	return r.strip
}

// BaseWeights 获取基准权重副本
func (r *Reel) BaseWeights() []float64 {
	out := make([]float64, len(r.baseWeights))
	copy(out, r.baseWeights)
	return out
}

// CurrentWeights 获取当前权重副本
func (r *Reel) CurrentWeights() []float64 {
	out := make([]float64, len(r.currentWeights))
	copy(out, r.currentWeights)
	return out
}

// SampleWeight 获取第一格的当前权重（观测用）
func (r *Reel) SampleWeight() float64 {
	return r.currentWeights[0]
}
