package rtp

// Symbol 卷轴符号（构造后不可变）
// 对齐判定按 ID 进行，PayoutMultiplier 为 0 表示不中奖符号
type Symbol struct {
	ID               int     `json:"id"`
	Name             string  `json:"name"`
	PayoutMultiplier float64 `json:"payout_multiplier"`
}

// IsWin 是否为中奖符号
func (s *Symbol) IsWin() bool {
	return s.PayoutMultiplier > 0
}

// 默认符号表（赔率接近目标RTP的演示配置）
var (
	SymbolMiss    = &Symbol{ID: 0, Name: "Miss", PayoutMultiplier: 0.0}
	SymbolLemon   = &Symbol{ID: 1, Name: "Lemon", PayoutMultiplier: 2.0}    // 中等奖
	SymbolBar     = &Symbol{ID: 2, Name: "Bar", PayoutMultiplier: 10.0}     // 大奖
	SymbolSeven   = &Symbol{ID: 3, Name: "777", PayoutMultiplier: 40.0}
	SymbolJackpot = &Symbol{ID: 4, Name: "Jackpot", PayoutMultiplier: 200.0}
)

// defaultBaseWeight 默认基准权重
const defaultBaseWeight = 10.0

// DefaultStrip 默认卷轴条（自然RTP约92%）
// 重复次数编码各符号的相对基础概率：1格Miss、15格Lemon、4格Bar
func DefaultStrip() []*Symbol {
	strip := make([]*Symbol, 0, 20)
	strip = append(strip, SymbolMiss)
	for i := 0; i < 15; i++ {
		strip = append(strip, SymbolLemon)
	}
	for i := 0; i < 4; i++ {
		strip = append(strip, SymbolBar)
	}
	return strip
}

// DefaultBaseWeights 默认基准权重向量（每格等权）
func DefaultBaseWeights(n int) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = defaultBaseWeight
	}
	return weights
}
