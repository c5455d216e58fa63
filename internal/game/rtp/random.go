package rtp

import (
	"crypto/rand"
	"math/big"
	mathrand "math/rand/v2"
)

// RandomGenerator 随机数生成器接口
// 显式注入，保证模拟可复现；每个控制器实例独占一个生成器
type RandomGenerator interface {
	// Next 生成下一个随机数 (0-1)
	Next() float64

	// NextInt 生成指定范围内的随机整数
	NextInt(min, max int) int

	// Seed 设置种子
	Seed(seed int64)
}

// CryptoRandomGenerator 加密安全的随机数生成器
type CryptoRandomGenerator struct{}

// NewCryptoRandomGenerator 创建加密随机数生成器
func NewCryptoRandomGenerator() *CryptoRandomGenerator {
	return &CryptoRandomGenerator{}
}

// Next 生成下一个随机数 (0-1)
func (g *CryptoRandomGenerator) Next() float64 {
	max := big.NewInt(1000000)
	n, _ := rand.Int(rand.Reader, max)
	return float64(n.Int64()) / 1000000.0
}

// NextInt 生成指定范围内的随机整数
func (g *CryptoRandomGenerator) NextInt(min, max int) int {
	if min >= max {
		return min
	}
	diff := big.NewInt(int64(max - min))
	n, _ := rand.Int(rand.Reader, diff)
	return min + int(n.Int64())
}

// Seed 设置种子（加密随机数不需要种子）
func (g *CryptoRandomGenerator) Seed(seed int64) {
}

// SeededRandomGenerator 可播种的随机数生成器
// 相同种子产生相同序列，用于可复现的模拟和测试
type SeededRandomGenerator struct {
	rng *mathrand.Rand
}

// NewSeededRandomGenerator 创建可播种随机数生成器
func NewSeededRandomGenerator(seed int64) *SeededRandomGenerator {
	g := &SeededRandomGenerator{}
	g.Seed(seed)
	return g
}

// Next 生成下一个随机数 (0-1)
func (g *SeededRandomGenerator) Next() float64 {
	return g.rng.Float64()
}

// NextInt 生成指定范围内的随机整数
func (g *SeededRandomGenerator) NextInt(min, max int) int {
	if min >= max {
		return min
	}
	return min + g.rng.IntN(max-min)
}

// Seed 设置种子（重置生成器状态）
func (g *SeededRandomGenerator) Seed(seed int64) {
	g.rng = mathrand.New(mathrand.NewPCG(uint64(seed), uint64(seed)))
}
