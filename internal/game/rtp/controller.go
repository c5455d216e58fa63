package rtp

import (
	"errors"
)

var (
	ErrInvalidRTP       = errors.New("无效的RTP设置")
	ErrInvalidReelCount = errors.New("卷轴数量必须为正")
)

// DefaultReelCount 默认卷轴数量
const DefaultReelCount = 3

// 控制器常量（线上调参结果，不要随意改动）
const (
	// 比例项固定增益
	proportionalGain = 0.15

	// 长期积分器钳位（无衰减，负责长线精确回归）
	integralMin = -20.0
	integralMax = 20.0

	// 反应积分器：衰减0.99、近期误差2倍加权，负责大偏差后的快速响应
	reactiveDecay  = 0.99
	reactiveGain   = 2.0
	reactiveMin    = -15.0
	reactiveMax    = 15.0

	// 控制信号非对称钳位：放水可以激进（+2.0），收紧必须克制（-0.9），
	// 避免玩家肉眼可见的"死机器"
	signalMin = -0.9
	signalMax = 2.0
)

// PIDConfig PID增益配置
type PIDConfig struct {
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`
}

// StepResult 单次旋转的观测结果
type StepResult struct {
	Profit       float64   `json:"profit"`        // 累计盈利
	TargetProfit float64   `json:"target_profit"` // 目标盈利轨迹
	Signal       float64   `json:"signal"`        // 钳位后的控制信号
	SampleWeight float64   `json:"sample_weight"` // 1号卷轴第一格的当前权重
	Payout       float64   `json:"payout"`        // 本次旋转赔付
	Symbols      []*Symbol `json:"symbols"`       // 各卷轴停止符号
}

// StepTrace 步进追踪信息（观察者用）
type StepTrace struct {
	Spin             int64
	TotalWagered     float64
	Profit           float64
	TargetProfit     float64
	ErrorPercent     float64
	Integral         float64
	ReactiveIntegral float64
	Signal           float64
	Payout           float64
	SampleWeight     float64
}

// Controller 闭环RTP控制器
// 持有累计投注/盈利与PID记忆，每步根据累计统计计算控制信号，
// 驱动全部卷轴重算权重后抽样。信号来自上一次旋转的结果，
// 构成一步延迟的反馈回路。
//
// 完全串行设计：单次运行内的步进必须按序执行；
// 并行跑多组模拟时每个worker独占一个Controller和一个随机源即可。
type Controller struct {
	targetRTP float64
	houseEdge float64
	config    PIDConfig

	// 累计状态
	totalWagered  float64
	currentProfit float64

	// PID状态
	prevError        float64
	integral         float64 // 长期记忆（精度）
	reactiveIntegral float64 // 短期加权记忆（响应）

	reels    []*Reel
	rng      RandomGenerator
	observer StepObserver
	spins    int64
}

// NewController 创建控制器
// reels为nil时构造默认三卷轴，rng为nil时使用加密随机源
func NewController(targetRTP float64, config PIDConfig, reels []*Reel, rng RandomGenerator) (*Controller, error) {
	if targetRTP <= 0 || targetRTP > 1 {
		return nil, ErrInvalidRTP
	}

	if reels == nil {
		reels = make([]*Reel, DefaultReelCount)
		for i := range reels {
			reels[i] = NewDefaultReel()
		}
	}
	if len(reels) == 0 {
		return nil, ErrInvalidReelCount
	}

	if rng == nil {
		rng = NewCryptoRandomGenerator()
	}

	return &Controller{
		targetRTP: targetRTP,
		houseEdge: 1.0 - targetRTP,
		config:    config,
		reels:     reels,
		rng:       rng,
		observer:  NopObserver{},
	}, nil
}

// SetObserver 设置步进观察者（nil恢复为空观察者）
func (c *Controller) SetObserver(observer StepObserver) {
	if observer == nil {
		observer = NopObserver{}
	}
	c.observer = observer
}

// CalculateStep 更新累计状态并计算PID控制信号
//
// 流程：
//  1. Turnover累加、盈利按(投注-赔付)累加
//  2. Target = HouseEdge * Turnover
//  3. Error(%) = (Profit - Target) / Turnover * 100
//  4. PID -> u，非对称钳位到[-0.9, 2.0]
func (c *Controller) CalculateStep(payout, wager float64) (profit, targetProfit, signal float64) {
	c.totalWagered += wager
	c.currentProfit += wager - payout

	// 首次调用且无投注时短路，避免除零；不触碰任何PID状态
	if c.totalWagered == 0 {
		return c.currentProfit, 0, 0
	}

	targetProfit = c.totalWagered * c.houseEdge
	errorPercent := (c.currentProfit - targetProfit) / c.totalWagered * 100.0

	// P项
	// TODO: config.Kp 未接入，比例增益沿用固定值0.15；
	// 接入会改变对外可见的信号序列，需与调参确认后再动
	pOut := proportionalGain * errorPercent

	// 双路积分：基础积分器不衰减，保证长期回归精度
	c.integral = clampFloat(c.integral+errorPercent, integralMin, integralMax)

	// 反应积分器：旧记忆按0.99衰减，近期误差2倍加权
	c.reactiveIntegral = clampFloat(c.reactiveIntegral*reactiveDecay+errorPercent*reactiveGain, reactiveMin, reactiveMax)

	iOut := c.config.Ki * (c.integral + c.reactiveIntegral)

	// D项
	dOut := c.config.Kd * (errorPercent - c.prevError)
	c.prevError = errorPercent

	u := pOut + iOut + dOut
	signal = clampFloat(u, signalMin, signalMax)

	return c.currentProfit, targetProfit, signal
}

// ResolveSpin 依次旋转全部卷轴并结算赔付
// 所有卷轴停在同一符号ID时赔付 bet * 倍率，否则赔付为0
func (c *Controller) ResolveSpin(betAmount float64) (payout float64, symbols []*Symbol) {
	symbols = make([]*Symbol, len(c.reels))
	for i, reel := range c.reels {
		symbols[i] = reel.Spin(c.rng)
	}

	aligned := true
	for _, s := range symbols[1:] {
		if s.ID != symbols[0].ID {
			aligned = false
			break
		}
	}
	if aligned {
		payout = betAmount * symbols[0].PayoutMultiplier
	}
	return payout, symbols
}

// StepSpin 执行一个模拟时间单位的完整步进
//
// 顺序是有语义的：先以(0, bet)折入本次投注并取信号（本次赔付尚未知），
// 再用该信号重算卷轴权重并旋转，最后把实际赔付直接从盈利中扣除。
// 因此驱动第i次旋转的信号由第i-1次旋转的结果计算得出。
func (c *Controller) StepSpin(betAmount float64) StepResult {
	profit, targetProfit, signal := c.CalculateStep(0, betAmount)

	for _, reel := range c.reels {
		reel.AdjustWeights(signal)
	}

	payout, symbols := c.ResolveSpin(betAmount)

	// 投注已在CalculateStep折入，这里只扣赔付
	c.currentProfit -= payout
	profit = c.currentProfit

	c.spins++
	sampleWeight := c.reels[0].SampleWeight()

	c.observer.OnStep(StepTrace{
		Spin:             c.spins,
		TotalWagered:     c.totalWagered,
		Profit:           profit,
		TargetProfit:     targetProfit,
		ErrorPercent:     c.prevError,
		Integral:         c.integral,
		ReactiveIntegral: c.reactiveIntegral,
		Signal:           signal,
		Payout:           payout,
		SampleWeight:     sampleWeight,
	})

	return StepResult{
		Profit:       profit,
		TargetProfit: targetProfit,
		Signal:       signal,
		SampleWeight: sampleWeight,
		Payout:       payout,
		Symbols:      symbols,
	}
}

// SetState 直接设定累计状态
// 供模拟场景播种使用，例如在t=0注入一次巨额中奖形成的亏空
func (c *Controller) SetState(totalWagered, currentProfit float64) {
	c.totalWagered = totalWagered
	c.currentProfit = currentProfit
}

// ApplyExternalPayout 记入一笔外部强制赔付（不经过卷轴抽样）
func (c *Controller) ApplyExternalPayout(amount float64) {
	c.currentProfit -= amount
}

// TargetRTP 目标RTP
func (c *Controller) TargetRTP() float64 {
	return c.targetRTP
}

// HouseEdge 庄家优势（1 - 目标RTP）
func (c *Controller) HouseEdge() float64 {
	return c.houseEdge
}

// TotalWagered 累计投注
func (c *Controller) TotalWagered() float64 {
	return c.totalWagered
}

// CurrentProfit 累计盈利
func (c *Controller) CurrentProfit() float64 {
	return c.currentProfit
}

// SpinCount 已执行的旋转次数
func (c *Controller) SpinCount() int64 {
	return c.spins
}

// ActualRTP 实际RTP（累计赔付/累计投注）
func (c *Controller) ActualRTP() float64 {
	if c.totalWagered == 0 {
		return 0
	}
	return (c.totalWagered - c.currentProfit) / c.totalWagered
}

// Reels 获取卷轴列表
func (c *Controller) Reels() []*Reel {
	return c.reels
}

// clampFloat 区间钳位
func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
