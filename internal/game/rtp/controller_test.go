package rtp

import (
	"math"
	"testing"
)

var testGains = PIDConfig{Kp: 0.8, Ki: 0.015, Kd: 0.15}

func TestNewController(t *testing.T) {
	tests := []struct {
		name      string
		targetRTP float64
		wantErr   bool
	}{
		{"有效RTP", 0.95, false},
		{"RTP上界", 1.0, false},
		{"RTP为零", 0, true},
		{"RTP为负", -0.5, true},
		{"RTP超过1", 1.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewController(tt.targetRTP, testGains, nil, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewController() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && c == nil {
				t.Error("NewController() returned nil controller")
			}
		})
	}
}

func TestController_HouseEdge(t *testing.T) {
	for _, targetRTP := range []float64{0.5, 0.85, 0.9, 0.95, 0.97, 1.0} {
		c, err := NewController(targetRTP, testGains, nil, nil)
		if err != nil {
			t.Fatalf("NewController(%v) error = %v", targetRTP, err)
		}
		if c.HouseEdge() != 1.0-targetRTP {
			t.Errorf("HouseEdge() = %v, 期望 %v", c.HouseEdge(), 1.0-targetRTP)
		}
	}
}

func TestController_CalculateStep_FirstCallZeroWager(t *testing.T) {
	c, _ := NewController(0.95, testGains, nil, nil)

	profit, target, signal := c.CalculateStep(0, 0)

	if profit != 0 || target != 0 || signal != 0 {
		t.Errorf("首次零投注步进 = (%v, %v, %v), 期望 (0, 0, 0)", profit, target, signal)
	}
	// PID状态不应被触碰
	if c.prevError != 0 || c.integral != 0 || c.reactiveIntegral != 0 {
		t.Errorf("短路返回后PID状态被修改: prev=%v i=%v ri=%v", c.prevError, c.integral, c.reactiveIntegral)
	}
}

func TestController_CalculateStep_Schedule(t *testing.T) {
	// 目标RTP 0.95，连续5步投注10、赔付0
	c, _ := NewController(0.95, testGains, nil, nil)

	var profit, target, signal float64
	for i := 0; i < 5; i++ {
		profit, target, signal = c.CalculateStep(0, 10)
	}

	if c.TotalWagered() != 50 {
		t.Errorf("TotalWagered() = %v, 期望 50", c.TotalWagered())
	}
	if profit != 50 {
		t.Errorf("profit = %v, 期望 50", profit)
	}
	if math.Abs(target-2.5) > 1e-9 {
		t.Errorf("targetProfit = %v, 期望 2.5", target)
	}
	// Error(%) = (50-2.5)/50*100 = 95
	if math.Abs(c.prevError-95.0) > 1e-9 {
		t.Errorf("errorPercent = %v, 期望 95.0", c.prevError)
	}
	// 误差95%时信号必然顶到上钳位
	if signal != signalMax {
		t.Errorf("signal = %v, 期望钳位值 %v", signal, signalMax)
	}
}

func TestController_CalculateStep_BlackSwan(t *testing.T) {
	// 播种一次巨额中奖形成的亏空：投注100、盈利-400
	c, _ := NewController(0.95, PIDConfig{Ki: 0.015, Kd: 0.15}, nil, nil)
	c.SetState(100, -400)

	_, _, signal := c.CalculateStep(0, 1)

	// 误差约-400%，控制器必须立刻收紧；收紧侧钳位在-0.9，
	// 防止出现肉眼可见的"死机器"
	if signal != signalMin {
		t.Errorf("大奖后首步 signal = %v, 期望收紧钳位 %v", signal, signalMin)
	}
	if c.integral != integralMin {
		t.Errorf("integral = %v, 期望钳位值 %v", c.integral, integralMin)
	}
	if c.reactiveIntegral != reactiveMin {
		t.Errorf("reactiveIntegral = %v, 期望钳位值 %v", c.reactiveIntegral, reactiveMin)
	}
}

func TestController_CalculateStep_ClampBounds(t *testing.T) {
	c, _ := NewController(0.95, testGains, nil, nil)

	// 极端交替的投注/赔付序列下，各级累计器永不越界
	for i := 0; i < 2000; i++ {
		wager := 100.0
		payout := 0.0
		switch i % 4 {
		case 1:
			payout = 50000
		case 3:
			payout = 0.5
		}
		_, _, signal := c.CalculateStep(payout, wager)

		if c.integral < integralMin || c.integral > integralMax {
			t.Fatalf("步%d: integral %v 越界", i, c.integral)
		}
		if c.reactiveIntegral < reactiveMin || c.reactiveIntegral > reactiveMax {
			t.Fatalf("步%d: reactiveIntegral %v 越界", i, c.reactiveIntegral)
		}
		if signal < signalMin || signal > signalMax {
			t.Fatalf("步%d: signal %v 越界", i, signal)
		}
	}
}

func TestController_StepSpin_FirstStepLoosens(t *testing.T) {
	c, _ := NewController(0.95, testGains, nil, NewSeededRandomGenerator(7))

	result := c.StepSpin(1.0)

	// 首步赔付未知，投注全额计入盈利，误差95% -> 信号顶到+2.0
	if result.Signal != signalMax {
		t.Errorf("首步 signal = %v, 期望 %v", result.Signal, signalMax)
	}
	if len(result.Symbols) != DefaultReelCount {
		t.Errorf("符号数量 = %d, 期望 %d", len(result.Symbols), DefaultReelCount)
	}
	// 盈利 = 投注 - 赔付
	if result.Profit != 1.0-result.Payout {
		t.Errorf("profit = %v, 期望 %v", result.Profit, 1.0-result.Payout)
	}
}

func TestController_StepSpin_Determinism(t *testing.T) {
	newController := func() *Controller {
		c, err := NewController(0.95, testGains, nil, NewSeededRandomGenerator(42))
		if err != nil {
			t.Fatalf("NewController() error = %v", err)
		}
		return c
	}

	a := newController()
	b := newController()

	for i := 0; i < 300; i++ {
		ra := a.StepSpin(2.5)
		rb := b.StepSpin(2.5)

		if ra.Profit != rb.Profit || ra.TargetProfit != rb.TargetProfit ||
			ra.Signal != rb.Signal || ra.SampleWeight != rb.SampleWeight ||
			ra.Payout != rb.Payout {
			t.Fatalf("步%d: 相同种子输出不一致: %+v vs %+v", i, ra, rb)
		}
		for j := range ra.Symbols {
			if ra.Symbols[j].ID != rb.Symbols[j].ID {
				t.Fatalf("步%d: 卷轴%d符号不一致", i, j)
			}
		}
	}
}

func TestController_StepSpin_ObserverTrace(t *testing.T) {
	c, _ := NewController(0.95, testGains, nil, NewSeededRandomGenerator(9))

	var traces []StepTrace
	c.SetObserver(FuncObserver(func(trace StepTrace) {
		traces = append(traces, trace)
	}))

	for i := 0; i < 10; i++ {
		c.StepSpin(1.0)
	}

	if len(traces) != 10 {
		t.Fatalf("观察者回调次数 = %d, 期望 10", len(traces))
	}
	for i, trace := range traces {
		if trace.Spin != int64(i+1) {
			t.Errorf("第%d条追踪 Spin = %d, 期望 %d", i, trace.Spin, i+1)
		}
		if trace.Signal < signalMin || trace.Signal > signalMax {
			t.Errorf("第%d条追踪 signal %v 越界", i, trace.Signal)
		}
	}
}

func TestController_ResolveSpin_Alignment(t *testing.T) {
	// 单格卷轴强制三轴对齐
	strip := []*Symbol{SymbolBar}
	weights := []float64{10}
	reels := make([]*Reel, 3)
	for i := range reels {
		reel, err := NewReel(strip, weights)
		if err != nil {
			t.Fatalf("NewReel() error = %v", err)
		}
		reels[i] = reel
	}

	c, _ := NewController(0.95, testGains, reels, NewSeededRandomGenerator(1))

	payout, symbols := c.ResolveSpin(5.0)
	if payout != 5.0*SymbolBar.PayoutMultiplier {
		t.Errorf("对齐赔付 = %v, 期望 %v", payout, 5.0*SymbolBar.PayoutMultiplier)
	}
	for _, s := range symbols {
		if s.ID != SymbolBar.ID {
			t.Errorf("符号 = %v, 期望 %v", s.Name, SymbolBar.Name)
		}
	}
}

func TestController_SetState(t *testing.T) {
	c, _ := NewController(0.95, testGains, nil, nil)

	c.SetState(1000, -250)

	if c.TotalWagered() != 1000 {
		t.Errorf("TotalWagered() = %v, 期望 1000", c.TotalWagered())
	}
	if c.CurrentProfit() != -250 {
		t.Errorf("CurrentProfit() = %v, 期望 -250", c.CurrentProfit())
	}
	// RTP = (1000-(-250))/1000 = 1.25
	if math.Abs(c.ActualRTP()-1.25) > 1e-9 {
		t.Errorf("ActualRTP() = %v, 期望 1.25", c.ActualRTP())
	}

	c.ApplyExternalPayout(50)
	if c.CurrentProfit() != -300 {
		t.Errorf("ApplyExternalPayout后 CurrentProfit() = %v, 期望 -300", c.CurrentProfit())
	}
}

func TestController_LongRunConvergence(t *testing.T) {
	// 足够长的运行后实际RTP应落在目标附近
	c, _ := NewController(0.95, PIDConfig{Ki: 0.015, Kd: 0.15}, nil, NewSeededRandomGenerator(2024))

	for i := 0; i < 50000; i++ {
		c.StepSpin(1.0)
	}

	actual := c.ActualRTP()
	if math.Abs(actual-0.95) > 0.05 {
		t.Errorf("长期实际RTP = %v, 偏离目标0.95超过±0.05", actual)
	}
}
