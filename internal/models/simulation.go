package models

import (
	"time"
)

// 模拟运行状态
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// 模拟运行模式
const (
	RunModeFixed    = "fixed"    // 固定下注
	RunModeChaos    = "chaos"    // 随机下注
	RunModeRecovery = "recovery" // 跑到盈利回到目标轨迹为止
)

// SimulationRun 模拟运行记录表
type SimulationRun struct {
	BaseModel
	RunID     string  `gorm:"uniqueIndex;size:64;not null" json:"run_id"`
	Mode      string  `gorm:"size:20;not null" json:"mode"`
	Status    string  `gorm:"size:20;default:'running'" json:"status"`
	TargetRTP float64 `gorm:"not null" json:"target_rtp"`
	Kp        float64 `json:"kp"`
	Ki        float64 `json:"ki"`
	Kd        float64 `json:"kd"`

	// 下注参数
	BetSize     float64 `json:"bet_size"`
	ChaosMinBet float64 `json:"chaos_min_bet"`
	ChaosMaxBet float64 `json:"chaos_max_bet"`
	MaxSpins    int     `json:"max_spins"`
	Seed        int64   `json:"seed"`

	// 黑天鹅参数
	BlackSwanEnabled    bool    `json:"black_swan_enabled"`
	BlackSwanMultiplier float64 `json:"black_swan_multiplier"`
	BlackSwanHits       int     `json:"black_swan_hits"`
	BlackSwanInterval   int     `json:"black_swan_interval"`

	// 运行结果
	SpinsExecuted     int     `json:"spins_executed"`
	TotalWagered      float64 `json:"total_wagered"`
	TotalPayout       float64 `json:"total_payout"`
	FinalProfit       float64 `json:"final_profit"`
	FinalTargetProfit float64 `json:"final_target_profit"`
	FinalSignal       float64 `json:"final_signal"`
	ActualRTP         float64 `json:"actual_rtp"`
	Recovered         bool    `json:"recovered"`
	FailReason        string  `gorm:"size:255" json:"fail_reason,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// 关联
	Snapshots []SpinSnapshot `gorm:"foreignKey:RunID;references:RunID" json:"snapshots,omitempty"`
}

// IsFinished 运行是否已结束
func (r *SimulationRun) IsFinished() bool {
	return r.Status != RunStatusRunning
}

// SpinSnapshot 旋转采样快照表
// 按固定间隔记录控制回路的可观测量，供离线分析RTP收敛曲线
type SpinSnapshot struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RunID        string    `gorm:"index;size:64;not null" json:"run_id"`
	SpinIndex    int       `gorm:"not null" json:"spin_index"`
	TotalWagered float64   `json:"total_wagered"`
	Profit       float64   `json:"profit"`
	TargetProfit float64   `json:"target_profit"`
	Signal       float64   `json:"signal"`
	SampleWeight float64   `json:"sample_weight"`
	ActualRTP    float64   `json:"actual_rtp"`
	CreatedAt    time.Time `json:"created_at"`
}
