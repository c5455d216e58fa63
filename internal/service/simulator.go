package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/wfunc/rtp-engine/internal/errors"
	"github.com/wfunc/rtp-engine/internal/game/rtp"
	"github.com/wfunc/rtp-engine/internal/models"
	"github.com/wfunc/rtp-engine/internal/repository"
	"github.com/wfunc/rtp-engine/internal/websocket"
	"go.uber.org/zap"
)

// RunRequest 一次模拟运行的请求参数
type RunRequest struct {
	Mode           string  `json:"mode" binding:"required"`
	TargetRTP      float64 `json:"target_rtp"`
	Ki             float64 `json:"ki"`
	Kd             float64 `json:"kd"`
	MaxSpins       int     `json:"max_spins"`
	BetSize        float64 `json:"bet_size"`
	ChaosMinBet    float64 `json:"chaos_min_bet"`
	ChaosMaxBet    float64 `json:"chaos_max_bet"`
	SampleInterval int     `json:"sample_interval"`
	Seed           int64   `json:"seed"`

	// 黑天鹅事件：模拟罕见巨额中奖对控制回路的冲击
	BlackSwanEnabled    bool    `json:"black_swan_enabled"`
	BlackSwanMultiplier float64 `json:"black_swan_multiplier"`
	BlackSwanHits       int     `json:"black_swan_hits"`
	BlackSwanInterval   int     `json:"black_swan_interval"`
}

// RunProgress 运行进度（广播/快照共用）
type RunProgress struct {
	RunID        string  `json:"run_id"`
	SpinIndex    int     `json:"spin_index"`
	TotalWagered float64 `json:"total_wagered"`
	Profit       float64 `json:"profit"`
	TargetProfit float64 `json:"target_profit"`
	Signal       float64 `json:"signal"`
	SampleWeight float64 `json:"sample_weight"`
	ActualRTP    float64 `json:"actual_rtp"`
}

// Simulator 模拟运行服务
// 每次运行独占一个控制器和一个随机源，多次运行可以并行
type Simulator struct {
	optsMu sync.RWMutex
	opts   SimulatorOptions

	runRepo      repository.SimulationRunRepository
	snapshotRepo repository.SpinSnapshotRepository
	hub          *websocket.Hub
	logger       *zap.Logger
}

// SimulatorOptions 模拟服务构造参数
type SimulatorOptions struct {
	TargetRTP float64
	Gains     rtp.PIDConfig
	ReelCount int
	MinBet    float64
	MaxBet    float64
}

// NewSimulator 创建模拟服务
// hub为nil时不做进度广播
func NewSimulator(opts SimulatorOptions, runRepo repository.SimulationRunRepository, snapshotRepo repository.SpinSnapshotRepository, hub *websocket.Hub, logger *zap.Logger) *Simulator {
	return &Simulator{
		opts:         opts,
		runRepo:      runRepo,
		snapshotRepo: snapshotRepo,
		hub:          hub,
		logger:       logger,
	}
}

// UpdateOptions 更新引擎参数，只影响之后启动的运行
func (s *Simulator) UpdateOptions(opts SimulatorOptions) {
	s.optsMu.Lock()
	s.opts = opts
	s.optsMu.Unlock()
}

// options 读取当前引擎参数快照
func (s *Simulator) options() SimulatorOptions {
	s.optsMu.RLock()
	defer s.optsMu.RUnlock()
	return s.opts
}

// StartRun 异步启动一次模拟运行
func (s *Simulator) StartRun(ctx context.Context, req *RunRequest) (*models.SimulationRun, error) {
	run, err := s.prepareRun(ctx, req)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := s.execute(context.Background(), run, req); err != nil {
			s.logger.Error("模拟运行失败",
				zap.String("run_id", run.RunID),
				zap.Error(err),
			)
		}
	}()

	return run, nil
}

// Execute 同步执行一次模拟运行（批处理入口使用）
func (s *Simulator) Execute(ctx context.Context, req *RunRequest) (*models.SimulationRun, error) {
	run, err := s.prepareRun(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.execute(ctx, run, req); err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun 查询运行记录
func (s *Simulator) GetRun(ctx context.Context, runID string) (*models.SimulationRun, error) {
	run, err := s.runRepo.FindByRunID(ctx, runID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrRunNotFound, runID)
	}
	return run, nil
}

// ListRuns 分页列出运行记录
func (s *Simulator) ListRuns(ctx context.Context, p *repository.Pagination) ([]*models.SimulationRun, error) {
	return s.runRepo.List(ctx, p)
}

// GetSnapshots 分页查询某次运行的快照
func (s *Simulator) GetSnapshots(ctx context.Context, runID string, p *repository.Pagination) ([]*models.SpinSnapshot, error) {
	if _, err := s.runRepo.FindByRunID(ctx, runID); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrRunNotFound, runID)
	}
	return s.snapshotRepo.FindByRunID(ctx, runID, p)
}

// GetStatistics 获取运行统计
func (s *Simulator) GetStatistics(ctx context.Context, since time.Time) (*repository.RunStatistics, error) {
	return s.runRepo.GetRunStatistics(ctx, since)
}

// prepareRun 校验请求、补全默认值并落库
func (s *Simulator) prepareRun(ctx context.Context, req *RunRequest) (*models.SimulationRun, error) {
	switch req.Mode {
	case models.RunModeFixed, models.RunModeChaos, models.RunModeRecovery:
	default:
		return nil, apperrors.New(apperrors.ErrInvalidRunMode, req.Mode)
	}

	opts := s.options()

	if req.TargetRTP == 0 {
		req.TargetRTP = opts.TargetRTP
	}
	if req.TargetRTP <= 0 || req.TargetRTP > 1 {
		return nil, apperrors.Newf(apperrors.ErrInvalidRTP, "target_rtp=%v", req.TargetRTP)
	}
	if req.Ki == 0 {
		req.Ki = opts.Gains.Ki
	}
	if req.Kd == 0 {
		req.Kd = opts.Gains.Kd
	}
	if req.MaxSpins <= 0 {
		req.MaxSpins = 5000
	}
	if req.BetSize == 0 {
		req.BetSize = 1.0
	}
	if req.BetSize < opts.MinBet || req.BetSize > opts.MaxBet {
		return nil, apperrors.Newf(apperrors.ErrInvalidBet, "bet_size=%v 超出[%v, %v]", req.BetSize, opts.MinBet, opts.MaxBet)
	}
	if req.Mode == models.RunModeChaos {
		if req.ChaosMinBet <= 0 {
			req.ChaosMinBet = opts.MinBet
		}
		if req.ChaosMaxBet <= 0 {
			req.ChaosMaxBet = opts.MaxBet
		}
		if req.ChaosMaxBet < req.ChaosMinBet {
			return nil, apperrors.Newf(apperrors.ErrInvalidBet, "混沌下注区间非法: [%v, %v]", req.ChaosMinBet, req.ChaosMaxBet)
		}
	}
	if req.SampleInterval <= 0 {
		req.SampleInterval = 10
	}
	if req.BlackSwanEnabled {
		if req.BlackSwanMultiplier <= 0 {
			req.BlackSwanMultiplier = 100
		}
		if req.BlackSwanHits <= 0 {
			req.BlackSwanHits = 1
		}
	}

	run := &models.SimulationRun{
		RunID:               uuid.New().String(),
		Mode:                req.Mode,
		Status:              models.RunStatusRunning,
		TargetRTP:           req.TargetRTP,
		Kp:                  opts.Gains.Kp,
		Ki:                  req.Ki,
		Kd:                  req.Kd,
		BetSize:             req.BetSize,
		ChaosMinBet:         req.ChaosMinBet,
		ChaosMaxBet:         req.ChaosMaxBet,
		MaxSpins:            req.MaxSpins,
		Seed:                req.Seed,
		BlackSwanEnabled:    req.BlackSwanEnabled,
		BlackSwanMultiplier: req.BlackSwanMultiplier,
		BlackSwanHits:       req.BlackSwanHits,
		BlackSwanInterval:   req.BlackSwanInterval,
		StartedAt:           time.Now(),
	}

	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
	}
	return run, nil
}

// execute 跑完整个模拟循环并写回结果
func (s *Simulator) execute(ctx context.Context, run *models.SimulationRun, req *RunRequest) error {
	controller, err := s.buildController(req)
	if err != nil {
		s.finishRun(ctx, run, models.RunStatusFailed, err.Error())
		return err
	}

	// 下注随机源与卷轴随机源分离，固定模式与混沌模式共享同一抽样序列
	var betRNG rtp.RandomGenerator
	if req.Seed != 0 {
		betRNG = rtp.NewSeededRandomGenerator(req.Seed + 1)
	} else {
		betRNG = rtp.NewCryptoRandomGenerator()
	}

	s.broadcast(websocket.MessageTypeRunStarted, run.RunID, run)

	var (
		totalPayout float64
		lastResult  rtp.StepResult
		snapshots   []*models.SpinSnapshot
	)

	for i := 1; i <= req.MaxSpins; i++ {
		if err := ctx.Err(); err != nil {
			s.finishRun(ctx, run, models.RunStatusFailed, "运行被取消")
			return apperrors.Wrap(err, apperrors.ErrCanceled, run.RunID)
		}

		bet := req.BetSize
		if req.Mode == models.RunModeChaos {
			bet = req.ChaosMinBet + betRNG.Next()*(req.ChaosMaxBet-req.ChaosMinBet)
		}

		lastResult = controller.StepSpin(bet)
		totalPayout += lastResult.Payout

		// 黑天鹅：按计划强制注入巨额赔付（不经过卷轴抽样）
		if s.blackSwanDue(req, i) {
			forced := bet * req.BlackSwanMultiplier * float64(req.BlackSwanHits)
			controller.ApplyExternalPayout(forced)
			totalPayout += forced
			lastResult.Profit = controller.CurrentProfit()
			s.logger.Info("注入黑天鹅事件",
				zap.String("run_id", run.RunID),
				zap.Int("spin", i),
				zap.Float64("forced_payout", forced),
			)
		}

		run.SpinsExecuted = i

		if i%req.SampleInterval == 0 {
			snapshot := &models.SpinSnapshot{
				RunID:        run.RunID,
				SpinIndex:    i,
				TotalWagered: controller.TotalWagered(),
				Profit:       controller.CurrentProfit(),
				TargetProfit: lastResult.TargetProfit,
				Signal:       lastResult.Signal,
				SampleWeight: lastResult.SampleWeight,
				ActualRTP:    controller.ActualRTP(),
			}
			snapshots = append(snapshots, snapshot)

			if len(snapshots) >= 200 {
				if err := s.snapshotRepo.BatchCreate(ctx, snapshots); err != nil {
					s.finishRun(ctx, run, models.RunStatusFailed, err.Error())
					return apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
				}
				snapshots = snapshots[:0]
			}

			s.broadcast(websocket.MessageTypeRunProgress, run.RunID, &RunProgress{
				RunID:        run.RunID,
				SpinIndex:    i,
				TotalWagered: snapshot.TotalWagered,
				Profit:       snapshot.Profit,
				TargetProfit: snapshot.TargetProfit,
				Signal:       snapshot.Signal,
				SampleWeight: snapshot.SampleWeight,
				ActualRTP:    snapshot.ActualRTP,
			})
		}

		// 恢复模式：盈利重新压回目标轨迹即视为恢复完成
		if req.Mode == models.RunModeRecovery && i > 1 &&
			controller.CurrentProfit() >= lastResult.TargetProfit {
			run.Recovered = true
			break
		}
	}

	if len(snapshots) > 0 {
		if err := s.snapshotRepo.BatchCreate(ctx, snapshots); err != nil {
			s.finishRun(ctx, run, models.RunStatusFailed, err.Error())
			return apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
		}
	}

	run.TotalWagered = controller.TotalWagered()
	run.TotalPayout = totalPayout
	run.FinalProfit = controller.CurrentProfit()
	run.FinalTargetProfit = lastResult.TargetProfit
	run.FinalSignal = lastResult.Signal
	run.ActualRTP = controller.ActualRTP()

	s.finishRun(ctx, run, models.RunStatusCompleted, "")

	s.logger.Info("模拟运行完成",
		zap.String("run_id", run.RunID),
		zap.String("mode", run.Mode),
		zap.Int("spins", run.SpinsExecuted),
		zap.Float64("actual_rtp", run.ActualRTP),
		zap.Float64("final_profit", run.FinalProfit),
		zap.Bool("recovered", run.Recovered),
	)
	return nil
}

// buildController 按请求构造控制器
func (s *Simulator) buildController(req *RunRequest) (*rtp.Controller, error) {
	var rng rtp.RandomGenerator
	if req.Seed != 0 {
		rng = rtp.NewSeededRandomGenerator(req.Seed)
	} else {
		rng = rtp.NewCryptoRandomGenerator()
	}

	opts := s.options()
	reelCount := opts.ReelCount
	if reelCount <= 0 {
		reelCount = rtp.DefaultReelCount
	}
	reels := make([]*rtp.Reel, reelCount)
	for i := range reels {
		reels[i] = rtp.NewDefaultReel()
	}

	gains := rtp.PIDConfig{Kp: opts.Gains.Kp, Ki: req.Ki, Kd: req.Kd}
	return rtp.NewController(req.TargetRTP, gains, reels, rng)
}

// blackSwanDue 本次旋转是否应注入黑天鹅事件
// 间隔为0时仅在首次旋转注入一次，否则每隔N次旋转注入
func (s *Simulator) blackSwanDue(req *RunRequest, spin int) bool {
	if !req.BlackSwanEnabled {
		return false
	}
	if req.BlackSwanInterval <= 0 {
		return spin == 1
	}
	return spin%req.BlackSwanInterval == 0
}

// finishRun 写回最终状态并广播
// 运行上下文可能已取消，最终状态用独立上下文落库
func (s *Simulator) finishRun(_ context.Context, run *models.SimulationRun, status, failReason string) {
	now := time.Now()
	run.Status = status
	run.FailReason = failReason
	run.FinishedAt = &now

	if err := s.runRepo.Update(context.Background(), run); err != nil {
		s.logger.Error("写回运行结果失败",
			zap.String("run_id", run.RunID),
			zap.Error(err),
		)
	}

	msgType := websocket.MessageTypeRunCompleted
	if status == models.RunStatusFailed {
		msgType = websocket.MessageTypeRunFailed
	}
	s.broadcast(msgType, run.RunID, run)
}

// broadcast 可选的进度广播
func (s *Simulator) broadcast(msgType, runID string, data interface{}) {
	if s.hub != nil {
		s.hub.Broadcast(msgType, runID, data)
	}
}
