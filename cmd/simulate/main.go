package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/wfunc/rtp-engine/internal/config"
	"github.com/wfunc/rtp-engine/internal/database"
	"github.com/wfunc/rtp-engine/internal/game/rtp"
	"github.com/wfunc/rtp-engine/internal/logger"
	"github.com/wfunc/rtp-engine/internal/repository"
	"github.com/wfunc/rtp-engine/internal/service"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath = flag.String("config", "", "配置文件路径")
		mode       = flag.String("mode", "", "模拟模式 (fixed/chaos/recovery)，为空时使用配置文件")
		spins      = flag.Int("spins", 0, "旋转次数，0表示使用配置文件")
		bet        = flag.Float64("bet", 0, "固定下注金额，0表示使用配置文件")
		seed       = flag.Int64("seed", 0, "随机种子，0表示使用加密随机源")
		blackSwan  = flag.Bool("black-swan", false, "注入黑天鹅事件")
	)
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.GetLogger()

	if err := database.Init(&cfg.Database); err != nil {
		log.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer database.Close()

	if err := database.AutoMigrate(); err != nil {
		log.Fatal("数据库迁移失败", zap.Error(err))
	}

	runRepo := repository.NewSimulationRunRepository(database.DB)
	snapshotRepo := repository.NewSpinSnapshotRepository(database.DB)

	simulator := service.NewSimulator(service.SimulatorOptions{
		TargetRTP: cfg.Engine.TargetRTP,
		Gains:     rtp.PIDConfig{Kp: cfg.Engine.Kp, Ki: cfg.Engine.Ki, Kd: cfg.Engine.Kd},
		ReelCount: cfg.Engine.ReelCount,
		MinBet:    cfg.Engine.MinBet,
		MaxBet:    cfg.Engine.MaxBet,
	}, runRepo, snapshotRepo, nil, log)

	req := requestFromConfig(&cfg.Simulation)
	if *mode != "" {
		req.Mode = *mode
	}
	if *spins > 0 {
		req.MaxSpins = *spins
	}
	if *bet > 0 {
		req.BetSize = *bet
	}
	if *seed != 0 {
		req.Seed = *seed
	}
	if *blackSwan {
		req.BlackSwanEnabled = true
	}

	log.Info("开始模拟",
		zap.String("mode", req.Mode),
		zap.Int("max_spins", req.MaxSpins),
		zap.Float64("target_rtp", req.TargetRTP),
		zap.Bool("black_swan", req.BlackSwanEnabled),
	)

	run, err := simulator.Execute(context.Background(), req)
	if err != nil {
		log.Fatal("模拟执行失败", zap.Error(err))
	}

	log.Info("模拟结果",
		zap.String("run_id", run.RunID),
		zap.Int("spins", run.SpinsExecuted),
		zap.Float64("total_wagered", run.TotalWagered),
		zap.Float64("total_payout", run.TotalPayout),
		zap.Float64("final_profit", run.FinalProfit),
		zap.Float64("target_profit", run.FinalTargetProfit),
		zap.Float64("actual_rtp", run.ActualRTP),
		zap.Float64("target_rtp", run.TargetRTP),
		zap.Bool("recovered", run.Recovered),
	)
}

// requestFromConfig 把配置文件中的模拟参数转换为运行请求
func requestFromConfig(sc *config.SimulationConfig) *service.RunRequest {
	return &service.RunRequest{
		Mode:                sc.Mode,
		MaxSpins:            sc.MaxSpins,
		BetSize:             sc.BetSize,
		ChaosMinBet:         sc.ChaosMinBet,
		ChaosMaxBet:         sc.ChaosMaxBet,
		SampleInterval:      sc.SampleInterval,
		Seed:                sc.Seed,
		BlackSwanEnabled:    sc.BlackSwan.Enabled,
		BlackSwanMultiplier: sc.BlackSwan.WinMultiplier,
		BlackSwanHits:       sc.BlackSwan.ConsecutiveHits,
		BlackSwanInterval:   sc.BlackSwan.HitInterval,
	}
}
