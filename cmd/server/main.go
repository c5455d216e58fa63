package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/wfunc/rtp-engine/internal/api"
	"github.com/wfunc/rtp-engine/internal/config"
	"github.com/wfunc/rtp-engine/internal/database"
	"github.com/wfunc/rtp-engine/internal/game/rtp"
	"github.com/wfunc/rtp-engine/internal/logger"
	"github.com/wfunc/rtp-engine/internal/repository"
	"github.com/wfunc/rtp-engine/internal/service"
	ws "github.com/wfunc/rtp-engine/internal/websocket"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("rtp-engine %s (build: %s, commit: %s)\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.GetLogger()
	log.Info("启动RTP模拟引擎",
		zap.String("version", Version),
		zap.Float64("target_rtp", cfg.Engine.TargetRTP),
	)

	// 初始化数据库
	if err := database.Init(&cfg.Database); err != nil {
		log.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer database.Close()

	if err := database.AutoMigrate(); err != nil {
		log.Fatal("数据库迁移失败", zap.Error(err))
	}

	runRepo := repository.NewSimulationRunRepository(database.DB)
	snapshotRepo := repository.NewSpinSnapshotRepository(database.DB)

	// 启动WebSocket广播中心
	hub := ws.NewHub(log)
	go hub.Run()

	simulator := service.NewSimulator(service.SimulatorOptions{
		TargetRTP: cfg.Engine.TargetRTP,
		Gains:     rtp.PIDConfig{Kp: cfg.Engine.Kp, Ki: cfg.Engine.Ki, Kd: cfg.Engine.Kd},
		ReelCount: cfg.Engine.ReelCount,
		MinBet:    cfg.Engine.MinBet,
		MaxBet:    cfg.Engine.MaxBet,
	}, runRepo, snapshotRepo, hub, log)

	// 配置热重载：引擎参数只对之后启动的运行生效
	config.Watch(func(c *config.Config) {
		simulator.UpdateOptions(service.SimulatorOptions{
			TargetRTP: c.Engine.TargetRTP,
			Gains:     rtp.PIDConfig{Kp: c.Engine.Kp, Ki: c.Engine.Ki, Kd: c.Engine.Kd},
			ReelCount: c.Engine.ReelCount,
			MinBet:    c.Engine.MinBet,
			MaxBet:    c.Engine.MaxBet,
		})
		log.Info("配置已重载",
			zap.Float64("target_rtp", c.Engine.TargetRTP),
			zap.Float64("ki", c.Engine.Ki),
			zap.Float64("kd", c.Engine.Kd),
		)
	})

	router := api.NewRouter(cfg, simulator, hub, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("HTTP服务监听中", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP服务异常退出", zap.Error(err))
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("收到退出信号，开始优雅关闭")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	log.Info("服务器已安全关闭")
}
