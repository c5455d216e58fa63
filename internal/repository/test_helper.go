package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/rtp-engine/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 为单个测试创建内存数据库
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// 内存数据库：更快，不依赖文件系统，任何环境都能跑
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	if err := db.AutoMigrate(
		&models.SimulationRun{},
		&models.SpinSnapshot{},
	); err != nil {
		t.Fatalf("测试数据库迁移失败: %v", err)
	}

	return db
}

// CreateTestRun 构造测试用模拟运行记录
func CreateTestRun(mode string) *models.SimulationRun {
	return &models.SimulationRun{
		RunID:     uuid.New().String(),
		Mode:      mode,
		Status:    models.RunStatusRunning,
		TargetRTP: 0.95,
		Ki:        0.015,
		Kd:        0.15,
		BetSize:   1.0,
		MaxSpins:  1000,
		Seed:      42,
		StartedAt: time.Now(),
	}
}

// CreateTestSnapshot 构造测试用快照
func CreateTestSnapshot(runID string, spinIndex int) *models.SpinSnapshot {
	return &models.SpinSnapshot{
		RunID:        runID,
		SpinIndex:    spinIndex,
		TotalWagered: float64(spinIndex),
		Profit:       float64(spinIndex) * 0.05,
		TargetProfit: float64(spinIndex) * 0.05,
		Signal:       0.1,
		SampleWeight: 10.0,
		ActualRTP:    0.95,
	}
}
