package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/rtp-engine/internal/errors"
	"github.com/wfunc/rtp-engine/internal/game/rtp"
	"github.com/wfunc/rtp-engine/internal/models"
	"github.com/wfunc/rtp-engine/internal/repository"
	"go.uber.org/zap"
)

func newTestSimulator(t *testing.T) (*Simulator, repository.SimulationRunRepository, repository.SpinSnapshotRepository) {
	t.Helper()

	db := repository.TestDB(t)
	runRepo := repository.NewSimulationRunRepository(db)
	snapshotRepo := repository.NewSpinSnapshotRepository(db)

	sim := NewSimulator(SimulatorOptions{
		TargetRTP: 0.95,
		Gains:     rtp.PIDConfig{Kp: 0.8, Ki: 0.015, Kd: 0.15},
		ReelCount: 3,
		MinBet:    0.1,
		MaxBet:    100,
	}, runRepo, snapshotRepo, nil, zap.NewNop())

	return sim, runRepo, snapshotRepo
}

func TestSimulator_Execute_FixedMode(t *testing.T) {
	sim, _, snapshotRepo := newTestSimulator(t)

	run, err := sim.Execute(context.Background(), &RunRequest{
		Mode:           models.RunModeFixed,
		MaxSpins:       200,
		BetSize:        1.0,
		SampleInterval: 10,
		Seed:           42,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 200, run.SpinsExecuted)
	assert.InDelta(t, 200.0, run.TotalWagered, 1e-9)
	assert.NotNil(t, run.FinishedAt)
	assert.Greater(t, run.ActualRTP, 0.0)

	// 每10次旋转采样一次
	p := repository.NewPagination(1, 100)
	snapshots, err := snapshotRepo.FindByRunID(context.Background(), run.RunID, p)
	require.NoError(t, err)
	assert.Len(t, snapshots, 20)
	assert.Equal(t, 10, snapshots[0].SpinIndex)
	assert.Equal(t, 200, snapshots[19].SpinIndex)
}

func TestSimulator_Execute_Deterministic(t *testing.T) {
	sim, _, _ := newTestSimulator(t)

	req := func() *RunRequest {
		return &RunRequest{
			Mode:           models.RunModeFixed,
			MaxSpins:       500,
			BetSize:        1.0,
			SampleInterval: 50,
			Seed:           7,
		}
	}

	first, err := sim.Execute(context.Background(), req())
	require.NoError(t, err)
	second, err := sim.Execute(context.Background(), req())
	require.NoError(t, err)

	assert.Equal(t, first.FinalProfit, second.FinalProfit)
	assert.Equal(t, first.TotalPayout, second.TotalPayout)
	assert.Equal(t, first.ActualRTP, second.ActualRTP)
}

func TestSimulator_Execute_ChaosMode(t *testing.T) {
	sim, _, _ := newTestSimulator(t)

	run, err := sim.Execute(context.Background(), &RunRequest{
		Mode:           models.RunModeChaos,
		MaxSpins:       300,
		BetSize:        1.0,
		ChaosMinBet:    0.5,
		ChaosMaxBet:    5.0,
		SampleInterval: 50,
		Seed:           99,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 300, run.SpinsExecuted)
	assert.GreaterOrEqual(t, run.TotalWagered, 300*0.5)
	assert.LessOrEqual(t, run.TotalWagered, 300*5.0)
}

func TestSimulator_Execute_RecoveryAfterBlackSwan(t *testing.T) {
	sim, _, _ := newTestSimulator(t)

	run, err := sim.Execute(context.Background(), &RunRequest{
		Mode:                models.RunModeRecovery,
		MaxSpins:            20000,
		BetSize:             1.0,
		SampleInterval:      100,
		Seed:                42,
		BlackSwanEnabled:    true,
		BlackSwanMultiplier: 100,
		BlackSwanHits:       1,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.True(t, run.Recovered, "巨额赔付后应在预算内恢复到目标轨迹")
	assert.Less(t, run.SpinsExecuted, 20000)
	assert.GreaterOrEqual(t, run.FinalProfit, 0.0)
}

func TestSimulator_StartRun_Async(t *testing.T) {
	sim, runRepo, _ := newTestSimulator(t)

	run, err := sim.StartRun(context.Background(), &RunRequest{
		Mode:           models.RunModeFixed,
		MaxSpins:       300,
		BetSize:        1.0,
		SampleInterval: 50,
		Seed:           1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, run.RunID)
	assert.Equal(t, models.RunStatusRunning, run.Status)

	deadline := time.Now().Add(10 * time.Second)
	for {
		stored, err := runRepo.FindByRunID(context.Background(), run.RunID)
		require.NoError(t, err)
		if stored.IsFinished() {
			assert.Equal(t, models.RunStatusCompleted, stored.Status)
			assert.Equal(t, 300, stored.SpinsExecuted)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("等待异步运行完成超时")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSimulator_PrepareRun_Validation(t *testing.T) {
	sim, _, _ := newTestSimulator(t)

	tests := []struct {
		name string
		req  *RunRequest
		code apperrors.ErrorCode
	}{
		{
			"无效模式",
			&RunRequest{Mode: "turbo"},
			apperrors.ErrInvalidRunMode,
		},
		{
			"RTP超出范围",
			&RunRequest{Mode: models.RunModeFixed, TargetRTP: 1.5},
			apperrors.ErrInvalidRTP,
		},
		{
			"投注超出范围",
			&RunRequest{Mode: models.RunModeFixed, BetSize: 1000},
			apperrors.ErrInvalidBet,
		},
		{
			"混沌下注区间倒置",
			&RunRequest{Mode: models.RunModeChaos, ChaosMinBet: 5, ChaosMaxBet: 1},
			apperrors.ErrInvalidBet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Execute(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, tt.code))
		})
	}
}

func TestSimulator_GetRun_NotFound(t *testing.T) {
	sim, _, _ := newTestSimulator(t)

	_, err := sim.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrRunNotFound))
}

func TestSimulator_GetSnapshots(t *testing.T) {
	sim, _, _ := newTestSimulator(t)

	run, err := sim.Execute(context.Background(), &RunRequest{
		Mode:           models.RunModeFixed,
		MaxSpins:       100,
		BetSize:        1.0,
		SampleInterval: 20,
		Seed:           3,
	})
	require.NoError(t, err)

	p := repository.NewPagination(1, 10)
	snapshots, err := sim.GetSnapshots(context.Background(), run.RunID, p)
	require.NoError(t, err)
	assert.Len(t, snapshots, 5)

	_, err = sim.GetSnapshots(context.Background(), "missing", repository.NewPagination(1, 10))
	assert.True(t, apperrors.Is(err, apperrors.ErrRunNotFound))
}
