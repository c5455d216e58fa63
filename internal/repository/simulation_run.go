package repository

import (
	"context"
	"time"

	"github.com/wfunc/rtp-engine/internal/models"
	"gorm.io/gorm"
)

// SimulationRunRepository 模拟运行仓储接口
type SimulationRunRepository interface {
	BaseRepository
	Create(ctx context.Context, run *models.SimulationRun) error
	Update(ctx context.Context, run *models.SimulationRun) error
	FindByRunID(ctx context.Context, runID string) (*models.SimulationRun, error)
	List(ctx context.Context, p *Pagination) ([]*models.SimulationRun, error)
	ListByStatus(ctx context.Context, status string, p *Pagination) ([]*models.SimulationRun, error)
	MarkFinished(ctx context.Context, runID, status, failReason string) error
	GetRunStatistics(ctx context.Context, since time.Time) (*RunStatistics, error)
}

// RunStatistics 运行统计
type RunStatistics struct {
	TotalRuns     int64   `json:"total_runs"`
	CompletedRuns int64   `json:"completed_runs"`
	FailedRuns    int64   `json:"failed_runs"`
	AvgActualRTP  float64 `json:"avg_actual_rtp"`
	TotalSpins    int64   `json:"total_spins"`
}

// simulationRunRepo 模拟运行仓储实现
type simulationRunRepo struct {
	*BaseRepo
}

// NewSimulationRunRepository 创建模拟运行仓储
func NewSimulationRunRepository(db *gorm.DB) SimulationRunRepository {
	return &simulationRunRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 创建模拟运行记录
func (r *simulationRunRepo) Create(ctx context.Context, run *models.SimulationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Update 更新模拟运行记录
func (r *simulationRunRepo) Update(ctx context.Context, run *models.SimulationRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// FindByRunID 根据运行ID查找
func (r *simulationRunRepo) FindByRunID(ctx context.Context, runID string) (*models.SimulationRun, error) {
	var run models.SimulationRun
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List 分页列出全部运行记录（按开始时间倒序）
func (r *simulationRunRepo) List(ctx context.Context, p *Pagination) ([]*models.SimulationRun, error) {
	var runs []*models.SimulationRun

	query := r.db.WithContext(ctx).Model(&models.SimulationRun{})
	if err := query.Count(&p.Total).Error; err != nil {
		return nil, err
	}

	err := query.Session(&gorm.Session{}).
		Order("started_at DESC").
		Scopes(Paginate(p)).
		Find(&runs).Error
	return runs, err
}

// ListByStatus 按状态分页列出运行记录
func (r *simulationRunRepo) ListByStatus(ctx context.Context, status string, p *Pagination) ([]*models.SimulationRun, error) {
	var runs []*models.SimulationRun

	query := r.db.WithContext(ctx).
		Model(&models.SimulationRun{}).
		Where("status = ?", status)
	if err := query.Count(&p.Total).Error; err != nil {
		return nil, err
	}

	err := query.Session(&gorm.Session{}).
		Order("started_at DESC").
		Scopes(Paginate(p)).
		Find(&runs).Error
	return runs, err
}

// MarkFinished 标记运行结束
func (r *simulationRunRepo) MarkFinished(ctx context.Context, runID, status, failReason string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.SimulationRun{}).
		Where("run_id = ?", runID).
		Updates(map[string]interface{}{
			"status":      status,
			"fail_reason": failReason,
			"finished_at": &now,
		}).Error
}

// GetRunStatistics 获取某时间之后的运行统计
func (r *simulationRunRepo) GetRunStatistics(ctx context.Context, since time.Time) (*RunStatistics, error) {
	stats := &RunStatistics{}

	base := r.db.WithContext(ctx).
		Model(&models.SimulationRun{}).
		Where("started_at >= ?", since)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalRuns).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", models.RunStatusCompleted).
		Count(&stats.CompletedRuns).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", models.RunStatusFailed).
		Count(&stats.FailedRuns).Error; err != nil {
		return nil, err
	}

	row := r.db.WithContext(ctx).
		Model(&models.SimulationRun{}).
		Where("started_at >= ? AND status = ?", since, models.RunStatusCompleted).
		Select("COALESCE(AVG(actual_rtp), 0), COALESCE(SUM(spins_executed), 0)").
		Row()
	if err := row.Scan(&stats.AvgActualRTP, &stats.TotalSpins); err != nil {
		return nil, err
	}

	return stats, nil
}
