package repository

import (
	"context"

	"github.com/wfunc/rtp-engine/internal/models"
	"gorm.io/gorm"
)

// SpinSnapshotRepository 旋转快照仓储接口
type SpinSnapshotRepository interface {
	BaseRepository
	Create(ctx context.Context, snapshot *models.SpinSnapshot) error
	BatchCreate(ctx context.Context, snapshots []*models.SpinSnapshot) error
	FindByRunID(ctx context.Context, runID string, p *Pagination) ([]*models.SpinSnapshot, error)
	LatestByRunID(ctx context.Context, runID string) (*models.SpinSnapshot, error)
	DeleteByRunID(ctx context.Context, runID string) error
}

// spinSnapshotRepo 旋转快照仓储实现
type spinSnapshotRepo struct {
	*BaseRepo
}

// NewSpinSnapshotRepository 创建旋转快照仓储
func NewSpinSnapshotRepository(db *gorm.DB) SpinSnapshotRepository {
	return &spinSnapshotRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 创建快照
func (r *spinSnapshotRepo) Create(ctx context.Context, snapshot *models.SpinSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// BatchCreate 批量创建快照
func (r *spinSnapshotRepo) BatchCreate(ctx context.Context, snapshots []*models.SpinSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(snapshots, 200).Error
}

// FindByRunID 按运行ID分页查询快照（按旋转序号升序）
func (r *spinSnapshotRepo) FindByRunID(ctx context.Context, runID string, p *Pagination) ([]*models.SpinSnapshot, error) {
	var snapshots []*models.SpinSnapshot

	query := r.db.WithContext(ctx).
		Model(&models.SpinSnapshot{}).
		Where("run_id = ?", runID)
	if err := query.Count(&p.Total).Error; err != nil {
		return nil, err
	}

	err := query.Session(&gorm.Session{}).
		Order("spin_index ASC").
		Scopes(Paginate(p)).
		Find(&snapshots).Error
	return snapshots, err
}

// LatestByRunID 获取某次运行的最新快照
func (r *spinSnapshotRepo) LatestByRunID(ctx context.Context, runID string) (*models.SpinSnapshot, error) {
	var snapshot models.SpinSnapshot
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("spin_index DESC").
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// DeleteByRunID 删除某次运行的全部快照
func (r *spinSnapshotRepo) DeleteByRunID(ctx context.Context, runID string) error {
	return r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Delete(&models.SpinSnapshot{}).Error
}
