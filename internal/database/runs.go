package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/rkscollector/rkscollector/internal/model"
)

// ErrRunNotFound 执行记录不存在
var ErrRunNotFound = errors.New("run not found")

// RunStore 执行记录读写
type RunStore struct {
	db *gorm.DB
}

func NewRunStore(db *gorm.DB) *RunStore {
	return &RunStore{db: db}
}

// Save 写入一次执行及其命令明细
func (s *RunStore) Save(ctx context.Context, run *model.OperationRun) error {
	return WithRetry(ctx, s.db, func(tx *gorm.DB) error {
		return tx.Create(run).Error
	}, 3)
}

// RunFilter 查询条件
type RunFilter struct {
	Operation string
	Limit     int
}

// List 按开始时间倒序列出执行记录
func (s *RunStore) List(ctx context.Context, f RunFilter) ([]model.OperationRun, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Preload("Commands").Order("start_time DESC").Limit(limit)
	if f.Operation != "" {
		q = q.Where("operation = ?", f.Operation)
	}
	var runs []model.OperationRun
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Get 按 ID 查询
func (s *RunStore) Get(ctx context.Context, id string) (*model.OperationRun, error) {
	var run model.OperationRun
	if err := s.db.WithContext(ctx).Preload("Commands").First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}
	return &run, nil
}
