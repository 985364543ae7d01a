// Package mysql 回测服务的 MySQL 仓储实现，基于 GORM。
package mysql

import (
	"context"
	"fmt"

	"github.com/wyfcoding/stocksim/internal/backtest/domain"
	"gorm.io/gorm"
)

// reportRepository GORM 回测报告仓储实现
type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository 创建回测报告仓储
func NewReportRepository(db *gorm.DB) domain.ReportRepository {
	return &reportRepository{db: db}
}

// Save 保存回测报告
func (r *reportRepository) Save(ctx context.Context, report *domain.BacktestReport) error {
	return r.db.WithContext(ctx).Save(report).Error
}

// GetByID 根据业务 ID 获取回测报告
func (r *reportRepository) GetByID(ctx context.Context, reportID string) (*domain.BacktestReport, error) {
	var report domain.BacktestReport
	if err := r.db.WithContext(ctx).Where("report_id = ?", reportID).First(&report).Error; err != nil {
		return nil, fmt.Errorf("backtest report not found: %w", err)
	}
	return &report, nil
}

// List 按创建时间倒序分页
func (r *reportRepository) List(ctx context.Context, limit, offset int) ([]*domain.BacktestReport, int64, error) {
	var reports []*domain.BacktestReport
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.BacktestReport{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&reports).Error; err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}
