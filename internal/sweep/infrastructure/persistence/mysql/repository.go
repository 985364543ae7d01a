// Package mysql 参数扫描服务的 MySQL 仓储实现，基于 GORM。
package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/stocksim/internal/sweep/domain"
	"gorm.io/gorm"
)

// presetRepository GORM 参数预设仓储实现
type presetRepository struct {
	db *gorm.DB
}

// NewPresetRepository 创建参数预设仓储
func NewPresetRepository(db *gorm.DB) domain.PresetRepository {
	return &presetRepository{db: db}
}

// Upsert 以参数元组 Key 判重：已存在则更新名称、评分与备注，否则新建
func (r *presetRepository) Upsert(ctx context.Context, preset *domain.Preset) error {
	var existing domain.Preset
	err := r.db.WithContext(ctx).Where("param_key = ?", preset.ParamKey).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(preset).Error
	}
	if err != nil {
		return err
	}
	existing.Name = preset.Name
	existing.ParamsJSON = preset.ParamsJSON
	existing.Score = preset.Score
	existing.Remark = preset.Remark
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return err
	}
	*preset = existing
	return nil
}

// List 按创建时间倒序列出全部预设
func (r *presetRepository) List(ctx context.Context) ([]*domain.Preset, error) {
	var presets []*domain.Preset
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&presets).Error; err != nil {
		return nil, err
	}
	return presets, nil
}

// Delete 按业务 ID 删除预设
func (r *presetRepository) Delete(ctx context.Context, presetID string) error {
	result := r.db.WithContext(ctx).Where("preset_id = ?", presetID).Delete(&domain.Preset{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("preset not found: %s", presetID)
	}
	return nil
}
