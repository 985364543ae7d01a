package domain

import (
	"context"

	"gorm.io/gorm"
)

// Preset 持久化的参数组合预设。以参数元组 Key 唯一，重复保存即更新。
type Preset struct {
	gorm.Model
	PresetID   string  `gorm:"column:preset_id;type:varchar(64);uniqueIndex;not null"`
	Name       string  `gorm:"column:name;type:varchar(64);not null"`
	ParamKey   string  `gorm:"column:param_key;type:varchar(255);uniqueIndex;not null"`
	ParamsJSON string  `gorm:"column:params_json;type:json"`
	Score      float64 `gorm:"column:score;type:decimal(12,6);default:0"`
	Remark     string  `gorm:"column:remark;type:varchar(255)"`
}

// TableName 表名
func (Preset) TableName() string {
	return "sweep_presets"
}

// PresetRepository 预设仓储接口。Upsert 以 ParamKey 判重。
type PresetRepository interface {
	Upsert(ctx context.Context, preset *Preset) error
	List(ctx context.Context) ([]*Preset, error)
	Delete(ctx context.Context, presetID string) error
}
