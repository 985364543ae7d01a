package domain

import (
	"context"

	"gorm.io/gorm"
)

// BacktestReport 回测报告实体，参数与结果以 JSON 落库
type BacktestReport struct {
	gorm.Model
	ReportID   string `gorm:"column:report_id;type:varchar(32);uniqueIndex;not null"`
	StartDate  string `gorm:"column:start_date;type:varchar(10);not null"`
	EndDate    string `gorm:"column:end_date;type:varchar(10);not null"`
	ParamsJSON string `gorm:"column:params_json;type:json"`
	ResultJSON string `gorm:"column:result_json;type:json"`
	Status     string `gorm:"column:status;type:varchar(16);not null;default:'DONE'"`
}

// TableName 表名
func (BacktestReport) TableName() string {
	return "backtest_reports"
}

// ReportRepository 回测报告仓储接口
type ReportRepository interface {
	Save(ctx context.Context, report *BacktestReport) error
	GetByID(ctx context.Context, reportID string) (*BacktestReport, error)
	List(ctx context.Context, limit, offset int) ([]*BacktestReport, int64, error)
}
