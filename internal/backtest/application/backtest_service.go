// Package application 回测应用层
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/messagequeue"

	"github.com/wyfcoding/stocksim/internal/backtest/domain"
)

const topicBacktestCompleted = "backtest.completed"

// RunBacktestCommand 回测命令：候选信号与价格序列由调用方预先解析提供
type RunBacktestCommand struct {
	Signals        []domain.CandidateSignal
	Prices         domain.PriceBook
	From           string
	To             string
	InitialCapital float64
	Params         domain.SimParams
	TopN           int // 极值交易条数，0 用默认值 5
}

// BacktestResponse 回测完整输出
type BacktestResponse struct {
	ReportID               string                    `json:"report_id"`
	From                   string                    `json:"from"`
	To                     string                    `json:"to"`
	Params                 domain.SimParams          `json:"params"`
	Trades                 []domain.BacktestTrade    `json:"trades"`
	CandidateCount         int                       `json:"candidate_count"`
	SkippedCount           int                       `json:"skipped_count"`
	SkipBreakdown          map[domain.SkipReason]int `json:"skip_breakdown,omitempty"`
	FillRate               float64                   `json:"fill_rate"`
	MaxConcurrentPositions int                       `json:"max_concurrent_positions"`
	InitialCapital         float64                   `json:"initial_capital"`
	FinalEquity            float64                   `json:"final_equity"`
	Stats                  domain.PerfStats          `json:"stats"`
	EquityCurve            []domain.EquityPoint      `json:"equity_curve"`
	DrawdownCurve          []domain.DrawdownPoint    `json:"drawdown_curve"`
	MonthlyReturns         []domain.MonthlyReturn    `json:"monthly_returns"`
	TopTrades              []domain.BacktestTrade    `json:"top_trades"`
	BottomTrades           []domain.BacktestTrade    `json:"bottom_trades"`
	Notes                  []string                  `json:"notes,omitempty"`
}

// BacktestService 回测应用服务
type BacktestService struct {
	simulator      *domain.Simulator
	reportRepo     domain.ReportRepository
	eventPublisher messagequeue.EventPublisher
	logger         *slog.Logger
}

// NewBacktestService 创建回测服务
func NewBacktestService(
	simulator *domain.Simulator,
	reportRepo domain.ReportRepository,
	eventPublisher messagequeue.EventPublisher,
	logger *slog.Logger,
) *BacktestService {
	return &BacktestService{
		simulator:      simulator,
		reportRepo:     reportRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// RunBacktest 同步跑一次回测并聚合绩效，报告落库后返回完整结果
func (s *BacktestService) RunBacktest(ctx context.Context, cmd RunBacktestCommand) (*BacktestResponse, error) {
	if cmd.From == "" || cmd.To == "" || cmd.From > cmd.To {
		return nil, fmt.Errorf("invalid date range: %s..%s", cmd.From, cmd.To)
	}
	if cmd.InitialCapital <= 0 {
		return nil, fmt.Errorf("invalid initial capital: %v", cmd.InitialCapital)
	}
	topN := cmd.TopN
	if topN <= 0 {
		topN = 5
	}

	result := s.simulator.Run(cmd.Signals, cmd.Prices, cmd.From, cmd.To, cmd.InitialCapital, cmd.Params)
	equity := domain.EquityCurve(result.Trades, domain.AxisExitDate, cmd.From, cmd.To, cmd.InitialCapital)
	drawdowns := domain.DrawdownCurve(equity)
	stats := domain.ComputeStats(result.Trades, cmd.InitialCapital, drawdowns)
	top, bottom := domain.TopBottomTrades(result.Trades, topN)

	response := &BacktestResponse{
		ReportID:               fmt.Sprintf("BT-%d", idgen.GenID()),
		From:                   cmd.From,
		To:                     cmd.To,
		Params:                 cmd.Params,
		Trades:                 result.Trades,
		CandidateCount:         result.CandidateCount,
		SkippedCount:           result.SkippedCount,
		SkipBreakdown:          result.SkipBreakdown,
		FillRate:               round6(result.FillRate),
		MaxConcurrentPositions: result.MaxConcurrentPositions,
		InitialCapital:         cmd.InitialCapital,
		FinalEquity:            round4(result.FinalEquity),
		Stats:                  roundStats(stats),
		EquityCurve:            equity,
		DrawdownCurve:          drawdowns,
		MonthlyReturns:         domain.MonthlyReturns(result.Trades, domain.AxisExitDate, cmd.InitialCapital),
		TopTrades:              top,
		BottomTrades:           bottom,
		Notes:                  result.Notes,
	}

	if err := s.saveReport(ctx, response); err != nil {
		// 落库失败不影响已算出的结果，记录后照常返回
		s.logger.ErrorContext(ctx, "failed to save backtest report", "report_id", response.ReportID, "error", err)
	}

	s.logger.InfoContext(ctx, "backtest completed",
		"report_id", response.ReportID,
		"trades", len(response.Trades),
		"total_return", response.Stats.TotalReturn,
		"max_drawdown", response.Stats.MaxDrawdown)
	s.publishCompleted(ctx, response)
	return response, nil
}

// GetReport 按报告编号取历史回测
func (s *BacktestService) GetReport(ctx context.Context, reportID string) (*domain.BacktestReport, error) {
	return s.reportRepo.GetByID(ctx, reportID)
}

// ListReports 分页列出历史回测
func (s *BacktestService) ListReports(ctx context.Context, limit, offset int) ([]*domain.BacktestReport, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.reportRepo.List(ctx, limit, offset)
}

func (s *BacktestService) saveReport(ctx context.Context, response *BacktestResponse) error {
	if s.reportRepo == nil {
		return nil
	}
	paramsJSON, err := json.Marshal(response.Params)
	if err != nil {
		return err
	}
	resultJSON, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return s.reportRepo.Save(ctx, &domain.BacktestReport{
		ReportID:   response.ReportID,
		StartDate:  response.From,
		EndDate:    response.To,
		ParamsJSON: string(paramsJSON),
		ResultJSON: string(resultJSON),
		Status:     "DONE",
	})
}

func (s *BacktestService) publishCompleted(ctx context.Context, response *BacktestResponse) {
	if s.eventPublisher == nil {
		return
	}
	payload := map[string]any{
		"report_id":    response.ReportID,
		"from":         response.From,
		"to":           response.To,
		"trade_count":  len(response.Trades),
		"total_return": response.Stats.TotalReturn,
		"max_drawdown": response.Stats.MaxDrawdown,
		"final_equity": response.FinalEquity,
	}
	if err := s.eventPublisher.Publish(ctx, topicBacktestCompleted, response.ReportID, payload); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", "topic", topicBacktestCompleted, "error", err)
	}
}

func roundStats(stats domain.PerfStats) domain.PerfStats {
	stats.WinRate = round6(stats.WinRate)
	stats.TotalPnl = round4(stats.TotalPnl)
	stats.TotalReturn = round6(stats.TotalReturn)
	stats.MaxDrawdown = round6(stats.MaxDrawdown)
	stats.ProfitFactor = round4(stats.ProfitFactor)
	stats.ReturnVolatility = round6(stats.ReturnVolatility)
	return stats
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }
