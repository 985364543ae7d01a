// Package consumer 参数扫描的消息入口：消费扫描请求事件并异步执行。
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	btdomain "github.com/wyfcoding/stocksim/internal/backtest/domain"
	btinterfaces "github.com/wyfcoding/stocksim/internal/backtest/interfaces"
	"github.com/wyfcoding/stocksim/internal/sweep/application"
	"github.com/wyfcoding/stocksim/internal/sweep/domain"
)

// TopicRunRequested 扫描请求事件主题
const TopicRunRequested = "sweep.run_requested"

// runRequestedPayload 扫描请求事件体，与 HTTP 请求同构
type runRequestedPayload struct {
	From           string                       `json:"from"`
	To             string                       `json:"to"`
	InitialCapital float64                      `json:"initial_capital"`
	Signals        []btdomain.CandidateSignal   `json:"signals"`
	Candles        map[string][]btdomain.Candle `json:"candles"`
	BaseParams     *btdomain.SimParams          `json:"base_params"`
	Space          domain.ParamSpace            `json:"space"`
	Mode           string                       `json:"mode"`
	SamplePoints   int                          `json:"sample_points"`
	Seed           int64                        `json:"seed"`
}

// SweepHandler 扫描请求事件处理器
type SweepHandler struct {
	sweepService *application.SweepService
	logger       *slog.Logger
}

// NewSweepHandler 创建事件处理器
func NewSweepHandler(sweepService *application.SweepService, logger *slog.Logger) *SweepHandler {
	return &SweepHandler{sweepService: sweepService, logger: logger}
}

// Handle 消费一条扫描请求。输入不合法视为毒消息，记录后吞掉不重试。
func (h *SweepHandler) Handle(ctx context.Context, msg kafka.Message) error {
	if msg.Topic != TopicRunRequested {
		h.logger.WarnContext(ctx, "unknown sweep event topic", "topic", msg.Topic)
		return nil
	}

	var payload runRequestedPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal sweep request", "error", err)
		return nil
	}

	baseParams := btdomain.DefaultSimParams()
	if payload.BaseParams != nil {
		baseParams = *payload.BaseParams
	}

	response, err := h.sweepService.RunSweep(ctx, application.RunSweepCommand{
		Signals:        payload.Signals,
		Prices:         btinterfaces.BuildPriceBook(payload.Candles),
		From:           payload.From,
		To:             payload.To,
		InitialCapital: payload.InitialCapital,
		BaseParams:     baseParams,
		Space:          payload.Space,
		Mode:           payload.Mode,
		SamplePoints:   payload.SamplePoints,
		Seed:           payload.Seed,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "sweep request rejected", "error", err)
		return nil
	}

	h.logger.InfoContext(ctx, "sweep request processed",
		"run_id", response.RunID,
		"evaluated", response.EvaluatedCombinations)
	return nil
}
