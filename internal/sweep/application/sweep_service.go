// Package application 参数扫描应用层
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/wyfcoding/pkg/messagequeue"

	btdomain "github.com/wyfcoding/stocksim/internal/backtest/domain"
	"github.com/wyfcoding/stocksim/internal/sweep/domain"
)

const topicSweepCompleted = "sweep.completed"

// RunSweepCommand 参数扫描命令：回测输入与待扫描的参数空间
type RunSweepCommand struct {
	Signals        []btdomain.CandidateSignal
	Prices         btdomain.PriceBook
	From           string
	To             string
	InitialCapital float64
	BaseParams     btdomain.SimParams
	Space          domain.ParamSpace
	Mode           string // grid / lhs
	SamplePoints   int
	Seed           int64
}

// SweepResponse 扫描结果
type SweepResponse struct {
	RunID                 string                   `json:"run_id"`
	Mode                  string                   `json:"mode"`
	Points                []*domain.ParameterPoint `json:"points"`
	BestPoint             *domain.ParameterPoint   `json:"best_point,omitempty"`
	TotalCombinations     int                      `json:"total_combinations"`
	EvaluatedCombinations int                      `json:"evaluated_combinations"`
	Notes                 []string                 `json:"notes,omitempty"`
}

// SavePresetCommand 保存参数预设命令
type SavePresetCommand struct {
	Name   string
	Params domain.ParamSet
	Score  float64
	Remark string
}

// SweepService 参数扫描应用服务。
// 每次扫描构建一次性引擎，完成的结果留在内存中供高原切片查询；
// 工作集是一份手工维护的候选参数清单。
type SweepService struct {
	simulator      *btdomain.Simulator
	presetRepo     domain.PresetRepository
	eventPublisher messagequeue.EventPublisher
	weights        domain.ScoreWeights
	concurrency    int
	logger         *slog.Logger

	mu         sync.RWMutex
	runs       map[string]*completedRun
	workingSet map[string]domain.ParamSet
}

type completedRun struct {
	spec   domain.RunSpec
	result *domain.RunResult
}

// NewSweepService 创建扫描服务
func NewSweepService(
	simulator *btdomain.Simulator,
	presetRepo domain.PresetRepository,
	eventPublisher messagequeue.EventPublisher,
	weights domain.ScoreWeights,
	concurrency int,
	logger *slog.Logger,
) *SweepService {
	return &SweepService{
		simulator:      simulator,
		presetRepo:     presetRepo,
		eventPublisher: eventPublisher,
		weights:        weights,
		concurrency:    concurrency,
		logger:         logger,
		runs:           make(map[string]*completedRun),
		workingSet:     make(map[string]domain.ParamSet),
	}
}

// RunSweep 按命令枚举参数点并逐点回测打分
func (s *SweepService) RunSweep(ctx context.Context, cmd RunSweepCommand) (*SweepResponse, error) {
	if cmd.From == "" || cmd.To == "" || cmd.From > cmd.To {
		return nil, fmt.Errorf("invalid date range: %s..%s", cmd.From, cmd.To)
	}
	if cmd.InitialCapital <= 0 {
		return nil, fmt.Errorf("invalid initial capital: %v", cmd.InitialCapital)
	}
	if len(cmd.Space.Dimensions) == 0 {
		return nil, fmt.Errorf("parameter space has no dimensions")
	}
	mode := domain.SampleMode(cmd.Mode)
	if mode == "" {
		mode = domain.SampleGrid
	}
	if mode != domain.SampleGrid && mode != domain.SampleLHS {
		return nil, fmt.Errorf("unknown sample mode: %s", cmd.Mode)
	}
	if mode == domain.SampleLHS && cmd.SamplePoints <= 0 {
		return nil, fmt.Errorf("lhs mode requires sample_points > 0")
	}

	evaluator := s.buildEvaluator(cmd)
	engine := domain.NewEngine(evaluator, s.weights, s.concurrency, s.logger)

	spec := domain.RunSpec{
		Space:        cmd.Space,
		Mode:         mode,
		SamplePoints: cmd.SamplePoints,
		Seed:         cmd.Seed,
	}
	result, err := engine.Run(ctx, spec)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	s.mu.Lock()
	s.runs[runID] = &completedRun{spec: spec, result: result}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "parameter sweep completed",
		"run_id", runID,
		"mode", string(mode),
		"evaluated", result.EvaluatedCombinations,
		"total", result.TotalCombinations)
	s.publishCompleted(ctx, runID, result)

	return &SweepResponse{
		RunID:                 runID,
		Mode:                  string(mode),
		Points:                result.Points,
		BestPoint:             result.BestPoint,
		TotalCombinations:     result.TotalCombinations,
		EvaluatedCombinations: result.EvaluatedCombinations,
		Notes:                 result.Notes,
	}, nil
}

// Plateau 对已完成扫描做二维投影，坐标轴必须是该次扫描的维度
func (s *SweepService) Plateau(ctx context.Context, runID, xName, yName string) (*domain.PlateauView, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sweep run not found: %s", runID)
	}
	if xName == yName {
		return nil, fmt.Errorf("plateau axes must differ: %s", xName)
	}
	for _, name := range []string{xName, yName} {
		if !run.spec.Space.HasDimension(name) {
			return nil, fmt.Errorf("unknown plateau axis: %s", name)
		}
	}
	return domain.PlateauSlice(run.result.Points, xName, yName), nil
}

// buildEvaluator 把参数点映射为完整回测并聚合表现。
// 引擎会并发调用，闭包内只读命令输入与无状态的模拟器。
func (s *SweepService) buildEvaluator(cmd RunSweepCommand) domain.Evaluator {
	return func(ctx context.Context, params domain.ParamSet) (*domain.Evaluation, error) {
		simParams, err := applyParams(cmd.BaseParams, params)
		if err != nil {
			return nil, err
		}
		result := s.simulator.Run(cmd.Signals, cmd.Prices, cmd.From, cmd.To, cmd.InitialCapital, simParams)
		equity := btdomain.EquityCurve(result.Trades, btdomain.AxisExitDate, cmd.From, cmd.To, cmd.InitialCapital)
		stats := btdomain.ComputeStats(result.Trades, cmd.InitialCapital, btdomain.DrawdownCurve(equity))
		return &domain.Evaluation{
			TotalReturn:  stats.TotalReturn,
			MaxDrawdown:  stats.MaxDrawdown,
			WinRate:      stats.WinRate,
			ProfitFactor: stats.ProfitFactor,
			TradeCount:   stats.TotalTrades,
			FillRate:     result.FillRate,
		}, nil
	}
}

// applyParams 把扫描维度套用到基准回测参数上，未知维度名直接报错
func applyParams(base btdomain.SimParams, params domain.ParamSet) (btdomain.SimParams, error) {
	p := base
	for name, value := range params {
		switch name {
		case "min_score":
			p.MinScore = value
		case "max_hold_days", "window_days":
			p.MaxHoldDays = int(value)
		case "stop_loss":
			p.StopLoss = value
		case "take_profit":
			p.TakeProfit = value
		case "position_pct":
			p.PositionPct = value
		case "max_positions":
			p.MaxPositions = int(value)
		case "max_symbols":
			p.MaxSymbols = int(value)
		case "topk_per_day":
			p.PriorityTopKPerDay = int(value)
		default:
			return p, fmt.Errorf("unknown sweep dimension: %s", name)
		}
	}
	return p, nil
}

// AddToWorkingSet 把参数组合加入工作集，返回规范化 Key
func (s *SweepService) AddToWorkingSet(ctx context.Context, params domain.ParamSet) string {
	key := domain.CanonicalKey(params)
	s.mu.Lock()
	s.workingSet[key] = params
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "working set updated", "action", "add", "key", key)
	return key
}

// RemoveFromWorkingSet 按 Key 移出工作集
func (s *SweepService) RemoveFromWorkingSet(ctx context.Context, key string) bool {
	s.mu.Lock()
	_, ok := s.workingSet[key]
	delete(s.workingSet, key)
	s.mu.Unlock()
	if ok {
		s.logger.InfoContext(ctx, "working set updated", "action", "remove", "key", key)
	}
	return ok
}

// ListWorkingSet 工作集内容，键为规范化 Key
func (s *SweepService) ListWorkingSet(ctx context.Context) map[string]domain.ParamSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.ParamSet, len(s.workingSet))
	for key, params := range s.workingSet {
		out[key] = params
	}
	return out
}

// SavePreset 保存参数预设，相同参数组合重复保存为更新
func (s *SweepService) SavePreset(ctx context.Context, cmd SavePresetCommand) (*domain.Preset, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("preset name is required")
	}
	if len(cmd.Params) == 0 {
		return nil, fmt.Errorf("preset params are required")
	}
	paramsJSON, err := json.Marshal(cmd.Params)
	if err != nil {
		return nil, err
	}
	preset := &domain.Preset{
		PresetID:   uuid.NewString(),
		Name:       cmd.Name,
		ParamKey:   domain.CanonicalKey(cmd.Params),
		ParamsJSON: string(paramsJSON),
		Score:      cmd.Score,
		Remark:     cmd.Remark,
	}
	if err := s.presetRepo.Upsert(ctx, preset); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "preset saved", "preset_id", preset.PresetID, "name", preset.Name)
	return preset, nil
}

// ListPresets 全部预设
func (s *SweepService) ListPresets(ctx context.Context) ([]*domain.Preset, error) {
	return s.presetRepo.List(ctx)
}

// DeletePreset 删除预设
func (s *SweepService) DeletePreset(ctx context.Context, presetID string) error {
	if err := s.presetRepo.Delete(ctx, presetID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "preset deleted", "preset_id", presetID)
	return nil
}

func (s *SweepService) publishCompleted(ctx context.Context, runID string, result *domain.RunResult) {
	if s.eventPublisher == nil {
		return
	}
	payload := map[string]any{
		"run_id":    runID,
		"evaluated": result.EvaluatedCombinations,
		"total":     result.TotalCombinations,
	}
	if result.BestPoint != nil {
		payload["best_key"] = result.BestPoint.Key
		payload["best_score"] = result.BestPoint.Score
	}
	if err := s.eventPublisher.Publish(ctx, topicSweepCompleted, runID, payload); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", "topic", topicSweepCompleted, "error", err)
	}
}
