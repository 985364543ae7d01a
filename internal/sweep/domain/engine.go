package domain

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
)

// SampleMode 采样模式
type SampleMode string

const (
	SampleGrid SampleMode = "grid"
	SampleLHS  SampleMode = "lhs"
)

// ParameterPoint 单个参数点的评估结果。
// Error 非空的点保留在结果集中供审计，但不参与排名。
type ParameterPoint struct {
	Params   ParamSet    `json:"params"`
	Key      string      `json:"key"`
	Eval     *Evaluation `json:"eval,omitempty"`
	Score    float64     `json:"score"`
	Error    string      `json:"error,omitempty"`
	CacheHit bool        `json:"cache_hit"`
}

// Evaluator 单点评估函数：以参数集跑一次完整回测并聚合表现。
// 必须是输入的纯函数，引擎会跨 goroutine 并发调用。
type Evaluator func(ctx context.Context, params ParamSet) (*Evaluation, error)

// RunSpec 一次扫描的输入
type RunSpec struct {
	Space        ParamSpace
	Mode         SampleMode
	SamplePoints int
	Seed         int64
}

// RunResult 扫描输出：评分降序的全量点集与最优点
type RunResult struct {
	Points                []*ParameterPoint `json:"points"`
	BestPoint             *ParameterPoint   `json:"best_point,omitempty"`
	TotalCombinations     int               `json:"total_combinations"`
	EvaluatedCombinations int               `json:"evaluated_combinations"`
	Notes                 []string          `json:"notes,omitempty"`
}

// Engine 参数扫描引擎。evaluator 无共享可变状态，逐点评估可并行；
// 已评估参数元组缓存在引擎内，重复出现时直接复用并标记 CacheHit。
type Engine struct {
	evaluator   Evaluator
	weights     ScoreWeights
	concurrency int
	logger      *slog.Logger

	mu    sync.RWMutex
	cache map[string]*Evaluation
}

// NewEngine 创建扫描引擎，concurrency <= 0 时串行执行
func NewEngine(evaluator Evaluator, weights ScoreWeights, concurrency int, logger *slog.Logger) *Engine {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Engine{
		evaluator:   evaluator,
		weights:     weights,
		concurrency: concurrency,
		logger:      logger,
		cache:       make(map[string]*Evaluation),
	}
}

// Weights 当前评分权重
func (e *Engine) Weights() ScoreWeights { return e.weights }

// Run 按采样模式生成参数点并并发评估。取消只在点与点之间生效，
// 单点评估不会被中断；已完成的点正常返回。
// 最终排序与完成顺序无关：评分降序，同分按参数 Key 升序。
func (e *Engine) Run(ctx context.Context, spec RunSpec) (*RunResult, error) {
	result := &RunResult{TotalCombinations: spec.Space.TotalCombinations()}

	var sets []ParamSet
	switch spec.Mode {
	case SampleLHS:
		rng := rand.New(rand.NewSource(spec.Seed))
		sets = spec.Space.LHSPoints(spec.SamplePoints, rng)
	default:
		sets = spec.Space.GridPoints()
		if spec.Space.MaxPoints > 0 && result.TotalCombinations > spec.Space.MaxPoints {
			result.Notes = append(result.Notes, fmt.Sprintf("grid truncated to %d of %d combinations", spec.Space.MaxPoints, result.TotalCombinations))
		}
	}
	if len(sets) == 0 {
		result.Notes = append(result.Notes, "parameter space produced no points")
		return result, nil
	}

	jobs := make(chan ParamSet)
	collected := make(chan *ParameterPoint, len(sets))

	var wg sync.WaitGroup
	for i := 0; i < e.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for params := range jobs {
				collected <- e.evaluate(ctx, spec.Space, params)
			}
		}()
	}

	cancelled := false
dispatch:
	for _, params := range sets {
		select {
		case <-ctx.Done():
			cancelled = true
			break dispatch
		case jobs <- params:
		}
	}
	close(jobs)
	wg.Wait()
	close(collected)

	for point := range collected {
		result.Points = append(result.Points, point)
	}
	result.EvaluatedCombinations = len(result.Points)
	if cancelled {
		result.Notes = append(result.Notes, "sweep cancelled before completion")
	}

	sortPoints(result.Points)
	for _, point := range result.Points {
		if point.Error == "" {
			result.BestPoint = point
			break
		}
	}
	if result.BestPoint == nil {
		result.Notes = append(result.Notes, "no valid points: all evaluations failed or empty")
	}
	return result, nil
}

// evaluate 单点评估，命中缓存时不重复回测
func (e *Engine) evaluate(ctx context.Context, space ParamSpace, params ParamSet) *ParameterPoint {
	point := &ParameterPoint{Params: params, Key: space.Key(params)}

	e.mu.RLock()
	cached, hit := e.cache[point.Key]
	e.mu.RUnlock()
	if hit {
		point.Eval = cached
		point.Score = e.weights.Score(cached)
		point.CacheHit = true
		return point
	}

	eval, err := e.evaluator(ctx, params)
	if err != nil {
		point.Error = err.Error()
		if e.logger != nil {
			e.logger.WarnContext(ctx, "sweep point evaluation failed", "key", point.Key, "error", err)
		}
		return point
	}
	point.Eval = eval
	point.Score = e.weights.Score(eval)

	e.mu.Lock()
	e.cache[point.Key] = eval
	e.mu.Unlock()
	return point
}

// sortPoints 有效点在前按评分降序，同分按 Key 升序；失败点按 Key 排在最后
func sortPoints(points []*ParameterPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		if (points[i].Error == "") != (points[j].Error == "") {
			return points[i].Error == ""
		}
		if points[i].Error != "" {
			return points[i].Key < points[j].Key
		}
		if points[i].Score != points[j].Score {
			return points[i].Score > points[j].Score
		}
		return points[i].Key < points[j].Key
	})
}
