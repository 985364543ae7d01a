package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// linearEvaluator 以参数值线性构造表现，便于人工核对评分与排名
func linearEvaluator(_ context.Context, params ParamSet) (*Evaluation, error) {
	return &Evaluation{
		TotalReturn: params["window_days"] / 100,
		MaxDrawdown: params["min_score"] / 1000,
		TradeCount:  1,
	}, nil
}

func TestScoreWeights(t *testing.T) {
	weights := ScoreWeights{ReturnWeight: 1.0, DrawdownPenalty: 0.5}
	eval := &Evaluation{TotalReturn: 0.6, MaxDrawdown: 0.05}
	if got := weights.Score(eval); got != 0.6-0.5*0.05 {
		t.Errorf("score = %v, want %v", got, 0.6-0.5*0.05)
	}
	if got := weights.Score(nil); got != 0 {
		t.Errorf("score(nil) = %v, want 0", got)
	}
}

func TestEngineDeterministicRanking(t *testing.T) {
	engine := NewEngine(linearEvaluator, DefaultScoreWeights(), 4, nil)
	spec := RunSpec{Space: sampleSpace(), Mode: SampleGrid}

	result, err := engine.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TotalCombinations != 4 || result.EvaluatedCombinations != 4 {
		t.Fatalf("combinations = %d/%d, want 4/4", result.EvaluatedCombinations, result.TotalCombinations)
	}
	// window=60/min_score=50 得分最高：0.6 - 0.5*0.05 = 0.575
	if result.BestPoint == nil {
		t.Fatal("best point missing")
	}
	if result.BestPoint.Params["window_days"] != 60 || result.BestPoint.Params["min_score"] != 50 {
		t.Errorf("best point = %s", result.BestPoint.Key)
	}
	for i := 1; i < len(result.Points); i++ {
		if result.Points[i].Score > result.Points[i-1].Score {
			t.Errorf("points not sorted by score at %d", i)
		}
	}

	// 并发度大于 1 时排名与完成顺序无关
	again, err := engine.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for i := range result.Points {
		if result.Points[i].Key != again.Points[i].Key {
			t.Errorf("ranking differs at %d: %s vs %s", i, result.Points[i].Key, again.Points[i].Key)
		}
	}
}

func TestEngineCacheHit(t *testing.T) {
	calls := 0
	counting := func(ctx context.Context, params ParamSet) (*Evaluation, error) {
		calls++
		return linearEvaluator(ctx, params)
	}
	engine := NewEngine(counting, DefaultScoreWeights(), 1, nil)
	spec := RunSpec{Space: sampleSpace(), Mode: SampleGrid}

	first, err := engine.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	for _, point := range first.Points {
		if point.CacheHit {
			t.Errorf("unexpected cache hit on first run: %s", point.Key)
		}
	}
	if calls != 4 {
		t.Fatalf("calls after first run = %d, want 4", calls)
	}

	second, err := engine.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for _, point := range second.Points {
		if !point.CacheHit {
			t.Errorf("expected cache hit: %s", point.Key)
		}
	}
	if calls != 4 {
		t.Errorf("calls after second run = %d, want 4", calls)
	}
	if second.BestPoint == nil || second.BestPoint.Key != first.BestPoint.Key {
		t.Error("cached run changed best point")
	}
}

func TestEngineFailedPointKeptOutOfRanking(t *testing.T) {
	failing := func(ctx context.Context, params ParamSet) (*Evaluation, error) {
		if params["window_days"] == 60 && params["min_score"] == 50 {
			return nil, errors.New("missing price history")
		}
		return linearEvaluator(ctx, params)
	}
	engine := NewEngine(failing, DefaultScoreWeights(), 2, nil)

	result, err := engine.Run(context.Background(), RunSpec{Space: sampleSpace(), Mode: SampleGrid})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Points) != 4 {
		t.Fatalf("points = %d, want 4 (failed point retained)", len(result.Points))
	}
	last := result.Points[len(result.Points)-1]
	if last.Error == "" {
		t.Error("failed point should sort last")
	}
	// 原本得分最高的点失败后，次优点成为最优
	if result.BestPoint == nil || result.BestPoint.Error != "" {
		t.Fatal("best point must be a valid point")
	}
	if result.BestPoint.Params["window_days"] != 60 || result.BestPoint.Params["min_score"] != 60 {
		t.Errorf("best point = %s", result.BestPoint.Key)
	}
}

func TestEngineAllPointsFailed(t *testing.T) {
	failing := func(context.Context, ParamSet) (*Evaluation, error) {
		return nil, errors.New("boom")
	}
	engine := NewEngine(failing, DefaultScoreWeights(), 2, nil)

	result, err := engine.Run(context.Background(), RunSpec{Space: sampleSpace(), Mode: SampleGrid})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.BestPoint != nil {
		t.Error("best point should be nil when every evaluation fails")
	}
	found := false
	for _, note := range result.Notes {
		if strings.Contains(note, "no valid points") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing no-valid-points note, got %v", result.Notes)
	}
}

func TestEngineCancellation(t *testing.T) {
	started := make(chan struct{}, 8)
	release := make(chan struct{})
	blocking := func(ctx context.Context, params ParamSet) (*Evaluation, error) {
		started <- struct{}{}
		<-release
		return linearEvaluator(ctx, params)
	}
	engine := NewEngine(blocking, DefaultScoreWeights(), 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan *RunResult, 1)
	go func() {
		result, _ := engine.Run(ctx, RunSpec{Space: sampleSpace(), Mode: SampleGrid})
		done <- result
	}()

	<-started
	cancel()
	// 让调度循环观察到取消后再放行正在评估的点
	time.Sleep(50 * time.Millisecond)
	close(release)

	result := <-done
	if result.EvaluatedCombinations != 1 {
		t.Errorf("evaluated = %d, want 1 (in-flight point completes, rest skipped)", result.EvaluatedCombinations)
	}
	found := false
	for _, note := range result.Notes {
		if strings.Contains(note, "cancelled") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing cancellation note, got %v", result.Notes)
	}
}

func TestPlateauSlice(t *testing.T) {
	points := []*ParameterPoint{
		{Params: ParamSet{"window_days": 40, "min_score": 50, "stop_loss": 0.06}, Score: 0.3},
		{Params: ParamSet{"window_days": 40, "min_score": 50, "stop_loss": 0.10}, Score: 0.5},
		{Params: ParamSet{"window_days": 40, "min_score": 60}, Score: 0.2},
		{Params: ParamSet{"window_days": 60, "min_score": 50}, Score: 0.4},
		{Params: ParamSet{"window_days": 60, "min_score": 60}, Score: 0.9, Error: "boom"},
	}
	view := PlateauSlice(points, "window_days", "min_score")

	// 失败点不参与，(60,60) 不出现
	if len(view.Cells) != 3 {
		t.Fatalf("cells = %d, want 3", len(view.Cells))
	}
	first := view.Cells[0]
	if first.X != 40 || first.Y != 50 || first.Score != 0.5 || first.Count != 2 {
		t.Errorf("cell(40,50) = %+v, want max score 0.5 over 2 points", first)
	}

	if len(view.BestPath) != 2 {
		t.Fatalf("best path = %d, want 2", len(view.BestPath))
	}
	if view.BestPath[0].Y != 50 || view.BestPath[1].Y != 50 {
		t.Errorf("best path = %+v", view.BestPath)
	}
}
