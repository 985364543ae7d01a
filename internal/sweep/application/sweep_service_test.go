package application

import (
	"context"
	"io"
	"log/slog"
	"testing"

	btdomain "github.com/wyfcoding/stocksim/internal/backtest/domain"
	"github.com/wyfcoding/stocksim/internal/sweep/domain"
)

func TestApplyParams(t *testing.T) {
	base := btdomain.DefaultSimParams()
	params := domain.ParamSet{
		"min_score":     55,
		"window_days":   40,
		"stop_loss":     0.06,
		"take_profit":   0.25,
		"position_pct":  0.15,
		"max_positions": 8,
		"max_symbols":   30,
		"topk_per_day":  3,
	}

	got, err := applyParams(base, params)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.MinScore != 55 || got.MaxHoldDays != 40 || got.StopLoss != 0.06 || got.TakeProfit != 0.25 {
		t.Errorf("params = %+v", got)
	}
	if got.PositionPct != 0.15 || got.MaxPositions != 8 || got.MaxSymbols != 30 || got.PriorityTopKPerDay != 3 {
		t.Errorf("params = %+v", got)
	}
	// 基准参数不受未覆盖维度影响
	if got.FeeBps != base.FeeBps || got.EnforceT1 != base.EnforceT1 {
		t.Errorf("untouched fields changed: %+v", got)
	}
}

func TestApplyParamsUnknownDimension(t *testing.T) {
	if _, err := applyParams(btdomain.DefaultSimParams(), domain.ParamSet{"warp_factor": 9}); err == nil {
		t.Error("expected error for unknown dimension")
	}
}

func TestPlateauValidatesAxesAgainstRunSpace(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewSweepService(
		btdomain.NewSimulator(), nil, nil, domain.DefaultScoreWeights(), 1, logger,
	)

	response, err := service.RunSweep(context.Background(), RunSweepCommand{
		From:           "2025-01-01",
		To:             "2025-03-31",
		InitialCapital: 100000,
		BaseParams:     btdomain.DefaultSimParams(),
		Space: domain.ParamSpace{
			Dimensions: []domain.Dimension{
				{Name: "window_days", Values: []float64{40, 60}},
				{Name: "min_score", Values: []float64{50, 60}},
			},
		},
		Mode: "grid",
	})
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}

	view, err := service.Plateau(context.Background(), response.RunID, "window_days", "min_score")
	if err != nil {
		t.Fatalf("plateau: %v", err)
	}
	if len(view.Cells) != 4 {
		t.Errorf("cells = %d, want 4", len(view.Cells))
	}

	if _, err := service.Plateau(context.Background(), response.RunID, "window_days", "warp_factor"); err == nil {
		t.Error("expected error for axis outside the run's parameter space")
	}
	if _, err := service.Plateau(context.Background(), "no-such-run", "window_days", "min_score"); err == nil {
		t.Error("expected error for unknown run id")
	}
}
