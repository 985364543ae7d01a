package domain

import "sort"

// PlateauCell 二维切片中的一个网格单元，取该单元内各点的最高评分
type PlateauCell struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
	Count int     `json:"count"`
}

// PlateauView 利润高原可视化数据：网格单元与最优路径
type PlateauView struct {
	XName    string        `json:"x_name"`
	YName    string        `json:"y_name"`
	Cells    []PlateauCell `json:"cells"`
	BestPath []PlateauCell `json:"best_path"` // 每个 X 取评分最高的 Y
}

// PlateauSlice 选取两个参数维度做二维投影，其余维度按最高分聚合。
// 失败点不参与聚合。
func PlateauSlice(points []*ParameterPoint, xName, yName string) *PlateauView {
	view := &PlateauView{XName: xName, YName: yName}

	type cellKey struct{ x, y float64 }
	cells := make(map[cellKey]*PlateauCell)
	for _, point := range points {
		if point.Error != "" {
			continue
		}
		x, okX := point.Params[xName]
		y, okY := point.Params[yName]
		if !okX || !okY {
			continue
		}
		key := cellKey{x, y}
		cell, ok := cells[key]
		if !ok {
			cell = &PlateauCell{X: x, Y: y, Score: point.Score}
			cells[key] = cell
		} else if point.Score > cell.Score {
			cell.Score = point.Score
		}
		cell.Count++
	}

	for _, cell := range cells {
		view.Cells = append(view.Cells, *cell)
	}
	sort.Slice(view.Cells, func(i, j int) bool {
		if view.Cells[i].X != view.Cells[j].X {
			return view.Cells[i].X < view.Cells[j].X
		}
		return view.Cells[i].Y < view.Cells[j].Y
	})

	// 每个 X 的最优 Y 构成最优路径
	bestByX := make(map[float64]PlateauCell)
	var xs []float64
	for _, cell := range view.Cells {
		best, ok := bestByX[cell.X]
		if !ok {
			xs = append(xs, cell.X)
		}
		if !ok || cell.Score > best.Score {
			bestByX[cell.X] = cell
		}
	}
	sort.Float64s(xs)
	for _, x := range xs {
		view.BestPath = append(view.BestPath, bestByX[x])
	}
	return view
}
