// Package domain 参数扫描（利润高原搜索）引擎的领域模型。
// 支持全网格枚举与拉丁超立方抽样（LHS），逐点运行回测并按综合评分排序。
package domain

import (
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// Dimension 单个可调参数维度。Values 为空时退化为 Base 单值。
type Dimension struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
	Base   float64   `json:"base"`
}

func (d Dimension) candidates() []float64 {
	if len(d.Values) == 0 {
		return []float64{d.Base}
	}
	return d.Values
}

// ParamSpace 参数空间：维度集合与网格枚举上限
type ParamSpace struct {
	Dimensions []Dimension `json:"dimensions"`
	MaxPoints  int         `json:"max_points"`
}

// ParamSet 一组具体参数取值
type ParamSet map[string]float64

// Key 参数元组的规范化标识：按维度声明顺序拼接 name=value。
// 相同参数组合必然得到相同 Key，用于去重、缓存与结果排序决胜。
func (s ParamSpace) Key(params ParamSet) string {
	parts := make([]string, 0, len(s.Dimensions))
	for _, dim := range s.Dimensions {
		value := strconv.FormatFloat(params[dim.Name], 'g', -1, 64)
		parts = append(parts, dim.Name+"="+value)
	}
	return strings.Join(parts, "|")
}

// HasDimension 参数空间是否包含指定名称的维度
func (s ParamSpace) HasDimension(name string) bool {
	for _, dim := range s.Dimensions {
		if dim.Name == name {
			return true
		}
	}
	return false
}

// CanonicalKey 脱离参数空间的规范化标识：按参数名字典序拼接。
// 预设落库以此判重，与维度声明顺序无关。
func CanonicalKey(params ParamSet) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+strconv.FormatFloat(params[name], 'g', -1, 64))
	}
	return strings.Join(parts, "|")
}

// TotalCombinations 全网格组合总数
func (s ParamSpace) TotalCombinations() int {
	total := 1
	for _, dim := range s.Dimensions {
		total *= len(dim.candidates())
	}
	return total
}

// GridPoints 笛卡尔积枚举，受 MaxPoints 截断
func (s ParamSpace) GridPoints() []ParamSet {
	points := []ParamSet{{}}
	for _, dim := range s.Dimensions {
		var expanded []ParamSet
		for _, point := range points {
			for _, value := range dim.candidates() {
				next := make(ParamSet, len(point)+1)
				for k, v := range point {
					next[k] = v
				}
				next[dim.Name] = value
				expanded = append(expanded, next)
			}
		}
		points = expanded
	}
	if s.MaxPoints > 0 && len(points) > s.MaxPoints {
		points = points[:s.MaxPoints]
	}
	return points
}

// LHSPoints 拉丁超立方抽样：每个维度独立地把 [0,1) 均分为 n 层，
// 每层抽一个值，再对各维度施加独立的随机置换去相关；
// 相同种子的 RNG 产出完全相同的样本集。重复参数元组被去重。
func (s ParamSpace) LHSPoints(n int, rng *rand.Rand) []ParamSet {
	if n <= 0 {
		return nil
	}

	// 每维一列分层样本，独立置换
	columns := make([][]float64, len(s.Dimensions))
	for d := range s.Dimensions {
		column := make([]float64, n)
		for i := 0; i < n; i++ {
			column[i] = (float64(i) + rng.Float64()) / float64(n)
		}
		perm := rng.Perm(n)
		shuffled := make([]float64, n)
		for i, j := range perm {
			shuffled[i] = column[j]
		}
		columns[d] = shuffled
	}

	seen := make(map[string]bool)
	var points []ParamSet
	for i := 0; i < n; i++ {
		point := make(ParamSet, len(s.Dimensions))
		for d, dim := range s.Dimensions {
			point[dim.Name] = pick(dim.candidates(), columns[d][i])
		}
		key := s.Key(point)
		if seen[key] {
			continue
		}
		seen[key] = true
		points = append(points, point)
	}
	return points
}

// pick 把 [0,1) 的分层样本映射到离散候选列表
func pick(values []float64, u float64) float64 {
	idx := int(u * float64(len(values)))
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}
