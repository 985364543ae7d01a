// Package interfaces 参数扫描接口层
package interfaces

import (
	"net/http"

	"github.com/gin-gonic/gin"

	btdomain "github.com/wyfcoding/stocksim/internal/backtest/domain"
	btinterfaces "github.com/wyfcoding/stocksim/internal/backtest/interfaces"
	"github.com/wyfcoding/stocksim/internal/sweep/application"
	"github.com/wyfcoding/stocksim/internal/sweep/domain"
)

// HTTPHandler HTTP 接口处理器
type HTTPHandler struct {
	sweepService *application.SweepService
}

// NewHTTPHandler 创建 HTTP 处理器
func NewHTTPHandler(sweepService *application.SweepService) *HTTPHandler {
	return &HTTPHandler{sweepService: sweepService}
}

// RegisterRoutes 注册路由
func (h *HTTPHandler) RegisterRoutes(r *gin.RouterGroup) {
	sweeps := r.Group("/sweeps")
	{
		sweeps.POST("", h.RunSweep)
		sweeps.GET("/:id/plateau", h.Plateau)
		sweeps.POST("/presets", h.SavePreset)
		sweeps.GET("/presets", h.ListPresets)
		sweeps.DELETE("/presets/:id", h.DeletePreset)
		sweeps.POST("/working-set", h.AddToWorkingSet)
		sweeps.GET("/working-set", h.ListWorkingSet)
		sweeps.DELETE("/working-set", h.RemoveFromWorkingSet)
	}
}

// RunSweepRequest 参数扫描请求
type RunSweepRequest struct {
	From           string                       `json:"from" binding:"required"`
	To             string                       `json:"to" binding:"required"`
	InitialCapital float64                      `json:"initial_capital" binding:"required"`
	Signals        []btdomain.CandidateSignal   `json:"signals" binding:"required"`
	Candles        map[string][]btdomain.Candle `json:"candles" binding:"required"`
	BaseParams     *btdomain.SimParams          `json:"base_params"`
	Space          domain.ParamSpace            `json:"space" binding:"required"`
	Mode           string                       `json:"mode"`
	SamplePoints   int                          `json:"sample_points"`
	Seed           int64                        `json:"seed"`
}

// RunSweep 执行参数扫描
func (h *HTTPHandler) RunSweep(c *gin.Context) {
	var req RunSweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	baseParams := btdomain.DefaultSimParams()
	if req.BaseParams != nil {
		baseParams = *req.BaseParams
	}

	response, err := h.sweepService.RunSweep(c.Request.Context(), application.RunSweepCommand{
		Signals:        req.Signals,
		Prices:         btinterfaces.BuildPriceBook(req.Candles),
		From:           req.From,
		To:             req.To,
		InitialCapital: req.InitialCapital,
		BaseParams:     baseParams,
		Space:          req.Space,
		Mode:           req.Mode,
		SamplePoints:   req.SamplePoints,
		Seed:           req.Seed,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, response)
}

// Plateau 已完成扫描的二维高原切片
func (h *HTTPHandler) Plateau(c *gin.Context) {
	xName := c.Query("x")
	yName := c.Query("y")
	if xName == "" || yName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query params x and y are required"})
		return
	}
	view, err := h.sweepService.Plateau(c.Request.Context(), c.Param("id"), xName, yName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

// SavePresetRequest 保存预设请求
type SavePresetRequest struct {
	Name   string          `json:"name" binding:"required"`
	Params domain.ParamSet `json:"params" binding:"required"`
	Score  float64         `json:"score"`
	Remark string          `json:"remark"`
}

// SavePreset 保存参数预设
func (h *HTTPHandler) SavePreset(c *gin.Context) {
	var req SavePresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	preset, err := h.sweepService.SavePreset(c.Request.Context(), application.SavePresetCommand{
		Name:   req.Name,
		Params: req.Params,
		Score:  req.Score,
		Remark: req.Remark,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, preset)
}

// ListPresets 全部预设
func (h *HTTPHandler) ListPresets(c *gin.Context) {
	presets, err := h.sweepService.ListPresets(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"presets": presets})
}

// DeletePreset 删除预设
func (h *HTTPHandler) DeletePreset(c *gin.Context) {
	if err := h.sweepService.DeletePreset(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// AddWorkingSetRequest 工作集新增请求
type AddWorkingSetRequest struct {
	Params domain.ParamSet `json:"params" binding:"required"`
}

// AddToWorkingSet 把参数组合加入工作集
func (h *HTTPHandler) AddToWorkingSet(c *gin.Context) {
	var req AddWorkingSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key := h.sweepService.AddToWorkingSet(c.Request.Context(), req.Params)
	c.JSON(http.StatusCreated, gin.H{"key": key})
}

// ListWorkingSet 工作集内容
func (h *HTTPHandler) ListWorkingSet(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"working_set": h.sweepService.ListWorkingSet(c.Request.Context())})
}

// RemoveFromWorkingSet 按规范化 Key 移出工作集
func (h *HTTPHandler) RemoveFromWorkingSet(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query param key is required"})
		return
	}
	if !h.sweepService.RemoveFromWorkingSet(c.Request.Context(), key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not in working set: " + key})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}
