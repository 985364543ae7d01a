// Package interfaces 回测接口层
package interfaces

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/stocksim/internal/backtest/application"
	"github.com/wyfcoding/stocksim/internal/backtest/domain"
)

// HTTPHandler HTTP 接口处理器
type HTTPHandler struct {
	backtestService *application.BacktestService
}

// NewHTTPHandler 创建 HTTP 处理器
func NewHTTPHandler(backtestService *application.BacktestService) *HTTPHandler {
	return &HTTPHandler{backtestService: backtestService}
}

// RegisterRoutes 注册路由
func (h *HTTPHandler) RegisterRoutes(r *gin.RouterGroup) {
	backtests := r.Group("/backtests")
	{
		backtests.POST("", h.RunBacktest)
		backtests.GET("/:id", h.GetReport)
		backtests.GET("", h.ListReports)
	}
}

// RunBacktestRequest 回测请求。candles 按标的给出日线行情，
// 乱序输入会在构建行情序列时排序。
type RunBacktestRequest struct {
	From           string                     `json:"from" binding:"required"`
	To             string                     `json:"to" binding:"required"`
	InitialCapital float64                    `json:"initial_capital" binding:"required"`
	Signals        []domain.CandidateSignal   `json:"signals" binding:"required"`
	Candles        map[string][]domain.Candle `json:"candles" binding:"required"`
	Params         *domain.SimParams          `json:"params"`
	TopN           int                        `json:"top_n"`
}

// RunBacktest 同步执行回测
func (h *HTTPHandler) RunBacktest(c *gin.Context) {
	var req RunBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := domain.DefaultSimParams()
	if req.Params != nil {
		params = *req.Params
	}

	response, err := h.backtestService.RunBacktest(c.Request.Context(), application.RunBacktestCommand{
		Signals:        req.Signals,
		Prices:         BuildPriceBook(req.Candles),
		From:           req.From,
		To:             req.To,
		InitialCapital: req.InitialCapital,
		Params:         params,
		TopN:           req.TopN,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, response)
}

// GetReport 查询历史回测报告
func (h *HTTPHandler) GetReport(c *gin.Context) {
	report, err := h.backtestService.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListReports 分页列出历史回测报告
func (h *HTTPHandler) ListReports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	reports, total, err := h.backtestService.ListReports(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "total": total})
}

// BuildPriceBook 把按标的分组的日线行情整理为日期升序的行情集合
func BuildPriceBook(candles map[string][]domain.Candle) domain.PriceBook {
	book := make(domain.PriceBook, len(candles))
	for symbol, series := range candles {
		sorted := make(domain.PriceSeries, len(series))
		copy(sorted, series)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })
		book[symbol] = sorted
	}
	return book
}
