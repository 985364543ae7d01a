// Package interfaces 模拟交易接口层
package interfaces

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/stocksim/internal/trading/application"
)

// HTTPHandler HTTP 接口处理器
type HTTPHandler struct {
	sessionService *application.SessionService
}

// NewHTTPHandler 创建 HTTP 处理器
func NewHTTPHandler(sessionService *application.SessionService) *HTTPHandler {
	return &HTTPHandler{sessionService: sessionService}
}

// RegisterRoutes 注册路由
func (h *HTTPHandler) RegisterRoutes(r *gin.RouterGroup) {
	trading := r.Group("/trading")
	{
		trading.POST("/orders", h.SubmitOrder)
		trading.POST("/orders/:id/cancel", h.CancelOrder)
		trading.POST("/settlements", h.Settle)
		trading.POST("/reset", h.Reset)
		trading.GET("/orders", h.ListOrders)
		trading.GET("/fills", h.ListFills)
		trading.GET("/closed-trades", h.ListClosedTrades)
		trading.POST("/portfolio", h.Portfolio)
		trading.GET("/review", h.Review)
	}
}

// SubmitOrderRequest 订单提交请求
type SubmitOrderRequest struct {
	Symbol     string  `json:"symbol" binding:"required"`
	Side       string  `json:"side" binding:"required"`
	Quantity   int64   `json:"quantity" binding:"required"`
	RefPrice   float64 `json:"ref_price" binding:"required"`
	SignalDate string  `json:"signal_date"`
	SubmitDate string  `json:"submit_date" binding:"required"`
}

// SubmitOrder 提交订单。准入被拒的订单返回 200 与 REJECTED 状态。
func (h *HTTPHandler) SubmitOrder(c *gin.Context) {
	var req SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.sessionService.SubmitOrder(c.Request.Context(), application.SubmitOrderCommand{
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		RefPrice:   req.RefPrice,
		SignalDate: req.SignalDate,
		SubmitDate: req.SubmitDate,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, order)
}

// CancelOrder 取消订单
func (h *HTTPHandler) CancelOrder(c *gin.Context) {
	order, err := h.sessionService.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

// SettleRequest 结算请求，prices 为空时按预估执行价成交
type SettleRequest struct {
	Prices map[string]float64 `json:"prices"`
}

// Settle 推进全部待成交订单
func (h *HTTPHandler) Settle(c *gin.Context) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.sessionService.Settle(c.Request.Context(), req.Prices))
}

// Reset 清空会话
func (h *HTTPHandler) Reset(c *gin.Context) {
	h.sessionService.ResetSession(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "session reset"})
}

// ListOrders 全部订单
func (h *HTTPHandler) ListOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": h.sessionService.ListOrders(c.Request.Context())})
}

// ListFills 全部成交
func (h *HTTPHandler) ListFills(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"fills": h.sessionService.ListFills(c.Request.Context())})
}

// ListClosedTrades 全部平仓记录
func (h *HTTPHandler) ListClosedTrades(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"closed_trades": h.sessionService.ListClosedTrades(c.Request.Context())})
}

// PortfolioRequest 组合估值请求，prices 缺失的批次按单位成本估值
type PortfolioRequest struct {
	Prices map[string]float64 `json:"prices"`
}

// Portfolio 组合快照
func (h *HTTPHandler) Portfolio(c *gin.Context) {
	var req PortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.sessionService.Portfolio(c.Request.Context(), req.Prices))
}

// Review 平仓交易复盘：统计、曲线与交易明细。
// axis 查询参数选择曲线日期轴（entry_date / exit_date，默认 exit_date）。
func (h *HTTPHandler) Review(c *gin.Context) {
	review, err := h.sessionService.Review(c.Request.Context(), c.Query("axis"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, review)
}
