// Package plan 提供餐點計畫的 HTTP 處理程序。
package plan

import (
	"context"
	"errors"
	"net/http"
	"time"

	"meal-planner/internal/core/planner"
	"meal-planner/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PlanService 計畫服務
type PlanService interface {
	Generate(ctx context.Context, req planner.GenerateRequest) (*planner.GenerateResult, error)
	GetPlan(ctx context.Context, userID string, weekStart time.Time) (string, []common.MealPlanItem, error)
}

// GenerateRequest 產生計畫請求
type GenerateRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	WeekStart string `json:"week_start" binding:"required"` // YYYY-MM-DD
	Days      int    `json:"days,omitempty" binding:"omitempty,min=1,max=14"`
	Seed      *int64 `json:"seed,omitempty"`
	UseAI     bool   `json:"use_ai,omitempty"`
}

// PlanResponse 已儲存的計畫
type PlanResponse struct {
	PlanID    string                `json:"plan_id"`
	UserID    string                `json:"user_id"`
	WeekStart string                `json:"week_start"`
	Items     []common.MealPlanItem `json:"items"`
}

// Handler 計畫處理程序
type Handler struct {
	service PlanService
}

// NewHandler 創建新的計畫處理程序
func NewHandler(service PlanService) *Handler {
	return &Handler{service: service}
}

// HandleGenerate 產生並儲存一週餐點計畫
func (h *Handler) HandleGenerate(c *gin.Context) {
	rid := requestid.Get(c)

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("請求格式無效", zap.Error(err), zap.String("request_id", rid))
		respondError(c, common.ErrInvalidRequest.Wrap(err))
		return
	}

	weekStart, err := common.ParseDate(req.WeekStart)
	if err != nil {
		respondError(c, common.ErrInvalidRequest.Wrap(errors.New("week_start must be YYYY-MM-DD")))
		return
	}

	common.LogInfo("開始產生餐點計畫",
		zap.String("request_id", rid),
		zap.String("user_id", req.UserID),
		zap.String("week_start", req.WeekStart),
		zap.Bool("use_ai", req.UseAI),
	)

	result, err := h.service.Generate(c.Request.Context(), planner.GenerateRequest{
		UserID:    req.UserID,
		WeekStart: weekStart,
		Days:      req.Days,
		Seed:      req.Seed,
		UseAI:     req.UseAI,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleGetPlan 取得已儲存的計畫
func (h *Handler) HandleGetPlan(c *gin.Context) {
	userID := c.Param("user_id")
	raw := c.Query("week_start")
	if raw == "" {
		respondError(c, common.ErrInvalidRequest.Wrap(errors.New("week_start is required")))
		return
	}
	weekStart, err := common.ParseDate(raw)
	if err != nil {
		respondError(c, common.ErrInvalidRequest.Wrap(errors.New("week_start must be YYYY-MM-DD")))
		return
	}

	planID, items, err := h.service.GetPlan(c.Request.Context(), userID, weekStart)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, PlanResponse{
		PlanID:    planID,
		UserID:    userID,
		WeekStart: raw,
		Items:     items,
	})
}

// respondError 將 CustomError 轉為 {error, code, kind}
func respondError(c *gin.Context, err error) {
	ce := common.AsCustomError(err)
	status := ce.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	fields := []zap.Field{
		zap.String("request_id", requestid.Get(c)),
		zap.String("code", ce.Code),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		common.LogError("計畫請求失敗", fields...)
	} else {
		common.LogWarn("計畫請求被拒絕", fields...)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{
		"error": ce.Message,
		"code":  ce.Code,
		"kind":  ce.Kind,
	})
}
