package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatusResponse 系统状态响应
type StatusResponse struct {
	Status          string          `json:"status"`
	Uptime          string          `json:"uptime"`
	AcceptanceFloor float64         `json:"acceptanceFloor"`
	Capabilities    map[string]bool `json:"capabilities"`   // 配置中启用的外部能力
	Persistence     bool            `json:"persistence"`    // 是否启用 SQLite 持久化
	LastRunID       string          `json:"lastRunId"`      // 最近一次运行
	LastImportTime  string          `json:"lastImportTime"` // 最近一次运行完成时间
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	resp := StatusResponse{
		Status:          "ok",
		Uptime:          time.Since(h.startedAt).Round(time.Second).String(),
		AcceptanceFloor: h.coordinator.AcceptanceFloor(),
		Capabilities:    h.coordinator.Capabilities(),
		Persistence:     h.store != nil,
	}
	if h.store != nil {
		ctx := c.Request.Context()
		if id, err := h.store.LastRunID(ctx); err == nil && id != "" {
			resp.LastRunID = id
			if run, err := h.store.GetRun(ctx, id); err == nil && run.CompletedAt != nil {
				resp.LastImportTime = run.CompletedAt.Format(time.RFC3339)
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}
