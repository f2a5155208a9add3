package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lucifer2f/sld-design-sub001/internal/registry"
)

// RegistryResponse 字段目录响应
type RegistryResponse struct {
	Entities    []registry.EntitySummary `json:"entities"`
	SheetTypes  []string                 `json:"sheetTypes"`
	SheetPolicy registry.ThresholdPolicy `json:"sheetPolicy"`
}

// GetRegistry 字段目录、别名与阈值
// GET /api/registry
func (h *Handler) GetRegistry(c *gin.Context) {
	reg := h.coordinator.Registry()
	resp := RegistryResponse{
		Entities:    reg.Summary(),
		SheetPolicy: reg.SheetPolicy(),
	}
	for _, d := range reg.SheetDescriptors() {
		resp.SheetTypes = append(resp.SheetTypes, string(d.Type))
	}
	c.JSON(http.StatusOK, resp)
}
