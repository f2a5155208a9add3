// Package api 导入服务的 HTTP 接口
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lucifer2f/sld-design-sub001/internal/exporter"
	"github.com/lucifer2f/sld-design-sub001/internal/importer"
	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/store"
)

// maxUploadBytes 上传工作簿大小上限
const maxUploadBytes = 32 << 20

// Handler API 处理器
type Handler struct {
	coordinator *importer.Coordinator
	store       *store.Store
	exporter    *exporter.Exporter
	logger      *zap.Logger
	startedAt   time.Time
}

// NewHandler 创建 API 处理器；st 为 nil 时运行查询接口返回 503
func NewHandler(coordinator *importer.Coordinator, st *store.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		coordinator: coordinator,
		store:       st,
		exporter:    exporter.NewExporter(coordinator.Registry()),
		logger:      logger,
		startedAt:   time.Now(),
	}
}

// RegisterRoutes 注册 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)
	// 字段目录
	router.GET("/registry", h.GetRegistry)

	// 导入
	router.POST("/import", h.Import)
	router.POST("/process", h.Process)

	// 运行记录
	router.GET("/runs", h.ListRuns)
	router.GET("/runs/:id", h.GetRun)
	router.GET("/runs/:id/issues", h.GetRunIssues)
	router.GET("/runs/:id/corrections", h.GetRunCorrections)
	router.GET("/runs/:id/export", h.ExportRun)
}

// requireStore 未启用持久化时直接响应 503
func (h *Handler) requireStore(c *gin.Context) bool {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence is disabled"})
		return false
	}
	return true
}

// respondError 按错误类别映射状态码
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case eris.Is(err, model.ErrRunNotFound):
		status = http.StatusNotFound
	case eris.Is(err, model.ErrNilInput), eris.Is(err, model.ErrInvalidConfig):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("api: request failed",
			zap.String("path", c.FullPath()),
			zap.String("error", eris.ToString(err, true)))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
