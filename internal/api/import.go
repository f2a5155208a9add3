package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/lucifer2f/sld-design-sub001/internal/importer"
	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

// Import 导入上传的 Excel 工作簿 (SSE 流式响应)
// POST /api/import
//
// 表单字段：file（必填）、sheets（可多值，限定处理的 sheet）、save（默认 true）
func (h *Handler) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing upload field \"file\""})
		return
	}
	uploaded := files[0]

	src, err := uploaded.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open upload"})
		return
	}
	data, err := io.ReadAll(src)
	_ = src.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	save := c.DefaultPostForm("save", "true") == "true" && h.store != nil

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	// 设置 SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	// 客户端断开即取消运行
	events := h.coordinator.Import(c.Request.Context(), importer.ImportOptions{
		Filename: filepath.Base(uploaded.Filename),
		Data:     data,
		Sheets:   form.Value["sheets"],
		Save:     save,
	})
	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		// SSE 格式: data: {json}\n\n
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

// ProcessRequest 直接提交结构化 sheet
type ProcessRequest struct {
	Sheets   []model.Sheet `json:"sheets"`
	Save     bool          `json:"save"`
	Filename string        `json:"filename"`
}

// Process 处理已解析的 sheet，返回完整报告
// POST /api/process
func (h *Handler) Process(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Sheets == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sheets is required"})
		return
	}

	ctx := c.Request.Context()
	report, err := h.coordinator.Run(ctx, req.Sheets)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if req.Save {
		if !h.requireStore(c) {
			return
		}
		if err := h.store.SaveReport(ctx, report, req.Filename); err != nil {
			h.respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, report)
}
