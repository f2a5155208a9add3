package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RunDetail 单次运行详情
type RunDetail struct {
	Run    store.RunRecord         `json:"run"`
	Sheets []store.SheetResult     `json:"sheets"`
	Report *model.ProcessingReport `json:"report,omitempty"`
}

// ListRuns 最近的运行
// GET /api/runs?limit=20
func (h *Handler) ListRuns(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	runs, err := h.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun 运行详情；report=false 时省略完整报告
// GET /api/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	sheets, err := h.store.SheetResults(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	detail := RunDetail{Run: run, Sheets: sheets}
	// 失败的运行没有报告
	if c.DefaultQuery("report", "true") == "true" && run.Status != store.RunFailed && run.Status != store.RunProcessing {
		report, err := h.store.LoadReport(ctx, id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		detail.Report = report
	}
	c.JSON(http.StatusOK, detail)
}

// GetRunIssues 运行的问题列表
// GET /api/runs/:id/issues?severity=warning
func (h *Handler) GetRunIssues(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	severity := model.Severity(c.Query("severity"))
	switch severity {
	case "", model.SeverityInfo, model.SeverityWarning, model.SeverityError:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown severity %q", severity)})
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.store.GetRun(ctx, id); err != nil {
		h.respondError(c, err)
		return
	}
	issues, err := h.store.RunIssues(ctx, id, severity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if issues == nil {
		issues = []model.ValidationIssue{}
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}

// GetRunCorrections 运行的修正记录
// GET /api/runs/:id/corrections
func (h *Handler) GetRunCorrections(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.store.GetRun(ctx, id); err != nil {
		h.respondError(c, err)
		return
	}
	corrections, err := h.store.RunCorrections(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if corrections == nil {
		corrections = []model.Correction{}
	}
	c.JSON(http.StatusOK, gin.H{"corrections": corrections})
}

// ExportRun 下载运行报告工作簿
// GET /api/runs/:id/export
func (h *Handler) ExportRun(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	id := c.Param("id")
	report, err := h.store.LoadReport(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	f, err := h.exporter.Export(report, nil)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer func() { _ = f.Close() }()

	buf, err := f.WriteToBuffer()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "sld-import-"+id+".xlsx"))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
