package importer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/workbook"
)

// 进度事件类型
const (
	EventStart     = "start"
	EventInfo      = "info"
	EventSheetDone = "sheet_done"
	EventWarning   = "warning"
	EventDone      = "done"
	EventError     = "error"
)

// ImportOptions 导入选项
type ImportOptions struct {
	FilePath string
	Filename string   // 展示用文件名，默认取 FilePath 的文件名
	Data     []byte   // 上传内容，非空时忽略 FilePath
	Sheets   []string // 只处理这些 sheet，空表示全部
	Save     bool     // 是否写入运行历史
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string    `json:"type"`      // start/info/sheet_done/warning/done/error
	RunID     string    `json:"runId"`     // 运行 ID
	Message   string    `json:"message"`   // 事件消息
	Data      any       `json:"data"`      // 附加数据
	Timestamp time.Time `json:"timestamp"` // 时间戳
}

// Import 执行导入，返回进度通道；通道在运行结束后关闭
func (c *Coordinator) Import(ctx context.Context, opts ImportOptions) <-chan ProgressEvent {
	progressChan := make(chan ProgressEvent, 100)

	go func() {
		defer close(progressChan)
		c.doImport(ctx, opts, progressChan)
	}()

	return progressChan
}

// doImport 执行导入逻辑
func (c *Coordinator) doImport(ctx context.Context, opts ImportOptions, progressChan chan ProgressEvent) {
	runID := uuid.NewString()
	filename := opts.Filename
	if filename == "" {
		filename = filepath.Base(opts.FilePath)
	}
	emit := func(typ, msg string, data any) {
		c.sendProgress(progressChan, ProgressEvent{Type: typ, RunID: runID, Message: msg, Data: data, Timestamp: time.Now()})
	}
	fail := func(err error) {
		c.metrics.ObserveFailure()
		c.logger.Error("importer: import failed", zap.String("run_id", runID), zap.Error(err))
		c.sendFinal(ctx, progressChan, ProgressEvent{
			Type:      EventError,
			RunID:     runID,
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
	}

	emit(EventStart, fmt.Sprintf("开始导入 %s", filename), map[string]any{
		"run_id":   runID,
		"filename": filename,
	})

	data := opts.Data
	if len(data) == 0 {
		var err error
		data, err = os.ReadFile(opts.FilePath)
		if err != nil {
			fail(eris.Wrapf(err, "failed to read %s", opts.FilePath))
			return
		}
	}
	sum := sha256.Sum256(data)

	save := opts.Save && c.store != nil
	if save {
		if err := c.store.CreateRun(ctx, runID, filename, int64(len(data)), hex.EncodeToString(sum[:])); err != nil {
			fail(err)
			return
		}
	}
	abort := func(err error) {
		if save {
			if ferr := c.store.FailRun(context.WithoutCancel(ctx), runID, err.Error()); ferr != nil {
				c.logger.Warn("importer: failed to record run failure", zap.String("run_id", runID), zap.Error(ferr))
			}
		}
		fail(err)
	}

	sheets, err := workbook.Read(bytes.NewReader(data), workbook.Options{Sheets: opts.Sheets})
	if err != nil {
		abort(err)
		return
	}
	emit(EventInfo, fmt.Sprintf("发现 %d 个 Sheet", len(sheets)), map[string]any{
		"total_sheets": len(sheets),
	})

	report, err := c.run(ctx, runID, sheets, func(evt ProgressEvent) {
		evt.RunID = runID
		c.sendProgress(progressChan, evt)
	})
	if err != nil {
		abort(err)
		return
	}
	if report.Cancelled {
		emit(EventWarning, "导入已取消，未处理的 Sheet 标记为 not_processed", nil)
	}
	for _, is := range report.Issues {
		if is.Kind == model.KindCapabilityUnavailable {
			emit(EventWarning, is.Message, nil)
		}
	}

	if save {
		// 取消后仍保存已完成的部分
		if err := c.store.FinishRun(context.WithoutCancel(ctx), report); err != nil {
			c.logger.Warn("importer: failed to persist run", zap.String("run_id", runID), zap.Error(err))
			emit(EventWarning, fmt.Sprintf("保存运行记录失败: %v", err), nil)
		}
	}

	c.sendFinal(ctx, progressChan, ProgressEvent{
		Type:      EventDone,
		RunID:     runID,
		Message:   "导入完成",
		Data:      report,
		Timestamp: time.Now(),
	})
}

func sheetDoneEvent(sr model.SheetReport) ProgressEvent {
	data := map[string]any{
		"sheet_name": sr.Name,
		"status":     sr.Status,
		"records":    len(sr.Records),
	}
	msg := fmt.Sprintf("Sheet \"%s\" %s: %d 条记录", sr.Name, sr.Status, len(sr.Records))
	if cls := sr.Classification; cls != nil {
		data["sheet_type"] = cls.Type
		data["confidence"] = cls.Confidence
		msg = fmt.Sprintf("Sheet \"%s\" 识别为: %s (置信度: %.2f), %d 条记录", sr.Name, cls.Type, cls.Confidence, len(sr.Records))
	}
	if sr.Error != "" {
		msg = fmt.Sprintf("Sheet \"%s\" 处理失败: %s", sr.Name, sr.Error)
	}
	return ProgressEvent{Type: EventSheetDone, Message: msg, Data: data, Timestamp: time.Now()}
}

// sendProgress 发送进度事件（非阻塞）
func (c *Coordinator) sendProgress(ch chan ProgressEvent, event ProgressEvent) {
	select {
	case ch <- event:
	default:
		// 通道已满，跳过
	}
}

// sendFinal 终止事件必须送达，除非调用方已放弃
func (c *Coordinator) sendFinal(ctx context.Context, ch chan ProgressEvent, event ProgressEvent) {
	select {
	case ch <- event:
		return
	default:
	}
	select {
	case ch <- event:
	case <-ctx.Done():
	}
}
