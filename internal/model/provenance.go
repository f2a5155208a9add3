package model

import "time"

// Stage 处理阶段
type Stage string

const (
	StageClassify   Stage = "classify"
	StageMap        Stage = "map"
	StageExtract    Stage = "extract"
	StageEnhance    Stage = "enhance"
	StageValidate   Stage = "validate"
	StageCapability Stage = "capability"
	StagePipeline   Stage = "pipeline"
)

// ProvenanceEntry 溯源日志条目
type ProvenanceEntry struct {
	Seq      int64              `json:"seq"`
	Time     time.Time          `json:"time"`
	Stage    Stage              `json:"stage"`
	Sheet    string             `json:"sheet,omitempty"`
	Subject  string             `json:"subject,omitempty"` // 表头 / 字段 / 记录
	Decision string             `json:"decision"`
	Method   string             `json:"method,omitempty"`
	Score    float64            `json:"score"`
	Tau      float64            `json:"tau"`
	Margin   float64            `json:"margin"`
	Duration time.Duration      `json:"duration"`
	Scores   map[string]float64 `json:"scores,omitempty"` // 全部候选得分
	Detail   string             `json:"detail,omitempty"`
}
