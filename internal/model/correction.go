package model

import "time"

// CorrectionReason 自动修正原因码
type CorrectionReason string

const (
	ReasonIdentifierGenerated       CorrectionReason = "identifier_generated"
	ReasonDuplicateIdentifier       CorrectionReason = "duplicate_identifier"
	ReasonDefaultBusAssignment      CorrectionReason = "default_bus_assignment"
	ReasonInferredBusReference      CorrectionReason = "inferred_bus_reference"
	ReasonSynthesizedDefaultBus     CorrectionReason = "synthesized_default_bus"
	ReasonSynthesizedCompanionCable CorrectionReason = "synthesized_companion_cable"
	ReasonCompanionCableLink        CorrectionReason = "companion_cable_link"
	ReasonNameNormalized            CorrectionReason = "name_normalized"
)

// RelationField 非字段级修正（新增记录）使用的字段名
const RelationField = "_record"

// Correction 增强阶段的单条修正，追加后不可修改
type Correction struct {
	Entity     EntityType       `json:"entity"`
	EntityID   string           `json:"entityId"`
	Field      string           `json:"field"`
	Prior      string           `json:"prior"`
	New        string           `json:"new"`
	Reason     CorrectionReason `json:"reason"`
	Sheet      string           `json:"sheet,omitempty"`
	SheetIndex int              `json:"sheetIndex"`
	Row        int              `json:"row,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}
