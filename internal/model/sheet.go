package model

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// SheetType 工作表类型
type SheetType string

const (
	SheetTypeUnknown             SheetType = "unknown"
	SheetTypeLoadSchedule        SheetType = "load_schedule"
	SheetTypeCableSchedule       SheetType = "cable_schedule"
	SheetTypeBusSchedule         SheetType = "bus_schedule"
	SheetTypeTransformerSchedule SheetType = "transformer_schedule"
	SheetTypeProjectInfo         SheetType = "project_info"
)

// KnownSheetTypes 可识别的工作表类型（不含 unknown）
func KnownSheetTypes() []SheetType {
	return []SheetType{
		SheetTypeLoadSchedule,
		SheetTypeCableSchedule,
		SheetTypeBusSchedule,
		SheetTypeTransformerSchedule,
		SheetTypeProjectInfo,
	}
}

// Entity 工作表类型对应的实体类型
func (t SheetType) Entity() (EntityType, bool) {
	switch t {
	case SheetTypeLoadSchedule:
		return EntityLoad, true
	case SheetTypeCableSchedule:
		return EntityCable, true
	case SheetTypeBusSchedule:
		return EntityBus, true
	case SheetTypeTransformerSchedule:
		return EntityTransformer, true
	case SheetTypeProjectInfo:
		return EntityProjectInfo, true
	default:
		return "", false
	}
}

// CellKind 单元格值类型
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
)

// Cell 单元格
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

// TextCell 构造文本单元格
func TextCell(s string) Cell {
	if s == "" {
		return Cell{Kind: CellEmpty}
	}
	return Cell{Kind: CellText, Text: s}
}

// NumberCell 构造数值单元格
func NumberCell(v float64) Cell {
	return Cell{Kind: CellNumber, Number: v}
}

// IsEmpty 是否为空单元格
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty || (c.Kind == CellText && c.Text == "")
}

// String 单元格文本形式
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellText:
		return c.Text
	default:
		return ""
	}
}

// MarshalJSON 单元格编码为 JSON 标量：数值、字符串或 null
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellNumber:
		return json.Marshal(c.Number)
	case CellText:
		return json.Marshal(c.Text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON 接受数值、字符串、布尔或 null
func (c *Cell) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return eris.Wrap(err, "invalid cell")
	}
	switch x := v.(type) {
	case nil:
		*c = Cell{}
	case float64:
		*c = NumberCell(x)
	case string:
		*c = TextCell(x)
	case bool:
		*c = TextCell(strconv.FormatBool(x))
	default:
		return eris.Errorf("unsupported cell value %s", string(data))
	}
	return nil
}

// Sheet 外部解析器提供的结构化表格
type Sheet struct {
	Name    string   `json:"name"`
	Headers []string `json:"headers"`
	Rows    [][]Cell `json:"rows"`
}

// DecisionBasis 分类依据
type DecisionBasis string

const (
	BasisPattern   DecisionBasis = "pattern"
	BasisEmbedding DecisionBasis = "embedding"
	BasisCombined  DecisionBasis = "combined"
)

// CandidateScore 单个候选类型的得分
type CandidateScore struct {
	Type     SheetType `json:"type"`
	Pattern  float64   `json:"pattern"`
	Semantic float64   `json:"semantic"`
	Combined float64   `json:"combined"`
}

// SheetClassification 工作表分类结果
type SheetClassification struct {
	SheetName     string           `json:"sheetName"`
	Type          SheetType        `json:"type"`
	Confidence    float64          `json:"confidence"`
	RunnerUp      SheetType        `json:"runnerUp"`
	RunnerUpScore float64          `json:"runnerUpScore"`
	Basis         DecisionBasis    `json:"basis"`
	Candidates    []CandidateScore `json:"candidates"`
	Tau           float64          `json:"tau"`
	Margin        float64          `json:"margin"`
	Reason        string           `json:"reason,omitempty"` // below_threshold / ambiguous
}

// Recognized 是否识别成功
func (c SheetClassification) Recognized() bool {
	return c.Type != SheetTypeUnknown
}

// CellAt 安全读取单元格，越界返回空单元格
func (s Sheet) CellAt(row, col int) Cell {
	if row < 0 || row >= len(s.Rows) || col < 0 || col >= len(s.Rows[row]) {
		return Cell{}
	}
	return s.Rows[row][col]
}

// NonEmptyHeaders 非空表头数量
func (s Sheet) NonEmptyHeaders() int {
	n := 0
	for _, h := range s.Headers {
		if strings.TrimSpace(h) != "" {
			n++
		}
	}
	return n
}
