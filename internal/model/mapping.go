package model

// MappingMethod 映射方法
type MappingMethod string

const (
	MethodNone       MappingMethod = "none"
	MethodAliasExact MappingMethod = "alias_exact"
	MethodFuzzy      MappingMethod = "fuzzy"
	MethodEmbedding  MappingMethod = "embedding"
	MethodCombined   MappingMethod = "combined"
)

// MappingReason 未映射/降级原因
type MappingReason string

const (
	ReasonNone           MappingReason = ""
	ReasonBelowThreshold MappingReason = "below_threshold"
	ReasonAmbiguous      MappingReason = "ambiguous"
	ReasonCollision      MappingReason = "collision"
	ReasonRevoked        MappingReason = "revoked"
	ReasonEmptyHeader    MappingReason = "empty_header"
	ReasonUnclassified   MappingReason = "unclassified_sheet"
)

// HeaderMapping 列头映射结果
type HeaderMapping struct {
	ColumnIndex      int           `json:"columnIndex"`
	Header           string        `json:"header"`
	NormalizedHeader string        `json:"normalizedHeader"`
	Field            string        `json:"field,omitempty"`
	Score            float64       `json:"score"`
	RunnerUpField    string        `json:"runnerUpField,omitempty"`
	RunnerUpScore    float64       `json:"runnerUpScore"`
	Method           MappingMethod `json:"method"`
	Accepted         bool          `json:"accepted"`
	Tau              float64       `json:"tau"`
	Margin           float64       `json:"margin"`
	LowConfidence    bool          `json:"lowConfidence"`
	Reason           MappingReason `json:"reason,omitempty"`
	Note             string        `json:"note,omitempty"`
	Suggestion       string        `json:"suggestion,omitempty"` // LLM 建议，仅供参考
}

// AcceptedMappings 过滤出已接受的映射
func AcceptedMappings(mappings []HeaderMapping) []HeaderMapping {
	out := make([]HeaderMapping, 0, len(mappings))
	for _, m := range mappings {
		if m.Accepted {
			out = append(out, m)
		}
	}
	return out
}
