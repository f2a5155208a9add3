package model

// Severity 问题严重级别
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rank 严重级别排序值
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// IssueKind 问题分类
type IssueKind string

const (
	KindUnrecognizedSheetType IssueKind = "UnrecognizedSheetType"
	KindAmbiguousMapping      IssueKind = "AmbiguousMapping"
	KindCapabilityUnavailable IssueKind = "CapabilityUnavailable"
	KindFieldCoercionFailure  IssueKind = "FieldCoercionFailure"
	KindOutOfRangeValue       IssueKind = "OutOfRangeValue"
	KindMalformedSheet        IssueKind = "MalformedSheet"
	KindUnresolvedReference   IssueKind = "UnresolvedReference"
	KindSuspiciousMapping     IssueKind = "SuspiciousMapping"
	KindUnmappedHeader        IssueKind = "UnmappedHeader"
	KindUnknownUnit           IssueKind = "UnknownUnit"
)

// ValidationIssue 验证问题
type ValidationIssue struct {
	Severity Severity   `json:"severity"`
	Kind     IssueKind  `json:"kind"`
	Entity   EntityType `json:"entity,omitempty"`
	EntityID string     `json:"entityId,omitempty"`
	Sheet    string     `json:"sheet,omitempty"`
	Row      int        `json:"row,omitempty"`
	Field    string     `json:"field,omitempty"`
	Message  string     `json:"message"`
	RuleID   string     `json:"ruleId"`
}

// Blocking 是否阻止记录进入 ACCEPTED
func (i ValidationIssue) Blocking() bool {
	return i.Severity == SeverityError
}

// CountBySeverity 按严重级别计数
func CountBySeverity(issues []ValidationIssue) map[Severity]int {
	out := map[Severity]int{}
	for _, i := range issues {
		out[i.Severity]++
	}
	return out
}
