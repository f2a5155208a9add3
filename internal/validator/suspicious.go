package validator

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/registry"
)

const (
	// 低信息表头惩罚
	lowInformationPenalty = 0.25
	// 值分布与字段不符的惩罚
	implausibleDistributionPenalty = 0.30
	// 分布判断的最少样本数
	minDistributionSamples = 3

	RuleSuspicious = "mapping.suspicious"
	RuleUnmapped   = "mapping.unmapped"
)

// 电子表格默认列名与泛化占位表头（规范化后匹配）
var lowInformationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(column|col|field|unnamed|untitled|header|heading|spalte|colonne|columna|列|字段)\s*\d*$`),
	regexp.MustCompile(`^unnamed \d+ level \d+$`),
	regexp.MustCompile(`^f\s*\d+$`),
	regexp.MustCompile(`^[a-z]{1,3}\s*\d+$`),
	regexp.MustCompile(`^(data|value|values|item|info|misc|other|remark|x|y|z|新建列|数据)$`),
}

// LowInformationHeader 表头是否为低信息量（纯数字、默认列名、泛化占位）
func LowInformationHeader(header string) bool {
	n := registry.Normalize(header)
	if n == "" || registry.IsNumericOnly(n) {
		return true
	}
	for _, re := range lowInformationPatterns {
		if re.MatchString(n) {
			return true
		}
	}
	return false
}

type valueRange struct{ min, max float64 }

// 各量纲的合理取值范围（宽于校验规则的边界）
var plausibleRanges = map[model.UnitClass]valueRange{
	model.UnitPower:         {0, 1e6},
	model.UnitApparentPower: {0, 1e7},
	model.UnitVoltage:       {6, 1e6},
	model.UnitCurrent:       {0, 1e6},
	model.UnitFaultCurrent:  {0, 1000},
	model.UnitLength:        {0, 1e5},
	model.UnitArea:          {0.5, 1000},
	model.UnitRatio:         {0, 2},
	model.UnitPercent:       {0, 100},
	model.UnitFrequency:     {10, 1000},
	model.UnitTemperature:   {-60, 150},
	model.UnitCount:         {0, 1e4},
}

// implausibleDistribution 列值多数无法转换或多数落在合理范围之外
func implausibleDistribution(f model.CanonicalField, values []model.FieldValue) (bool, string) {
	if len(values) < minDistributionSamples {
		return false, ""
	}
	failed, inRange, set := 0, 0, 0
	r, ranged := plausibleRanges[f.UnitClass]
	for _, v := range values {
		if !v.Set {
			failed++
			continue
		}
		set++
		if f.Kind == model.KindNumeric && ranged && v.Number >= r.min && v.Number <= r.max {
			inRange++
		}
	}
	if failed*2 > len(values) {
		return true, fmt.Sprintf("%d of %d values could not be read as %s", failed, len(values), f.ID)
	}
	if f.Kind == model.KindNumeric && ranged && set > 0 && inRange*2 < set {
		return true, fmt.Sprintf("%d of %d values outside plausible %s range [%g, %g]",
			set-inRange, set, f.UnitClass, r.min, r.max)
	}
	return false, ""
}

// columnValues 收集由该列写入的字段值（含转换失败的值）
func columnValues(records []*model.ExtractedRecord, field string, col int) []model.FieldValue {
	var out []model.FieldValue
	for _, rec := range records {
		fv, ok := rec.Lookup(field)
		if !ok || fv.Column != col {
			continue
		}
		if !fv.Set && fv.Issue == "" {
			continue
		}
		out = append(out, fv)
	}
	return out
}

// reviewMappings 对已接受映射做事后惩罚，不再满足阈值策略时撤销并清除对应值
func (v *Validator) reviewMappings(s *SheetInput) []model.ValidationIssue {
	var issues []model.ValidationIssue
	for i := range s.Mappings {
		hm := &s.Mappings[i]
		if !hm.Accepted {
			continue
		}
		f, ok := v.reg.Field(s.Entity, hm.Field)
		if !ok {
			continue
		}

		var penalty float64
		var reasons []string
		if LowInformationHeader(hm.Header) {
			penalty += lowInformationPenalty
			reasons = append(reasons, "low-information header")
		}
		values := columnValues(s.Records, hm.Field, hm.ColumnIndex)
		if bad, why := implausibleDistribution(f, values); bad {
			penalty += implausibleDistributionPenalty
			reasons = append(reasons, why)
		}
		if penalty == 0 {
			continue
		}

		policy := registry.ThresholdPolicy{Tau: hm.Tau, Margin: hm.Margin}
		if policy.Tau == 0 {
			policy = v.reg.Policy(s.Entity, f.Kind)
		}
		tau := policy.Tau
		prior := hm.Score
		hm.Score = math.Max(0, prior-penalty)
		hm.LowConfidence = true
		detail := fmt.Sprintf("%q -> %s: %s", hm.Header, hm.Field, strings.Join(reasons, "; "))

		issue := model.ValidationIssue{
			Entity: s.Entity,
			Sheet:  s.Name,
			Field:  hm.Field,
			Kind:   model.KindSuspiciousMapping,
			RuleID: RuleSuspicious,
		}
		// 扣分后仍须同时满足阈值与领先幅度
		if !policy.Accepts(hm.Score, hm.RunnerUpScore) {
			hm.Accepted = false
			hm.Reason = model.ReasonRevoked
			hm.Note = "revoked: " + strings.Join(reasons, "; ")
			revoked := v.revokeColumn(s.Records, hm.Field, hm.ColumnIndex, hm.Note)
			issue.Severity = model.SeverityWarning
			issue.Message = fmt.Sprintf("mapping revoked (%.2f -> %.2f, tau %.2f, runner-up %.2f), %d values removed: %s",
				prior, hm.Score, tau, hm.RunnerUpScore, revoked, detail)
		} else {
			v.penalizeColumn(s.Records, hm.Field, hm.ColumnIndex, penalty)
			issue.Severity = model.SeverityInfo
			issue.Message = fmt.Sprintf("mapping confidence lowered (%.2f -> %.2f): %s", prior, hm.Score, detail)
		}
		issues = append(issues, issue)

		decision := "mapping_penalized"
		if !hm.Accepted {
			decision = "mapping_revoked"
		}
		v.log.Append(model.ProvenanceEntry{
			Stage:    model.StageValidate,
			Sheet:    s.Name,
			Subject:  hm.Header,
			Decision: decision,
			Score:    hm.Score,
			Tau:      tau,
			Detail:   detail,
		})
	}
	return issues
}

func (v *Validator) revokeColumn(records []*model.ExtractedRecord, field string, col int, note string) int {
	n := 0
	for _, rec := range records {
		fv, ok := rec.Lookup(field)
		if !ok || fv.Column != col {
			continue
		}
		if fv.Set {
			n++
		}
		rec.Unset(field, note)
	}
	return n
}

func (v *Validator) penalizeColumn(records []*model.ExtractedRecord, field string, col int, penalty float64) {
	for _, rec := range records {
		fv, ok := rec.Lookup(field)
		if !ok || fv.Column != col || !fv.Set {
			continue
		}
		fv.Confidence = math.Max(0, fv.Confidence-penalty)
		rec.Put(fv)
	}
}

// unmappedIssues 未映射表头的提示（歧义为 warning，其余为 info）
func unmappedIssues(s *SheetInput) []model.ValidationIssue {
	var issues []model.ValidationIssue
	for _, hm := range s.Mappings {
		if hm.Accepted {
			continue
		}
		switch hm.Reason {
		case model.ReasonRevoked, model.ReasonEmptyHeader, model.ReasonUnclassified:
			continue
		}
		is := model.ValidationIssue{
			Severity: model.SeverityInfo,
			Kind:     model.KindUnmappedHeader,
			Entity:   s.Entity,
			Sheet:    s.Name,
			Message:  fmt.Sprintf("header %q not mapped (%s)", hm.Header, hm.Reason),
			RuleID:   RuleUnmapped,
		}
		if hm.Reason == model.ReasonAmbiguous {
			is.Severity = model.SeverityWarning
			is.Kind = model.KindAmbiguousMapping
			is.Message = fmt.Sprintf("header %q is ambiguous: %s", hm.Header, hm.Note)
		}
		issues = append(issues, is)
	}
	return issues
}
