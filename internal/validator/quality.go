package validator

import "github.com/lucifer2f/sld-design-sub001/internal/model"

// 质量分权重
const (
	mappingWeight    = 0.4
	passRateWeight   = 0.4
	correctionWeight = 0.2
)

// 每条问题对记录置信度的折减
var severityPenalty = map[model.Severity]float64{
	model.SeverityError:   0.3,
	model.SeverityWarning: 0.1,
	model.SeverityInfo:    0.02,
}

// tally 质量分的统计量
type tally struct {
	passed      int
	failed      int
	records     int
	corrections int
	mappings    []model.HeaderMapping
}

func (t *tally) quality() float64 {
	return Quality(meanAcceptedScore(t.mappings), t.passed, t.failed, t.corrections, t.records)
}

func meanAcceptedScore(mappings []model.HeaderMapping) float64 {
	var sum float64
	n := 0
	for _, m := range mappings {
		if m.Accepted {
			sum += m.Score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Quality 质量分 = 0.4·映射置信度均值 + 0.4·规则通过率 + 0.2·(1−修正比例)，截断到 [0,1]。
// 通过率为 (passed+1)/(passed+failed+1)，问题数增加时严格下降。
func Quality(mappingConf float64, passed, failed, corrections, records int) float64 {
	passRate := float64(passed+1) / float64(passed+failed+1)
	ratio := 0.0
	if records > 0 {
		ratio = float64(corrections) / float64(records)
	} else if corrections > 0 {
		ratio = 1
	}
	ratio = clamp01(ratio)
	return clamp01(mappingWeight*clamp01(mappingConf) + passRateWeight*passRate + correctionWeight*(1-ratio))
}

// RecordConfidence 字段置信度均值乘以每条问题的折减
func RecordConfidence(rec *model.ExtractedRecord) float64 {
	conf := rec.MeanFieldConfidence()
	for _, is := range rec.Issues {
		conf *= 1 - severityPenalty[is.Severity]
	}
	return clamp01(conf)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
