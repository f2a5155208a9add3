package provenance

import (
	"sync"
	"time"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

// Log 只追加的溯源日志；追加串行化，不同 sheet 的条目可任意交错
type Log struct {
	mu      sync.Mutex
	entries []model.ProvenanceEntry
	now     func() time.Time
}

// NewLog 创建日志
func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append 追加条目，返回分配的序号
func (l *Log) Append(e model.ProvenanceEntry) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.Seq = int64(len(l.entries) + 1)
	if e.Time.IsZero() {
		e.Time = l.now()
	}
	if e.Scores != nil {
		scores := make(map[string]float64, len(e.Scores))
		for k, v := range e.Scores {
			scores[k] = v
		}
		e.Scores = scores
	}
	l.entries = append(l.entries, e)
	return e.Seq
}

// Entries 返回条目快照
func (l *Log) Entries() []model.ProvenanceEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.ProvenanceEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len 条目数
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Filter 按阶段与 sheet 过滤（sheet 为空表示不限）
func (l *Log) Filter(stage model.Stage, sheet string) []model.ProvenanceEntry {
	var out []model.ProvenanceEntry
	for _, e := range l.Entries() {
		if e.Stage != stage {
			continue
		}
		if sheet != "" && e.Sheet != sheet {
			continue
		}
		out = append(out, e)
	}
	return out
}
