package provenance

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

func TestSimilarityCache_FirstWriteWins(t *testing.T) {
	t.Parallel()

	c := NewSimilarityCache()
	_, ok := c.Score(SignalFuzzy, "power kw", "power_kw")
	assert.False(t, ok)

	assert.Equal(t, 0.8, c.PutScore(SignalFuzzy, "power kw", "power_kw", 0.8))
	assert.Equal(t, 0.8, c.PutScore(SignalFuzzy, "power kw", "power_kw", 0.3))

	v, ok := c.Score(SignalFuzzy, "power kw", "power_kw")
	require.True(t, ok)
	assert.Equal(t, 0.8, v)

	// 不同信号互不影响
	_, ok = c.Score(SignalEmbedding, "power kw", "power_kw")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 1, stats.Items)
}

func TestSimilarityCache_ScoreOrComputeConcurrent(t *testing.T) {
	t.Parallel()

	c := NewSimilarityCache()
	var wg sync.WaitGroup
	results := make([]float64, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.ScoreOrCompute(SignalFuzzy, "cos phi", "power_factor", func() float64 { return 0.91 })
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, 0.91, r)
	}
}

func TestSimilarityCache_Vectors(t *testing.T) {
	t.Parallel()

	c := NewSimilarityCache()
	_, ok := c.Vector("load id")
	assert.False(t, ok)
	c.PutVector("load id", []float64{1, 0})
	v, ok := c.Vector("load id")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 0}, v)
}

func TestLog_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	l := NewLog()
	var wg sync.WaitGroup
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Append(model.ProvenanceEntry{
					Stage:   model.StageMap,
					Sheet:   fmt.Sprintf("sheet-%d", s),
					Subject: fmt.Sprintf("h%d", i),
				})
			}
		}(s)
	}
	wg.Wait()

	entries := l.Entries()
	require.Len(t, entries, 200)
	seen := map[int64]bool{}
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
		assert.False(t, e.Time.IsZero())
		seen[e.Seq] = true
	}
	assert.Len(t, seen, 200)
	assert.Len(t, l.Filter(model.StageMap, "sheet-2"), 50)
	assert.Empty(t, l.Filter(model.StageClassify, ""))
}

func TestLog_EntriesAreSnapshots(t *testing.T) {
	t.Parallel()

	l := NewLog()
	scores := map[string]float64{"load_schedule": 0.9}
	l.Append(model.ProvenanceEntry{Stage: model.StageClassify, Scores: scores})
	scores["load_schedule"] = 0.1

	entries := l.Entries()
	entries[0].Decision = "mutated"
	assert.Equal(t, 0.9, l.Entries()[0].Scores["load_schedule"])
	assert.Equal(t, "", l.Entries()[0].Decision)
	assert.Equal(t, 1, l.Len())
}
