package provenance

import (
	"strings"
	"sync/atomic"

	"github.com/patrickmn/go-cache"
)

// Signal 相似度信号类型（缓存键的一部分）
type Signal string

const (
	SignalFuzzy     Signal = "fuzzy"
	SignalEmbedding Signal = "embed"
	SignalSheet     Signal = "sheet"
)

// SimilarityCache 相似度缓存：键为 (信号, 规范化文本, 字段/类型)，写入幂等
type SimilarityCache struct {
	c      *cache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewSimilarityCache 创建缓存（无过期、无清理协程）
func NewSimilarityCache() *SimilarityCache {
	return &SimilarityCache{c: cache.New(cache.NoExpiration, 0)}
}

func scoreKey(signal Signal, text, target string) string {
	return strings.Join([]string{string(signal), text, target}, "\x1f")
}

// Score 读取缓存得分
func (s *SimilarityCache) Score(signal Signal, text, target string) (float64, bool) {
	v, ok := s.c.Get(scoreKey(signal, text, target))
	if !ok {
		s.misses.Add(1)
		return 0, false
	}
	s.hits.Add(1)
	return v.(float64), true
}

// PutScore 写入得分；键已存在时保留首次写入的值
func (s *SimilarityCache) PutScore(signal Signal, text, target string, score float64) float64 {
	key := scoreKey(signal, text, target)
	if err := s.c.Add(key, score, cache.NoExpiration); err != nil {
		if v, ok := s.c.Get(key); ok {
			return v.(float64)
		}
	}
	return score
}

// ScoreOrCompute 命中直接返回，否则计算后写入
func (s *SimilarityCache) ScoreOrCompute(signal Signal, text, target string, compute func() float64) float64 {
	if v, ok := s.Score(signal, text, target); ok {
		return v
	}
	return s.PutScore(signal, text, target, compute())
}

// Vector 读取缓存的 embedding 向量
func (s *SimilarityCache) Vector(text string) ([]float64, bool) {
	v, ok := s.c.Get("vec\x1f" + text)
	if !ok {
		return nil, false
	}
	return v.([]float64), true
}

// PutVector 写入 embedding 向量
func (s *SimilarityCache) PutVector(text string, vec []float64) {
	s.c.SetDefault("vec\x1f"+text, vec)
}

// CacheStats 缓存统计
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Items  int   `json:"items"`
}

// Stats 当前统计
func (s *SimilarityCache) Stats() CacheStats {
	return CacheStats{Hits: s.hits.Load(), Misses: s.misses.Load(), Items: s.c.ItemCount()}
}
