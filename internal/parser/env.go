package parser

import (
	"go.uber.org/zap"

	"github.com/lucifer2f/sld-design-sub001/internal/capability"
	"github.com/lucifer2f/sld-design-sub001/internal/provenance"
	"github.com/lucifer2f/sld-design-sub001/internal/registry"
)

// Env 分类器与映射器共享的依赖（每次运行构建一份）
type Env struct {
	Registry   *registry.Registry
	Cache      *provenance.SimilarityCache
	Log        *provenance.Log
	Embeddings *capability.Embeddings // 可为空
	Advice     *capability.Advice     // 可为空
	Logger     *zap.Logger
}

func (e Env) withDefaults() Env {
	if e.Registry == nil {
		e.Registry = registry.MustNew()
	}
	if e.Cache == nil {
		e.Cache = provenance.NewSimilarityCache()
	}
	if e.Log == nil {
		e.Log = provenance.NewLog()
	}
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	return e
}
