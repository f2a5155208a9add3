package capability

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/provenance"
)

// Guard 单次运行内的能力状态：首次失败记录一次日志，之后降级
type Guard struct {
	name   string
	logger *zap.Logger
	log    *provenance.Log
	once   sync.Once
	down   atomic.Bool
	calls  atomic.Int64
}

// NewGuard 创建守卫；enabled=false 时直接处于降级状态
func NewGuard(name string, enabled bool, logger *zap.Logger, log *provenance.Log) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{name: name, logger: logger, log: log}
	if !enabled {
		g.markDown(eris.Wrapf(model.ErrCapabilityUnavailable, "%s disabled", name))
	}
	return g
}

// Available 是否可用
func (g *Guard) Available() bool {
	return !g.down.Load()
}

// Calls 成功调用次数
func (g *Guard) Calls() int64 {
	return g.calls.Load()
}

// Fail 标记失败并降级
func (g *Guard) Fail(err error) {
	g.markDown(err)
}

func (g *Guard) markDown(err error) {
	g.down.Store(true)
	g.once.Do(func() {
		g.logger.Warn("capability: unavailable, continuing in reduced-signal mode",
			zap.String("capability", g.name), zap.Error(err))
		if g.log != nil {
			g.log.Append(model.ProvenanceEntry{
				Stage:    model.StageCapability,
				Subject:  g.name,
				Decision: string(model.KindCapabilityUnavailable),
				Detail:   err.Error(),
			})
		}
	})
}

// Embeddings 带缓存与降级的 embedding 访问
type Embeddings struct {
	embedder Embedder
	cache    *provenance.SimilarityCache
	guard    *Guard
}

// NewEmbeddings 创建 embedding 访问器；embedder 为 nil 等同于禁用
func NewEmbeddings(embedder Embedder, cache *provenance.SimilarityCache, guard *Guard) *Embeddings {
	if embedder == nil {
		guard.Fail(eris.Wrap(model.ErrCapabilityUnavailable, "no embedder configured"))
	}
	return &Embeddings{embedder: embedder, cache: cache, guard: guard}
}

// Available 是否可用
func (e *Embeddings) Available() bool {
	return e != nil && e.guard.Available()
}

// Vector 取文本向量，失败返回 false
func (e *Embeddings) Vector(ctx context.Context, text string) ([]float64, bool) {
	if !e.Available() {
		return nil, false
	}
	if v, ok := e.cache.Vector(text); ok {
		return v, true
	}
	v, err := e.embedder.Embed(ctx, text)
	if ctx.Err() != nil {
		// 取消不代表能力故障，本次运行之后仍可使用
		return nil, false
	}
	if err != nil || len(v) == 0 {
		if err == nil {
			err = eris.Wrap(model.ErrCapabilityUnavailable, "empty embedding")
		}
		e.guard.Fail(err)
		return nil, false
	}
	e.guard.calls.Add(1)
	e.cache.PutVector(text, v)
	return v, true
}

// Similarity max(0, cosine)；不可用返回 false
func (e *Embeddings) Similarity(ctx context.Context, a, b string) (float64, bool) {
	va, ok := e.Vector(ctx, a)
	if !ok {
		return 0, false
	}
	vb, ok := e.Vector(ctx, b)
	if !ok {
		return 0, false
	}
	s := Cosine(va, vb)
	if s < 0 {
		s = 0
	}
	return s, true
}

// Advice 带降级的建议访问
type Advice struct {
	advisor Advisor
	guard   *Guard
}

// NewAdvice 创建建议访问器；advisor 为 nil 等同于禁用
func NewAdvice(advisor Advisor, guard *Guard) *Advice {
	if advisor == nil {
		guard.Fail(eris.Wrap(model.ErrCapabilityUnavailable, "no advisor configured"))
	}
	return &Advice{advisor: advisor, guard: guard}
}

// Available 是否可用
func (a *Advice) Available() bool {
	return a != nil && a.guard.Available()
}

// Suggest 请求建议，失败返回 false
func (a *Advice) Suggest(ctx context.Context, p Prompt) (Suggestion, bool) {
	if !a.Available() {
		return Suggestion{}, false
	}
	s, err := a.advisor.Advise(ctx, p)
	if ctx.Err() != nil {
		return Suggestion{}, false
	}
	if err != nil {
		a.guard.Fail(err)
		return Suggestion{}, false
	}
	a.guard.calls.Add(1)
	return s, true
}
