package capability

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/provenance"
)

type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   atomic.Int64
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func TestCosine(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, Cosine([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float64{1, 0}, []float64{-3, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float64{1}, []float64{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{1, 2}))
}

func TestEmbeddings_CachesVectorsAndClampsNegative(t *testing.T) {
	t.Parallel()

	fe := &fakeEmbedder{vectors: map[string][]float64{
		"a": {1, 0},
		"b": {1, 1},
		"c": {-1, 0},
	}}
	guard := NewGuard("embedding", true, nil, nil)
	emb := NewEmbeddings(fe, provenance.NewSimilarityCache(), guard)

	s, ok := emb.Similarity(context.Background(), "a", "b")
	require.True(t, ok)
	assert.InDelta(t, 0.7071, s, 1e-3)

	s, ok = emb.Similarity(context.Background(), "a", "c")
	require.True(t, ok)
	assert.Equal(t, 0.0, s)

	// a 已缓存，只新增 b、c 两次调用
	assert.Equal(t, int64(3), fe.calls.Load())
	assert.Equal(t, int64(3), guard.Calls())
}

func TestEmbeddings_FailureLogsOnceAndDegrades(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	plog := provenance.NewLog()
	fe := &fakeEmbedder{err: errors.New("connection refused")}
	emb := NewEmbeddings(fe, provenance.NewSimilarityCache(), NewGuard("embedding", true, zap.New(core), plog))

	for i := 0; i < 5; i++ {
		_, ok := emb.Vector(context.Background(), "x")
		assert.False(t, ok)
	}
	assert.False(t, emb.Available())
	assert.Equal(t, int64(1), fe.calls.Load(), "no calls after the capability went down")
	assert.Equal(t, 1, logs.Len())
	entries := plog.Filter(model.StageCapability, "")
	require.Len(t, entries, 1)
	assert.Equal(t, string(model.KindCapabilityUnavailable), entries[0].Decision)
}

type ctxAdvisor struct{}

func (ctxAdvisor) Advise(ctx context.Context, _ Prompt) (Suggestion, error) {
	return Suggestion{}, ctx.Err()
}

func TestGuard_CancellationDoesNotDisable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	core, logs := observer.New(zap.WarnLevel)
	plog := provenance.NewLog()
	fe := &fakeEmbedder{err: context.Canceled, vectors: map[string][]float64{"a": {1}}}
	embGuard := NewGuard("embedding", true, zap.New(core), plog)
	emb := NewEmbeddings(fe, provenance.NewSimilarityCache(), embGuard)
	_, ok := emb.Vector(ctx, "a")
	assert.False(t, ok)
	assert.True(t, emb.Available())

	advGuard := NewGuard("advisor", true, zap.New(core), plog)
	adv := NewAdvice(ctxAdvisor{}, advGuard)
	_, ok = adv.Suggest(ctx, Prompt{Entity: "load", Header: "kW"})
	assert.False(t, ok)
	assert.True(t, adv.Available())

	assert.Equal(t, 0, logs.Len())
	assert.Empty(t, plog.Filter(model.StageCapability, ""))

	// 新的运行照常使用
	fe.err = nil
	v, ok := emb.Vector(context.Background(), "a")
	require.True(t, ok)
	assert.Equal(t, []float64{1}, v)
}

func TestEmbeddings_DisabledOrNil(t *testing.T) {
	t.Parallel()

	fe := &fakeEmbedder{vectors: map[string][]float64{"a": {1}}}
	emb := NewEmbeddings(fe, provenance.NewSimilarityCache(), NewGuard("embedding", false, nil, nil))
	_, ok := emb.Vector(context.Background(), "a")
	assert.False(t, ok)
	assert.Equal(t, int64(0), fe.calls.Load())

	emb = NewEmbeddings(nil, provenance.NewSimilarityCache(), NewGuard("embedding", true, nil, nil))
	assert.False(t, emb.Available())

	var nilEmb *Embeddings
	assert.False(t, nilEmb.Available())
}

func newMockedConfig(t *testing.T) HTTPConfig {
	t.Helper()
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(func() { httpmock.DeactivateAndReset() })
	return HTTPConfig{Endpoint: "http://ollama.test/", Model: "nomic-embed-text", Client: client}
}

func TestHTTPEmbedder(t *testing.T) {
	cfg := newMockedConfig(t)
	httpmock.RegisterResponder(http.MethodPost, "http://ollama.test/api/embeddings",
		func(req *http.Request) (*http.Response, error) {
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"embedding": []float64{0.1, 0.2, 0.3}})
		})

	vec, err := NewHTTPEmbedder(cfg).Embed(context.Background(), "power factor")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestHTTPEmbedder_Errors(t *testing.T) {
	cfg := newMockedConfig(t)
	httpmock.RegisterResponder(http.MethodPost, "http://ollama.test/api/embeddings",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "model loading"))

	_, err := NewHTTPEmbedder(cfg).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrCapabilityUnavailable))
	assert.Contains(t, err.Error(), "503")

	httpmock.RegisterResponder(http.MethodPost, "http://ollama.test/api/embeddings",
		httpmock.NewStringResponder(http.StatusOK, `{"embedding": []}`))
	_, err = NewHTTPEmbedder(cfg).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrCapabilityUnavailable))
}

func TestHTTPAdvisor(t *testing.T) {
	cfg := newMockedConfig(t)
	httpmock.RegisterResponder(http.MethodPost, "http://ollama.test/api/generate",
		httpmock.NewStringResponder(http.StatusOK, `{"response": "{\"field\": \"power_factor\", \"score\": 1.7, \"reason\": \"cos phi\"}"}`))

	adv := NewAdvice(NewHTTPAdvisor(cfg), NewGuard("advisor", true, nil, nil))
	s, ok := adv.Suggest(context.Background(), Prompt{Entity: "load", Header: "cos fi", Candidates: []string{"power_factor", "efficiency"}})
	require.True(t, ok)
	assert.Equal(t, "power_factor", s.Field)
	assert.Equal(t, 1.0, s.Score)

	httpmock.RegisterResponder(http.MethodPost, "http://ollama.test/api/generate",
		httpmock.NewStringResponder(http.StatusOK, `{"response": "I think it is power factor"}`))
	_, err := NewHTTPAdvisor(cfg).Advise(context.Background(), Prompt{Header: "x"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrCapabilityUnavailable))
}

func TestPromptRender(t *testing.T) {
	t.Parallel()

	out := Prompt{Entity: "cable", Header: "Sq", Candidates: []string{"size_mm2", "cores"}, Samples: []string{"2.5", "4"}}.Render()
	assert.Contains(t, out, "electrical cable schedule")
	assert.Contains(t, out, "Header: Sq")
	assert.Contains(t, out, "size_mm2, cores")
	assert.Contains(t, out, "Sample values: 2.5, 4")
}
