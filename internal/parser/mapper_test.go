package parser

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lucifer2f/sld-design-sub001/internal/capability"
	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/registry"
)

// fakeEmbedder "motor output" 与 power_kw 描述同向，其余文本按哈希分桶
type fakeEmbedder struct {
	calls atomic.Int64
	fail  bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, errors.New("embedding backend down")
	}
	v := make([]float64, 64)
	if strings.Contains(text, "motor output") || strings.HasPrefix(text, "power kw:") {
		v[0] = 1
		return v, nil
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	v[1+int(h.Sum32()%63)] = 1
	return v, nil
}

func newFakeEmbeddings(t *testing.T, env Env, enabled bool) *capability.Embeddings {
	t.Helper()
	return capability.NewEmbeddings(&fakeEmbedder{}, env.Cache, capability.NewGuard("embedding", enabled, nil, env.Log))
}

type fakeAdvisor struct {
	field string
	calls atomic.Int64
}

func (f *fakeAdvisor) Advise(_ context.Context, p capability.Prompt) (capability.Suggestion, error) {
	f.calls.Add(1)
	return capability.Suggestion{Field: f.field, Score: 0.6, Reason: "looks like " + p.Header}, nil
}

func mappingFor(t *testing.T, mappings []model.HeaderMapping, header string) model.HeaderMapping {
	t.Helper()
	for _, m := range mappings {
		if m.Header == header {
			return m
		}
	}
	t.Fatalf("header %q not found", header)
	return model.HeaderMapping{}
}

func TestColumnMapper_AliasCosPhi(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	m := NewColumnMapper(env)
	mappings := m.Map(context.Background(), model.Sheet{Name: "Loads", Headers: []string{"Load ID", "cos φ", "Power (kW)"}}, model.EntityLoad)

	pf := mappingFor(t, mappings, "cos φ")
	if !pf.Accepted || pf.Field != "power_factor" {
		t.Fatalf("cos φ should map to power_factor, got %+v", pf)
	}
	if pf.Score < 0.9 || pf.Method != model.MethodAliasExact {
		t.Fatalf("alias match expected with score >= 0.9, got %.2f %s", pf.Score, pf.Method)
	}
	if p := mappingFor(t, mappings, "Power (kW)"); p.Field != "power_kw" || !p.Accepted {
		t.Fatalf("Power (kW) should map via its unit-stripped core, got %+v", p)
	}
}

func TestColumnMapper_AliasDoesNotNeedEmbeddings(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	fe := &fakeEmbedder{}
	env.Embeddings = capability.NewEmbeddings(fe, env.Cache, capability.NewGuard("embedding", false, nil, env.Log))
	m := NewColumnMapper(env)
	mappings := m.Map(context.Background(), model.Sheet{Name: "Loads", Headers: []string{"cos φ", "Motor Output"}}, model.EntityLoad)

	if pf := mappings[0]; !pf.Accepted || pf.Field != "power_factor" || pf.Score < 0.9 {
		t.Fatalf("alias path must work with embeddings disabled: %+v", pf)
	}
	// 纯语义才能识别的表头在降级模式下保持未映射
	if mo := mappings[1]; mo.Accepted {
		t.Fatalf("Motor Output should stay unmapped without embeddings: %+v", mo)
	}
	if fe.calls.Load() != 0 {
		t.Fatalf("disabled embedder must not be called")
	}
}

func TestColumnMapper_EmbeddingSignal(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.Embeddings = newFakeEmbeddings(t, env, true)
	m := NewColumnMapper(env)
	mappings := m.Map(context.Background(), model.Sheet{Name: "Loads", Headers: []string{"Load ID", "Motor Output"}}, model.EntityLoad)

	mo := mappings[1]
	if !mo.Accepted || mo.Field != "power_kw" || mo.Method != model.MethodEmbedding {
		t.Fatalf("Motor Output should map to power_kw via embedding: %+v", mo)
	}
	if mo.Score < mo.Tau || mo.Score-mo.RunnerUpScore < mo.Margin {
		t.Fatalf("accepted mapping violates policy: %+v", mo)
	}
}

func TestColumnMapper_FuzzyTypo(t *testing.T) {
	t.Parallel()

	m := NewColumnMapper(newTestEnv(t))
	mappings := m.Map(context.Background(), model.Sheet{Name: "Loads", Headers: []string{"Rated Powr", "Remarks"}}, model.EntityLoad)

	if p := mappings[0]; !p.Accepted || p.Field != "power_kw" || p.Method != model.MethodFuzzy {
		t.Fatalf("Rated Powr should fuzzy-map to power_kw: %+v", p)
	}
	if r := mappings[1]; r.Accepted || r.Reason != model.ReasonBelowThreshold || !r.LowConfidence {
		t.Fatalf("Remarks should be below threshold: %+v", r)
	}
}

func TestColumnMapper_AmbiguousAndCollision(t *testing.T) {
	t.Parallel()

	reg, err := registry.New(registry.Options{ExtraAliases: map[model.EntityType]registry.AliasSet{
		model.EntityLoad: {
			"voltage_v": {"motor rating a"},
			"current_a": {"motor rating b"},
		},
	}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	env := Env{Registry: reg}.withDefaults()
	m := NewColumnMapper(env)
	mappings := m.Map(context.Background(), model.Sheet{
		Name:    "Loads",
		Headers: []string{"Motor Rating C", "kW", "Power (kW)", ""},
	}, model.EntityLoad)

	amb := mappings[0]
	if amb.Accepted || amb.Reason != model.ReasonAmbiguous {
		t.Fatalf("expected ambiguous mapping, got %+v", amb)
	}
	if amb.RunnerUpField == "" || amb.Score-amb.RunnerUpScore >= amb.Margin {
		t.Fatalf("ambiguous mapping should record a close runner-up: %+v", amb)
	}

	if first := mappings[1]; !first.Accepted || first.Field != "power_kw" {
		t.Fatalf("first power column keeps the field on a tie: %+v", first)
	}
	if second := mappings[2]; second.Accepted || second.Reason != model.ReasonCollision {
		t.Fatalf("second power column should be demoted: %+v", second)
	}
	if empty := mappings[3]; empty.Reason != model.ReasonEmptyHeader {
		t.Fatalf("empty header reason: %+v", empty)
	}

	seen := map[string]bool{}
	for _, hm := range mappings {
		if !hm.Accepted {
			continue
		}
		if seen[hm.Field] {
			t.Fatalf("field %s mapped twice", hm.Field)
		}
		seen[hm.Field] = true
	}
}

func TestColumnMapper_CacheDeterminism(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	m := NewColumnMapper(env)
	a := m.Map(context.Background(), model.Sheet{Name: "A", Headers: []string{"Rated Powr"}}, model.EntityLoad)
	hits := env.Cache.Stats().Hits
	b := m.Map(context.Background(), model.Sheet{Name: "B", Headers: []string{"Rated Powr"}}, model.EntityLoad)

	if a[0].Score != b[0].Score || a[0].RunnerUpScore != b[0].RunnerUpScore {
		t.Fatalf("same header must score identically across sheets: %+v vs %+v", a[0], b[0])
	}
	if env.Cache.Stats().Hits <= hits {
		t.Fatalf("second sheet should reuse cached scores")
	}
}

func TestColumnMapper_ScoreIndependentOfHeaderOrder(t *testing.T) {
	t.Parallel()

	// 同一规范化全文、不同去单位核心文本的表头共用缓存时不得互相影响
	pairs := [][2]string{
		{"Powr (V)", "Powr V"},
		{"Sorce Bus (kW)", "Sorce Bus kW"},
		{"Rated Curent (%)", "Rated Curent %"},
	}
	for _, pair := range pairs {
		results := make(map[string][]model.HeaderMapping)
		for _, order := range [][]string{{pair[0], pair[1]}, {pair[1], pair[0]}} {
			m := NewColumnMapper(newTestEnv(t))
			for _, h := range order {
				got := m.Map(context.Background(), model.Sheet{Name: "Loads", Headers: []string{h}}, model.EntityLoad)
				results[h] = append(results[h], got[0])
			}
		}
		for h, got := range results {
			if len(got) != 2 {
				t.Fatalf("%q: expected two results, got %d", h, len(got))
			}
			a, b := got[0], got[1]
			if a.Score != b.Score || a.Accepted != b.Accepted || a.Field != b.Field || a.RunnerUpScore != b.RunnerUpScore {
				t.Fatalf("%q depends on mapping order: %+v vs %+v", h, a, b)
			}
		}
	}
}

func TestColumnMapper_AcceptedMappingsSatisfyPolicy(t *testing.T) {
	t.Parallel()

	m := NewColumnMapper(newTestEnv(t))
	headers := []string{"Tag", "Descr", "Rated Powr", "Voltag", "FLC", "Eficiency", "Dmd Factor", "Qty", "Phase", "Duty", "Fed From", "Cable Ref"}
	for _, hm := range m.Map(context.Background(), model.Sheet{Name: "Loads", Headers: headers}, model.EntityLoad) {
		if !hm.Accepted {
			continue
		}
		if hm.Score < hm.Tau || hm.Score-hm.RunnerUpScore < hm.Margin {
			t.Fatalf("accepted mapping violates tau/margin: %+v", hm)
		}
	}
}

func TestColumnMapper_AdvisorIsAnnotationOnly(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	fa := &fakeAdvisor{field: "efficiency"}
	env.Advice = capability.NewAdvice(fa, capability.NewGuard("advisor", true, nil, env.Log))
	m := NewColumnMapper(env)
	mappings := m.Map(context.Background(), model.Sheet{
		Name:    "Loads",
		Headers: []string{"Load ID", "Remarks"},
		Rows:    [][]model.Cell{{model.TextCell("L1"), model.TextCell("spare")}},
	}, model.EntityLoad)

	r := mappings[1]
	if r.Accepted || r.Field != "" {
		t.Fatalf("advisor must not change acceptance: %+v", r)
	}
	if !strings.HasPrefix(r.Suggestion, "efficiency") {
		t.Fatalf("suggestion not recorded: %q", r.Suggestion)
	}
	if fa.calls.Load() != 1 {
		t.Fatalf("advisor should only be asked about unmapped headers, calls=%d", fa.calls.Load())
	}
}

func TestUnmapped(t *testing.T) {
	t.Parallel()

	mappings := Unmapped(model.Sheet{Headers: []string{"A", "B"}})
	for _, hm := range mappings {
		if hm.Accepted || hm.Reason != model.ReasonUnclassified {
			t.Fatalf("unexpected mapping %+v", hm)
		}
	}
}

func TestHeaderSimilarity(t *testing.T) {
	t.Parallel()

	if got := HeaderSimilarity("rated power", "rated power"); got != 1 {
		t.Fatalf("identical: %.2f", got)
	}
	if got := HeaderSimilarity("rated powr", "rated power"); got < 0.9 {
		t.Fatalf("typo similarity too low: %.2f", got)
	}
	if got := HeaderSimilarity("power rated", "rated power"); got != 1 {
		t.Fatalf("token order should not matter for jaccard: %.2f", got)
	}
	if got := HeaderSimilarity("", "x"); got != 0 {
		t.Fatalf("empty: %.2f", got)
	}
	if got := LevenshteinSimilarity("功率因数", "功率"); got != 0.5 {
		t.Fatalf("rune based distance expected, got %.2f", got)
	}
}
