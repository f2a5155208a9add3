package parser

import (
	"context"
	"testing"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

func newTestEnv(t *testing.T) Env {
	t.Helper()
	return Env{}.withDefaults()
}

func TestSheetClassifier_LoadScheduleHeaders(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	c := NewSheetClassifier(env, 3)
	res := c.Classify(context.Background(), model.Sheet{
		Name:    "Sheet1",
		Headers: []string{"Load ID", "Power (kW)", "Voltage (V)"},
	})
	if res.Type != model.SheetTypeLoadSchedule {
		t.Fatalf("type mismatch: got=%s conf=%.2f reason=%s", res.Type, res.Confidence, res.Reason)
	}
	if res.Confidence < res.Tau || res.Confidence < 0.85 {
		t.Fatalf("confidence too low: %.3f (tau %.2f)", res.Confidence, res.Tau)
	}
	if res.Confidence-res.RunnerUpScore < res.Margin {
		t.Fatalf("margin not satisfied: %.3f vs %.3f", res.Confidence, res.RunnerUpScore)
	}
	if res.Basis != model.BasisPattern {
		t.Fatalf("basis without embeddings should be pattern, got %s", res.Basis)
	}
	if len(res.Candidates) != len(model.KnownSheetTypes()) {
		t.Fatalf("expected every candidate scored, got %d", len(res.Candidates))
	}

	entries := env.Log.Filter(model.StageClassify, "Sheet1")
	if len(entries) != 1 {
		t.Fatalf("expected one provenance entry, got %d", len(entries))
	}
	if len(entries[0].Scores) != len(model.KnownSheetTypes()) {
		t.Fatalf("provenance must record every candidate: %v", entries[0].Scores)
	}
}

func TestSheetClassifier_KnownSchedules(t *testing.T) {
	t.Parallel()

	c := NewSheetClassifier(newTestEnv(t), 3)
	cases := []struct {
		name    string
		headers []string
		want    model.SheetType
	}{
		{"Cables", []string{"Cable No", "From", "To", "Cores", "Size (mm²)", "Length (m)", "Insulation"}, model.SheetTypeCableSchedule},
		{"Busbars", []string{"Bus ID", "Bus Name", "Voltage (kV)", "Rated Current (A)", "Short Circuit (kA)"}, model.SheetTypeBusSchedule},
		{"TX", []string{"Transformer ID", "Rating (kVA)", "Primary Voltage", "Secondary Voltage", "Impedance (%)", "Vector Group"}, model.SheetTypeTransformerSchedule},
		{"General", []string{"Project Name", "Client", "Location", "Designer", "Standard", "Frequency (Hz)"}, model.SheetTypeProjectInfo},
		{"负荷表", []string{"负荷编号", "负荷名称", "额定功率", "功率因数", "效率", "电压"}, model.SheetTypeLoadSchedule},
	}
	for _, tc := range cases {
		res := c.Classify(context.Background(), model.Sheet{Name: tc.name, Headers: tc.headers})
		if res.Type != tc.want {
			t.Fatalf("sheet %s type mismatch: got=%s conf=%.2f want=%s candidates=%+v", tc.name, res.Type, res.Confidence, tc.want, res.Candidates)
		}
	}
}

func TestSheetClassifier_UnknownWhenBelowThresholdOrAmbiguous(t *testing.T) {
	t.Parallel()

	c := NewSheetClassifier(newTestEnv(t), 3)

	res := c.Classify(context.Background(), model.Sheet{Name: "Notes", Headers: []string{"Remarks", "Revision", "Date"}})
	if res.Type != model.SheetTypeUnknown || res.Reason != string(model.ReasonBelowThreshold) {
		t.Fatalf("expected unknown/below_threshold, got %s/%s", res.Type, res.Reason)
	}

	// 只有通用列：各类型得分接近
	res = c.Classify(context.Background(), model.Sheet{Name: "Mixed", Headers: []string{"ID", "Name", "Voltage", "Current"}})
	if res.Type != model.SheetTypeUnknown {
		t.Fatalf("generic-only headers must not classify, got %s conf=%.2f", res.Type, res.Confidence)
	}

	res = c.Classify(context.Background(), model.Sheet{Name: "Empty"})
	if res.Type != model.SheetTypeUnknown || res.Confidence != 0 {
		t.Fatalf("empty headers: got %s %.2f", res.Type, res.Confidence)
	}
}

func TestSheetClassifier_SemanticSignalCombined(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.Embeddings = newFakeEmbeddings(t, env, true)
	c := NewSheetClassifier(env, 2)

	sheet := model.Sheet{
		Name:    "Sheet1",
		Headers: []string{"Load ID", "Power (kW)", "Voltage (V)"},
		Rows:    [][]model.Cell{{model.TextCell("P-101"), model.NumberCell(15), model.NumberCell(400)}},
	}
	res := c.Classify(context.Background(), sheet)
	if res.Basis != model.BasisCombined {
		t.Fatalf("expected combined basis, got %s", res.Basis)
	}
	if res.Type != model.SheetTypeLoadSchedule {
		t.Fatalf("type mismatch: %s", res.Type)
	}
	for _, cs := range res.Candidates {
		want := patternWeight*cs.Pattern + semanticWeight*cs.Semantic
		if diff := cs.Combined - clamp01(want); diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("combined score mismatch for %s: %.4f vs %.4f", cs.Type, cs.Combined, want)
		}
	}

	// 第二次分类相同表头命中缓存
	before := env.Cache.Stats().Hits
	again := c.Classify(context.Background(), sheet)
	if env.Cache.Stats().Hits <= before {
		t.Fatalf("expected cache hits for repeated semantic scoring")
	}
	if again.Confidence != res.Confidence {
		t.Fatalf("repeated classification differs: %.4f vs %.4f", again.Confidence, res.Confidence)
	}
}

func TestPatternScore_GenericOnlyIsDiscounted(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	d, _ := env.Registry.Descriptor(model.SheetTypeBusSchedule)
	generic := patternScore(d, NormalizeHeaders([]string{"ID", "Name", "Voltage"}), "")
	if generic > 0.5 {
		t.Fatalf("generic-only score should be at most 0.5, got %.2f", generic)
	}
	boosted := patternScore(d, NormalizeHeaders([]string{"ID", "Name", "Voltage"}), "busbar list")
	if boosted-generic < 0.099 {
		t.Fatalf("sheet name boost not applied: %.2f vs %.2f", boosted, generic)
	}
}
