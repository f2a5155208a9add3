package enhancer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucifer2f/sld-design-sub001/internal/extractor"
	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/provenance"
)

type recordBuilder struct {
	rec *model.ExtractedRecord
}

func newRec(entity model.EntityType, sheet string, row int) *recordBuilder {
	rec := model.NewRecord(entity, model.RecordSource{Sheet: sheet, Row: row})
	rec.State = model.StateExtracted
	return &recordBuilder{rec: rec}
}

func (b *recordBuilder) id(field, id string) *recordBuilder {
	b.rec.ID = id
	if id != "" {
		b.text(field, id, model.KindIdentifier)
	}
	return b
}

func (b *recordBuilder) text(field, v string, kind model.ValueKind) *recordBuilder {
	b.rec.Put(model.FieldValue{Field: field, Kind: kind, Set: true, Text: v, Raw: v, Column: len(b.rec.Order), Confidence: 1})
	return b
}

func (b *recordBuilder) num(field string, v float64) *recordBuilder {
	b.rec.Put(model.FieldValue{Field: field, Kind: model.KindNumeric, Set: true, Number: v, Column: len(b.rec.Order), Confidence: 1})
	return b
}

func newEnhancer() *Enhancer {
	e := New(extractor.DefaultSizing(), provenance.NewLog(), nil)
	fixed := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }
	return e
}

func correctionsBy(cs []model.Correction, reason model.CorrectionReason) []model.Correction {
	var out []model.Correction
	for _, c := range cs {
		if c.Reason == reason {
			out = append(out, c)
		}
	}
	return out
}

func TestEnhance_SingleBusDefaultAssignment(t *testing.T) {
	t.Parallel()

	bus := newRec(model.EntityBus, "Buses", 1).id("bus_id", "MCC-1").num("voltage_v", 400).rec
	load := newRec(model.EntityLoad, "Loads", 1).id("load_id", "P-101").num("power_kw", 15).text("cable_id", "C-1", model.KindIdentifier).rec
	cable := newRec(model.EntityCable, "Cables", 1).id("cable_id", "C-1").text("to_equipment", "P-101", model.KindIdentifier).rec

	res := newEnhancer().Enhance([]*model.ExtractedRecord{bus, load, cable})

	require.Len(t, res.Records, 3)
	got := res.Records[1]
	assert.Equal(t, "MCC-1", got.Text("source_bus"))
	assert.Equal(t, model.StateEnhanced, got.State)

	cs := correctionsBy(res.Corrections, model.ReasonDefaultBusAssignment)
	require.Len(t, cs, 1)
	assert.Equal(t, "P-101", cs[0].EntityID)
	assert.Equal(t, "source_bus", cs[0].Field)
	assert.Equal(t, "", cs[0].Prior)
	assert.Equal(t, "MCC-1", cs[0].New)
	assert.Equal(t, "Loads", cs[0].Sheet)
	assert.False(t, cs[0].Timestamp.IsZero())

	// 输入记录不被修改
	assert.False(t, load.Has("source_bus"))
	assert.Empty(t, res.Synthesized)
}

func TestEnhance_BusFromCableReference(t *testing.T) {
	t.Parallel()

	busA := newRec(model.EntityBus, "Buses", 1).id("bus_id", "SWB-A").rec
	busB := newRec(model.EntityBus, "Buses", 2).id("bus_id", "SWB-B").rec
	load := newRec(model.EntityLoad, "Loads", 1).id("load_id", "FAN-1").num("current_a", 10).rec
	cable := newRec(model.EntityCable, "Cables", 1).id("cable_id", "C-9").
		text("from_equipment", "swb-b", model.KindIdentifier).
		text("to_equipment", "FAN-1", model.KindIdentifier).rec

	res := newEnhancer().Enhance([]*model.ExtractedRecord{busA, busB, load, cable})

	got := res.Records[2]
	assert.Equal(t, "SWB-B", got.Text("source_bus"))
	assert.Len(t, correctionsBy(res.Corrections, model.ReasonInferredBusReference), 1)

	// 负载缺 cable_id 时关联到馈线电缆
	assert.Equal(t, "C-9", got.Text("cable_id"))
	assert.Len(t, correctionsBy(res.Corrections, model.ReasonCompanionCableLink), 1)
	assert.Empty(t, res.Synthesized)
}

func TestEnhance_AmbiguousBusLeftUnresolved(t *testing.T) {
	t.Parallel()

	busA := newRec(model.EntityBus, "Buses", 1).id("bus_id", "SWB-A").rec
	busB := newRec(model.EntityBus, "Buses", 2).id("bus_id", "SWB-B").rec
	load := newRec(model.EntityLoad, "Loads", 1).id("load_id", "L1").rec

	res := newEnhancer().Enhance([]*model.ExtractedRecord{busA, busB, load})

	assert.False(t, res.Records[2].Has("source_bus"))
	assert.Empty(t, correctionsBy(res.Corrections, model.ReasonDefaultBusAssignment))
}

func TestEnhance_SynthesizesBusAndCompanionCable(t *testing.T) {
	t.Parallel()

	load := newRec(model.EntityLoad, "Loads", 1).id("load_id", "P-101").
		num("power_kw", 15).num("voltage_v", 400).rec

	res := newEnhancer().Enhance([]*model.ExtractedRecord{load})

	require.Len(t, res.Synthesized, 2)
	bus, cable := res.Synthesized[0], res.Synthesized[1]

	assert.Equal(t, model.EntityBus, bus.Entity)
	assert.Equal(t, "BUS-001", bus.ID)
	assert.True(t, bus.Source.Synthesized)
	v, ok := bus.Number("voltage_v")
	require.True(t, ok)
	assert.Equal(t, 400.0, v)

	assert.Equal(t, model.EntityCable, cable.Entity)
	assert.Equal(t, "CBL-001", cable.ID)
	assert.Equal(t, "BUS-001", cable.Text("from_equipment"))
	assert.Equal(t, "P-101", cable.Text("to_equipment"))
	size, _ := cable.Number("size_mm2")
	assert.Equal(t, 6.0, size)
	cores, _ := cable.Number("cores")
	assert.Equal(t, 4.0, cores)
	length, _ := cable.Number("length_m")
	assert.Equal(t, 30.0, length)

	got := res.Records[0]
	assert.Equal(t, "BUS-001", got.Text("source_bus"))
	assert.Equal(t, "CBL-001", got.Text("cable_id"))

	assert.Len(t, correctionsBy(res.Corrections, model.ReasonSynthesizedDefaultBus), 1)
	assert.Len(t, correctionsBy(res.Corrections, model.ReasonSynthesizedCompanionCable), 1)
	assert.Len(t, correctionsBy(res.Corrections, model.ReasonCompanionCableLink), 1)
}

func TestEnhance_DanglingCableReferenceKeepsID(t *testing.T) {
	t.Parallel()

	bus := newRec(model.EntityBus, "Buses", 1).id("bus_id", "DB-1").rec
	load := newRec(model.EntityLoad, "Loads", 1).id("load_id", "LT-1").
		num("current_a", 5).text("phases", "1", model.KindEnum).
		text("cable_id", "W-77", model.KindIdentifier).rec

	res := newEnhancer().Enhance([]*model.ExtractedRecord{bus, load})

	require.Len(t, res.Synthesized, 1)
	cable := res.Synthesized[0]
	assert.Equal(t, "W-77", cable.ID)
	cores, _ := cable.Number("cores")
	assert.Equal(t, 3.0, cores)
	assert.Empty(t, correctionsBy(res.Corrections, model.ReasonCompanionCableLink))
}

func TestEnhance_NoCurrentNoCable(t *testing.T) {
	t.Parallel()

	bus := newRec(model.EntityBus, "Buses", 1).id("bus_id", "DB-1").rec
	load := newRec(model.EntityLoad, "Loads", 1).id("load_id", "SPARE").rec

	res := newEnhancer().Enhance([]*model.ExtractedRecord{bus, load})
	assert.Empty(t, res.Synthesized)
	assert.False(t, res.Records[1].Has("cable_id"))
}

func TestEnhance_IdentifierRepair(t *testing.T) {
	t.Parallel()

	recs := []*model.ExtractedRecord{
		newRec(model.EntityLoad, "Loads", 1).id("load_id", "LOAD-001").rec,
		newRec(model.EntityLoad, "Loads", 2).id("load_id", "").rec,
		newRec(model.EntityLoad, "Loads", 3).id("load_id", "load-001").rec,
		newRec(model.EntityLoad, "Loads", 4).id("load_id", "n/a").rec,
		newRec(model.EntityLoad, "Loads", 5).id("load_id", "M-7").rec,
	}
	res := newEnhancer().Enhance(recs)

	ids := make(map[string]bool)
	for _, r := range res.Records {
		require.NotEmpty(t, r.ID)
		assert.False(t, ids[idKey(r.ID)], "duplicate id %s", r.ID)
		ids[idKey(r.ID)] = true
		assert.Equal(t, r.ID, r.Text("load_id"))
	}
	assert.Equal(t, "LOAD-001", res.Records[0].ID)
	assert.Equal(t, "LOAD-002", res.Records[1].ID)
	assert.Equal(t, "LOAD-003", res.Records[2].ID)
	assert.Equal(t, "LOAD-004", res.Records[3].ID)
	assert.Equal(t, "M-7", res.Records[4].ID)

	assert.Len(t, correctionsBy(res.Corrections, model.ReasonIdentifierGenerated), 2)
	dup := correctionsBy(res.Corrections, model.ReasonDuplicateIdentifier)
	require.Len(t, dup, 1)
	assert.Equal(t, "load-001", dup[0].Prior)
	assert.Equal(t, 3, dup[0].Row)
}

func TestEnhance_NameNormalization(t *testing.T) {
	t.Parallel()

	load := newRec(model.EntityLoad, "Loads", 1).id("load_id", "P-1").
		text("load_name", "  cooling   water pump ", model.KindText).rec
	mixed := newRec(model.EntityLoad, "Loads", 2).id("load_id", "P-2").
		text("load_name", "VFD for AHU-2", model.KindText).rec

	res := newEnhancer().Enhance([]*model.ExtractedRecord{load, mixed})

	assert.Equal(t, "Cooling Water Pump", res.Records[0].Text("load_name"))
	assert.Equal(t, "VFD for AHU-2", res.Records[1].Text("load_name"))
	assert.Len(t, correctionsBy(res.Corrections, model.ReasonNameNormalized), 1)
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"main pump", "Main Pump"},
		{"Main  Pump", "Main Pump"},
		{"UPS", "UPS"},
		{"  ", ""},
		{"123", "123"},
		{"照明回路", "照明回路"},
	}
	for _, tc := range tests {
		got := NormalizeName(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, got, NormalizeName(got), "idempotent %q", tc.in)
	}
}

func TestEnhance_Idempotent(t *testing.T) {
	t.Parallel()

	recs := []*model.ExtractedRecord{
		newRec(model.EntityLoad, "Loads", 1).id("load_id", "").num("power_kw", 7.5).
			text("load_name", "exhaust fan", model.KindText).rec,
		newRec(model.EntityLoad, "Loads", 2).id("load_id", "P-2").num("current_a", 12).rec,
		newRec(model.EntityLoad, "Loads", 3).id("load_id", "P-2").rec,
		newRec(model.EntityCable, "Cables", 1).id("cable_id", "").rec,
	}
	e := newEnhancer()
	first := e.Enhance(recs)
	require.NotEmpty(t, first.Corrections)

	all := append(append([]*model.ExtractedRecord{}, first.Records...), first.Synthesized...)
	second := e.Enhance(all)
	assert.Empty(t, second.Corrections)
	assert.Empty(t, second.Synthesized)
	for i, r := range second.Records {
		assert.Equal(t, all[i].ID, r.ID)
		assert.Equal(t, all[i].Fields, r.Fields)
	}
}

func TestValidIdentifier(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidIdentifier("P-101"))
	assert.True(t, ValidIdentifier("泵1"))
	assert.False(t, ValidIdentifier(""))
	assert.False(t, ValidIdentifier(" -- "))
	assert.False(t, ValidIdentifier("TBD"))
	assert.False(t, ValidIdentifier("#/."))
}
