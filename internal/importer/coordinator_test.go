package importer

import (
	"context"
	"errors"
	"hash/fnv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/store"
	"github.com/lucifer2f/sld-design-sub001/internal/workbook"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func loadSheet() model.Sheet {
	return model.Sheet{
		Name:    "Loads",
		Headers: []string{"Load ID", "Load Name", "Power (kW)", "Voltage (V)", "Power Factor", "Efficiency"},
		Rows: [][]model.Cell{
			{model.TextCell("P-101"), model.TextCell("cooling water pump"), model.NumberCell(15), model.NumberCell(400), model.NumberCell(0.85), model.NumberCell(0.9)},
			{model.TextCell("P-102"), model.TextCell("Fire Pump"), model.NumberCell(22), model.NumberCell(400), model.NumberCell(0.85), model.NumberCell(0.9)},
		},
	}
}

func busSheet() model.Sheet {
	return model.Sheet{
		Name:    "Buses",
		Headers: []string{"Bus ID", "Bus Name", "Voltage (kV)", "Rated Current (A)", "Short Circuit (kA)"},
		Rows: [][]model.Cell{
			{model.TextCell("MCC-1"), model.TextCell("Main MCC"), model.NumberCell(0.4), model.NumberCell(630), model.NumberCell(50)},
		},
	}
}

func notesSheet() model.Sheet {
	return model.Sheet{
		Name:    "Notes",
		Headers: []string{"Remarks", "Revision", "Date"},
		Rows:    [][]model.Cell{{model.TextCell("issued for review"), model.TextCell("B"), model.TextCell("2024-03-01")}},
	}
}

func newCoordinator(t *testing.T, opts Options) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(opts)
	require.NoError(t, err)
	return c
}

// hashEmbedder 文本按哈希落到正交方向；含 "boom" 的文本触发 panic
type hashEmbedder struct {
	fail bool
}

func (h *hashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if strings.Contains(text, "boom") {
		panic("embedding backend exploded")
	}
	if h.fail {
		return nil, errors.New("connection refused")
	}
	v := make([]float64, 64)
	f := fnv.New32a()
	_, _ = f.Write([]byte(text))
	v[int(f.Sum32()%64)] = 1
	return v, nil
}

func issuesOfKind(issues []model.ValidationIssue, kind model.IssueKind) []model.ValidationIssue {
	var out []model.ValidationIssue
	for _, is := range issues {
		if is.Kind == kind {
			out = append(out, is)
		}
	}
	return out
}

func correctionsFor(report *model.ProcessingReport, reason model.CorrectionReason) []model.Correction {
	var out []model.Correction
	for _, c := range report.Corrections {
		if c.Reason == reason {
			out = append(out, c)
		}
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	c := newCoordinator(t, Options{})
	report, err := c.Run(context.Background(), []model.Sheet{loadSheet(), busSheet(), notesSheet()})
	require.NoError(t, err)

	require.Len(t, report.Sheets, 3)
	assert.Equal(t, model.SheetProcessed, report.Sheets[0].Status)
	assert.Equal(t, model.SheetProcessed, report.Sheets[1].Status)
	assert.Equal(t, model.SheetUnrecognized, report.Sheets[2].Status)
	assert.Equal(t, model.SheetTypeLoadSchedule, report.Sheets[0].Classification.Type)
	assert.Equal(t, model.SheetTypeBusSchedule, report.Sheets[1].Classification.Type)
	assert.False(t, report.Cancelled)
	assert.NotEmpty(t, report.RunID)

	// 唯一母线被默认分配给所有负载
	loads := report.Sheets[0].Records
	require.Len(t, loads, 2)
	for _, rec := range loads {
		assert.Equal(t, "MCC-1", rec.Text("source_bus"), rec.ID)
		assert.True(t, rec.State.Terminal(), rec.ID)
	}
	assert.Len(t, correctionsFor(report, model.ReasonDefaultBusAssignment), 2)
	assert.Equal(t, "Cooling Water Pump", loads[0].Text("load_name"))

	bus := report.Sheets[1].Records[0]
	v, ok := bus.Number("voltage_v")
	require.True(t, ok)
	assert.InDelta(t, 400, v, 1e-9)

	// 没有电缆表时为每个负载合成电缆
	require.Len(t, report.Synthesized, 2)
	for _, cable := range report.Synthesized {
		assert.Equal(t, model.EntityCable, cable.Entity)
		assert.Equal(t, "MCC-1", cable.Text("from_equipment"))
		assert.True(t, cable.Source.Synthesized)
		assert.True(t, cable.State.Terminal())
	}
	assert.ElementsMatch(t, []string{"P-101", "P-102"},
		[]string{report.Synthesized[0].Text("to_equipment"), report.Synthesized[1].Text("to_equipment")})

	unrecognized := issuesOfKind(report.Issues, model.KindUnrecognizedSheetType)
	require.Len(t, unrecognized, 1)
	assert.Equal(t, "Notes", unrecognized[0].Sheet)
	assert.Len(t, report.Sheets[2].Mappings, 3)

	assert.Empty(t, issuesOfKind(report.Issues, model.KindCapabilityUnavailable))
	assert.Equal(t, map[string]bool{CapabilityEmbedding: false, CapabilityAdvisor: false}, report.Capabilities)
	assert.Greater(t, report.Quality, 0.0)
	assert.LessOrEqual(t, report.Quality, 1.0)
	assert.Greater(t, report.Sheets[0].Quality, 0.0)
	assert.NotEmpty(t, report.Provenance)

	sum := report.Summarize()
	assert.Equal(t, 5, sum.Records)
	assert.Equal(t, sum.Records, sum.Accepted+sum.NeedsReview)
}

func TestRun_StartFailures(t *testing.T) {
	c := newCoordinator(t, Options{})
	_, err := c.Run(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrNilInput))

	report, err := c.Run(context.Background(), []model.Sheet{})
	require.NoError(t, err)
	assert.Empty(t, report.Sheets)

	for _, opts := range []Options{{AcceptanceFloor: 1.5}, {AcceptanceFloor: -0.1}, {Workers: -1}} {
		_, err := NewCoordinator(opts)
		require.Error(t, err)
		assert.True(t, eris.Is(err, model.ErrInvalidConfig), "%+v", opts)
	}
}

func TestRun_CancellationLeavesRemainingSheetsNotProcessed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newCoordinator(t, Options{
		Workers:     1,
		OnSheetDone: func(model.SheetReport) { cancel() },
	})
	report, err := c.Run(ctx, []model.Sheet{loadSheet(), busSheet(), notesSheet()})
	require.NoError(t, err)

	assert.True(t, report.Cancelled)
	require.Len(t, report.Sheets, 3)
	assert.Equal(t, model.SheetProcessed, report.Sheets[0].Status)
	assert.Equal(t, model.SheetNotProcessed, report.Sheets[1].Status)
	assert.Equal(t, model.SheetNotProcessed, report.Sheets[2].Status)
	for _, rec := range report.Sheets[0].Records {
		assert.True(t, rec.State.Terminal())
	}
}

func TestRun_PanicIsIsolatedToSheet(t *testing.T) {
	c := newCoordinator(t, Options{
		Embedder:        &hashEmbedder{},
		EnableEmbedding: true,
	})
	boom := model.Sheet{Name: "Boom", Headers: []string{"Boom", "Power"}}
	report, err := c.Run(context.Background(), []model.Sheet{loadSheet(), boom})
	require.NoError(t, err)

	assert.Equal(t, model.SheetProcessed, report.Sheets[0].Status)
	assert.Equal(t, model.SheetFailed, report.Sheets[1].Status)
	assert.Contains(t, report.Sheets[1].Error, "exploded")
	malformed := issuesOfKind(report.Issues, model.KindMalformedSheet)
	require.Len(t, malformed, 1)
	assert.Equal(t, "Boom", malformed[0].Sheet)
}

func TestRun_DuplicateSheetNamesKeepOwnResults(t *testing.T) {
	c := newCoordinator(t, Options{})
	second := model.Sheet{
		Name:    "Loads",
		Headers: []string{"Load ID", "Bogus Header Xyz", "Power Factor"},
		Rows:    [][]model.Cell{{model.TextCell("P-201"), model.TextCell("?"), model.NumberCell(1.4)}},
	}
	report, err := c.Run(context.Background(), []model.Sheet{loadSheet(), second})
	require.NoError(t, err)
	require.Len(t, report.Sheets, 2)

	first, dup := report.Sheets[0], report.Sheets[1]
	require.Equal(t, model.SheetProcessed, first.Status)
	require.Equal(t, model.SheetProcessed, dup.Status)
	require.Len(t, first.Mappings, 6)
	require.Len(t, dup.Mappings, 3)
	assert.Equal(t, "Load ID", first.Mappings[0].Header)
	assert.Equal(t, "Bogus Header Xyz", dup.Mappings[1].Header)

	owned := func(sr model.SheetReport) map[string]bool {
		ids := make(map[string]bool)
		for _, rec := range sr.Records {
			ids[rec.ID] = true
			assert.Equal(t, sr.Index, rec.Source.SheetIndex)
		}
		return ids
	}
	for _, sr := range []model.SheetReport{first, dup} {
		ids := owned(sr)
		for _, is := range sr.Issues {
			if is.EntityID != "" {
				assert.True(t, ids[is.EntityID], "sheet %d carries issue for %s", sr.Index, is.EntityID)
			}
		}
	}
	assert.NotEqual(t, first.Quality, dup.Quality)
}

func TestRun_MalformedSheetWithoutHeaders(t *testing.T) {
	c := newCoordinator(t, Options{})
	report, err := c.Run(context.Background(), []model.Sheet{{Name: "Blank"}, busSheet()})
	require.NoError(t, err)

	assert.Equal(t, model.SheetFailed, report.Sheets[0].Status)
	assert.Len(t, issuesOfKind(report.Sheets[0].Issues, model.KindMalformedSheet), 1)
	assert.Equal(t, model.SheetProcessed, report.Sheets[1].Status)
}

func TestRun_CapabilityFailureDegrades(t *testing.T) {
	c := newCoordinator(t, Options{
		Embedder:        &hashEmbedder{fail: true},
		EnableEmbedding: true,
	})
	report, err := c.Run(context.Background(), []model.Sheet{loadSheet(), busSheet()})
	require.NoError(t, err)

	assert.False(t, report.Capabilities[CapabilityEmbedding])
	capIssues := issuesOfKind(report.Issues, model.KindCapabilityUnavailable)
	require.Len(t, capIssues, 1)
	assert.Equal(t, CapabilityEmbedding, capIssues[0].Field)

	// 别名匹配不依赖 embedding
	assert.Equal(t, model.SheetProcessed, report.Sheets[0].Status)
	assert.Equal(t, model.BasisPattern, report.Sheets[0].Classification.Basis)
	assert.Len(t, report.Sheets[0].Records, 2)
}

func TestImport_ProgressAndPersistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plant.xlsx")
	require.NoError(t, workbook.Write(path, []model.Sheet{loadSheet(), busSheet(), notesSheet()}))

	st, err := store.New(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	c := newCoordinator(t, Options{Store: st})
	var events []ProgressEvent
	for evt := range c.Import(context.Background(), ImportOptions{FilePath: path, Save: true}) {
		events = append(events, evt)
	}
	require.NotEmpty(t, events)

	assert.Equal(t, EventStart, events[0].Type)
	last := events[len(events)-1]
	require.Equal(t, EventDone, last.Type, last.Message)
	sheetDone := 0
	for _, evt := range events {
		assert.Equal(t, last.RunID, evt.RunID)
		if evt.Type == EventSheetDone {
			sheetDone++
		}
	}
	assert.Equal(t, 3, sheetDone)

	report, ok := last.Data.(*model.ProcessingReport)
	require.True(t, ok)
	assert.Equal(t, last.RunID, report.RunID)

	run, err := st.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, run.Status)
	assert.Equal(t, "plant.xlsx", run.Filename)
	assert.Equal(t, 3, run.TotalSheets)
	assert.Equal(t, 5, run.TotalRecords)
	assert.NotEmpty(t, run.FileHash)

	lastID, err := st.LastRunID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.RunID, lastID)
}

func TestImport_MissingFileEmitsError(t *testing.T) {
	c := newCoordinator(t, Options{})
	var last ProgressEvent
	for evt := range c.Import(context.Background(), ImportOptions{FilePath: filepath.Join(t.TempDir(), "missing.xlsx")}) {
		last = evt
	}
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Message, "missing.xlsx")
}
