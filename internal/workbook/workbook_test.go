package workbook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

func TestBuildSheet_SkipsTitleRows(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{},
		{"Plant A - Load Schedule"},
		{"Rev 3", "", ""},
		{"Load ID", "Power (kW)", "Voltage (V)"},
		{"P-101", "15", "400"},
		{"", "", ""},
		{"P-102", "7,5", ""},
		{},
	}
	s := BuildSheet("Loads", rows)

	assert.Equal(t, []string{"Load ID", "Power (kW)", "Voltage (V)"}, s.Headers)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, model.TextCell("P-101"), s.Rows[0][0])
	assert.Equal(t, model.NumberCell(15), s.Rows[0][1])
	assert.Equal(t, model.TextCell("7,5"), s.Rows[1][1])
	assert.True(t, s.Rows[1][2].IsEmpty())
}

func TestBuildSheet_Empty(t *testing.T) {
	t.Parallel()

	s := BuildSheet("Blank", [][]string{{}, {"", " "}})
	assert.Empty(t, s.Headers)
	assert.Empty(t, s.Rows)
}

func TestParseCell(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.NumberCell(0.85), ParseCell(" 0.85 "))
	assert.Equal(t, model.NumberCell(-3), ParseCell("-3"))
	assert.Equal(t, model.NumberCell(1500), ParseCell("1.5e3"))
	assert.Equal(t, model.TextCell("15 kW"), ParseCell("15 kW"))
	assert.Equal(t, model.TextCell("0x10"), ParseCell("0x10"))
	assert.True(t, ParseCell("").IsEmpty())
}

func TestWriteThenReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plant.xlsx")
	in := []model.Sheet{
		{
			Name:    "Loads",
			Headers: []string{"Load ID", "cos φ", "Power (kW)"},
			Rows: [][]model.Cell{
				{model.TextCell("P-101"), model.NumberCell(0.85), model.NumberCell(15)},
				{model.TextCell("P-102"), {}, model.TextCell("7.5 kW")},
			},
		},
		{
			Name:    "Buses",
			Headers: []string{"Bus ID", "Voltage"},
			Rows:    [][]model.Cell{{model.TextCell("MCC-1"), model.NumberCell(400)}},
		},
	}
	require.NoError(t, Write(path, in))

	out, err := ReadFile(path, Options{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Loads", out[0].Name)
	assert.Equal(t, in[0].Headers, out[0].Headers)
	require.Len(t, out[0].Rows, 2)
	assert.Equal(t, model.NumberCell(0.85), out[0].Rows[0][1])
	assert.Equal(t, model.TextCell("7.5 kW"), out[0].Rows[1][2])

	only, err := ReadFile(path, Options{Sheets: []string{"Buses"}})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, model.NumberCell(400), only[0].Rows[0][1])
}

func TestRead_FromReader(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Cable ID", "Size"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"C-1", "4x16"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	out, err := Read(buf, Options{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.TextCell("4x16"), out[0].Rows[0][1])
}

func TestReadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := ReadFile(filepath.Join(os.TempDir(), "does-not-exist.xlsx"), Options{})
	assert.Error(t, err)
}
