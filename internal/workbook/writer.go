package workbook

import (
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

// Write 将表格写成 xlsx（首行为表头），供各包测试构造输入工作簿
func Write(path string, sheets []model.Sheet) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return eris.Wrapf(err, "rename sheet %s", s.Name)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return eris.Wrapf(err, "create sheet %s", s.Name)
		}

		header := make([]any, len(s.Headers))
		for j, h := range s.Headers {
			header[j] = h
		}
		if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
			return eris.Wrapf(err, "write header of %s", s.Name)
		}
		for r, row := range s.Rows {
			values := make([]any, len(row))
			for j, c := range row {
				switch c.Kind {
				case model.CellNumber:
					values[j] = c.Number
				case model.CellText:
					values[j] = c.Text
				default:
					values[j] = nil
				}
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return eris.Wrap(err, "cell name")
			}
			if err := f.SetSheetRow(s.Name, cell, &values); err != nil {
				return eris.Wrapf(err, "write row %d of %s", r+1, s.Name)
			}
		}
	}
	return eris.Wrapf(f.SaveAs(path), "save workbook %s", path)
}
