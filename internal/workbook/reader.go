// Package workbook 将 xlsx 工作簿读取为结构化表格
package workbook

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

// 在前若干行中查找表头行
const maxHeaderScan = 10

var numberExpr = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// Options 读取选项
type Options struct {
	Sheets []string // 为空时读取全部工作表
}

// ReadFile 打开 xlsx 文件并读取全部工作表
func ReadFile(path string, opts Options) ([]model.Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open workbook %s", path)
	}
	defer func() { _ = f.Close() }()
	return read(f, opts)
}

// Read 从内存读取工作簿
func Read(r io.Reader, opts Options) ([]model.Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "open workbook")
	}
	defer func() { _ = f.Close() }()
	return read(f, opts)
}

func read(f *excelize.File, opts Options) ([]model.Sheet, error) {
	names := f.GetSheetList()
	if len(opts.Sheets) > 0 {
		names = filterNames(names, opts.Sheets)
	}
	sheets := make([]model.Sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, eris.Wrapf(err, "read sheet %s", name)
		}
		sheets = append(sheets, BuildSheet(name, rows))
	}
	return sheets, nil
}

func filterNames(all, want []string) []string {
	keep := make(map[string]bool, len(want))
	for _, w := range want {
		keep[w] = true
	}
	var out []string
	for _, n := range all {
		if keep[n] {
			out = append(out, n)
		}
	}
	return out
}

// BuildSheet 原始行 -> Sheet：定位表头行，其后的行转为单元格
func BuildSheet(name string, rows [][]string) model.Sheet {
	rows = trimEmptyRows(rows)
	sheet := model.Sheet{Name: name}
	if len(rows) == 0 {
		return sheet
	}
	h := detectHeaderRow(rows)
	sheet.Headers = make([]string, len(rows[h]))
	for i, v := range rows[h] {
		sheet.Headers[i] = strings.TrimSpace(v)
	}
	for _, raw := range rows[h+1:] {
		if isEmptyRow(raw) {
			continue
		}
		cells := make([]model.Cell, len(raw))
		for i, v := range raw {
			cells[i] = ParseCell(v)
		}
		sheet.Rows = append(sheet.Rows, cells)
	}
	return sheet
}

// ParseCell 文本 -> 单元格；纯数字按数值处理
func ParseCell(v string) model.Cell {
	v = strings.TrimSpace(v)
	if v == "" {
		return model.Cell{}
	}
	if numberExpr.MatchString(v) {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return model.NumberCell(n)
		}
	}
	return model.TextCell(v)
}

func isEmptyRow(r []string) bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func trimEmptyRows(data [][]string) [][]string {
	for len(data) > 0 && isEmptyRow(data[len(data)-1]) {
		data = data[:len(data)-1]
	}
	for len(data) > 0 && isEmptyRow(data[0]) {
		data = data[1:]
	}
	return data
}

// detectHeaderRow 跳过标题行：取前几行中第一个非空单元格足够多且以文本为主的行
func detectHeaderRow(rows [][]string) int {
	limit := min(maxHeaderScan, len(rows))
	widest := 0
	for _, r := range rows[:limit] {
		widest = max(widest, nonEmpty(r))
	}
	need := max(2, (widest+1)/2)
	for i, r := range rows[:limit] {
		n := nonEmpty(r)
		if n < need {
			continue
		}
		numbers := 0
		for _, v := range r {
			if numberExpr.MatchString(strings.TrimSpace(v)) {
				numbers++
			}
		}
		if numbers*2 <= n {
			return i
		}
	}
	return 0
}

func nonEmpty(r []string) int {
	n := 0
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}
