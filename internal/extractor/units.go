package extractor

import (
	"strings"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/registry"
)

// Conversion 换算到规范单位：canonical = value*Factor + Offset
type Conversion struct {
	Factor float64
	Offset float64
}

func linear(f float64) Conversion { return Conversion{Factor: f} }

// Apply 执行换算
func (c Conversion) Apply(v float64) float64 {
	return v*c.Factor + c.Offset
}

// 单位换算表（键为去空格的规范化单位记号）
var unitTables = map[model.UnitClass]map[string]Conversion{
	model.UnitPower: {
		"w": linear(0.001), "kw": linear(1), "mw": linear(1000),
		"hp": linear(0.7457), "bhp": linear(0.7457), "ps": linear(0.7355), "cv": linear(0.7355),
		"千瓦": linear(1), "瓦": linear(0.001),
	},
	model.UnitApparentPower: {
		"va": linear(0.001), "kva": linear(1), "mva": linear(1000), "千伏安": linear(1),
	},
	model.UnitVoltage: {
		"v": linear(1), "volt": linear(1), "volts": linear(1), "vac": linear(1),
		"kv": linear(1000), "kvac": linear(1000), "伏": linear(1), "千伏": linear(1000),
	},
	model.UnitCurrent: {
		"a": linear(1), "amp": linear(1), "amps": linear(1), "ma": linear(0.001), "ka": linear(1000), "安": linear(1),
	},
	model.UnitFaultCurrent: {
		"ka": linear(1), "a": linear(0.001), "千安": linear(1),
	},
	model.UnitLength: {
		"m": linear(1), "meter": linear(1), "meters": linear(1), "metre": linear(1), "metres": linear(1),
		"km": linear(1000), "cm": linear(0.01), "mm": linear(0.001),
		"ft": linear(0.3048), "feet": linear(0.3048), "foot": linear(0.3048), "米": linear(1),
	},
	model.UnitArea: {
		"mm2": linear(1), "sqmm": linear(1), "sqmm2": linear(1), "mmsq": linear(1), "kcmil": linear(0.5067), "mcm": linear(0.5067),
		"平方毫米": linear(1), "平方": linear(1),
	},
	model.UnitRatio: {
		"percent": linear(0.01), "pu": linear(1),
	},
	model.UnitPercent: {
		"percent": linear(1),
	},
	model.UnitFrequency: {
		"hz": linear(1), "khz": linear(1000), "赫兹": linear(1),
	},
	model.UnitTemperature: {
		"c": linear(1), "degc": linear(1), "celsius": linear(1),
		"f":    {Factor: 5.0 / 9.0, Offset: -32 * 5.0 / 9.0},
		"degf": {Factor: 5.0 / 9.0, Offset: -32 * 5.0 / 9.0},
		"k":    {Factor: 1, Offset: -273.15},
	},
	model.UnitCount: {
		"c": linear(1), "core": linear(1), "cores": linear(1), "pcs": linear(1), "no": linear(1), "nos": linear(1), "x": linear(1), "芯": linear(1), "台": linear(1),
	},
}

// unitKey 单位记号规范化（去掉内部空格）
func unitKey(token string) string {
	return strings.ReplaceAll(registry.Normalize(token), " ", "")
}

// LookupUnit 查询单位类别下的换算；空记号视为规范单位
func LookupUnit(class model.UnitClass, token string) (Conversion, bool) {
	key := unitKey(token)
	if key == "" {
		return linear(1), true
	}
	conv, ok := unitTables[class][key]
	return conv, ok
}

// HeaderUnit 从表头识别单位记号：先取括号内容，再看末尾词
func HeaderUnit(class model.UnitClass, header string) (token string, found bool) {
	if class == model.UnitNone {
		return "", false
	}
	if b := registry.BracketContent(header); b != "" {
		return b, true
	}
	tokens := registry.Tokens(registry.Normalize(header))
	if len(tokens) > 1 {
		last := tokens[len(tokens)-1]
		if _, ok := unitTables[class][last]; ok {
			return last, true
		}
	}
	return "", false
}

// looksLikeUnit 括号内容是否像单位记号（用于决定是否提示未知单位）
func looksLikeUnit(token string) bool {
	key := unitKey(token)
	return key != "" && len([]rune(key)) <= 6 && !strings.ContainsAny(token, " ,;")
}
