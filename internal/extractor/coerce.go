package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/registry"
)

var (
	numberWithUnit = regexp.MustCompile(`^([-+]?(?:\d[\d,]*)?(?:\.\d+)?(?:[eE][-+]?\d+)?)\s*(.*)$`)
	// 电缆规格 "4x16"、"3C x 95 mm²"、"4×16" 取截面
	cableSpec = regexp.MustCompile(`(?i)^\s*(\d+)\s*(?:c|core|cores)?\s*[x×\*]\s*(\d+(?:[.,]\d+)?)\s*(.*)$`)
)

// ParseNumber 解析带千分位/小数逗号的数字，返回剩余的单位记号
func ParseNumber(text string) (value float64, unit string, ok bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, "", false
	}
	m := numberWithUnit.FindStringSubmatch(s)
	if m == nil || m[1] == "" || m[1] == "+" || m[1] == "-" {
		return 0, "", false
	}
	num, unit := m[1], strings.TrimSpace(m[2])

	// 小数逗号："0,85" -> 0.85；千分位："1,250" -> 1250
	if strings.Contains(num, ",") {
		if strings.Contains(num, ".") {
			num = strings.ReplaceAll(num, ",", "")
		} else {
			parts := strings.Split(num, ",")
			if len(parts) == 2 && len(parts[1]) != 3 {
				num = parts[0] + "." + parts[1]
			} else {
				num = strings.ReplaceAll(num, ",", "")
			}
		}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, "", false
	}
	return v, unit, true
}

// ParseCableSpec 解析 "芯数 x 截面" 写法
func ParseCableSpec(text string) (cores int, size float64, ok bool) {
	m := cableSpec.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	c, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	s, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64)
	if err != nil {
		return 0, 0, false
	}
	return c, s, true
}

// 枚举同义词（键为规范化文本）
var enumSynonyms = map[string]map[string]string{
	"phases": {
		"3": "3", "three": "3", "3ph": "3", "3p": "3", "3 ph": "3", "3 phase": "3", "tp": "3", "tpn": "3", "三相": "3", "3 phi": "3",
		"1": "1", "single": "1", "1ph": "1", "1p": "1", "1 ph": "1", "1 phase": "1", "sp": "1", "spn": "1", "单相": "1", "1 phi": "1",
	},
	"conductor": {
		"cu": "Cu", "copper": "Cu", "铜": "Cu", "kupfer": "Cu",
		"al": "Al", "aluminium": "Al", "aluminum": "Al", "铝": "Al",
	},
	"duty": {
		"continuous": "continuous", "cont": "continuous", "s1": "continuous", "连续": "continuous",
		"intermittent": "intermittent", "int": "intermittent", "s3": "intermittent", "间歇": "intermittent",
		"standby": "standby", "stby": "standby", "spare": "standby", "备用": "standby",
	},
	"load_type": {
		"mtr": "motor", "电机": "motor", "电动机": "motor",
		"light": "lighting", "lights": "lighting", "照明": "lighting",
		"heater": "heating", "加热": "heating",
		"ac": "hvac", "air conditioning": "hvac", "空调": "hvac",
		"receptacle": "socket", "outlet": "socket", "插座": "socket",
		"泵": "pump", "风机": "fan", "压缩机": "compressor",
		"misc": "general", "other": "general", "一般": "general",
	},
}

// CoerceEnum 将文本规约到字段枚举值
func CoerceEnum(f model.CanonicalField, text string) (string, bool) {
	norm := registry.Normalize(text)
	if norm == "" {
		return "", false
	}
	if syn, ok := enumSynonyms[f.ID][norm]; ok {
		return syn, true
	}
	for _, v := range f.EnumValues {
		if registry.Normalize(v) == norm {
			return v, true
		}
	}
	// 词级匹配："Motor - DOL" -> motor，"IEC 60364" -> IEC
	for _, tok := range registry.Tokens(norm) {
		if syn, ok := enumSynonyms[f.ID][tok]; ok {
			return syn, true
		}
		for _, v := range f.EnumValues {
			if registry.Normalize(v) == tok {
				return v, true
			}
		}
	}
	return "", false
}

// CoerceIdentifier 标识符：去空白，数值去掉多余小数
func CoerceIdentifier(c model.Cell) string {
	switch c.Kind {
	case model.CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case model.CellText:
		return strings.Join(strings.Fields(c.Text), " ")
	default:
		return ""
	}
}
