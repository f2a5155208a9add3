package registry

import (
	"regexp"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

// SheetDescriptor 工作表类型的静态描述
type SheetDescriptor struct {
	Type         model.SheetType
	Entity       model.EntityType
	Distinctive  []*regexp.Regexp // 区分性特征
	Generic      []*regexp.Regexp // 通用特征（多类共享）
	NameKeywords []string         // sheet 名关键词（规范化后）
	Reference    string           // 语义参考文本
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

var (
	idPattern      = `\bid\b|\btag\b|\bno\b|\bnumber\b|编号|\bnr\b`
	namePattern    = `\bname\b|description|名称|bezeichnung`
	voltagePattern = `voltage|\bv\b|\bkv\b|电压|spannung|tension`
	currentPattern = `current|\ba\b|\bamps?\b|电流|strom`
	phasePattern   = `phase|\bph\b|相数`
)

// builtinSheets 内置工作表描述
func builtinSheets() []SheetDescriptor {
	return []SheetDescriptor{
		{
			Type:   model.SheetTypeLoadSchedule,
			Entity: model.EntityLoad,
			Distinctive: patterns(
				`\bload\b|负载|负荷|verbraucher`,
				`power|\bkw\b|\bhp\b|功率|leistung|puissance`,
				`power factor|cos phi|\bpf\b|\bp f\b|功率因数`,
				`efficiency|\beta\b|\beff\b|效率|wirkungsgrad`,
				`demand|diversity|需要系数|gleichzeitig`,
				`\bduty\b|运行方式|betriebsart`,
			),
			Generic: patterns(idPattern, namePattern, voltagePattern, currentPattern, phasePattern,
				`\bqty\b|quantity|数量`, `\bbus\b|panel|母线`, `\btype\b|类型`),
			NameKeywords: []string{"load", "负载", "负荷", "consumer", "verbraucher"},
			Reference:    "electrical load schedule listing each load with rated power kw voltage current power factor efficiency demand factor and supply bus",
		},
		{
			Type:   model.SheetTypeCableSchedule,
			Entity: model.EntityCable,
			Distinctive: patterns(
				`cable|电缆|kabel`,
				`\bfrom\b|起点|\bsource\b|origin|\bvon\b`,
				`\bto\b|终点|destination|\bnach\b`,
				`\bcores?\b|芯数|adern`,
				`\bsize\b|mm2|截面|cross section|\bcsa\b|querschnitt`,
				`length|长度|l[aä]nge|longueur`,
				`insulation|绝缘|isolierung`,
				`conductor|导体|leiter`,
				`ampacity|载流量`,
			),
			Generic: patterns(idPattern, voltagePattern, currentPattern, `installation|laying|敷设`, `temperature|\btemp\b|温度`),
			NameKeywords: []string{"cable", "电缆", "kabel"},
			Reference:    "cable schedule listing cables with from and to equipment number of cores conductor size mm2 length insulation and ampacity",
		},
		{
			Type:   model.SheetTypeBusSchedule,
			Entity: model.EntityBus,
			Distinctive: patterns(
				`\bbus|busbar|母线|sammelschiene|switchboard|\bpanel\b`,
				`short circuit|\bfault\b|\bka\b|短路|\bisc\b|\bicw\b`,
				`capacity|\bkva\b|容量`,
			),
			Generic: patterns(idPattern, namePattern, voltagePattern, currentPattern, phasePattern, `rating|rated`),
			NameKeywords: []string{"bus", "busbar", "母线", "switchboard", "panel"},
			Reference:    "bus schedule listing busbars and switchboards with nominal voltage rated current capacity kva and short circuit rating ka",
		},
		{
			Type:   model.SheetTypeTransformerSchedule,
			Entity: model.EntityTransformer,
			Distinctive: patterns(
				`transformer|\btx\b|\btr\b|变压器|trafo`,
				`primary|\bhv\b|一次|高压|oberspannung`,
				`secondary|\blv\b|二次|低压|unterspannung`,
				`impedance|\buk\b|\bukr\b|阻抗`,
				`vector|联结|schaltgruppe`,
				`cooling|冷却|k[uü]hlung`,
			),
			Generic: patterns(idPattern, namePattern, `rating|\bkva\b|容量`, `\bbus\b|母线`),
			NameKeywords: []string{"transformer", "变压器", "trafo", "tx"},
			Reference:    "transformer schedule listing transformers with rating kva primary and secondary voltage percent impedance vector group and cooling",
		},
		{
			Type:   model.SheetTypeProjectInfo,
			Entity: model.EntityProjectInfo,
			Distinctive: patterns(
				`project|项目|projekt`,
				`client|customer|owner|业主|客户|auftraggeber`,
				`location|\bsite\b|address|地点|standort`,
				`designer|engineer|designed|prepared|设计|planer`,
				`standard|\bcode\b|标准|\bnorm\b`,
				`frequency|\bhz\b|频率|frequenz`,
			),
			Generic: patterns(namePattern, voltagePattern, `\bjob\b`),
			NameKeywords: []string{"project", "info", "项目", "general"},
			Reference:    "project information sheet with project name number client location designer design standard system voltage and frequency",
		},
	}
}
