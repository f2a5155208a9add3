package model

// EntityType 实体类型（每类 Sheet 对应一种实体）
type EntityType string

const (
	EntityLoad        EntityType = "load"
	EntityCable       EntityType = "cable"
	EntityBus         EntityType = "bus"
	EntityTransformer EntityType = "transformer"
	EntityProjectInfo EntityType = "project_info"

	// EntityAny 可引用任意实体（如电缆两端）
	EntityAny EntityType = "*"
)

// AllEntityTypes 全部实体类型（固定顺序）
func AllEntityTypes() []EntityType {
	return []EntityType{EntityLoad, EntityCable, EntityBus, EntityTransformer, EntityProjectInfo}
}

// ValueKind 字段值类型，同时作为阈值策略的字段分类
type ValueKind string

const (
	KindNumeric    ValueKind = "numeric"
	KindEnum       ValueKind = "enum"
	KindText       ValueKind = "text"
	KindIdentifier ValueKind = "identifier"
)

// AllValueKinds 全部字段分类
func AllValueKinds() []ValueKind {
	return []ValueKind{KindIdentifier, KindNumeric, KindEnum, KindText}
}

// UnitClass 数值字段的单位类别
type UnitClass string

const (
	UnitNone          UnitClass = ""
	UnitPower         UnitClass = "power"          // kW
	UnitApparentPower UnitClass = "apparent_power" // kVA
	UnitVoltage       UnitClass = "voltage"        // V
	UnitCurrent       UnitClass = "current"        // A
	UnitFaultCurrent  UnitClass = "fault_current"  // kA
	UnitLength        UnitClass = "length"         // m
	UnitArea          UnitClass = "area"           // mm2
	UnitRatio         UnitClass = "ratio"          // 0-1
	UnitPercent       UnitClass = "percent"        // %
	UnitFrequency     UnitClass = "frequency"      // Hz
	UnitTemperature   UnitClass = "temperature"    // °C
	UnitCount         UnitClass = "count"
)

// CanonicalField 规范字段定义
type CanonicalField struct {
	ID          string     `json:"id"`
	Entity      EntityType `json:"entity"`
	Kind        ValueKind  `json:"kind"`
	UnitClass   UnitClass  `json:"unitClass,omitempty"`
	Unit        string     `json:"unit,omitempty"` // 规范单位
	Description string     `json:"description"`    // 语义描述（用于 embedding）
	EnumValues  []string   `json:"enumValues,omitempty"`
	References  EntityType `json:"references,omitempty"` // 引用其他实体的标识字段
}

// IsReference 是否为引用其他实体的字段
func (f CanonicalField) IsReference() bool {
	return f.References != ""
}
