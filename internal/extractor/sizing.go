package extractor

import (
	"math"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

// AmpacityRow 截面与载流量
type AmpacityRow struct {
	SizeMM2  float64 `json:"sizeMm2" toml:"size_mm2"`
	Ampacity float64 `json:"ampacity" toml:"ampacity"`
}

// Sizing 电缆选型默认值（提取、增强与校验共用）
type Sizing struct {
	ThreePhaseVoltage  float64       `toml:"three_phase_voltage"`
	SinglePhaseVoltage float64       `toml:"single_phase_voltage"`
	PowerFactor        float64       `toml:"power_factor"`
	Efficiency         float64       `toml:"efficiency"`
	DesignMargin       float64       `toml:"design_margin"`
	DefaultLengthM     float64       `toml:"default_length_m"`
	Conductor          string        `toml:"conductor"`
	Insulation         string        `toml:"insulation"`
	Ampacity           []AmpacityRow `toml:"ampacity"`
}

// DefaultSizing 铜芯 PVC 电缆默认选型表
func DefaultSizing() Sizing {
	return Sizing{
		ThreePhaseVoltage:  400,
		SinglePhaseVoltage: 230,
		PowerFactor:        0.85,
		Efficiency:         0.9,
		DesignMargin:       1.25,
		DefaultLengthM:     30,
		Conductor:          "Cu",
		Insulation:         "PVC",
		Ampacity: []AmpacityRow{
			{1.5, 18}, {2.5, 24}, {4, 32}, {6, 41}, {10, 57}, {16, 76}, {25, 101}, {35, 125},
			{50, 151}, {70, 192}, {95, 232}, {120, 269}, {150, 309}, {185, 353}, {240, 415}, {300, 477},
		},
	}
}

// IsThreePhase 负载相数，未知按三相
func IsThreePhase(r *model.ExtractedRecord) bool {
	return r.Text("phases") != "1"
}

// SupplyVoltage 负载电压，缺失取默认
func (s Sizing) SupplyVoltage(r *model.ExtractedRecord) float64 {
	if v, ok := r.Number("voltage_v"); ok && v > 0 {
		return v
	}
	if IsThreePhase(r) {
		return s.ThreePhaseVoltage
	}
	return s.SinglePhaseVoltage
}

// CurrentFromPower 由功率计算负载电流（缺失参数取默认）
func (s Sizing) CurrentFromPower(r *model.ExtractedRecord) (float64, bool) {
	p, ok := r.Number("power_kw")
	if !ok || p <= 0 {
		return 0, false
	}
	if q, ok := r.Number("quantity"); ok && q > 1 {
		p *= q
	}
	pf := s.PowerFactor
	if v, ok := r.Number("power_factor"); ok && v > 0 && v <= 1 {
		pf = v
	}
	eff := s.Efficiency
	if v, ok := r.Number("efficiency"); ok && v > 0 && v <= 1 {
		eff = v
	}
	v := s.SupplyVoltage(r)
	denom := v * pf * eff
	if IsThreePhase(r) {
		denom *= math.Sqrt(3)
	}
	if denom <= 0 {
		return 0, false
	}
	return p * 1000 / denom, true
}

// ApparentPower 负载视在功率 kVA（功率 × 台数 ÷ 功率因数，缺失功率因数取默认）
func (s Sizing) ApparentPower(r *model.ExtractedRecord) (float64, bool) {
	p, ok := r.Number("power_kw")
	if !ok || p <= 0 {
		return 0, false
	}
	if q, ok := r.Number("quantity"); ok && q > 1 {
		p *= q
	}
	pf := s.PowerFactor
	if v, ok := r.Number("power_factor"); ok && v > 0 && v <= 1 {
		pf = v
	}
	if pf <= 0 {
		return 0, false
	}
	return p / pf, true
}

// DesignCurrent 负载设计电流：优先使用表中电流，否则由功率推算
func (s Sizing) DesignCurrent(r *model.ExtractedRecord) (float64, bool) {
	if i, ok := r.Number("current_a"); ok && i > 0 {
		return i, true
	}
	return s.CurrentFromPower(r)
}

// SelectSize 选择载流量 ≥ 电流 × 设计裕度的最小截面
func (s Sizing) SelectSize(current float64) (AmpacityRow, bool) {
	need := current * s.DesignMargin
	for _, row := range s.Ampacity {
		if row.Ampacity >= need {
			return row, true
		}
	}
	return AmpacityRow{}, false
}

// AmpacityFor 截面对应载流量（取不小于该截面的第一档）
func (s Sizing) AmpacityFor(size float64) (float64, bool) {
	for _, row := range s.Ampacity {
		if row.SizeMM2 >= size-1e-9 {
			return row.Ampacity, true
		}
	}
	return 0, false
}
