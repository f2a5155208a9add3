package validator

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

// Rule ids
const (
	RulePowerFactor    = "bounds.power_factor"
	RuleEfficiency     = "bounds.efficiency"
	RuleDemandFactor   = "bounds.demand_factor"
	RuleCores          = "bounds.cores"
	RuleLength         = "bounds.length"
	RuleSize           = "bounds.size"
	RulePower          = "bounds.power"
	RuleVoltage        = "bounds.voltage"
	RuleCurrent        = "bounds.current"
	RuleImpedance      = "bounds.impedance"
	RuleFrequency      = "bounds.frequency"
	RuleCableEndpoint  = "relational.cable_endpoint"
	RuleLoadBus        = "relational.load_bus"
	RuleTransformerBus = "relational.transformer_bus"
	RuleBusCapacity    = "relational.bus_capacity"
	RuleCableAmpacity  = "domain.cable_ampacity"
	RuleLoadCurrent    = "domain.load_current"
)

// 计算电流与表中电流的允许偏差
const loadCurrentTolerance = 0.3

// bound 数值边界规则
type bound struct {
	rule     string
	entity   model.EntityType
	field    string
	min, max float64
	minOpen  bool // 下界不含
	integer  bool
	severity model.Severity
}

var bounds = []bound{
	{rule: RulePowerFactor, entity: model.EntityLoad, field: "power_factor", min: 0, max: 1, minOpen: true, severity: model.SeverityError},
	{rule: RuleEfficiency, entity: model.EntityLoad, field: "efficiency", min: 0, max: 1, minOpen: true, severity: model.SeverityError},
	{rule: RuleDemandFactor, entity: model.EntityLoad, field: "demand_factor", min: 0, max: 1, severity: model.SeverityWarning},
	{rule: RulePower, entity: model.EntityLoad, field: "power_kw", min: 0, max: 1e5, severity: model.SeverityError},
	{rule: RuleVoltage, entity: model.EntityLoad, field: "voltage_v", min: 6, max: 8e5, severity: model.SeverityError},
	{rule: RuleCurrent, entity: model.EntityLoad, field: "current_a", min: 0, max: 1e5, severity: model.SeverityError},
	{rule: RuleCores, entity: model.EntityCable, field: "cores", min: 1, max: 61, integer: true, severity: model.SeverityError},
	{rule: RuleLength, entity: model.EntityCable, field: "length_m", min: 0, max: 1e5, minOpen: true, severity: model.SeverityError},
	{rule: RuleSize, entity: model.EntityCable, field: "size_mm2", min: 0.5, max: 1000, severity: model.SeverityError},
	{rule: RuleVoltage, entity: model.EntityCable, field: "voltage_rating_v", min: 6, max: 8e5, severity: model.SeverityError},
	{rule: RuleCurrent, entity: model.EntityCable, field: "current_rating_a", min: 0, max: 1e5, minOpen: true, severity: model.SeverityError},
	{rule: RuleVoltage, entity: model.EntityBus, field: "voltage_v", min: 6, max: 8e5, severity: model.SeverityError},
	{rule: RuleCurrent, entity: model.EntityBus, field: "rated_current_a", min: 0, max: 1e5, minOpen: true, severity: model.SeverityError},
	{rule: RulePower, entity: model.EntityBus, field: "capacity_kva", min: 0, max: 1e7, minOpen: true, severity: model.SeverityError},
	{rule: RulePower, entity: model.EntityTransformer, field: "rating_kva", min: 0, max: 1e7, minOpen: true, severity: model.SeverityError},
	{rule: RuleVoltage, entity: model.EntityTransformer, field: "primary_voltage_v", min: 6, max: 8e5, severity: model.SeverityError},
	{rule: RuleVoltage, entity: model.EntityTransformer, field: "secondary_voltage_v", min: 6, max: 8e5, severity: model.SeverityError},
	{rule: RuleImpedance, entity: model.EntityTransformer, field: "impedance_percent", min: 1, max: 25, severity: model.SeverityWarning},
	{rule: RuleVoltage, entity: model.EntityProjectInfo, field: "system_voltage_v", min: 6, max: 8e5, severity: model.SeverityError},
	{rule: RuleFrequency, entity: model.EntityProjectInfo, field: "frequency_hz", min: 45, max: 65, severity: model.SeverityWarning},
}

func (b bound) check(v float64) bool {
	if b.integer && v != math.Trunc(v) {
		return false
	}
	if b.minOpen && v <= b.min {
		return false
	}
	return v >= b.min && v <= b.max
}

func (b bound) describe() string {
	lo := "["
	if b.minOpen {
		lo = "("
	}
	return fmt.Sprintf("%s%g, %g]", lo, b.min, b.max)
}

// index 全部记录按实体与标识符建索引（大小写不敏感）
type index struct {
	byEntity map[model.EntityType]map[string]*model.ExtractedRecord
	any      map[string]bool
	busLoads map[string][]*model.ExtractedRecord
}

func key(id string) string { return strings.ToUpper(strings.TrimSpace(id)) }

func newIndex(records []*model.ExtractedRecord) *index {
	idx := &index{
		byEntity: make(map[model.EntityType]map[string]*model.ExtractedRecord),
		any:      make(map[string]bool),
		busLoads: make(map[string][]*model.ExtractedRecord),
	}
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		m := idx.byEntity[rec.Entity]
		if m == nil {
			m = make(map[string]*model.ExtractedRecord)
			idx.byEntity[rec.Entity] = m
		}
		if _, dup := m[key(rec.ID)]; !dup {
			m[key(rec.ID)] = rec
		}
		idx.any[key(rec.ID)] = true
	}
	for _, rec := range records {
		if rec.Entity != model.EntityLoad {
			continue
		}
		if bus := rec.Text("source_bus"); bus != "" {
			idx.busLoads[key(bus)] = append(idx.busLoads[key(bus)], rec)
		}
	}
	return idx
}

func (idx *index) lookup(entity model.EntityType, id string) (*model.ExtractedRecord, bool) {
	rec, ok := idx.byEntity[entity][key(id)]
	return rec, ok
}

// checkRecord 执行适用于该记录的全部规则，返回问题与通过的检查数
func (v *Validator) checkRecord(rec *model.ExtractedRecord, idx *index) ([]model.ValidationIssue, int) {
	var issues []model.ValidationIssue
	passed := 0
	tick := func(is *model.ValidationIssue) {
		if is == nil {
			passed++
			return
		}
		issues = append(issues, *is)
	}

	for _, b := range bounds {
		if b.entity != rec.Entity {
			continue
		}
		val, ok := rec.Number(b.field)
		if !ok {
			continue
		}
		if b.check(val) {
			tick(nil)
			continue
		}
		is := issueFor(rec, b.severity, model.KindOutOfRangeValue, b.rule, b.field,
			fmt.Sprintf("%s = %g outside %s", b.field, val, b.describe()))
		tick(&is)
	}

	switch rec.Entity {
	case model.EntityLoad:
		tick(v.checkLoadBus(rec, idx))
		if is, applied := v.checkLoadCurrent(rec); applied {
			tick(is)
		}
	case model.EntityCable:
		for _, f := range []string{"from_equipment", "to_equipment"} {
			tick(v.checkEndpoint(rec, f, idx))
		}
		if is, applied := v.checkAmpacity(rec, idx); applied {
			tick(is)
		}
	case model.EntityBus:
		if is, applied := v.checkBusCapacity(rec, idx); applied {
			tick(is)
		}
		if is, applied := v.checkBusKVA(rec, idx); applied {
			tick(is)
		}
	case model.EntityTransformer:
		for _, f := range []string{"primary_bus", "secondary_bus"} {
			if !rec.Has(f) {
				continue
			}
			if _, ok := idx.lookup(model.EntityBus, rec.Text(f)); ok {
				tick(nil)
				continue
			}
			is := issueFor(rec, model.SeverityWarning, model.KindUnresolvedReference, RuleTransformerBus, f,
				fmt.Sprintf("%s %q does not match any bus", f, rec.Text(f)))
			tick(&is)
		}
	}
	return issues, passed
}

func (v *Validator) checkLoadBus(rec *model.ExtractedRecord, idx *index) *model.ValidationIssue {
	bus := rec.Text("source_bus")
	if bus == "" {
		is := issueFor(rec, model.SeverityWarning, model.KindUnresolvedReference, RuleLoadBus, "source_bus",
			"load has no source bus and none could be inferred")
		return &is
	}
	if _, ok := idx.lookup(model.EntityBus, bus); ok {
		return nil
	}
	is := issueFor(rec, model.SeverityError, model.KindUnresolvedReference, RuleLoadBus, "source_bus",
		fmt.Sprintf("source bus %q does not exist", bus))
	return &is
}

func (v *Validator) checkEndpoint(rec *model.ExtractedRecord, field string, idx *index) *model.ValidationIssue {
	ref := rec.Text(field)
	if ref == "" {
		is := issueFor(rec, model.SeverityWarning, model.KindUnresolvedReference, RuleCableEndpoint, field,
			fmt.Sprintf("cable %s is missing", field))
		return &is
	}
	if idx.any[key(ref)] {
		return nil
	}
	is := issueFor(rec, model.SeverityError, model.KindUnresolvedReference, RuleCableEndpoint, field,
		fmt.Sprintf("cable %s %q does not match any equipment", field, ref))
	return &is
}

// checkLoadCurrent 表中电流与由功率推算的电流是否一致
func (v *Validator) checkLoadCurrent(rec *model.ExtractedRecord) (*model.ValidationIssue, bool) {
	given, ok := rec.Number("current_a")
	if !ok || given <= 0 {
		return nil, false
	}
	calc, ok := v.sizing.CurrentFromPower(rec)
	if !ok {
		return nil, false
	}
	if math.Abs(given-calc) <= loadCurrentTolerance*calc {
		return nil, true
	}
	is := issueFor(rec, model.SeverityWarning, model.KindOutOfRangeValue, RuleLoadCurrent, "current_a",
		fmt.Sprintf("current %.1f A differs from %.1f A calculated from power", given, calc))
	return &is, true
}

// checkAmpacity 电缆载流量是否满足所供负载的设计电流
func (v *Validator) checkAmpacity(rec *model.ExtractedRecord, idx *index) (*model.ValidationIssue, bool) {
	load, ok := idx.lookup(model.EntityLoad, rec.Text("to_equipment"))
	if !ok {
		return nil, false
	}
	need, ok := v.sizing.DesignCurrent(load)
	if !ok {
		return nil, false
	}
	capacity, ok := rec.Number("current_rating_a")
	if !ok {
		size, hasSize := rec.Number("size_mm2")
		if !hasSize {
			return nil, false
		}
		if capacity, ok = v.sizing.AmpacityFor(size); !ok {
			return nil, false
		}
	}
	if capacity >= need {
		return nil, true
	}
	is := issueFor(rec, model.SeverityWarning, model.KindOutOfRangeValue, RuleCableAmpacity, "current_rating_a",
		fmt.Sprintf("ampacity %.0f A below design current %.1f A of %s", capacity, need, load.ID))
	return &is, true
}

// checkBusCapacity 母线所带负载电流之和（计需要系数）不超过额定电流
func (v *Validator) checkBusCapacity(rec *model.ExtractedRecord, idx *index) (*model.ValidationIssue, bool) {
	rated, ok := rec.Number("rated_current_a")
	if !ok || rated <= 0 {
		return nil, false
	}
	loads := idx.busLoads[key(rec.ID)]
	if len(loads) == 0 {
		return nil, false
	}
	var sum float64
	for _, l := range loads {
		i, ok := v.sizing.DesignCurrent(l)
		if !ok {
			continue
		}
		if df, ok := l.Number("demand_factor"); ok && df > 0 && df <= 1 {
			i *= df
		}
		sum += i
	}
	if sum <= rated {
		return nil, true
	}
	is := issueFor(rec, model.SeverityWarning, model.KindOutOfRangeValue, RuleBusCapacity, "rated_current_a",
		fmt.Sprintf("connected load %.1f A exceeds bus rating %.0f A", sum, rated))
	return &is, true
}

// checkBusKVA 母线所带负载视在功率之和（计需要系数）不超过额定容量
func (v *Validator) checkBusKVA(rec *model.ExtractedRecord, idx *index) (*model.ValidationIssue, bool) {
	rated, ok := rec.Number("capacity_kva")
	if !ok || rated <= 0 {
		return nil, false
	}
	loads := idx.busLoads[key(rec.ID)]
	if len(loads) == 0 {
		return nil, false
	}
	var sum float64
	for _, l := range loads {
		s, ok := v.sizing.ApparentPower(l)
		if !ok {
			continue
		}
		if df, ok := l.Number("demand_factor"); ok && df > 0 && df <= 1 {
			s *= df
		}
		sum += s
	}
	if sum <= rated {
		return nil, true
	}
	is := issueFor(rec, model.SeverityWarning, model.KindOutOfRangeValue, RuleBusCapacity, "capacity_kva",
		fmt.Sprintf("connected load %.1f kVA exceeds bus capacity %.0f kVA", sum, rated))
	return &is, true
}
