package enhancer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lucifer2f/sld-design-sub001/internal/extractor"
	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/provenance"
	"github.com/lucifer2f/sld-design-sub001/internal/registry"
)

// 增强阶段写入值的字段置信度
const inferredConfidence = 0.5

// 标识符前缀
var idPrefixes = map[model.EntityType]string{
	model.EntityLoad:        "LOAD-",
	model.EntityCable:       "CBL-",
	model.EntityBus:         "BUS-",
	model.EntityTransformer: "TX-",
}

var placeholderIDs = map[string]bool{
	"": true, "-": true, "--": true, "?": true, "NA": true, "N/A": true, "TBD": true, "TBA": true, "NONE": true, "NULL": true, "X": true,
}

// Enhancer 结构修复：标识符、母线关系、配套电缆、名称规范化
type Enhancer struct {
	sizing extractor.Sizing
	log    *provenance.Log
	logger *zap.Logger
	now    func() time.Time
}

// New 创建增强器
func New(sizing extractor.Sizing, log *provenance.Log, logger *zap.Logger) *Enhancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if log == nil {
		log = provenance.NewLog()
	}
	return &Enhancer{sizing: sizing, log: log, logger: logger, now: time.Now}
}

// Result 增强结果
type Result struct {
	Records     []*model.ExtractedRecord // 输入记录的增强副本（顺序不变）
	Synthesized []*model.ExtractedRecord
	Corrections []model.Correction
}

// run 单次增强的工作状态
type run struct {
	e           *Enhancer
	all         []*model.ExtractedRecord
	synthesized []*model.ExtractedRecord
	corrections []model.Correction
	used        map[model.EntityType]map[string]bool
	next        map[model.EntityType]int
}

// Enhance 对整批记录执行增强；对自身输出再次执行不会产生新的修正
func (e *Enhancer) Enhance(records []*model.ExtractedRecord) Result {
	start := time.Now()
	r := &run{
		e:    e,
		used: make(map[model.EntityType]map[string]bool),
		next: make(map[model.EntityType]int),
	}
	out := make([]*model.ExtractedRecord, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	r.all = out

	r.repairIdentifiers()
	r.normalizeNames()
	r.inferBuses()
	r.synthesizeCables()

	for _, rec := range out {
		rec.Advance(model.StateEnhanced)
	}

	e.log.Append(model.ProvenanceEntry{
		Stage:    model.StageEnhance,
		Decision: "enhanced",
		Duration: time.Since(start),
		Detail:   fmt.Sprintf("%d corrections, %d synthesized records", len(r.corrections), len(r.synthesized)),
	})
	e.logger.Debug("enhancer: done",
		zap.Int("records", len(out)),
		zap.Int("synthesized", len(r.synthesized)),
		zap.Int("corrections", len(r.corrections)))
	return Result{Records: out, Synthesized: r.synthesized, Corrections: r.corrections}
}

func idKey(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ValidIdentifier 非空、非占位符、包含字母或数字
func ValidIdentifier(id string) bool {
	key := idKey(id)
	if placeholderIDs[key] || len(key) > 64 {
		return false
	}
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func (r *run) records(entity model.EntityType) []*model.ExtractedRecord {
	var out []*model.ExtractedRecord
	for _, rec := range r.all {
		if rec.Entity == entity {
			out = append(out, rec)
		}
	}
	return out
}

func (r *run) usedIDs(entity model.EntityType) map[string]bool {
	if r.used[entity] == nil {
		r.used[entity] = make(map[string]bool)
	}
	return r.used[entity]
}

// nextID 生成前缀 + 三位序号的下一个未占用标识符
func (r *run) nextID(entity model.EntityType) string {
	prefix := idPrefixes[entity]
	used := r.usedIDs(entity)
	n := r.next[entity]
	for {
		n++
		id := fmt.Sprintf("%s%03d", prefix, n)
		if !used[idKey(id)] {
			r.next[entity] = n
			used[idKey(id)] = true
			return id
		}
	}
}

func (r *run) correct(rec *model.ExtractedRecord, field, prior, next string, reason model.CorrectionReason) {
	c := model.Correction{
		Entity:     rec.Entity,
		EntityID:   rec.ID,
		Field:      field,
		Prior:      prior,
		New:        next,
		Reason:     reason,
		Sheet:      rec.Source.Sheet,
		SheetIndex: rec.Source.SheetIndex,
		Row:        rec.Source.Row,
		Timestamp:  r.e.now(),
	}
	r.corrections = append(r.corrections, c)
	r.e.log.Append(model.ProvenanceEntry{
		Stage:    model.StageEnhance,
		Sheet:    rec.Source.Sheet,
		Subject:  string(rec.Entity) + ":" + rec.ID,
		Decision: string(reason),
		Detail:   fmt.Sprintf("%s: %q -> %q", field, prior, next),
	})
}

func setText(rec *model.ExtractedRecord, field string, kind model.ValueKind, value string) {
	prev, ok := rec.Lookup(field)
	fv := model.FieldValue{Field: field, Kind: kind, Set: true, Text: value, Column: -1, Confidence: inferredConfidence}
	if ok {
		fv.Column = prev.Column
		fv.Raw = prev.Raw
	}
	rec.Put(fv)
}

func setNumber(rec *model.ExtractedRecord, field, unit string, value float64) {
	rec.Put(model.FieldValue{Field: field, Kind: model.KindNumeric, Set: true, Number: value, Unit: unit, Column: -1, Confidence: inferredConfidence})
}

// repairIdentifiers 缺失/非法/重复标识符按实体重新编号
func (r *run) repairIdentifiers() {
	for _, entity := range []model.EntityType{model.EntityLoad, model.EntityCable, model.EntityBus, model.EntityTransformer} {
		recs := r.records(entity)
		used := r.usedIDs(entity)
		// 先登记全部合法标识符，生成的编号不会与后续记录撞号
		for _, rec := range recs {
			if ValidIdentifier(rec.ID) {
				used[idKey(rec.ID)] = true
			}
		}
		seen := make(map[string]bool)
		idField := registry.IdentifierField(entity)
		for _, rec := range recs {
			prior := rec.ID
			reason := model.CorrectionReason("")
			switch {
			case !ValidIdentifier(prior):
				reason = model.ReasonIdentifierGenerated
			case seen[idKey(prior)]:
				reason = model.ReasonDuplicateIdentifier
			}
			if reason == "" {
				seen[idKey(prior)] = true
				continue
			}
			id := r.nextID(entity)
			seen[idKey(id)] = true
			rec.ID = id
			setText(rec, idField, model.KindIdentifier, id)
			r.correct(rec, idField, prior, id, reason)
		}
	}

	for _, rec := range r.records(model.EntityProjectInfo) {
		if rec.ID == "" {
			rec.ID = rec.Text("project_name")
		}
	}
}

// normalizeNames 名称去多余空白；全小写时转标题格式
func (r *run) normalizeNames() {
	for _, rec := range r.all {
		field := registry.NameField(rec.Entity)
		if field == "" || !rec.Has(field) {
			continue
		}
		prior := rec.Text(field)
		next := NormalizeName(prior)
		if next == prior || next == "" {
			continue
		}
		fv, _ := rec.Lookup(field)
		fv.Text = next
		rec.Put(fv)
		r.correct(rec, field, prior, next, model.ReasonNameNormalized)
	}
}

// NormalizeName 名称规范化（幂等）
func NormalizeName(name string) string {
	s := strings.Join(strings.Fields(name), " ")
	lower := false
	for _, r := range s {
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			return s
		}
		if unicode.IsLower(r) {
			lower = true
		}
	}
	if !lower {
		return s
	}
	return cases.Title(language.English).String(s)
}

// inferBuses 为缺少电源母线的负载推断母线
func (r *run) inferBuses() {
	buses := r.records(model.EntityBus)
	busByKey := make(map[string]*model.ExtractedRecord, len(buses))
	for _, b := range buses {
		busByKey[idKey(b.ID)] = b
	}
	cables := r.records(model.EntityCable)

	var defaultBus *model.ExtractedRecord
	for _, load := range r.records(model.EntityLoad) {
		if load.Has("source_bus") && ValidIdentifier(load.Text("source_bus")) {
			continue
		}
		prior := load.Text("source_bus")

		if bus := referencedBus(load, cables, busByKey); bus != nil {
			setText(load, "source_bus", model.KindIdentifier, bus.ID)
			r.correct(load, "source_bus", prior, bus.ID, model.ReasonInferredBusReference)
			continue
		}
		switch len(buses) {
		case 0:
			if defaultBus == nil {
				defaultBus = r.synthesizeBus()
			}
			setText(load, "source_bus", model.KindIdentifier, defaultBus.ID)
			r.correct(load, "source_bus", prior, defaultBus.ID, model.ReasonDefaultBusAssignment)
		case 1:
			setText(load, "source_bus", model.KindIdentifier, buses[0].ID)
			r.correct(load, "source_bus", prior, buses[0].ID, model.ReasonDefaultBusAssignment)
		default:
			// 多条母线且无引用：保留缺失，由校验阶段提示
		}
	}
}

// referencedBus 通过电缆找到负载的上级母线
func referencedBus(load *model.ExtractedRecord, cables []*model.ExtractedRecord, busByKey map[string]*model.ExtractedRecord) *model.ExtractedRecord {
	loadKey := idKey(load.ID)
	cableKey := idKey(load.Text("cable_id"))
	for _, c := range cables {
		feedsLoad := idKey(c.Text("to_equipment")) == loadKey
		if !feedsLoad && (cableKey == "" || idKey(c.ID) != cableKey) {
			continue
		}
		if bus, ok := busByKey[idKey(c.Text("from_equipment"))]; ok {
			return bus
		}
	}
	return nil
}

func (r *run) synthesizeBus() *model.ExtractedRecord {
	bus := model.NewRecord(model.EntityBus, model.RecordSource{Synthesized: true})
	bus.ID = r.nextID(model.EntityBus)
	setText(bus, "bus_id", model.KindIdentifier, bus.ID)
	setText(bus, "bus_name", model.KindText, "Default Bus")
	setNumber(bus, "voltage_v", "V", r.dominantLoadVoltage())
	bus.State = model.StateEnhanced
	r.synthesized = append(r.synthesized, bus)
	r.all = append(r.all, bus)
	r.correct(bus, model.RelationField, "", bus.ID, model.ReasonSynthesizedDefaultBus)
	return bus
}

func (r *run) dominantLoadVoltage() float64 {
	counts := make(map[float64]int)
	best, bestN := r.e.sizing.ThreePhaseVoltage, 0
	for _, load := range r.records(model.EntityLoad) {
		v, ok := load.Number("voltage_v")
		if !ok || v <= 0 {
			continue
		}
		counts[v]++
		if counts[v] > bestN || (counts[v] == bestN && v > best) {
			best, bestN = v, counts[v]
		}
	}
	return best
}

// synthesizeCables 为没有配套电缆的负载补齐电缆与关联
func (r *run) synthesizeCables() {
	cables := r.records(model.EntityCable)
	cableByKey := make(map[string]*model.ExtractedRecord, len(cables))
	feeding := make(map[string]*model.ExtractedRecord)
	for _, c := range cables {
		cableByKey[idKey(c.ID)] = c
		if to := idKey(c.Text("to_equipment")); to != "" {
			if _, dup := feeding[to]; !dup {
				feeding[to] = c
			}
		}
	}

	for _, load := range r.records(model.EntityLoad) {
		ref := load.Text("cable_id")
		if ref != "" {
			if _, ok := cableByKey[idKey(ref)]; ok {
				continue
			}
		}
		if c, ok := feeding[idKey(load.ID)]; ok {
			if ref == "" {
				setText(load, "cable_id", model.KindIdentifier, c.ID)
				r.correct(load, "cable_id", "", c.ID, model.ReasonCompanionCableLink)
			}
			continue
		}

		cable, ok := r.synthesizeCable(load, ref)
		if !ok {
			continue
		}
		cableByKey[idKey(cable.ID)] = cable
		feeding[idKey(load.ID)] = cable
		if ref == "" {
			setText(load, "cable_id", model.KindIdentifier, cable.ID)
			r.correct(load, "cable_id", "", cable.ID, model.ReasonCompanionCableLink)
		}
	}
}

func (r *run) synthesizeCable(load *model.ExtractedRecord, ref string) (*model.ExtractedRecord, bool) {
	s := r.e.sizing
	current, ok := s.DesignCurrent(load)
	if !ok {
		r.e.log.Append(model.ProvenanceEntry{
			Stage:    model.StageEnhance,
			Sheet:    load.Source.Sheet,
			Subject:  string(load.Entity) + ":" + load.ID,
			Decision: "companion_cable_skipped",
			Detail:   "no current or power to size a cable",
		})
		return nil, false
	}
	row, fits := s.SelectSize(current)
	if !fits && len(s.Ampacity) > 0 {
		row = s.Ampacity[len(s.Ampacity)-1]
	}

	cable := model.NewRecord(model.EntityCable, model.RecordSource{Synthesized: true})
	used := r.usedIDs(model.EntityCable)
	if ValidIdentifier(ref) && !used[idKey(ref)] {
		cable.ID = ref
		used[idKey(ref)] = true
	} else {
		cable.ID = r.nextID(model.EntityCable)
	}
	cores := 4.0
	if !extractor.IsThreePhase(load) {
		cores = 3
	}
	voltage := s.SupplyVoltage(load)
	rating := 1000.0
	if voltage > rating {
		rating = voltage
	}

	setText(cable, "cable_id", model.KindIdentifier, cable.ID)
	if bus := load.Text("source_bus"); bus != "" {
		setText(cable, "from_equipment", model.KindIdentifier, bus)
	}
	setText(cable, "to_equipment", model.KindIdentifier, load.ID)
	setNumber(cable, "cores", "", cores)
	setNumber(cable, "size_mm2", "mm2", row.SizeMM2)
	setNumber(cable, "length_m", "m", s.DefaultLengthM)
	setText(cable, "conductor", model.KindEnum, s.Conductor)
	setText(cable, "insulation", model.KindEnum, s.Insulation)
	setNumber(cable, "voltage_rating_v", "V", rating)
	setNumber(cable, "current_rating_a", "A", row.Ampacity)
	cable.State = model.StateEnhanced

	r.synthesized = append(r.synthesized, cable)
	r.all = append(r.all, cable)
	detail := "to " + load.ID + ", design current " + strconv.FormatFloat(current, 'f', 1, 64) + " A"
	if !fits {
		detail += ", exceeds sizing table"
	}
	r.correct(cable, model.RelationField, "", detail, model.ReasonSynthesizedCompanionCable)
	return cable, true
}
