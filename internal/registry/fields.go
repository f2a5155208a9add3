package registry

import "github.com/lucifer2f/sld-design-sub001/internal/model"

func numeric(entity model.EntityType, id string, class model.UnitClass, unit, desc string) model.CanonicalField {
	return model.CanonicalField{ID: id, Entity: entity, Kind: model.KindNumeric, UnitClass: class, Unit: unit, Description: desc}
}

func text(entity model.EntityType, id, desc string) model.CanonicalField {
	return model.CanonicalField{ID: id, Entity: entity, Kind: model.KindText, Description: desc}
}

func ident(entity model.EntityType, id, desc string, refs model.EntityType) model.CanonicalField {
	return model.CanonicalField{ID: id, Entity: entity, Kind: model.KindIdentifier, Description: desc, References: refs}
}

func enum(entity model.EntityType, id, desc string, values ...string) model.CanonicalField {
	return model.CanonicalField{ID: id, Entity: entity, Kind: model.KindEnum, Description: desc, EnumValues: values}
}

// builtinFields 内置规范字段目录（顺序即输出顺序）
func builtinFields() map[model.EntityType][]model.CanonicalField {
	load, cable, bus, tx, proj := model.EntityLoad, model.EntityCable, model.EntityBus, model.EntityTransformer, model.EntityProjectInfo
	return map[model.EntityType][]model.CanonicalField{
		load: {
			ident(load, "load_id", "unique load identifier or equipment tag", ""),
			text(load, "load_name", "load name or equipment description"),
			numeric(load, "power_kw", model.UnitPower, "kW", "rated active power of the load in kilowatts"),
			numeric(load, "voltage_v", model.UnitVoltage, "V", "rated supply voltage of the load in volts"),
			numeric(load, "current_a", model.UnitCurrent, "A", "full load current in amperes"),
			numeric(load, "power_factor", model.UnitRatio, "", "power factor cos phi between zero and one"),
			numeric(load, "efficiency", model.UnitRatio, "", "motor or equipment efficiency eta"),
			numeric(load, "demand_factor", model.UnitRatio, "", "demand or diversity factor applied to the load"),
			numeric(load, "quantity", model.UnitCount, "", "number of identical units"),
			enum(load, "phases", "number of supply phases", "1", "3"),
			enum(load, "load_type", "category of electrical load",
				"motor", "lighting", "heating", "hvac", "socket", "ups", "pump", "fan", "compressor", "general"),
			enum(load, "duty", "operating duty of the load", "continuous", "intermittent", "standby"),
			ident(load, "source_bus", "bus or switchboard feeding the load", model.EntityBus),
			ident(load, "cable_id", "identifier of the cable feeding the load", model.EntityCable),
		},
		cable: {
			ident(cable, "cable_id", "unique cable identifier or cable tag", ""),
			ident(cable, "from_equipment", "upstream end of the cable, source bus or equipment", model.EntityAny),
			ident(cable, "to_equipment", "downstream end of the cable, load or equipment", model.EntityAny),
			numeric(cable, "cores", model.UnitCount, "", "number of conductor cores"),
			numeric(cable, "size_mm2", model.UnitArea, "mm2", "conductor cross sectional area in square millimetres"),
			numeric(cable, "length_m", model.UnitLength, "m", "cable route length in metres"),
			enum(cable, "conductor", "conductor material copper or aluminium", "Cu", "Al"),
			enum(cable, "insulation", "cable insulation material", "PVC", "XLPE", "EPR"),
			numeric(cable, "voltage_rating_v", model.UnitVoltage, "V", "rated voltage of the cable in volts"),
			numeric(cable, "current_rating_a", model.UnitCurrent, "A", "current carrying capacity ampacity in amperes"),
			text(cable, "installation_method", "cable laying or installation method"),
			numeric(cable, "ambient_temp_c", model.UnitTemperature, "C", "ambient temperature in degrees celsius"),
		},
		bus: {
			ident(bus, "bus_id", "unique bus or switchboard identifier", ""),
			text(bus, "bus_name", "bus or switchboard name"),
			numeric(bus, "voltage_v", model.UnitVoltage, "V", "nominal bus voltage in volts"),
			numeric(bus, "rated_current_a", model.UnitCurrent, "A", "busbar rated current in amperes"),
			numeric(bus, "capacity_kva", model.UnitApparentPower, "kVA", "bus capacity in kilovolt amperes"),
			numeric(bus, "short_circuit_ka", model.UnitFaultCurrent, "kA", "short circuit withstand rating in kiloamperes"),
			enum(bus, "phases", "number of phases", "1", "3"),
		},
		tx: {
			ident(tx, "transformer_id", "unique transformer identifier or tag", ""),
			text(tx, "transformer_name", "transformer name or description"),
			numeric(tx, "rating_kva", model.UnitApparentPower, "kVA", "transformer rated power in kilovolt amperes"),
			numeric(tx, "primary_voltage_v", model.UnitVoltage, "V", "primary high voltage side in volts"),
			numeric(tx, "secondary_voltage_v", model.UnitVoltage, "V", "secondary low voltage side in volts"),
			numeric(tx, "impedance_percent", model.UnitPercent, "%", "short circuit impedance voltage in percent"),
			text(tx, "vector_group", "winding connection vector group such as Dyn11"),
			enum(tx, "cooling", "transformer cooling method", "ONAN", "ONAF", "OFAF", "AN", "AF", "KNAN"),
			ident(tx, "primary_bus", "bus connected to the primary winding", model.EntityBus),
			ident(tx, "secondary_bus", "bus connected to the secondary winding", model.EntityBus),
		},
		proj: {
			text(proj, "project_name", "name of the project"),
			ident(proj, "project_number", "project or job number", ""),
			text(proj, "client", "client or owner of the project"),
			text(proj, "location", "project site location"),
			text(proj, "designer", "responsible design engineer"),
			enum(proj, "standard", "design standard applied", "IEC", "NEC", "BS", "IEEE", "GB"),
			numeric(proj, "system_voltage_v", model.UnitVoltage, "V", "nominal system voltage in volts"),
			numeric(proj, "frequency_hz", model.UnitFrequency, "Hz", "system frequency in hertz"),
		},
	}
}

// identifierFields 每类实体的主标识字段
var identifierFields = map[model.EntityType]string{
	model.EntityLoad:        "load_id",
	model.EntityCable:       "cable_id",
	model.EntityBus:         "bus_id",
	model.EntityTransformer: "transformer_id",
	model.EntityProjectInfo: "project_number",
}

// nameFields 每类实体的名称字段
var nameFields = map[model.EntityType]string{
	model.EntityLoad:        "load_name",
	model.EntityBus:         "bus_name",
	model.EntityTransformer: "transformer_name",
	model.EntityProjectInfo: "project_name",
}

// IdentifierField 实体的主标识字段
func IdentifierField(entity model.EntityType) string {
	return identifierFields[entity]
}

// NameField 实体的名称字段，没有则返回空
func NameField(entity model.EntityType) string {
	return nameFields[entity]
}
