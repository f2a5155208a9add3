package registry

import "github.com/lucifer2f/sld-design-sub001/internal/model"

// AliasSet 字段 -> 别名列表（原始写法，构建时统一规范化）
type AliasSet map[string][]string

// builtinAliases 内置多语言别名表
func builtinAliases() map[model.EntityType]AliasSet {
	return map[model.EntityType]AliasSet{
		model.EntityLoad: {
			"load_id":       {"Load ID", "Load No", "Load Number", "Load Tag", "Tag", "Tag No", "Equipment ID", "Item No", "ID", "负载编号", "负荷编号", "设备编号", "Verbraucher Nr"},
			"load_name":     {"Load Name", "Description", "Load Description", "Equipment", "Equipment Name", "Name", "负载名称", "负荷名称", "设备名称", "Bezeichnung", "Désignation"},
			"power_kw":      {"Power", "Rated Power", "Power kW", "kW", "Load kW", "Active Power", "Installed Power", "P", "功率", "额定功率", "有功功率", "Leistung", "Puissance", "Potencia"},
			"voltage_v":     {"Voltage", "Rated Voltage", "V", "Volts", "Un", "电压", "额定电压", "Spannung", "Tension", "Tensión"},
			"current_a":     {"Current", "Rated Current", "Full Load Current", "FLC", "I", "In", "Amps", "电流", "额定电流", "Strom", "Courant", "Corriente"},
			"power_factor":  {"Power Factor", "PF", "p.f.", "cos φ", "cosφ", "cos phi", "cosphi", "功率因数", "Leistungsfaktor", "Facteur de puissance", "Factor de potencia"},
			"efficiency":    {"Efficiency", "Eff", "η", "eta", "效率", "Wirkungsgrad", "Rendement", "Eficiencia"},
			"demand_factor": {"Demand Factor", "DF", "Diversity Factor", "Utilization Factor", "需要系数", "Gleichzeitigkeitsfaktor"},
			"quantity":      {"Quantity", "Qty", "No of Units", "Count", "数量", "Anzahl"},
			"phases":        {"Phases", "Phase", "No of Phases", "Ph", "相数", "Phasen"},
			"load_type":     {"Load Type", "Type", "Category", "负载类型", "负荷类型", "Typ"},
			"duty":          {"Duty", "Duty Type", "Operation", "Operating Mode", "运行方式", "Betriebsart"},
			"source_bus":    {"Source Bus", "Bus", "From Bus", "Supply Bus", "Fed From", "Panel", "Switchboard", "MCC", "电源母线", "母线", "上级母线", "Sammelschiene"},
			"cable_id":      {"Cable ID", "Cable No", "Cable Tag", "Feeder Cable", "电缆编号", "Kabel Nr"},
		},
		model.EntityCable: {
			"cable_id":            {"Cable ID", "Cable No", "Cable Number", "Cable Tag", "Tag", "ID", "电缆编号", "Kabel Nr", "Kabelnummer"},
			"from_equipment":      {"From", "From Equipment", "Source", "Origin", "From Bus", "Start", "起点", "起始设备", "Von"},
			"to_equipment":        {"To", "To Equipment", "Destination", "Load", "End", "终点", "终止设备", "Nach"},
			"cores":               {"Cores", "No of Cores", "Core", "Number of Cores", "芯数", "Adern", "Aderzahl"},
			"size_mm2":            {"Size", "Cable Size", "Cross Section", "CSA", "Conductor Size", "mm²", "Section", "截面", "截面积", "电缆截面", "Querschnitt"},
			"length_m":            {"Length", "Cable Length", "Route Length", "Len", "长度", "电缆长度", "Länge", "Longueur"},
			"conductor":           {"Conductor", "Conductor Material", "Material", "导体", "导体材料", "Leiter"},
			"insulation":          {"Insulation", "Insulation Type", "绝缘", "绝缘类型", "Isolierung", "Isolation"},
			"voltage_rating_v":    {"Voltage Rating", "Rated Voltage", "Voltage", "Cable Voltage", "额定电压", "电压等级", "Nennspannung"},
			"current_rating_a":    {"Current Rating", "Ampacity", "Rated Current", "Current Capacity", "载流量", "额定电流", "Strombelastbarkeit"},
			"installation_method": {"Installation Method", "Installation", "Laying Method", "Method of Installation", "敷设方式", "Verlegeart"},
			"ambient_temp_c":      {"Ambient Temperature", "Ambient Temp", "Temperature", "Amb Temp", "环境温度", "Umgebungstemperatur"},
		},
		model.EntityBus: {
			"bus_id":           {"Bus ID", "Bus No", "Bus Tag", "Busbar ID", "Panel ID", "Switchboard ID", "ID", "Tag", "母线编号", "Sammelschiene Nr"},
			"bus_name":         {"Bus Name", "Busbar Name", "Name", "Description", "Panel Name", "母线名称", "Bezeichnung"},
			"voltage_v":        {"Voltage", "Rated Voltage", "Nominal Voltage", "System Voltage", "电压", "额定电压", "Spannung"},
			"rated_current_a":  {"Rated Current", "Current Rating", "Busbar Rating", "Current", "额定电流", "Nennstrom"},
			"capacity_kva":     {"Capacity", "Capacity kVA", "Rating kVA", "kVA", "Rated Power", "容量", "Bemessungsleistung"},
			"short_circuit_ka": {"Short Circuit", "Short Circuit Rating", "Fault Level", "Fault Current", "Icw", "Isc", "kA", "短路电流", "Kurzschlussstrom"},
			"phases":           {"Phases", "Phase", "No of Phases", "相数"},
		},
		model.EntityTransformer: {
			"transformer_id":      {"Transformer ID", "TX ID", "TR ID", "Transformer No", "Tag", "ID", "变压器编号", "Trafo Nr"},
			"transformer_name":    {"Transformer Name", "Name", "Description", "变压器名称", "Bezeichnung"},
			"rating_kva":          {"Rating", "Rated Power", "Capacity", "kVA", "Power Rating", "Transformer Rating", "额定容量", "容量", "Nennleistung"},
			"primary_voltage_v":   {"Primary Voltage", "HV Voltage", "HV", "High Voltage", "Input Voltage", "一次电压", "高压侧电压", "Oberspannung"},
			"secondary_voltage_v": {"Secondary Voltage", "LV Voltage", "LV", "Low Voltage", "Output Voltage", "二次电压", "低压侧电压", "Unterspannung"},
			"impedance_percent":   {"Impedance", "Percent Impedance", "%Z", "Z", "uk", "ukr", "阻抗", "阻抗电压", "Kurzschlussspannung"},
			"vector_group":        {"Vector Group", "Connection", "Vector", "联结组别", "Schaltgruppe"},
			"cooling":             {"Cooling", "Cooling Type", "Cooling Method", "冷却方式", "Kühlung"},
			"primary_bus":         {"Primary Bus", "HV Bus", "Upstream Bus", "一次母线"},
			"secondary_bus":       {"Secondary Bus", "LV Bus", "Downstream Bus", "二次母线"},
		},
		model.EntityProjectInfo: {
			"project_name":     {"Project Name", "Project", "项目名称", "Projektname"},
			"project_number":   {"Project Number", "Project No", "Job No", "Project ID", "项目编号", "Projektnummer"},
			"client":           {"Client", "Customer", "Owner", "业主", "客户", "Auftraggeber"},
			"location":         {"Location", "Site", "Address", "地点", "项目地点", "Standort"},
			"designer":         {"Designer", "Engineer", "Designed By", "Prepared By", "设计人", "设计者", "Planer"},
			"standard":         {"Standard", "Design Standard", "Code", "标准", "设计标准", "Norm"},
			"system_voltage_v": {"System Voltage", "Nominal Voltage", "Voltage", "系统电压", "Netzspannung"},
			"frequency_hz":     {"Frequency", "System Frequency", "Hz", "频率", "Frequenz"},
		},
	}
}
