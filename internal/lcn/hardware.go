package lcn

var hardwareTypes = map[int]string{
	1:  "LCN-SW1.0",
	2:  "LCN-SW1.1",
	3:  "LCN-UP1.0",
	4:  "LCN-UP2",
	5:  "LCN-SW2",
	6:  "LCN-UP-Profi1-Plus",
	7:  "LCN-DI12",
	8:  "LCN-HU",
	9:  "LCN-SH",
	10: "LCN-UP2",
	11: "LCN-UPP",
	12: "LCN-SK",
	14: "LCN-LD",
	15: "LCN-SH-Plus",
	17: "LCN-UPS",
	18: "LCN-UPS24V",
	19: "LCN-GTM",
	20: "LCN-SHS",
	21: "LCN-ESD",
	22: "LCN-EB2",
	23: "LCN-MRS",
	24: "LCN-EB11",
	25: "LCN-UMR",
	26: "LCN-UPU",
	27: "LCN-UMR24V",
	28: "LCN-SHD",
	29: "LCN-SHU",
	30: "LCN-SR6",
	31: "LCN-UMF",
	32: "LCN-WBH",
}

// HardwareTypeName returns the model name for a hardware type code.
func HardwareTypeName(code int) (string, bool) {
	name, ok := hardwareTypes[code]
	return name, ok
}

// HardwareTypeLabel is HardwareTypeName with "-" for unknown codes.
func HardwareTypeLabel(code int) string {
	if name, ok := hardwareTypes[code]; ok {
		return name
	}
	return "-"
}
