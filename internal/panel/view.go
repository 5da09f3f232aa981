package panel

import (
	"cmp"
	"slices"
	"strings"

	"lcn-go-panel/internal/lcn"
	"lcn-go-panel/internal/store"
)

// Device table columns.
const (
	ColumnName           = "name"
	ColumnAddress        = "address"
	ColumnSegment        = "segment"
	ColumnID             = "id"
	ColumnType           = "type"
	ColumnHardwareSerial = "hardware_serial"
	ColumnSoftwareSerial = "software_serial"
	ColumnHardwareType   = "hardware_type"
)

// Columns lists the device table columns in display order.
func Columns() []string {
	return []string{
		ColumnName,
		ColumnAddress,
		ColumnSegment,
		ColumnID,
		ColumnType,
		ColumnHardwareSerial,
		ColumnSoftwareSerial,
		ColumnHardwareType,
	}
}

func validColumn(c string) bool {
	return slices.Contains(Columns(), c)
}

// FilterDevices keeps devices whose name, address, token, serials or
// hardware type contain query, case-insensitively.
func FilterDevices(devices []lcn.Device, query string) []lcn.Device {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return devices
	}
	var out []lcn.Device
	for _, d := range devices {
		fields := []string{
			d.Name,
			d.Address.String(),
			d.Address.Token(),
			lcn.FormatSerial(d.HardwareSerial),
			lcn.FormatSerial(d.SoftwareSerial),
			lcn.HardwareTypeLabel(d.HardwareType),
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), query) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// SortDevices orders devices in place by column. Ties and unknown columns
// fall back to address order.
func SortDevices(devices []lcn.Device, column string, descending bool) {
	byColumn := func(a, b lcn.Device) int {
		switch column {
		case ColumnName:
			return strings.Compare(strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName()))
		case ColumnSegment:
			return cmp.Compare(a.Address.Segment, b.Address.Segment)
		case ColumnID:
			return cmp.Compare(a.Address.ID, b.Address.ID)
		case ColumnType:
			return compareBool(a.Address.IsGroup, b.Address.IsGroup)
		case ColumnHardwareSerial:
			return cmp.Compare(a.HardwareSerial, b.HardwareSerial)
		case ColumnSoftwareSerial:
			return cmp.Compare(a.SoftwareSerial, b.SoftwareSerial)
		case ColumnHardwareType:
			return strings.Compare(lcn.HardwareTypeLabel(a.HardwareType), lcn.HardwareTypeLabel(b.HardwareType))
		}
		return 0
	}
	slices.SortStableFunc(devices, func(a, b lcn.Device) int {
		c := byColumn(a, b)
		if c == 0 {
			c = compareAddress(a.Address, b.Address)
		}
		if descending {
			return -c
		}
		return c
	})
}

func compareAddress(a, b lcn.Address) int {
	return cmp.Or(
		cmp.Compare(a.Segment, b.Segment),
		compareBool(a.IsGroup, b.IsGroup),
		cmp.Compare(a.ID, b.ID),
	)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}

// ApplyView filters and sorts a copy of devices according to the session.
func ApplyView(devices []lcn.Device, sess store.Session) []lcn.Device {
	out := slices.Clone(FilterDevices(devices, sess.Filter))
	SortDevices(out, sess.SortColumn, sess.SortDescending)
	return out
}
