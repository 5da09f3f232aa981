package panel

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"lcn-go-panel/internal/lcn"
	"lcn-go-panel/internal/store"
)

func sampleDevices() []lcn.Device {
	return []lcn.Device{
		{Address: lcn.Module(0, 12), Name: "Kitchen", HardwareSerial: 0x1401010001, HardwareType: 11},
		{Address: lcn.Group(0, 5), Name: "All lights", HardwareSerial: -1, HardwareType: -1},
		{Address: lcn.Module(0, 7), Name: "hall", HardwareSerial: 0x1A0304, HardwareType: 17},
		{Address: lcn.Module(5, 7), Name: "Garage", HardwareSerial: 0x150606, HardwareType: 11},
	}
}

func tokens(devices []lcn.Device) []string {
	out := make([]string, len(devices))
	for i, d := range devices {
		out[i] = d.Address.Token()
	}
	return out
}

func TestFilterDevices(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"m000012", "g000005", "m000007", "m005007"}},
		{"kitchen", []string{"m000012"}},
		{"  HALL ", []string{"m000007"}},
		{"g000", []string{"g000005"}},
		{"S005", []string{"m005007"}},
		{"LCN-UPP", []string{"m000012", "m005007"}},
		{"2010-01-01", []string{"m000012"}},
		{"nothing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := FilterDevices(sampleDevices(), tt.query)
			var gotTokens []string
			if len(got) > 0 {
				gotTokens = tokens(got)
			}
			if diff := cmp.Diff(tt.want, gotTokens); diff != "" {
				t.Errorf("FilterDevices(%q) (-want +got):\n%s", tt.query, diff)
			}
		})
	}
}

func TestSortDevices(t *testing.T) {
	tests := []struct {
		column string
		desc   bool
		want   []string
	}{
		{"", false, []string{"m000007", "m000012", "g000005", "m005007"}},
		{ColumnName, false, []string{"g000005", "m005007", "m000007", "m000012"}},
		{ColumnName, true, []string{"m000012", "m000007", "m005007", "g000005"}},
		{ColumnID, false, []string{"g000005", "m000007", "m005007", "m000012"}},
		{ColumnType, false, []string{"m000007", "m000012", "m005007", "g000005"}},
		{ColumnHardwareSerial, false, []string{"g000005", "m005007", "m000007", "m000012"}},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			devices := sampleDevices()
			SortDevices(devices, tt.column, tt.desc)
			if diff := cmp.Diff(tt.want, tokens(devices)); diff != "" {
				t.Errorf("SortDevices(%q, %v) (-want +got):\n%s", tt.column, tt.desc, diff)
			}
		})
	}
}

func TestApplyViewLeavesInputUntouched(t *testing.T) {
	devices := sampleDevices()
	before := tokens(devices)

	got := ApplyView(devices, store.Session{Filter: "LCN-UPP", SortColumn: ColumnName, SortDescending: true})

	if diff := cmp.Diff([]string{"m000012", "m005007"}, tokens(got)); diff != "" {
		t.Errorf("view (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(before, tokens(devices)); diff != "" {
		t.Errorf("input reordered (-want +got):\n%s", diff)
	}
}
