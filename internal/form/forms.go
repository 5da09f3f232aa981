package form

import (
	"strings"

	"lcn-go-panel/internal/lcn"
)

// DeviceForm is the state of the create-device dialog.
type DeviceForm struct {
	SegmentID int    `json:"segment_id"`
	AddressID int    `json:"address_id"`
	IsGroup   bool   `json:"is_group"`
	Name      string `json:"name"`
}

// Address returns the bus address described by the form.
func (f DeviceForm) Address() lcn.Address {
	return lcn.Address{Segment: f.SegmentID, ID: f.AddressID, IsGroup: f.IsGroup}
}

// Invalid reports whether the form may not be submitted.
func (f DeviceForm) Invalid() bool {
	return SegmentIDInvalid(f.SegmentID) || AddressIDInvalid(f.AddressID)
}

// Report lists the fields currently blocking submission.
func (f DeviceForm) Report() Report {
	r := Report{Fields: map[string]bool{}}
	if SegmentIDInvalid(f.SegmentID) {
		r.Fields["segment_id"] = true
	}
	if AddressIDInvalid(f.AddressID) {
		r.Fields["address_id"] = true
	}
	r.Invalid = len(r.Fields) > 0
	return r
}

// EntityForm is the state of the create-entity dialog.
type EntityForm struct {
	Name string
	Data DomainData
}

// Invalid reports whether the form may not be submitted.
func (f EntityForm) Invalid() bool {
	return strings.TrimSpace(f.Name) == "" || f.Data == nil || f.Data.Invalid()
}

// Report lists the fields currently blocking submission along with
// fields that are disabled for the selected outputs.
func (f EntityForm) Report() Report {
	r := Report{Fields: map[string]bool{}}
	if strings.TrimSpace(f.Name) == "" {
		r.Fields["name"] = true
	}
	if f.Data != nil {
		c := &fieldChecker{report: &r}
		_ = Dispatch(f.Data, c)
	} else {
		r.Fields["domain"] = true
	}
	r.Invalid = len(r.Fields) > 0
	return r
}

// Report is the per-field validity of a form.
type Report struct {
	Invalid  bool            `json:"invalid"`
	Fields   map[string]bool `json:"fields"`
	Disabled []string        `json:"disabled,omitempty"`
}

type fieldChecker struct {
	report *Report
}

func (c *fieldChecker) mark(field string, invalid bool) {
	if invalid {
		c.report.Fields[field] = true
	}
}

func (c *fieldChecker) BinarySensor(BinarySensorConfig) error { return nil }

func (c *fieldChecker) Climate(cfg ClimateConfig) error {
	c.mark("min_temp", ClimateMinTempInvalid(cfg.MinTemp, cfg.MaxTemp))
	c.mark("max_temp", ClimateMaxTempInvalid(cfg.MinTemp, cfg.MaxTemp))
	return nil
}

func (c *fieldChecker) Cover(CoverConfig) error { return nil }

func (c *fieldChecker) Light(cfg LightConfig) error {
	c.mark("transition", TransitionInvalid(cfg.Transition))
	if cfg.TransitionDisabled() {
		c.report.Disabled = append(c.report.Disabled, "dimmable", "transition")
	}
	return nil
}

func (c *fieldChecker) Scene(cfg SceneConfig) error {
	c.mark("transition", TransitionInvalid(cfg.Transition))
	if cfg.TransitionDisabled() {
		c.report.Disabled = append(c.report.Disabled, "transition")
	}
	return nil
}

func (c *fieldChecker) Sensor(SensorConfig) error { return nil }

func (c *fieldChecker) Switch(SwitchConfig) error { return nil }
