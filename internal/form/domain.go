package form

import (
	"encoding/json"
	"errors"
	"fmt"

	"lcn-go-panel/internal/lcn"
)

// ErrUnknownDomain is returned for domain names outside the supported set.
var ErrUnknownDomain = errors.New("form: unknown domain")

// DomainData is the domain-specific part of an entity form. The set of
// implementations is closed; use Dispatch to branch on the concrete type.
type DomainData interface {
	Domain() lcn.Domain
	// Invalid reports whether the configuration must not be submitted.
	Invalid() bool
	accept(h Handler) error
}

// Handler has one method per domain. Implementations must handle every
// domain, so adding a domain is a compile error until all handlers follow.
type Handler interface {
	BinarySensor(BinarySensorConfig) error
	Climate(ClimateConfig) error
	Cover(CoverConfig) error
	Light(LightConfig) error
	Scene(SceneConfig) error
	Sensor(SensorConfig) error
	Switch(SwitchConfig) error
}

// Dispatch calls the Handler method matching d's domain.
func Dispatch(d DomainData, h Handler) error {
	return d.accept(h)
}

type BinarySensorConfig struct {
	Source string `json:"source"`
}

func (BinarySensorConfig) Domain() lcn.Domain       { return lcn.DomainBinarySensor }
func (BinarySensorConfig) Invalid() bool            { return false }
func (c BinarySensorConfig) accept(h Handler) error { return h.BinarySensor(c) }

type ClimateConfig struct {
	Source   string  `json:"source"`
	Setpoint string  `json:"setpoint"`
	MinTemp  float64 `json:"min_temp"`
	MaxTemp  float64 `json:"max_temp"`
	Lockable bool    `json:"lockable"`
	Unit     string  `json:"unit_of_measurement"`
}

func (ClimateConfig) Domain() lcn.Domain { return lcn.DomainClimate }

func (c ClimateConfig) Invalid() bool {
	return ClimateMinTempInvalid(c.MinTemp, c.MaxTemp) || ClimateMaxTempInvalid(c.MinTemp, c.MaxTemp)
}

func (c ClimateConfig) accept(h Handler) error { return h.Climate(c) }

type CoverConfig struct {
	Motor       string `json:"motor"`
	ReverseTime string `json:"reverse_time"`
}

func (CoverConfig) Domain() lcn.Domain       { return lcn.DomainCover }
func (CoverConfig) Invalid() bool            { return false }
func (c CoverConfig) accept(h Handler) error { return h.Cover(c) }

type LightConfig struct {
	Output     string  `json:"output"`
	Dimmable   bool    `json:"dimmable"`
	Transition float64 `json:"transition"`
}

func (LightConfig) Domain() lcn.Domain { return lcn.DomainLight }

func (c LightConfig) Invalid() bool {
	return TransitionInvalid(c.Transition)
}

// TransitionDisabled reports whether the transition field is inactive.
func (c LightConfig) TransitionDisabled() bool {
	return LightTransitionDisabled(c.Output)
}

func (c LightConfig) accept(h Handler) error { return h.Light(c) }

type SceneConfig struct {
	Register   int      `json:"register"`
	Scene      int      `json:"scene"`
	Outputs    []string `json:"outputs"`
	Transition float64  `json:"transition"`
}

func (SceneConfig) Domain() lcn.Domain { return lcn.DomainScene }

func (c SceneConfig) Invalid() bool {
	return TransitionInvalid(c.Transition)
}

// TransitionDisabled reports whether the transition field is inactive.
func (c SceneConfig) TransitionDisabled() bool {
	return SceneTransitionDisabled(c.Outputs)
}

func (c SceneConfig) accept(h Handler) error { return h.Scene(c) }

type SensorConfig struct {
	Source string `json:"source"`
	Unit   string `json:"unit_of_measurement"`
}

func (SensorConfig) Domain() lcn.Domain       { return lcn.DomainSensor }
func (SensorConfig) Invalid() bool            { return false }
func (c SensorConfig) accept(h Handler) error { return h.Sensor(c) }

type SwitchConfig struct {
	Output string `json:"output"`
}

func (SwitchConfig) Domain() lcn.Domain       { return lcn.DomainSwitch }
func (SwitchConfig) Invalid() bool            { return false }
func (c SwitchConfig) accept(h Handler) error { return h.Switch(c) }

// DefaultDomainData returns the initial form state for a new entity.
func DefaultDomainData(domain lcn.Domain) (DomainData, error) {
	switch domain {
	case lcn.DomainBinarySensor:
		return BinarySensorConfig{Source: BinarySensorPorts[0]}, nil
	case lcn.DomainClimate:
		return ClimateConfig{Source: "VAR1", Setpoint: Setpoints[0], MinTemp: 7, MaxTemp: 35, Unit: "°C"}, nil
	case lcn.DomainCover:
		return CoverConfig{Motor: MotorPorts[0], ReverseTime: "RT1200"}, nil
	case lcn.DomainLight:
		return LightConfig{Output: OutputPorts[0], Dimmable: true}, nil
	case lcn.DomainScene:
		return SceneConfig{Outputs: []string{}}, nil
	case lcn.DomainSensor:
		return SensorConfig{Source: "VAR1", Unit: "NATIVE"}, nil
	case lcn.DomainSwitch:
		return SwitchConfig{Output: OutputPorts[0]}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
}

// DecodeDomainData parses the domain_data payload for the given domain.
func DecodeDomainData(domain lcn.Domain, raw json.RawMessage) (DomainData, error) {
	var (
		d   DomainData
		err error
	)
	switch domain {
	case lcn.DomainBinarySensor:
		d, err = decodeInto[BinarySensorConfig](raw)
	case lcn.DomainClimate:
		d, err = decodeInto[ClimateConfig](raw)
	case lcn.DomainCover:
		d, err = decodeInto[CoverConfig](raw)
	case lcn.DomainLight:
		d, err = decodeInto[LightConfig](raw)
	case lcn.DomainScene:
		d, err = decodeInto[SceneConfig](raw)
	case lcn.DomainSensor:
		d, err = decodeInto[SensorConfig](raw)
	case lcn.DomainSwitch:
		d, err = decodeInto[SwitchConfig](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s domain data: %w", domain, err)
	}
	return d, nil
}

func decodeInto[T DomainData](raw json.RawMessage) (DomainData, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeDomainData marshals d into the wire form used by the RPC surface.
func EncodeDomainData(d DomainData) (json.RawMessage, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode %s domain data: %w", d.Domain(), err)
	}
	return data, nil
}
