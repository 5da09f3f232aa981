package lcn

import "encoding/json"

// Domain is the entity category an address is mapped to.
type Domain string

const (
	DomainBinarySensor Domain = "binary_sensor"
	DomainClimate      Domain = "climate"
	DomainCover        Domain = "cover"
	DomainLight        Domain = "light"
	DomainScene        Domain = "scene"
	DomainSensor       Domain = "sensor"
	DomainSwitch       Domain = "switch"
)

// Domains lists every supported domain in display order.
func Domains() []Domain {
	return []Domain{
		DomainBinarySensor,
		DomainClimate,
		DomainCover,
		DomainLight,
		DomainScene,
		DomainSensor,
		DomainSwitch,
	}
}

// Host is an LCN config entry (one PCHK connection) in Home Assistant.
type Host struct {
	Name      string `json:"name"`
	ID        string `json:"id"`
	IPAddress string `json:"ip_address"`
	Port      int    `json:"port"`
}

// Device is a module or group known to a host.
type Device struct {
	Address        Address `json:"address"`
	Name           string  `json:"name"`
	HardwareSerial int64   `json:"hardware_serial"`
	SoftwareSerial int64   `json:"software_serial"`
	HardwareType   int     `json:"hardware_type"`
}

// DisplayName returns the device name, falling back to its address.
func (d *Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Address.String()
}

// Entity maps a device address to a typed Home Assistant entity.
type Entity struct {
	Address    Address         `json:"address"`
	Name       string          `json:"name"`
	Domain     Domain          `json:"domain"`
	Resource   string          `json:"resource"`
	DomainData json.RawMessage `json:"domain_data"`
}
