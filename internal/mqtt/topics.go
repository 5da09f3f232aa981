//go:build !no_mqtt

package mqtt

import (
	"strings"

	"lcn-go-panel/internal/lcn"
)

// deviceState is the retained snapshot published for one device.
type deviceState struct {
	Address        lcn.Address `json:"address"`
	Token          string      `json:"token"`
	Name           string      `json:"name"`
	IsGroup        bool        `json:"is_group"`
	HardwareSerial string      `json:"hardware_serial"`
	SoftwareSerial string      `json:"software_serial"`
	HardwareType   string      `json:"hardware_type"`
}

func bridgeStateTopic(prefix string) string {
	return prefix + "/bridge/state"
}

func eventTopic(prefix, eventType string) string {
	return prefix + "/event/" + eventType
}

func scanTopic(prefix string) string {
	return prefix + "/scan/set"
}

// deviceTopic returns the retained snapshot topic of a device on a host.
func deviceTopic(prefix, hostID, token string) string {
	return prefix + "/" + topicSegment(hostID) + "/" + token
}

// topicSegment lowercases s and replaces everything outside [a-z0-9_-] so
// host ids never introduce levels or wildcards.
func topicSegment(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, strings.ToLower(s))
}

func devicePayload(dev *lcn.Device) []byte {
	return mustJSON(deviceState{
		Address:        dev.Address,
		Token:          dev.Address.Token(),
		Name:           dev.DisplayName(),
		IsGroup:        dev.Address.IsGroup,
		HardwareSerial: lcn.FormatSerial(dev.HardwareSerial),
		SoftwareSerial: lcn.FormatSerial(dev.SoftwareSerial),
		HardwareType:   lcn.HardwareTypeLabel(dev.HardwareType),
	})
}
