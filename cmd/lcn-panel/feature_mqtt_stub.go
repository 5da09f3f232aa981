//go:build no_mqtt

package main

import (
	"log/slog"

	"lcn-go-panel/internal/panel"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *panel.Panel, cfg *Config, logger *slog.Logger) *mqttStopper {
	if cfg.MQTT.Enabled {
		logger.Warn("mqtt enabled in config but compiled out (no_mqtt)")
	}
	return &mqttStopper{}
}
