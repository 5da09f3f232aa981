package form

import (
	"fmt"
	"slices"
)

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

// Port and source identifiers understood by the LCN integration.
var (
	OutputPorts       = numbered("OUTPUT", 4)
	RelayPorts        = numbered("RELAY", 8)
	MotorPorts        = append(numbered("MOTOR", 4), "OUTPUTS")
	MotorReverseTimes = []string{"RT70", "RT600", "RT1200"}
	BinarySensorPorts = numbered("BINSENSOR", 8)
	Setpoints         = []string{"R1VARSETPOINT", "R2VARSETPOINT"}
	Variables         = append([]string{"TVAR", "R1VAR", "R2VAR"}, numbered("VAR", 12)...)
	S0Inputs          = numbered("S0INPUT", 4)
	LEDPorts          = numbered("LED", 12)
	LogicOpPorts      = numbered("LOGICOP", 4)
	Thresholds        = thresholds()
	Keys              = keys()

	SensorUnits  = []string{"NATIVE", "°C", "°K", "°F", "lx_T", "lx_I", "m/s", "%", "ppm", "V", "A", "°"}
	ClimateUnits = []string{"°C", "°K", "°F"}
)

func thresholds() []string {
	out := numbered("THRS", 5)
	for reg := 2; reg <= 4; reg++ {
		out = append(out, numbered(fmt.Sprintf("THRS%d_", reg), 4)...)
	}
	return out
}

func keys() []string {
	var out []string
	for _, table := range []string{"A", "B", "C", "D"} {
		out = append(out, numbered(table, 8)...)
	}
	return out
}

// IsDimmableOutput reports whether port is an analog output with a ramp.
func IsDimmableOutput(port string) bool {
	return slices.Contains(OutputPorts, port)
}

// Options is the set of dropdown choices for every domain form.
type Options struct {
	BinarySensorSources []string `json:"binary_sensor_sources"`
	ClimateSources      []string `json:"climate_sources"`
	ClimateSetpoints    []string `json:"climate_setpoints"`
	ClimateUnits        []string `json:"climate_units"`
	CoverMotors         []string `json:"cover_motors"`
	CoverReverseTimes   []string `json:"cover_reverse_times"`
	LightOutputs        []string `json:"light_outputs"`
	SceneRegisters      []int    `json:"scene_registers"`
	SceneNumbers        []int    `json:"scene_numbers"`
	SceneOutputs        []string `json:"scene_outputs"`
	SensorSources       []string `json:"sensor_sources"`
	SensorUnits         []string `json:"sensor_units"`
	SwitchOutputs       []string `json:"switch_outputs"`
}

// AllOptions builds the dropdown lists.
func AllOptions() Options {
	return Options{
		BinarySensorSources: slices.Concat(BinarySensorPorts, Setpoints, Keys),
		ClimateSources:      slices.Clone(Variables),
		ClimateSetpoints:    slices.Concat(Variables, Setpoints),
		ClimateUnits:        slices.Clone(ClimateUnits),
		CoverMotors:         slices.Clone(MotorPorts),
		CoverReverseTimes:   slices.Clone(MotorReverseTimes),
		LightOutputs:        slices.Concat(OutputPorts, RelayPorts),
		SceneRegisters:      zeroTo(9),
		SceneNumbers:        zeroTo(9),
		SceneOutputs:        slices.Concat(OutputPorts, RelayPorts),
		SensorSources:       slices.Concat(Variables, Setpoints, Thresholds, S0Inputs, LEDPorts, LogicOpPorts),
		SensorUnits:         slices.Clone(SensorUnits),
		SwitchOutputs:       slices.Concat(OutputPorts, RelayPorts, Setpoints, Keys),
	}
}

func zeroTo(n int) []int {
	out := make([]int, n+1)
	for i := range out {
		out[i] = i
	}
	return out
}
