package form

// Form field limits.
const (
	MaxTransition = 486 // seconds, largest ramp the modules encode

	MinSegmentID = 5
	MaxSegmentID = 128
	MinAddressID = 5
	MaxAddressID = 254
)

// Each predicate reports true when the value must block submission.

// TransitionInvalid checks a light or scene transition time.
func TransitionInvalid(transition float64) bool {
	return transition < 0 || transition > MaxTransition
}

// ClimateMaxTempInvalid requires max to be strictly above min.
func ClimateMaxTempInvalid(minTemp, maxTemp float64) bool {
	return maxTemp <= minTemp
}

// ClimateMinTempInvalid never rejects; only the max_temp rule gates submission.
func ClimateMinTempInvalid(minTemp, maxTemp float64) bool {
	return false
}

// SegmentIDInvalid accepts 0 (local segment) or 5..128.
func SegmentIDInvalid(segmentID int) bool {
	return !(segmentID == 0 || (segmentID >= MinSegmentID && segmentID <= MaxSegmentID))
}

// AddressIDInvalid accepts 5..254 for modules and groups alike.
func AddressIDInvalid(addressID int) bool {
	return !(addressID >= MinAddressID && addressID <= MaxAddressID)
}

// SceneTransitionDisabled is true when no dimmable output is selected.
func SceneTransitionDisabled(outputs []string) bool {
	for _, o := range outputs {
		if IsDimmableOutput(o) {
			return false
		}
	}
	return true
}

// LightTransitionDisabled is true for relay outputs.
func LightTransitionDisabled(output string) bool {
	return !IsDimmableOutput(output)
}
