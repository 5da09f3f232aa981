package lcn

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrWrongSerial is returned when a packed serial does not have the expected shape.
var ErrWrongSerial = errors.New("wrong serial number")

const serialYearBase = 1990

// Hex layout: YY, one unused digit (high nibble of the month byte), M, DD,
// then an optional 4-digit unit serial for hardware serials.
var serialRe = regexp.MustCompile(`^([0-9A-F]{2})[0-9A-F]([0-9A-F])([0-9A-F]{2})([0-9A-F]{4})?`)

// Serial is a decoded firmware or hardware serial.
type Serial struct {
	Year  int  `json:"year"`
	Month int  `json:"month"`
	Day   int  `json:"day"`
	Unit  *int `json:"serial,omitempty"` // nil for software serials
}

// IsHardware reports whether the serial carries a unit serial number.
func (s Serial) IsHardware() bool {
	return s.Unit != nil
}

func (s Serial) String() string {
	date := fmt.Sprintf("%04d-%02d-%02d", s.Year, s.Month, s.Day)
	if s.Unit != nil {
		return fmt.Sprintf("%s #%04X", date, *s.Unit)
	}
	return date
}

// ParseSerial decodes a packed serial. Only the syntactic shape is checked;
// month and day are not validated as calendar values.
func ParseSerial(raw int64) (Serial, error) {
	text := fmt.Sprintf("%X", raw)
	m := serialRe.FindStringSubmatch(text)
	if m == nil {
		return Serial{}, fmt.Errorf("%w: %s", ErrWrongSerial, text)
	}
	s := Serial{
		Year:  hexField(m[1]) + serialYearBase,
		Month: hexField(m[2]),
		Day:   hexField(m[3]),
	}
	if m[4] != "" {
		unit := hexField(m[4])
		s.Unit = &unit
	}
	return s, nil
}

// FormatSerial renders raw as a date, or "-" when it cannot be parsed.
func FormatSerial(raw int64) string {
	s, err := ParseSerial(raw)
	if err != nil {
		return "-"
	}
	return s.String()
}

// hexField parses a regexp group; the pattern guarantees valid hex.
func hexField(s string) int {
	n, _ := strconv.ParseInt(s, 16, 64)
	return int(n)
}
