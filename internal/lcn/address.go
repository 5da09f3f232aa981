package lcn

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidToken is returned by ParseToken for malformed address tokens.
var ErrInvalidToken = errors.New("lcn: invalid address token")

// InvalidField marks an address field that could not be decoded.
const InvalidField = -1

const tokenLen = 7

// Address identifies a module or a group within a bus segment.
//
// The canonical field order is (segment, id, isGroup). It is used for
// tokens, JSON arrays and store keys alike.
type Address struct {
	Segment int
	ID      int
	IsGroup bool
}

// Module returns the address of a module.
func Module(segment, id int) Address {
	return Address{Segment: segment, ID: id}
}

// Group returns the address of a group.
func Group(segment, id int) Address {
	return Address{Segment: segment, ID: id, IsGroup: true}
}

// Valid reports whether both numeric fields were decoded.
func (a Address) Valid() bool {
	return a.Segment >= 0 && a.ID >= 0
}

// Equal compares field-wise. Invalid addresses never match, not even themselves.
func (a Address) Equal(b Address) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return a == b
}

// Token returns the 7-character token for the address.
func (a Address) Token() string {
	return EncodeToken(a)
}

func (a Address) String() string {
	kind := "M"
	if a.IsGroup {
		kind = "G"
	}
	return fmt.Sprintf("S%03d %s%03d", a.Segment, kind, a.ID)
}

// EncodeToken renders the address as marker + 3-digit segment + 3-digit id.
// Values above 999 yield a longer token; callers keep fields in range.
func EncodeToken(a Address) string {
	marker := "m"
	if a.IsGroup {
		marker = "g"
	}
	return fmt.Sprintf("%s%03d%03d", marker, a.Segment, a.ID)
}

// DecodeToken is the lenient inverse of EncodeToken. Fields that cannot be
// parsed are set to InvalidField instead of failing.
func DecodeToken(token string) Address {
	return Address{
		Segment: tokenField(token, 1, 4),
		ID:      tokenField(token, 4, 7),
		IsGroup: len(token) > 0 && token[0] == 'g',
	}
}

// ParseToken is the strict variant of DecodeToken used for route parameters.
func ParseToken(token string) (Address, error) {
	if len(token) != tokenLen || (token[0] != 'g' && token[0] != 'm') {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	a := DecodeToken(token)
	// Round trip rejects signs and other non-digit spellings Atoi tolerates.
	if !a.Valid() || a.Token() != token {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	return a, nil
}

func tokenField(token string, from, to int) int {
	if len(token) < to {
		return InvalidField
	}
	n, err := strconv.Atoi(token[from:to])
	if err != nil || n < 0 {
		return InvalidField
	}
	return n
}

// MarshalJSON encodes the address as [segment, id, is_group].
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{a.Segment, a.ID, a.IsGroup})
}

// UnmarshalJSON decodes the [segment, id, is_group] array form.
func (a *Address) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("decode address: want 3 elements, got %d", len(raw))
	}
	var out Address
	if err := json.Unmarshal(raw[0], &out.Segment); err != nil {
		return fmt.Errorf("decode address segment: %w", err)
	}
	if err := json.Unmarshal(raw[1], &out.ID); err != nil {
		return fmt.Errorf("decode address id: %w", err)
	}
	if err := json.Unmarshal(raw[2], &out.IsGroup); err != nil {
		return fmt.Errorf("decode address group flag: %w", err)
	}
	*a = out
	return nil
}
