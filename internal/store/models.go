package store

// Session holds the panel preferences that survive a restart.
type Session struct {
	HostID         string   `json:"host_id"`
	Filter         string   `json:"filter,omitempty"`
	SortColumn     string   `json:"sort_column,omitempty"`
	SortDescending bool     `json:"sort_descending,omitempty"`
	HiddenColumns  []string `json:"hidden_columns,omitempty"`
}

// IsHidden reports whether a device table column is hidden.
func (s *Session) IsHidden(column string) bool {
	for _, c := range s.HiddenColumns {
		if c == column {
			return true
		}
	}
	return false
}
