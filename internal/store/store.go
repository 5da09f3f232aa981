package store

import (
	"errors"

	"lcn-go-panel/internal/lcn"
)

// ErrNotFound is returned when a requested record does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface.
type Store interface {
	// Device cache, one namespace per host.
	SaveDevice(hostID string, dev *lcn.Device) error
	GetDevice(hostID string, addr lcn.Address) (*lcn.Device, error)
	DeleteDevice(hostID string, addr lcn.Address) error
	ListDevices(hostID string) ([]*lcn.Device, error)

	// ReplaceDevices swaps the whole cache of a host in a single transaction.
	ReplaceDevices(hostID string, devices []lcn.Device) error

	// Session preferences
	SaveSession(sess *Session) error
	GetSession() (*Session, error)

	// Close the store
	Close() error
}
