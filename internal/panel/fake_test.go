package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"lcn-go-panel/internal/hass"
	"lcn-go-panel/internal/lcn"
	"lcn-go-panel/internal/store"
)

// fakeBackend is an in-memory LCN host.
type fakeBackend struct {
	mu       sync.Mutex
	hosts    []lcn.Host
	devices  map[string][]lcn.Device
	entities map[string][]lcn.Entity
	scan     []lcn.Device
	err      error

	// addHook runs inside AddDevice and AddEntity before they answer.
	addHook func(ctx context.Context)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		hosts: []lcn.Host{
			{Name: "Home", ID: "host1", IPAddress: "192.168.1.10", Port: 4114},
			{Name: "Garage", ID: "host2", IPAddress: "192.168.1.11", Port: 4114},
		},
		devices:  map[string][]lcn.Device{},
		entities: map[string][]lcn.Entity{},
	}
}

func (f *fakeBackend) Hosts(context.Context) ([]lcn.Host, error) {
	return f.hosts, f.err
}

func (f *fakeBackend) Devices(_ context.Context, hostID string) ([]lcn.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]lcn.Device(nil), f.devices[hostID]...), nil
}

func (f *fakeBackend) Device(_ context.Context, hostID string, addr lcn.Address) (*lcn.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices[hostID] {
		if d.Address.Equal(addr) {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", hass.CmdDevice, &hass.CommandError{Code: "not_found", Message: "unknown device"})
}

func (f *fakeBackend) Entities(_ context.Context, hostID string, addr lcn.Address) ([]lcn.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []lcn.Entity
	for _, e := range f.entities[hostID] {
		if e.Address.Equal(addr) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeBackend) ScanDevices(_ context.Context, hostID string) ([]lcn.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.devices[hostID] = append([]lcn.Device(nil), f.scan...)
	return f.scan, nil
}

func (f *fakeBackend) AddEntity(ctx context.Context, hostID string, addr lcn.Address, name string, domain lcn.Domain, domainData json.RawMessage) (bool, error) {
	if f.addHook != nil {
		f.addHook(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, e := range f.entities[hostID] {
		if e.Address.Equal(addr) && e.Domain == domain && e.Name == name {
			return false, nil
		}
	}
	f.entities[hostID] = append(f.entities[hostID], lcn.Entity{
		Address:    addr,
		Name:       name,
		Domain:     domain,
		Resource:   fmt.Sprintf("%s_%d", domain, len(f.entities[hostID])),
		DomainData: domainData,
	})
	return true, nil
}

func (f *fakeBackend) DeleteEntity(_ context.Context, hostID string, addr lcn.Address, domain lcn.Domain, resource string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entities[hostID] {
		if e.Address.Equal(addr) && e.Domain == domain && e.Resource == resource {
			f.entities[hostID] = append(f.entities[hostID][:i], f.entities[hostID][i+1:]...)
			return nil
		}
	}
	return &hass.CommandError{Code: "not_found", Message: "unknown entity"}
}

func (f *fakeBackend) AddDevice(ctx context.Context, hostID string, addr lcn.Address, name string) (bool, error) {
	if f.addHook != nil {
		f.addHook(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, d := range f.devices[hostID] {
		if d.Address.Equal(addr) {
			return false, nil
		}
	}
	f.devices[hostID] = append(f.devices[hostID], lcn.Device{
		Address:        addr,
		Name:           name,
		HardwareSerial: -1,
		SoftwareSerial: -1,
		HardwareType:   -1,
	})
	return true, nil
}

func (f *fakeBackend) DeleteDevice(_ context.Context, hostID string, addr lcn.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.devices[hostID] {
		if d.Address.Equal(addr) {
			f.devices[hostID] = append(f.devices[hostID][:i], f.devices[hostID][i+1:]...)
			return nil
		}
	}
	return &hass.CommandError{Code: "not_found", Message: "unknown device"}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.BoltStore {
	t.Helper()
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "panel.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestPanel returns a panel with host1 selected and a recorder of emitted events.
func newTestPanel(t *testing.T, backend *fakeBackend) (*Panel, store.Store, *[]Event) {
	t.Helper()
	st := newTestStore(t)
	bus := NewEventBus(newTestLogger())
	var events []Event
	bus.OnAll(func(e Event) { events = append(events, e) })

	p := New(backend, st, bus, newTestLogger())
	if err := p.SelectHost(context.Background(), "host1"); err != nil {
		t.Fatal(err)
	}
	events = events[:0]
	return p, st, &events
}
