package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"lcn-go-panel/internal/form"
	"lcn-go-panel/internal/hass"
	"lcn-go-panel/internal/lcn"
	"lcn-go-panel/internal/store"
)

var (
	ErrDeviceExists = errors.New("panel: device already exists")
	ErrEntityExists = errors.New("panel: entity already exists")
	ErrInvalidForm  = errors.New("panel: invalid form")
	ErrNoHost       = errors.New("panel: no host selected")
)

// Backend is the LCN command surface of Home Assistant. *hass.LCN implements it.
type Backend interface {
	Hosts(ctx context.Context) ([]lcn.Host, error)
	Devices(ctx context.Context, hostID string) ([]lcn.Device, error)
	Device(ctx context.Context, hostID string, addr lcn.Address) (*lcn.Device, error)
	Entities(ctx context.Context, hostID string, addr lcn.Address) ([]lcn.Entity, error)
	ScanDevices(ctx context.Context, hostID string) ([]lcn.Device, error)
	AddEntity(ctx context.Context, hostID string, addr lcn.Address, name string, domain lcn.Domain, domainData json.RawMessage) (bool, error)
	DeleteEntity(ctx context.Context, hostID string, addr lcn.Address, domain lcn.Domain, resource string) error
	AddDevice(ctx context.Context, hostID string, addr lcn.Address, name string) (bool, error)
	DeleteDevice(ctx context.Context, hostID string, addr lcn.Address) error
}

// Panel is the application service behind the web UI and the MQTT bridge.
type Panel struct {
	backend Backend
	store   store.Store
	events  *EventBus
	logger  *slog.Logger

	mu      sync.Mutex
	session store.Session
}

// New creates a Panel and restores the persisted session.
func New(backend Backend, st store.Store, events *EventBus, logger *slog.Logger) *Panel {
	p := &Panel{
		backend: backend,
		store:   st,
		events:  events,
		logger:  logger.With("component", "panel"),
	}
	sess, err := st.GetSession()
	switch {
	case err == nil:
		p.session = *sess
	case !errors.Is(err, store.ErrNotFound):
		p.logger.Warn("failed to restore session", "err", err)
	}
	return p
}

func (p *Panel) Events() *EventBus {
	return p.events
}

// Session returns a copy of the current preferences.
func (p *Panel) Session() store.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.session
	s.HiddenColumns = append([]string(nil), p.session.HiddenColumns...)
	return s
}

// UpdateSession validates and persists new preferences. A non-empty HostID
// must name a known host.
func (p *Panel) UpdateSession(ctx context.Context, sess store.Session) error {
	if sess.SortColumn != "" && !validColumn(sess.SortColumn) {
		return fmt.Errorf("%w: unknown sort column %q", ErrInvalidForm, sess.SortColumn)
	}
	for _, c := range sess.HiddenColumns {
		if !validColumn(c) {
			return fmt.Errorf("%w: unknown column %q", ErrInvalidForm, c)
		}
	}

	prev := p.Session()
	if sess.HostID != "" && sess.HostID != prev.HostID {
		if _, err := p.Host(ctx, sess.HostID); err != nil {
			return err
		}
	}
	if err := p.store.SaveSession(&sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	p.mu.Lock()
	p.session = sess
	p.mu.Unlock()

	if sess.HostID != prev.HostID {
		p.logger.Info("host selected", "host", sess.HostID)
		p.events.Emit(Event{Type: EventHostSelected, Host: sess.HostID})
	}
	return nil
}

// SelectHost switches the active host, keeping the other preferences.
func (p *Panel) SelectHost(ctx context.Context, hostID string) error {
	sess := p.Session()
	sess.HostID = hostID
	return p.UpdateSession(ctx, sess)
}

// HostID returns the selected host or ErrNoHost.
func (p *Panel) HostID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session.HostID == "" {
		return "", ErrNoHost
	}
	return p.session.HostID, nil
}

func (p *Panel) resolveHost(hostID string) (string, error) {
	if hostID != "" {
		return hostID, nil
	}
	return p.HostID()
}

func (p *Panel) Hosts(ctx context.Context) ([]lcn.Host, error) {
	hosts, err := p.backend.Hosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	return hosts, nil
}

// Host looks up one host by config entry id.
func (p *Panel) Host(ctx context.Context, hostID string) (*lcn.Host, error) {
	hosts, err := p.Hosts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range hosts {
		if hosts[i].ID == hostID {
			return &hosts[i], nil
		}
	}
	return nil, fmt.Errorf("host %s: %w", hostID, store.ErrNotFound)
}

// Devices lists the devices of the selected host and refreshes the cache.
func (p *Panel) Devices(ctx context.Context) ([]lcn.Device, error) {
	hostID, err := p.HostID()
	if err != nil {
		return nil, err
	}
	devices, err := p.backend.Devices(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if err := p.store.ReplaceDevices(hostID, devices); err != nil {
		p.logger.Warn("failed to refresh device cache", "host", hostID, "err", err)
	}
	return devices, nil
}

// CachedDevices returns the last known devices of a host without a round trip.
func (p *Panel) CachedDevices(hostID string) ([]*lcn.Device, error) {
	hostID, err := p.resolveHost(hostID)
	if err != nil {
		return nil, err
	}
	return p.store.ListDevices(hostID)
}

// Device fetches one device of the selected host.
func (p *Panel) Device(ctx context.Context, addr lcn.Address) (*lcn.Device, error) {
	hostID, err := p.HostID()
	if err != nil {
		return nil, err
	}
	dev, err := p.backend.Device(ctx, hostID, addr)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", addr, mapNotFound(err))
	}
	return dev, nil
}

// Entities lists the entities configured on one device of the selected host.
func (p *Panel) Entities(ctx context.Context, addr lcn.Address) ([]lcn.Entity, error) {
	hostID, err := p.HostID()
	if err != nil {
		return nil, err
	}
	entities, err := p.backend.Entities(ctx, hostID, addr)
	if err != nil {
		return nil, fmt.Errorf("entities of %s: %w", addr, mapNotFound(err))
	}
	return entities, nil
}

// ScanDevices rescans the bus of hostID (the selected host when empty) and
// replaces its cached device list.
func (p *Panel) ScanDevices(ctx context.Context, hostID string) ([]lcn.Device, error) {
	hostID, err := p.resolveHost(hostID)
	if err != nil {
		return nil, err
	}
	p.logger.Info("scanning bus", "host", hostID)
	devices, err := p.backend.ScanDevices(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("scan devices: %w", err)
	}
	if err := p.store.ReplaceDevices(hostID, devices); err != nil {
		return nil, fmt.Errorf("cache scanned devices: %w", err)
	}
	p.logger.Info("scan complete", "host", hostID, "devices", len(devices))
	p.events.Emit(Event{Type: EventDevicesScanned, Host: hostID, Data: devices})
	return devices, nil
}

// CreateDevice submits the create-device dialog. Nothing is cached or
// announced when the dialog closes before the host answers.
func (p *Panel) CreateDevice(dlg *Dialog, f form.DeviceForm) (*lcn.Device, error) {
	hostID, err := p.HostID()
	if err != nil {
		return nil, err
	}
	if f.Invalid() {
		return nil, fmt.Errorf("%w: device address %s", ErrInvalidForm, f.Address())
	}

	addr := f.Address()
	var dev *lcn.Device
	err = dlg.Run(func(ctx context.Context) error {
		ok, err := p.backend.AddDevice(ctx, hostID, addr, f.Name)
		if err != nil {
			return fmt.Errorf("add device %s: %w", addr, err)
		}
		if !ok {
			return fmt.Errorf("device %s: %w", addr, ErrDeviceExists)
		}
		dev, err = p.backend.Device(ctx, hostID, addr)
		if err != nil {
			p.logger.Warn("added device not readable", "host", hostID, "address", addr, "err", err)
			dev = &lcn.Device{Address: addr, Name: f.Name}
		}
		return nil
	}, func() {
		if err := p.store.SaveDevice(hostID, dev); err != nil {
			p.logger.Warn("failed to cache device", "host", hostID, "address", addr, "err", err)
		}
		p.logger.Info("device added", "host", hostID, "address", addr)
		p.events.Emit(Event{Type: EventDeviceAdded, Host: hostID, Data: dev})
	})
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func (p *Panel) DeleteDevice(ctx context.Context, addr lcn.Address) error {
	hostID, err := p.HostID()
	if err != nil {
		return err
	}
	if err := p.backend.DeleteDevice(ctx, hostID, addr); err != nil {
		return fmt.Errorf("delete device %s: %w", addr, mapNotFound(err))
	}
	if err := p.store.DeleteDevice(hostID, addr); err != nil {
		p.logger.Warn("failed to evict device", "host", hostID, "address", addr, "err", err)
	}
	p.logger.Info("device deleted", "host", hostID, "address", addr)
	p.events.Emit(Event{Type: EventDeviceDeleted, Host: hostID, Data: addr})
	return nil
}

// CreateEntity submits the create-entity dialog for the device at addr.
func (p *Panel) CreateEntity(dlg *Dialog, addr lcn.Address, f form.EntityForm) (*lcn.Entity, error) {
	hostID, err := p.HostID()
	if err != nil {
		return nil, err
	}
	if f.Invalid() {
		return nil, fmt.Errorf("%w: entity %q", ErrInvalidForm, f.Name)
	}
	raw, err := form.EncodeDomainData(f.Data)
	if err != nil {
		return nil, err
	}

	ent := &lcn.Entity{Address: addr, Name: f.Name, Domain: f.Data.Domain(), DomainData: raw}
	err = dlg.Run(func(ctx context.Context) error {
		ok, err := p.backend.AddEntity(ctx, hostID, addr, f.Name, ent.Domain, raw)
		if err != nil {
			return fmt.Errorf("add entity %q: %w", f.Name, err)
		}
		if !ok {
			return fmt.Errorf("entity %q on %s: %w", f.Name, addr, ErrEntityExists)
		}
		p.resolveResource(ctx, hostID, ent)
		return nil
	}, func() {
		p.logger.Info("entity added", "host", hostID, "address", addr, "domain", ent.Domain, "name", ent.Name)
		p.events.Emit(Event{Type: EventEntityAdded, Host: hostID, Data: ent})
	})
	if err != nil {
		return nil, err
	}
	return ent, nil
}

// resolveResource fills in the resource the host assigned to a new entity.
func (p *Panel) resolveResource(ctx context.Context, hostID string, ent *lcn.Entity) {
	entities, err := p.backend.Entities(ctx, hostID, ent.Address)
	if err != nil {
		p.logger.Debug("entity resource lookup failed", "err", err)
		return
	}
	for _, e := range entities {
		if e.Domain == ent.Domain && e.Name == ent.Name {
			ent.Resource = e.Resource
			return
		}
	}
}

func (p *Panel) DeleteEntity(ctx context.Context, addr lcn.Address, domain lcn.Domain, resource string) error {
	hostID, err := p.HostID()
	if err != nil {
		return err
	}
	if err := p.backend.DeleteEntity(ctx, hostID, addr, domain, resource); err != nil {
		return fmt.Errorf("delete entity %s/%s: %w", domain, resource, mapNotFound(err))
	}
	p.logger.Info("entity deleted", "host", hostID, "address", addr, "domain", domain, "resource", resource)
	p.events.Emit(Event{Type: EventEntityDeleted, Host: hostID, Data: map[string]any{
		"address":  addr,
		"domain":   domain,
		"resource": resource,
	}})
	return nil
}

// mapNotFound turns the host's not_found command error into store.ErrNotFound.
func mapNotFound(err error) error {
	var cerr *hass.CommandError
	if errors.As(err, &cerr) && cerr.Code == "not_found" {
		return fmt.Errorf("%w: %s", store.ErrNotFound, cerr.Message)
	}
	return err
}
