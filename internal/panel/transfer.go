package panel

import (
	"context"
	"fmt"

	"lcn-go-panel/internal/form"
	"lcn-go-panel/internal/lcn"
)

// Inventory is the export file format.
type Inventory struct {
	Host     string       `json:"host,omitempty"`
	Devices  []lcn.Device `json:"devices"`
	Entities []lcn.Entity `json:"entities"`
}

// ImportResult counts what an import changed.
type ImportResult struct {
	Devices  int `json:"devices"`
	Entities int `json:"entities"`
	Skipped  int `json:"skipped"`
}

// Export collects every device of the selected host with its entities.
func (p *Panel) Export(ctx context.Context) (*Inventory, error) {
	hostID, err := p.HostID()
	if err != nil {
		return nil, err
	}
	devices, err := p.backend.Devices(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("export devices: %w", err)
	}
	inv := &Inventory{Host: hostID, Devices: devices, Entities: []lcn.Entity{}}
	for _, d := range devices {
		entities, err := p.backend.Entities(ctx, hostID, d.Address)
		if err != nil {
			return nil, fmt.Errorf("export entities of %s: %w", d.Address, err)
		}
		inv.Entities = append(inv.Entities, entities...)
	}
	return inv, nil
}

// Import adds the devices and entities of inv to the selected host. Records
// the host already knows, and entities with unusable domain data, are skipped.
func (p *Panel) Import(ctx context.Context, inv *Inventory) (ImportResult, error) {
	var res ImportResult
	hostID, err := p.HostID()
	if err != nil {
		return res, err
	}

	for _, d := range inv.Devices {
		f := form.DeviceForm{
			SegmentID: d.Address.Segment,
			AddressID: d.Address.ID,
			IsGroup:   d.Address.IsGroup,
			Name:      d.Name,
		}
		if !d.Address.Valid() || f.Invalid() {
			p.logger.Warn("skipping device", "address", d.Address, "name", d.Name)
			res.Skipped++
			continue
		}
		ok, err := p.backend.AddDevice(ctx, hostID, d.Address, d.Name)
		if err != nil {
			return res, fmt.Errorf("import device %s: %w", d.Address, err)
		}
		if !ok {
			res.Skipped++
			continue
		}
		res.Devices++
	}

	for _, e := range inv.Entities {
		data, err := form.DecodeDomainData(e.Domain, e.DomainData)
		if err != nil || !e.Address.Valid() || (form.EntityForm{Name: e.Name, Data: data}).Invalid() {
			p.logger.Warn("skipping entity", "address", e.Address, "name", e.Name, "domain", e.Domain, "err", err)
			res.Skipped++
			continue
		}
		raw, err := form.EncodeDomainData(data)
		if err != nil {
			return res, err
		}
		ok, err := p.backend.AddEntity(ctx, hostID, e.Address, e.Name, e.Domain, raw)
		if err != nil {
			return res, fmt.Errorf("import entity %q: %w", e.Name, err)
		}
		if !ok {
			res.Skipped++
			continue
		}
		res.Entities++
	}

	if res.Devices > 0 {
		p.refreshCache(ctx, hostID)
	}

	p.logger.Info("inventory imported", "host", hostID, "devices", res.Devices, "entities", res.Entities, "skipped", res.Skipped)
	p.events.Emit(Event{Type: EventInventoryImported, Host: hostID, Data: res})
	return res, nil
}

// refreshCache reloads the cached device list of hostID from the host.
func (p *Panel) refreshCache(ctx context.Context, hostID string) {
	devices, err := p.backend.Devices(ctx, hostID)
	if err != nil {
		p.logger.Warn("failed to reload devices", "host", hostID, "err", err)
		return
	}
	if err := p.store.ReplaceDevices(hostID, devices); err != nil {
		p.logger.Warn("failed to refresh device cache", "host", hostID, "err", err)
	}
}
