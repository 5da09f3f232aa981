package hass

import (
	"context"
	"encoding/json"

	"lcn-go-panel/internal/lcn"
)

// Command types of the LCN integration.
const (
	CmdHosts        = "lcn/hosts"
	CmdDevices      = "lcn/devices"
	CmdDevice       = "lcn/device"
	CmdEntities     = "lcn/entities"
	CmdScanDevices  = "lcn/devices/scan"
	CmdAddEntity    = "lcn/entities/add"
	CmdDeleteEntity = "lcn/entities/delete"
	CmdAddDevice    = "lcn/devices/add"
	CmdDeleteDevice = "lcn/devices/delete"
)

// Caller issues one command and decodes its result.
type Caller interface {
	Call(ctx context.Context, cmdType string, params map[string]any, out any) error
}

// LCN is the typed LCN command surface.
type LCN struct {
	caller Caller
}

// NewLCN wraps a Caller, usually a *Client.
func NewLCN(caller Caller) *LCN {
	return &LCN{caller: caller}
}

func (l *LCN) Hosts(ctx context.Context) ([]lcn.Host, error) {
	var hosts []lcn.Host
	if err := l.caller.Call(ctx, CmdHosts, nil, &hosts); err != nil {
		return nil, err
	}
	return hosts, nil
}

func (l *LCN) Devices(ctx context.Context, hostID string) ([]lcn.Device, error) {
	var devices []lcn.Device
	err := l.caller.Call(ctx, CmdDevices, map[string]any{"entry_id": hostID}, &devices)
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (l *LCN) Device(ctx context.Context, hostID string, addr lcn.Address) (*lcn.Device, error) {
	var dev lcn.Device
	err := l.caller.Call(ctx, CmdDevice, map[string]any{"entry_id": hostID, "address": addr}, &dev)
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

func (l *LCN) Entities(ctx context.Context, hostID string, addr lcn.Address) ([]lcn.Entity, error) {
	var entities []lcn.Entity
	err := l.caller.Call(ctx, CmdEntities, map[string]any{"entry_id": hostID, "address": addr}, &entities)
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// ScanDevices asks the host to rescan the bus and returns the fresh device list.
func (l *LCN) ScanDevices(ctx context.Context, hostID string) ([]lcn.Device, error) {
	var devices []lcn.Device
	err := l.caller.Call(ctx, CmdScanDevices, map[string]any{"entry_id": hostID}, &devices)
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// AddEntity returns false when the host refused the entity (it already exists).
func (l *LCN) AddEntity(ctx context.Context, hostID string, addr lcn.Address, name string, domain lcn.Domain, domainData json.RawMessage) (bool, error) {
	var ok bool
	err := l.caller.Call(ctx, CmdAddEntity, map[string]any{
		"entry_id":    hostID,
		"address":     addr,
		"name":        name,
		"domain":      domain,
		"domain_data": domainData,
	}, &ok)
	return ok, err
}

func (l *LCN) DeleteEntity(ctx context.Context, hostID string, addr lcn.Address, domain lcn.Domain, resource string) error {
	return l.caller.Call(ctx, CmdDeleteEntity, map[string]any{
		"entry_id": hostID,
		"address":  addr,
		"domain":   domain,
		"resource": resource,
	}, nil)
}

// AddDevice returns false when the host refused the device (it already exists).
func (l *LCN) AddDevice(ctx context.Context, hostID string, addr lcn.Address, name string) (bool, error) {
	var ok bool
	err := l.caller.Call(ctx, CmdAddDevice, map[string]any{
		"entry_id": hostID,
		"address":  addr,
		"name":     name,
	}, &ok)
	return ok, err
}

func (l *LCN) DeleteDevice(ctx context.Context, hostID string, addr lcn.Address) error {
	return l.caller.Call(ctx, CmdDeleteDevice, map[string]any{"entry_id": hostID, "address": addr}, nil)
}
