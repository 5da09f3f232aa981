//go:build !no_mqtt

package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"lcn-go-panel/internal/lcn"
	"lcn-go-panel/internal/panel"
)

const (
	defaultClientID = "lcn-go-panel"
	scanTimeout     = 2 * time.Minute
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Inventory is the part of the panel the bridge mirrors.
type Inventory interface {
	Events() *panel.EventBus
	HostID() (string, error)
	CachedDevices(hostID string) ([]*lcn.Device, error)
	ScanDevices(ctx context.Context, hostID string) ([]lcn.Device, error)
}

// Bridge mirrors panel events to MQTT and accepts scan requests.
type Bridge struct {
	client pahomqtt.Client
	inv    Inventory
	prefix string
	logger *slog.Logger
	unsub  func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Guards stopped and the scan WaitGroup so no scan starts once Stop waits.
	scanMu  sync.Mutex
	stopped bool

	// Retained snapshot topics per host, so a rescan can clear vanished devices.
	mu        sync.Mutex
	published map[string]map[string]struct{}
}

func newBridge(inv Inventory, prefix string, logger *slog.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		inv:       inv,
		prefix:    prefix,
		logger:    logger.With("component", "mqtt"),
		ctx:       ctx,
		cancel:    cancel,
		published: make(map[string]map[string]struct{}),
	}
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(inv Inventory, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := newBridge(inv, cfg.TopicPrefix, logger)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = defaultClientID
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(bridgeStateTopic(cfg.TopicPrefix), "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.onConnect()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	b.client = pahomqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		b.cancel()
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		b.cancel()
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

// Start subscribes to panel events and begins MQTT publishing.
func (b *Bridge) Start() {
	b.unsub = b.inv.Events().OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, waits for running scans, and disconnects.
func (b *Bridge) Stop() {
	b.scanMu.Lock()
	b.stopped = true
	b.cancel()
	b.scanMu.Unlock()
	if b.unsub != nil {
		b.unsub()
	}
	b.wg.Wait()
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) onConnect() {
	b.logger.Info("MQTT connected")
	b.publishBridgeState("online")
	if hostID, err := b.inv.HostID(); err == nil {
		b.publishCachedDevices(hostID)
	}
	b.subscribeCommands()
}

func (b *Bridge) handleEvent(event panel.Event) {
	b.publish(eventTopic(b.prefix, event.Type), mustJSON(event), false)

	switch event.Type {
	case panel.EventDeviceAdded:
		if dev, ok := event.Data.(*lcn.Device); ok && dev != nil {
			b.publishDevice(event.Host, dev)
		}
	case panel.EventDeviceDeleted:
		if addr, ok := event.Data.(lcn.Address); ok {
			b.clearDevice(event.Host, addr.Token())
		}
	case panel.EventDevicesScanned:
		if devices, ok := event.Data.([]lcn.Device); ok {
			b.syncDevices(event.Host, devices)
		}
	case panel.EventHostSelected, panel.EventInventoryImported:
		b.publishCachedDevices(event.Host)
	}
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(bridgeStateTopic(b.prefix), []byte(state), true)
}

func (b *Bridge) publishCachedDevices(hostID string) {
	if hostID == "" {
		return
	}
	cached, err := b.inv.CachedDevices(hostID)
	if err != nil {
		b.logger.Error("list cached devices", "host", hostID, "err", err)
		return
	}
	devices := make([]lcn.Device, 0, len(cached))
	for _, dev := range cached {
		devices = append(devices, *dev)
	}
	b.syncDevices(hostID, devices)
}

// syncDevices publishes a snapshot per device and clears the retained
// snapshots of devices the host no longer reports.
func (b *Bridge) syncDevices(hostID string, devices []lcn.Device) {
	keep := make(map[string]struct{}, len(devices))
	for i := range devices {
		keep[devices[i].Address.Token()] = struct{}{}
		b.publishDevice(hostID, &devices[i])
	}

	var stale []string
	b.mu.Lock()
	for token := range b.published[hostID] {
		if _, ok := keep[token]; !ok {
			stale = append(stale, token)
		}
	}
	b.mu.Unlock()

	for _, token := range stale {
		b.clearDevice(hostID, token)
	}
	b.logger.Debug("device snapshots synced", "host", hostID, "devices", len(devices), "cleared", len(stale))
}

func (b *Bridge) publishDevice(hostID string, dev *lcn.Device) {
	token := dev.Address.Token()
	b.mu.Lock()
	if b.published[hostID] == nil {
		b.published[hostID] = make(map[string]struct{})
	}
	b.published[hostID][token] = struct{}{}
	b.mu.Unlock()

	b.publish(deviceTopic(b.prefix, hostID, token), devicePayload(dev), true)
}

// clearDevice removes a retained snapshot with an empty retained message.
func (b *Bridge) clearDevice(hostID, token string) {
	b.mu.Lock()
	delete(b.published[hostID], token)
	b.mu.Unlock()

	b.publish(deviceTopic(b.prefix, hostID, token), []byte{}, true)
}

func (b *Bridge) subscribeCommands() {
	topic := scanTopic(b.prefix)
	token := b.client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.startScan(msg.Payload())
	})
	b.await(token, topic)
}

// startScan runs handleScan in the background; scans take seconds and the
// paho router must not block. Requests after Stop are dropped.
func (b *Bridge) startScan(payload []byte) bool {
	b.scanMu.Lock()
	defer b.scanMu.Unlock()
	if b.stopped {
		b.logger.Debug("scan request after stop dropped")
		return false
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handleScan(payload)
	}()
	return true
}

// handleScan rescans the host named in payload, or the selected host when
// the payload is empty. The resulting event republishes the snapshots.
func (b *Bridge) handleScan(payload []byte) {
	hostID := strings.TrimSpace(string(payload))
	ctx, cancel := context.WithTimeout(b.ctx, scanTimeout)
	defer cancel()

	devices, err := b.inv.ScanDevices(ctx, hostID)
	switch {
	case errors.Is(err, panel.ErrNoHost):
		b.logger.Warn("scan request without host and none selected")
	case err != nil:
		b.logger.Warn("scan request failed", "host", hostID, "err", err)
	default:
		b.logger.Info("scan request done", "host", hostID, "devices", len(devices))
	}
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	b.await(b.client.Publish(topic, 1, retained, payload), topic)
}

func (b *Bridge) await(token pahomqtt.Token, topic string) {
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
