package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lcn-go-panel/internal/form"
	"lcn-go-panel/internal/hass"
	"lcn-go-panel/internal/i18n"
	"lcn-go-panel/internal/lcn"
	"lcn-go-panel/internal/panel"
	"lcn-go-panel/internal/store"
)

// stubBackend implements panel.Backend with canned answers.
type stubBackend struct {
	hosts     []lcn.Host
	devices   []lcn.Device
	entities  []lcn.Entity
	addDevice bool
	addEntity bool
	err       error

	added []lcn.Address
}

func (s *stubBackend) Hosts(context.Context) ([]lcn.Host, error) { return s.hosts, nil }
func (s *stubBackend) Devices(context.Context, string) ([]lcn.Device, error) {
	return s.devices, s.err
}
func (s *stubBackend) Device(_ context.Context, _ string, addr lcn.Address) (*lcn.Device, error) {
	for _, d := range s.devices {
		if d.Address.Equal(addr) {
			return &d, nil
		}
	}
	return nil, &hass.CommandError{Code: "not_found", Message: "unknown device"}
}
func (s *stubBackend) Entities(context.Context, string, lcn.Address) ([]lcn.Entity, error) {
	return s.entities, s.err
}
func (s *stubBackend) ScanDevices(context.Context, string) ([]lcn.Device, error) {
	return s.devices, s.err
}
func (s *stubBackend) AddEntity(context.Context, string, lcn.Address, string, lcn.Domain, json.RawMessage) (bool, error) {
	return s.addEntity, s.err
}
func (s *stubBackend) DeleteEntity(context.Context, string, lcn.Address, lcn.Domain, string) error {
	return s.err
}
func (s *stubBackend) AddDevice(_ context.Context, _ string, addr lcn.Address, _ string) (bool, error) {
	s.added = append(s.added, addr)
	return s.addDevice, s.err
}
func (s *stubBackend) DeleteDevice(context.Context, string, lcn.Address) error { return s.err }

func newStubBackend() *stubBackend {
	return &stubBackend{
		hosts: []lcn.Host{{Name: "Home", ID: "host1", IPAddress: "192.168.1.10", Port: 4114}},
		devices: []lcn.Device{
			{Address: lcn.Module(0, 7), Name: "Kitchen", HardwareSerial: 0x1401010001, SoftwareSerial: 0x190B11, HardwareType: 11},
			{Address: lcn.Group(0, 5), Name: "All lights", HardwareSerial: -1, SoftwareSerial: -1, HardwareType: -1},
		},
		addDevice: true,
		addEntity: true,
	}
}

func setupTestServer(t *testing.T, apiKey string) (*Server, *panel.Panel, *stubBackend) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.NewBoltStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	loc, err := i18n.New("en")
	if err != nil {
		t.Fatal(err)
	}

	backend := newStubBackend()
	p := panel.New(backend, db, panel.NewEventBus(logger), logger)
	if err := p.SelectHost(context.Background(), "host1"); err != nil {
		t.Fatal(err)
	}

	var opts []ServerOption
	if apiKey != "" {
		opts = append(opts, WithAPIKey(apiKey))
	}
	srv, err := NewServer(p, loc, logger, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Stop() })

	return srv, p, backend
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestAPIListHosts(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")

	w := do(t, srv, "GET", "/api/hosts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Hosts    []lcn.Host `json:"hosts"`
		Selected string     `json:"selected"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Hosts) != 1 || resp.Selected != "host1" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAPISession(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")

	w := do(t, srv, "PUT", "/api/session", `{"host_id":"host1","sort_column":"name","sort_descending":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "GET", "/api/session", "")
	var sess store.Session
	if err := json.NewDecoder(w.Body).Decode(&sess); err != nil {
		t.Fatal(err)
	}
	if sess.SortColumn != "name" || !sess.SortDescending {
		t.Errorf("session = %+v", sess)
	}

	if w := do(t, srv, "PUT", "/api/session", `{"host_id":"ghost"}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown host: status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if w := do(t, srv, "PUT", "/api/session", `{"host_id":"host1","sort_column":"color"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad column: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAPIListDevices(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")

	w := do(t, srv, "GET", "/api/devices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var views []DeviceView
	if err := json.NewDecoder(w.Body).Decode(&views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("count = %d, want 2", len(views))
	}
	// Address order: modules before groups within a segment.
	kitchen := views[0]
	if kitchen.Token != "m000007" {
		t.Fatalf("first token = %q, want m000007", kitchen.Token)
	}
	if kitchen.HardwareSerial != "2010-01-01 #0001" {
		t.Errorf("hardware serial = %q", kitchen.HardwareSerial)
	}
	if kitchen.HardwareType != "LCN-UPP" {
		t.Errorf("hardware type = %q", kitchen.HardwareType)
	}
	if views[1].HardwareType != "-" || views[1].HardwareSerial != "-" {
		t.Errorf("group row = %+v", views[1])
	}
}

func TestAPIListDevicesNoHost(t *testing.T) {
	srv, p, _ := setupTestServer(t, "")
	if err := p.UpdateSession(context.Background(), store.Session{}); err != nil {
		t.Fatal(err)
	}

	w := do(t, srv, "GET", "/api/devices", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if !strings.Contains(w.Body.String(), "Select an LCN host first") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAPIGetDevice(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")

	w := do(t, srv, "GET", "/api/devices/m000007", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var view DeviceView
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.Name != "Kitchen" || !view.Address.Equal(lcn.Module(0, 7)) {
		t.Errorf("view = %+v", view)
	}
}

func TestAPIGetDeviceNotFound(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")

	for _, path := range []string{"/api/devices/m000042", "/api/devices/x000007", "/api/devices/m07"} {
		if w := do(t, srv, "GET", path, ""); w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want %d", path, w.Code, http.StatusNotFound)
		}
	}
}

func TestAPICreateDevice(t *testing.T) {
	srv, _, backend := setupTestServer(t, "")
	backend.devices = append(backend.devices, lcn.Device{Address: lcn.Module(5, 20), Name: "Cellar"})

	w := do(t, srv, "POST", "/api/devices", `{"segment_id":5,"address_id":20,"is_group":false,"name":"Cellar"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(backend.added) != 1 || !backend.added[0].Equal(lcn.Module(5, 20)) {
		t.Errorf("added = %v", backend.added)
	}
}

func TestAPICreateDeviceInvalid(t *testing.T) {
	srv, _, backend := setupTestServer(t, "")

	w := do(t, srv, "POST", "/api/devices", `{"segment_id":2,"address_id":300}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var resp invalidFormResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Report.Fields["segment_id"] || !resp.Report.Fields["address_id"] {
		t.Errorf("report = %+v", resp.Report)
	}
	if len(backend.added) != 0 {
		t.Error("invalid form reached the backend")
	}

	if w := do(t, srv, "POST", "/api/devices", `{not json`); w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAPICreateDeviceConflict(t *testing.T) {
	srv, _, backend := setupTestServer(t, "")
	backend.addDevice = false

	w := do(t, srv, "POST", "/api/devices", `{"segment_id":0,"address_id":7,"name":"Kitchen"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if !strings.Contains(w.Body.String(), "S000 M007") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAPIScanDevices(t *testing.T) {
	srv, p, _ := setupTestServer(t, "")
	var scanned int
	p.Events().On(panel.EventDevicesScanned, func(panel.Event) { scanned++ })

	w := do(t, srv, "POST", "/api/devices/scan", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if scanned != 1 {
		t.Errorf("scan events = %d, want 1", scanned)
	}
	cached, err := p.CachedDevices("")
	if err != nil {
		t.Fatal(err)
	}
	if len(cached) != 2 {
		t.Errorf("cached = %d, want 2", len(cached))
	}
}

func TestAPIScanBackendDown(t *testing.T) {
	srv, _, backend := setupTestServer(t, "")
	backend.err = hass.ErrClosed

	if w := do(t, srv, "POST", "/api/devices/scan", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestAPIDeleteDevice(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")

	if w := do(t, srv, "DELETE", "/api/devices/m000007", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAPIEntities(t *testing.T) {
	srv, _, backend := setupTestServer(t, "")
	backend.entities = []lcn.Entity{{
		Address:    lcn.Module(0, 7),
		Name:       "Ceiling",
		Domain:     lcn.DomainLight,
		Resource:   "output1",
		DomainData: json.RawMessage(`{"output":"OUTPUT1","dimmable":true,"transition":0}`),
	}}

	w := do(t, srv, "GET", "/api/devices/m000007/entities", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var entities []lcn.Entity
	if err := json.NewDecoder(w.Body).Decode(&entities); err != nil {
		t.Fatal(err)
	}
	if len(entities) != 1 || entities[0].Resource != "output1" {
		t.Errorf("entities = %+v", entities)
	}

	if w := do(t, srv, "DELETE", "/api/devices/m000007/entities/light/output1", ""); w.Code != http.StatusOK {
		t.Errorf("delete: status = %d, want %d", w.Code, http.StatusOK)
	}
	if w := do(t, srv, "DELETE", "/api/devices/m000007/entities/fan/x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("delete unknown domain: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAPICreateEntity(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		addEntity bool
		want      int
	}{
		{"created", `{"name":"Pump","domain":"switch","domain_data":{"output":"RELAY1"}}`, true, http.StatusCreated},
		{"conflict", `{"name":"Pump","domain":"switch","domain_data":{"output":"RELAY1"}}`, false, http.StatusConflict},
		{"blank name", `{"name":"","domain":"switch","domain_data":{"output":"RELAY1"}}`, true, http.StatusBadRequest},
		{"bad transition", `{"name":"Lamp","domain":"light","domain_data":{"output":"OUTPUT1","transition":600}}`, true, http.StatusBadRequest},
		{"unknown domain", `{"name":"Fan","domain":"fan","domain_data":{}}`, true, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, backend := setupTestServer(t, "")
			backend.addEntity = tt.addEntity

			w := do(t, srv, "POST", "/api/devices/m000007/entities", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAPIValidateEntity(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")

	w := do(t, srv, "POST", "/api/validate/entity", `{"name":"Scene","domain":"scene","domain_data":{"outputs":["RELAY1"],"transition":10}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var report form.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Invalid {
		t.Errorf("report = %+v, want valid", report)
	}
	if len(report.Disabled) != 1 || report.Disabled[0] != "transition" {
		t.Errorf("disabled = %v, want [transition]", report.Disabled)
	}
}

func TestAPIValidateDevice(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")

	w := do(t, srv, "POST", "/api/validate/device", `{"segment_id":0,"address_id":4}`)
	var report form.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if !report.Invalid || report.Fields["segment_id"] || !report.Fields["address_id"] {
		t.Errorf("report = %+v", report)
	}
}

func TestAPIOptions(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")

	w := do(t, srv, "GET", "/api/options", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Domains []string     `json:"domains"`
		Options form.Options `json:"options"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Domains) != 7 {
		t.Errorf("domains = %v", resp.Domains)
	}
	if len(resp.Options.LightOutputs) == 0 {
		t.Error("light outputs empty")
	}
}

func TestAPIExportImport(t *testing.T) {
	srv, _, backend := setupTestServer(t, "")

	w := do(t, srv, "GET", "/api/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "lcn-host1.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	exported := w.Body.String()

	w = do(t, srv, "POST", "/api/import", exported)
	if w.Code != http.StatusOK {
		t.Fatalf("import status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(backend.added) != 2 {
		t.Errorf("imported devices = %d, want 2", len(backend.added))
	}
	if !strings.Contains(w.Body.String(), "Imported 2 devices") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAPIVersion(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")

	w := do(t, srv, "GET", "/api/version", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAuthMiddlewareHeader(t *testing.T) {
	srv, _, _ := setupTestServer(t, "secret-key")

	req := httptest.NewRequest("GET", "/api/devices", nil)
	req.Header.Set("X-API-Key", "secret-key")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("correct key: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAuthMiddlewareMissing(t *testing.T) {
	srv, _, _ := setupTestServer(t, "secret-key")

	if w := do(t, srv, "GET", "/api/devices", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing key: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewareWrongKey(t *testing.T) {
	srv, _, _ := setupTestServer(t, "secret-key")

	req := httptest.NewRequest("GET", "/api/devices", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestOriginCheck(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")
	srv.allowedOrigins = []string{"http://panel.local"}

	req := httptest.NewRequest("POST", "/api/devices/scan", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign origin: status = %d, want %d", w.Code, http.StatusForbidden)
	}

	req = httptest.NewRequest("OPTIONS", "/api/devices", nil)
	req.Header.Set("Origin", "http://panel.local")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight: status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{panel.ErrInvalidForm, http.StatusBadRequest},
		{panel.ErrNoHost, http.StatusBadRequest},
		{form.ErrUnknownDomain, http.StatusBadRequest},
		{store.ErrNotFound, http.StatusNotFound},
		{lcn.ErrInvalidToken, http.StatusNotFound},
		{panel.ErrDeviceExists, http.StatusConflict},
		{panel.ErrEntityExists, http.StatusConflict},
		{panel.ErrDialogClosed, http.StatusRequestTimeout},
		{hass.ErrClosed, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPages(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")

	for _, path := range []string{"/", "/devices", "/devices/m000007"} {
		w := do(t, srv, "GET", path, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", path, w.Code, http.StatusOK)
			continue
		}
		if !strings.Contains(w.Body.String(), "LCN Panel") {
			t.Errorf("%s: layout missing", path)
		}
	}
	if w := do(t, srv, "GET", "/devices/bogus", ""); w.Code != http.StatusNotFound {
		t.Errorf("bad token page: status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
