package web

import (
	"bytes"
	"crypto/subtle"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"lcn-go-panel/internal/form"
	"lcn-go-panel/internal/i18n"
	"lcn-go-panel/internal/lcn"
	"lcn-go-panel/internal/panel"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithAPIKey enables API key authentication.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithAllowedOrigins sets allowed WebSocket origin patterns.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithVersion sets the application version string shown in the UI.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// Server is the HTTP server for the admin panel.
type Server struct {
	panel          *panel.Panel
	loc            *i18n.Localizer
	templates      map[string]*template.Template
	wsHub          *wsHub
	logger         *slog.Logger
	mux            *http.ServeMux
	apiKey         string
	allowedOrigins []string
	version        string
}

// DeviceView is a device row as rendered by the pages and the JSON API.
type DeviceView struct {
	Address        lcn.Address `json:"address"`
	Token          string      `json:"token"`
	Name           string      `json:"name"`
	Segment        int         `json:"segment"`
	ID             int         `json:"id"`
	IsGroup        bool        `json:"is_group"`
	HardwareSerial string      `json:"hardware_serial"`
	SoftwareSerial string      `json:"software_serial"`
	HardwareType   string      `json:"hardware_type"`
}

func newDeviceView(d lcn.Device) DeviceView {
	return DeviceView{
		Address:        d.Address,
		Token:          d.Address.Token(),
		Name:           d.DisplayName(),
		Segment:        d.Address.Segment,
		ID:             d.Address.ID,
		IsGroup:        d.Address.IsGroup,
		HardwareSerial: lcn.FormatSerial(d.HardwareSerial),
		SoftwareSerial: lcn.FormatSerial(d.SoftwareSerial),
		HardwareType:   lcn.HardwareTypeLabel(d.HardwareType),
	}
}

// NewServer creates a new web server.
func NewServer(p *panel.Panel, loc *i18n.Localizer, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	logger = logger.With("component", "web")
	funcs := template.FuncMap{
		"t":      loc.T,
		"serial": lcn.FormatSerial,
		"hwtype": lcn.HardwareTypeLabel,
		"domain": func(d lcn.Domain) string { return loc.T("domain." + string(d)) },
		"kind": func(a lcn.Address) string {
			if a.IsGroup {
				return loc.T("kind.group")
			}
			return loc.T("kind.module")
		},
	}

	// Parse each page template separately with layout to avoid {{define "content"}} conflicts.
	base, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	pages := []string{"index.html", "devices.html", "device.html"}
	tmpl := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		cloned, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", page, err)
		}
		t, err := cloned.ParseFS(templateFS, "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		tmpl[page] = t
	}

	s := &Server{
		panel:     p,
		loc:       loc,
		templates: tmpl,
		logger:    logger,
		mux:       http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.wsHub = newWSHub(logger)

	s.routes()
	return s, nil
}

// Stop closes the open event streams. New streams are refused afterwards.
func (s *Server) Stop() {
	s.wsHub.closeAll()
}

func (s *Server) routes() {
	// Static files
	s.mux.Handle("GET /static/", http.FileServer(http.FS(staticFS)))

	// HTML pages
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /devices", s.handleDevicesPage)
	s.mux.HandleFunc("GET /devices/{token}", s.handleDevicePage)

	// REST API
	s.mux.HandleFunc("GET /api/hosts", s.handleAPIListHosts)
	s.mux.HandleFunc("GET /api/session", s.handleAPIGetSession)
	s.mux.HandleFunc("PUT /api/session", s.handleAPIUpdateSession)
	s.mux.HandleFunc("GET /api/devices", s.handleAPIListDevices)
	s.mux.HandleFunc("POST /api/devices", s.handleAPICreateDevice)
	s.mux.HandleFunc("POST /api/devices/scan", s.handleAPIScanDevices)
	s.mux.HandleFunc("GET /api/devices/{token}", s.handleAPIGetDevice)
	s.mux.HandleFunc("DELETE /api/devices/{token}", s.handleAPIDeleteDevice)
	s.mux.HandleFunc("GET /api/devices/{token}/entities", s.handleAPIListEntities)
	s.mux.HandleFunc("POST /api/devices/{token}/entities", s.handleAPICreateEntity)
	s.mux.HandleFunc("DELETE /api/devices/{token}/entities/{domain}/{resource}", s.handleAPIDeleteEntity)
	s.mux.HandleFunc("POST /api/validate/device", s.handleAPIValidateDevice)
	s.mux.HandleFunc("POST /api/validate/entity", s.handleAPIValidateEntity)
	s.mux.HandleFunc("GET /api/options", s.handleAPIOptions)
	s.mux.HandleFunc("GET /api/export", s.handleAPIExport)
	s.mux.HandleFunc("POST /api/import", s.handleAPIImport)
	s.mux.HandleFunc("GET /api/version", s.handleAPIVersion)

	// WebSocket
	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// ServeHTTP implements http.Handler, applying auth and CORS middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS: check Origin on mutating requests to prevent CSRF.
	if len(s.allowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if r.Method == http.MethodOptions {
				// Preflight request.
				if s.isOriginAllowed(origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "3600")
					w.WriteHeader(http.StatusNoContent)
					return
				}
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			if r.Method != http.MethodGet {
				if !s.isOriginAllowed(origin) {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}
	}

	if s.apiKey != "" {
		// Pages, static files and the WebSocket stay open: browsers cannot
		// send custom headers on navigation or WS upgrade.
		if strings.HasPrefix(r.URL.Path, "/api/") {
			key := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
				s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": s.loc.T("errors.unauthorized")})
				return
			}
		}
	}
	s.mux.ServeHTTP(w, r)
}

// isOriginAllowed checks if the origin matches any allowed origin pattern.
func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Page handlers
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	hosts, err := s.panel.Hosts(r.Context())
	if err != nil {
		s.logger.Error("list hosts for index", "err", err)
		http.Error(w, s.loc.T("errors.internal"), statusFor(err))
		return
	}

	s.renderTemplate(w, "index.html", map[string]any{
		"PageTitle": s.loc.T("hosts.title"),
		"Hosts":     hosts,
		"Selected":  s.panel.Session().HostID,
	})
}

func (s *Server) handleDevicesPage(w http.ResponseWriter, r *http.Request) {
	devices, err := s.panel.Devices(r.Context())
	if errors.Is(err, panel.ErrNoHost) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err != nil {
		s.logger.Error("devices page: list devices failed", "err", err)
		http.Error(w, s.loc.T("errors.internal"), statusFor(err))
		return
	}

	sess := s.panel.Session()
	var views []DeviceView
	for _, d := range panel.ApplyView(devices, sess) {
		views = append(views, newDeviceView(d))
	}
	var columns []string
	for _, c := range panel.Columns() {
		if !sess.IsHidden(c) {
			columns = append(columns, c)
		}
	}

	s.logger.Debug("devices page", "count", len(views))

	s.renderTemplate(w, "devices.html", map[string]any{
		"PageTitle": s.loc.T("devices.title"),
		"Devices":   views,
		"Columns":   columns,
		"Session":   sess,
	})
}

func (s *Server) handleDevicePage(w http.ResponseWriter, r *http.Request) {
	addr, err := lcn.ParseToken(r.PathValue("token"))
	if err != nil {
		http.Error(w, s.loc.T("errors.not_found"), http.StatusNotFound)
		return
	}
	dev, err := s.panel.Device(r.Context(), addr)
	if errors.Is(err, panel.ErrNoHost) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err != nil {
		if status := statusFor(err); status != http.StatusNotFound {
			s.logger.Error("device page", "address", addr, "err", err)
		}
		http.Error(w, s.loc.T("errors.not_found"), statusFor(err))
		return
	}
	entities, err := s.panel.Entities(r.Context(), addr)
	if err != nil {
		s.logger.Error("device page: list entities failed", "address", addr, "err", err)
		http.Error(w, s.loc.T("errors.internal"), statusFor(err))
		return
	}

	s.renderTemplate(w, "device.html", map[string]any{
		"PageTitle": s.loc.T("entities.title", dev.DisplayName()),
		"Device":    newDeviceView(*dev),
		"Entities":  entities,
		"Domains":   lcn.Domains(),
		"Options":   form.AllOptions(),
	})
}

func (s *Server) handleAPIVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// renderTemplate renders to a buffer first, so partial write failures don't corrupt the response.
func (s *Server) renderTemplate(w http.ResponseWriter, name string, data map[string]any) {
	t, ok := s.templates[name]
	if !ok {
		s.logger.Error("template not found", "name", name)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	data["Version"] = s.version
	data["Lang"] = s.loc.Language()
	if s.apiKey != "" {
		data["APIKey"] = s.apiKey
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("render template", "name", name, "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug("write template response", "name", name, "err", err)
	}
}
