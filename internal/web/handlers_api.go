package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"lcn-go-panel/internal/form"
	"lcn-go-panel/internal/hass"
	"lcn-go-panel/internal/lcn"
	"lcn-go-panel/internal/panel"
	"lcn-go-panel/internal/store"
)

// statusFor maps panel, store and transport errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, panel.ErrInvalidForm),
		errors.Is(err, panel.ErrNoHost),
		errors.Is(err, form.ErrUnknownDomain):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, lcn.ErrInvalidToken):
		return http.StatusNotFound
	case errors.Is(err, panel.ErrDeviceExists),
		errors.Is(err, panel.ErrEntityExists):
		return http.StatusConflict
	case errors.Is(err, panel.ErrDialogClosed):
		return http.StatusRequestTimeout
	case errors.Is(err, hass.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": msg} with a localized message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	var msg string
	switch {
	case errors.Is(err, panel.ErrNoHost):
		msg = s.loc.T("errors.no_host")
	case status == http.StatusBadRequest:
		msg = s.loc.T("errors.bad_request")
	case status == http.StatusNotFound:
		msg = s.loc.T("errors.not_found")
	case status == http.StatusServiceUnavailable:
		msg = s.loc.T("errors.unavailable")
	case status == http.StatusRequestTimeout:
		s.logger.Debug("request abandoned", "err", err)
		msg = s.loc.T("errors.internal")
	default:
		s.logger.Error("api request failed", "err", err)
		msg = s.loc.T("errors.internal")
	}
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}

// decodeBody reads a JSON request body of at most 1 MB.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": s.loc.T("errors.bad_request")})
		return false
	}
	return true
}

// pathAddress parses the {token} route parameter, answering 404 when malformed.
func (s *Server) pathAddress(w http.ResponseWriter, r *http.Request) (lcn.Address, bool) {
	addr, err := lcn.ParseToken(r.PathValue("token"))
	if err != nil {
		s.writeError(w, err)
		return lcn.Address{}, false
	}
	return addr, true
}

func (s *Server) handleAPIListHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := s.panel.Hosts(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if hosts == nil {
		hosts = []lcn.Host{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"hosts":    hosts,
		"selected": s.panel.Session().HostID,
	})
}

func (s *Server) handleAPIGetSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.panel.Session())
}

func (s *Server) handleAPIUpdateSession(w http.ResponseWriter, r *http.Request) {
	var sess store.Session
	if !s.decodeBody(w, r, &sess) {
		return
	}
	if err := s.panel.UpdateSession(r.Context(), sess); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.panel.Session())
}

func (s *Server) handleAPIListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.panel.Devices(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]DeviceView, 0, len(devices))
	for _, d := range panel.ApplyView(devices, s.panel.Session()) {
		views = append(views, newDeviceView(d))
	}
	s.writeJSON(w, http.StatusOK, views)
}

// invalidFormResponse carries the per-field report next to the message.
type invalidFormResponse struct {
	Error  string      `json:"error"`
	Report form.Report `json:"report"`
}

func (s *Server) handleAPICreateDevice(w http.ResponseWriter, r *http.Request) {
	var f form.DeviceForm
	if !s.decodeBody(w, r, &f) {
		return
	}
	if f.Invalid() {
		s.writeJSON(w, http.StatusBadRequest, invalidFormResponse{Error: s.loc.T("devices.invalid"), Report: f.Report()})
		return
	}

	dlg := panel.NewDialog(r.Context())
	defer dlg.Close()
	dev, err := s.panel.CreateDevice(dlg, f)
	if errors.Is(err, panel.ErrDeviceExists) {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": s.loc.T("devices.exists", f.Address())})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newDeviceView(*dev))
}

func (s *Server) handleAPIScanDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.panel.ScanDevices(r.Context(), "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, newDeviceView(d))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAPIGetDevice(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	dev, err := s.panel.Device(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newDeviceView(*dev))
}

func (s *Server) handleAPIDeleteDevice(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	if err := s.panel.DeleteDevice(r.Context(), addr); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIListEntities(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	entities, err := s.panel.Entities(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entities == nil {
		entities = []lcn.Entity{}
	}
	s.writeJSON(w, http.StatusOK, entities)
}

// entityRequest is the body of the create-entity and validate-entity calls.
type entityRequest struct {
	Name       string          `json:"name"`
	Domain     lcn.Domain      `json:"domain"`
	DomainData json.RawMessage `json:"domain_data"`
}

func (req entityRequest) form() (form.EntityForm, error) {
	data, err := form.DecodeDomainData(req.Domain, req.DomainData)
	if err != nil {
		return form.EntityForm{}, err
	}
	return form.EntityForm{Name: req.Name, Data: data}, nil
}

func (s *Server) handleAPICreateEntity(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	var req entityRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	f, err := req.form()
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": s.loc.T("errors.bad_request")})
		return
	}
	if f.Invalid() {
		s.writeJSON(w, http.StatusBadRequest, invalidFormResponse{Error: s.loc.T("entities.invalid"), Report: f.Report()})
		return
	}

	dlg := panel.NewDialog(r.Context())
	defer dlg.Close()
	ent, err := s.panel.CreateEntity(dlg, addr, f)
	if errors.Is(err, panel.ErrEntityExists) {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": s.loc.T("entities.exists", addr)})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ent)
}

func (s *Server) handleAPIDeleteEntity(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	domain := lcn.Domain(r.PathValue("domain"))
	if _, err := form.DefaultDomainData(domain); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.panel.DeleteEntity(r.Context(), addr, domain, r.PathValue("resource")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIValidateDevice(w http.ResponseWriter, r *http.Request) {
	var f form.DeviceForm
	if !s.decodeBody(w, r, &f) {
		return
	}
	s.writeJSON(w, http.StatusOK, f.Report())
}

func (s *Server) handleAPIValidateEntity(w http.ResponseWriter, r *http.Request) {
	var req entityRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	f, err := req.form()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, f.Report())
}

func (s *Server) handleAPIOptions(w http.ResponseWriter, r *http.Request) {
	defaults := make(map[lcn.Domain]form.DomainData, len(lcn.Domains()))
	for _, d := range lcn.Domains() {
		data, err := form.DefaultDomainData(d)
		if err != nil {
			s.writeError(w, err)
			return
		}
		defaults[d] = data
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"domains":  lcn.Domains(),
		"defaults": defaults,
		"options":  form.AllOptions(),
		"columns":  panel.Columns(),
		"limits": map[string]any{
			"segment_id":     map[string]int{"min": form.MinSegmentID, "max": form.MaxSegmentID},
			"address_id":     map[string]int{"min": form.MinAddressID, "max": form.MaxAddressID},
			"max_transition": form.MaxTransition,
		},
	})
}

func (s *Server) handleAPIExport(w http.ResponseWriter, r *http.Request) {
	inv, err := s.panel.Export(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="lcn-`+inv.Host+`.json"`)
	s.writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleAPIImport(w http.ResponseWriter, r *http.Request) {
	var inv panel.Inventory
	r.Body = http.MaxBytesReader(w, r.Body, 8<<20)
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": s.loc.T("errors.bad_request")})
		return
	}
	res, err := s.panel.Import(r.Context(), &inv)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"result":  res,
		"message": s.loc.T("transfer.imported", res.Devices, res.Entities),
	})
}
