package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/porter-gw/porter/internal/alerts"
	"github.com/porter-gw/porter/internal/events"
	"github.com/porter-gw/porter/internal/registry"
)

const defaultPageSize = 200

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	recent, err := s.alerts.Count(r.Context(), alerts.Filter{})
	if err != nil {
		s.logger.Error("alert count failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to query alerts")
		return
	}

	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		PluginsLoaded: s.table.Len(),
		RecentAlerts:  recent,
	})
}

// handleTest handles GET /api/test, the liveness probe the console polls.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleListPlugins handles GET /api/plugins. Stored secrets never
// leave the server; they are replaced with a fixed mask.
func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	plugins, err := s.registry.List(r.Context())
	if err != nil {
		s.logger.Error("registry list failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "plugin registry unavailable")
		return
	}

	for i := range plugins {
		if plugins[i].Webhook.Secret != "" {
			plugins[i].Webhook.Secret = MaskedSecret
		}
	}
	respondJSON(w, http.StatusOK, PluginListResponse{Result: "success", Plugins: plugins})
}

// handleRegisterPlugin handles POST /api/plugins. The policy is
// compiled before the registry is told, so a confirmed registration
// can always be applied to the route table.
func (s *Server) handleRegisterPlugin(w http.ResponseWriter, r *http.Request) {
	var req registry.Plugin
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	pol, err := req.Compile()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.table.Lookup(pol.Name); err == nil {
		s.writeError(w, http.StatusConflict, "plugin already registered")
		return
	}

	if err := s.registry.Register(r.Context(), req); err != nil {
		s.logger.Error("registry register failed", "plugin", pol.Name, "error", err)
		s.writeError(w, http.StatusBadGateway, "plugin registry unavailable")
		return
	}

	s.syncer.Apply(pol)
	s.events.Publish(events.KindPluginChanged, map[string]string{"plugin": pol.Name, "change": "registered"})
	respondJSON(w, http.StatusCreated, PluginResponse{Result: "success", Name: pol.Name})
}

// handleUpdatePlugin handles PATCH /api/plugins: a partial update, with
// an optional rename via new_name. Sending the secret mask back leaves
// the stored secret alone.
func (s *Server) handleUpdatePlugin(w http.ResponseWriter, r *http.Request) {
	var req registry.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PluginName == "" {
		s.writeError(w, http.StatusBadRequest, "plugin_name is required")
		return
	}

	current, err := s.findPlugin(r, req.PluginName)
	if err != nil {
		if errors.Is(err, errPluginNotFound) {
			s.writeError(w, http.StatusNotFound, "not found")
		} else {
			s.logger.Error("registry list failed", "error", err)
			s.writeError(w, http.StatusBadGateway, "plugin registry unavailable")
		}
		return
	}

	merged := mergeUpdate(current, req)
	pol, err := merged.Compile()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The registry stores what it is told. A request echoing the display
	// mask back must carry the real stored secret, or the system of
	// record ends up holding the mask literal.
	if req.Webhook.Secret == MaskedSecret {
		req.Webhook.Secret = merged.Webhook.Secret
	}

	if err := s.registry.Update(r.Context(), req); err != nil {
		s.logger.Error("registry update failed", "plugin", req.PluginName, "error", err)
		s.writeError(w, http.StatusBadGateway, "plugin registry unavailable")
		return
	}

	s.syncer.Rename(req.PluginName, pol)
	s.events.Publish(events.KindPluginChanged, map[string]string{"plugin": pol.Name, "change": "updated"})
	respondJSON(w, http.StatusOK, PluginResponse{Result: "success", Name: pol.Name})
}

// handleDeletePlugin handles DELETE /api/plugins with body {"name": ...}.
func (s *Server) handleDeletePlugin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if _, err := s.table.Lookup(req.Name); err != nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err := s.registry.Delete(r.Context(), req.Name); err != nil {
		s.logger.Error("registry delete failed", "plugin", req.Name, "error", err)
		s.writeError(w, http.StatusBadGateway, "plugin registry unavailable")
		return
	}

	s.syncer.Remove(req.Name)
	s.events.Publish(events.KindPluginChanged, map[string]string{"plugin": req.Name, "change": "removed"})
	respondJSON(w, http.StatusOK, PluginResponse{Result: "success", Name: req.Name})
}

// handleAlertIngest handles POST /api/webhook: plugins reporting
// operational alerts for the console.
func (s *Server) handleAlertIngest(w http.ResponseWriter, r *http.Request) {
	var req AlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Source == "" || req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "source and message are required")
		return
	}

	a := alerts.Alert{
		Timestamp: parseAlertTime(req.Timestamp),
		Source:    req.Source,
		Group:     req.Group,
		Category:  req.Category,
		Alert:     req.Alert,
		Severity:  req.Severity,
		Message:   req.Message,
	}
	if err := s.alerts.Log(r.Context(), a); err != nil {
		s.logger.Error("alert write failed", "source", req.Source, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to store alert")
		return
	}
	if err := s.alerts.Purge(r.Context()); err != nil {
		s.logger.Warn("alert purge failed", "error", err)
	}

	s.events.Publish(events.KindAlert, a)
	respondJSON(w, http.StatusOK, ResultResponse{Result: "success"})
}

// handleListAlerts handles GET /api/alerts with filter and pagination
// query parameters.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := alerts.Filter{
		Search:   q.Get("search"),
		Source:   q.Get("source"),
		Group:    q.Get("group"),
		Category: q.Get("category"),
		Alert:    q.Get("alert"),
		Severity: q.Get("severity"),
	}

	page := parsePositive(q.Get("page"), 1)
	pageSize := parsePositive(q.Get("page_size"), defaultPageSize)

	total, err := s.alerts.Count(r.Context(), f)
	if err != nil {
		s.logger.Error("alert count failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to query alerts")
		return
	}
	list, err := s.alerts.Recent(r.Context(), f, (page-1)*pageSize, pageSize)
	if err != nil {
		s.logger.Error("alert query failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to query alerts")
		return
	}
	if list == nil {
		list = []alerts.Alert{}
	}

	respondJSON(w, http.StatusOK, AlertListResponse{
		Result:   "success",
		Alerts:   list,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

var errPluginNotFound = errors.New("plugin not found")

func (s *Server) findPlugin(r *http.Request, name string) (registry.Plugin, error) {
	plugins, err := s.registry.List(r.Context())
	if err != nil {
		return registry.Plugin{}, err
	}
	for _, p := range plugins {
		if p.Name == name {
			return p, nil
		}
	}
	return registry.Plugin{}, errPluginNotFound
}

// mergeUpdate overlays a partial update on the current record. Omitted
// fields keep their stored values; an explicit empty allowed-ip list
// clears the source filter.
func mergeUpdate(current registry.Plugin, req registry.UpdateRequest) registry.Plugin {
	merged := current
	if req.NewName != "" {
		merged.Name = req.NewName
	}
	if req.Description != "" {
		merged.Description = req.Description
	}
	if req.Webhook.URL != "" {
		merged.Webhook.URL = req.Webhook.URL
	}
	if req.Webhook.AuthType != "" {
		merged.Webhook.AuthType = req.Webhook.AuthType
	}
	if req.Webhook.Secret != "" && req.Webhook.Secret != MaskedSecret {
		merged.Webhook.Secret = req.Webhook.Secret
	}
	if req.Webhook.AllowedIP != nil {
		merged.Webhook.AllowedIP = req.Webhook.AllowedIP
	}
	return merged
}

func parseAlertTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parsePositive(v string, fallback int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
