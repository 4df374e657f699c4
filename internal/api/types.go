package api

import (
	"github.com/porter-gw/porter/internal/alerts"
	"github.com/porter-gw/porter/internal/registry"
)

// MaskedSecret is what the API returns in place of a stored secret. A
// PATCH that sends it back leaves the stored secret unchanged.
const MaskedSecret = "********"

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// PluginListResponse is the GET /api/plugins envelope. Secrets are
// always masked.
type PluginListResponse struct {
	Result  string            `json:"result"`
	Plugins []registry.Plugin `json:"plugins"`
}

// PluginResponse confirms a plugin mutation.
type PluginResponse struct {
	Result string `json:"result"`
	Name   string `json:"name"`
}

// AlertRequest is the POST /api/webhook body plugins send.
type AlertRequest struct {
	Source    string `json:"source"`
	Group     string `json:"group"`
	Category  string `json:"category"`
	Alert     string `json:"alert"`
	Severity  string `json:"severity"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// AlertListResponse is the GET /api/alerts envelope.
type AlertListResponse struct {
	Result   string         `json:"result"`
	Alerts   []alerts.Alert `json:"alerts"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// ResultResponse is the bare success envelope.
type ResultResponse struct {
	Result string `json:"result"`
}

// HealthzResponse reports process health for GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	PluginsLoaded int    `json:"plugins_loaded"`
	RecentAlerts  int    `json:"recent_alerts"`
}
