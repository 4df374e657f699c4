// Package registry talks to the core service's plugin registry, the
// system of record for plugin metadata. The gateway's route table is a
// local cache of it, refreshed at startup and on every mutating
// administrative call.
package registry

import "github.com/porter-gw/porter/internal/policy"

// Plugin is the registry wire representation of a registered plugin.
type Plugin struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Webhook     Webhook `json:"webhook"`
}

// Webhook is the webhook section of a plugin record.
type Webhook struct {
	URL       string   `json:"url"`
	Secret    string   `json:"secret,omitempty"`
	AuthType  string   `json:"auth-type,omitempty"`
	AllowedIP []string `json:"allowed-ip,omitempty"`
}

// Compile turns a registry record into an immutable gateway policy,
// rejecting malformed records with policy.ErrMalformed.
func (p Plugin) Compile() (*policy.Policy, error) {
	return policy.Compile(p.Name, p.Description, p.Webhook.URL,
		p.Webhook.AuthType, p.Webhook.Secret, p.Webhook.AllowedIP)
}

// UpdateRequest is the registry wire format for a partial plugin update.
// NewName, when set, renames the plugin.
type UpdateRequest struct {
	PluginName  string  `json:"plugin_name"`
	NewName     string  `json:"new_name,omitempty"`
	Description string  `json:"description,omitempty"`
	Webhook     Webhook `json:"webhook"`
}

// listResponse is the registry's GET envelope.
type listResponse struct {
	Result  string   `json:"result"`
	Error   string   `json:"error,omitempty"`
	Plugins []Plugin `json:"plugins"`
}

// mutateResponse is the registry's envelope for mutating calls.
type mutateResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}
