package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/porter-gw/porter/internal/policy"
	"github.com/porter-gw/porter/internal/webhook"
)

// Syncer keeps the gateway route table consistent with the registry.
// The administrative API compiles and validates a policy before the
// registry confirms a change, so applying a confirmed change locally
// cannot fail.
type Syncer struct {
	client *Client
	table  *webhook.RouteTable
	logger *slog.Logger
}

// NewSyncer wires a registry client to a route table.
func NewSyncer(client *Client, table *webhook.RouteTable, logger *slog.Logger) *Syncer {
	return &Syncer{client: client, table: table, logger: logger}
}

// Load performs the startup bulk load: the full registry contents
// replace the route table in one swap. A malformed registry record
// fails the load; a gateway routing on a half-understood registry is
// worse than one that refuses to start.
func (s *Syncer) Load(ctx context.Context) error {
	plugins, err := s.client.List(ctx)
	if err != nil {
		return err
	}

	policies := make([]*policy.Policy, 0, len(plugins))
	for _, p := range plugins {
		pol, err := p.Compile()
		if err != nil {
			return fmt.Errorf("registry entry %q: %w", p.Name, err)
		}
		policies = append(policies, pol)
	}

	s.table.ReplaceAll(policies)
	s.logger.Info("route table loaded from registry", "plugins", len(policies))
	return nil
}

// Apply upserts a compiled policy into the route table. Called after the
// registry has confirmed the corresponding add or update.
func (s *Syncer) Apply(pol *policy.Policy) {
	s.table.Upsert(pol)
	s.logger.Info("route table updated", "plugin", pol.Name)
}

// Rename atomically routes the new name before the old name disappears,
// so no window exists where neither route works.
func (s *Syncer) Rename(oldName string, pol *policy.Policy) {
	s.table.Upsert(pol)
	if oldName != pol.Name {
		s.table.Remove(oldName)
	}
	s.logger.Info("route table updated", "plugin", pol.Name, "renamed_from", oldName)
}

// Remove deletes a plugin's route. In-flight webhooks past lookup
// complete with the policy they captured.
func (s *Syncer) Remove(name string) {
	s.table.Remove(name)
	s.logger.Info("route table entry removed", "plugin", name)
}
