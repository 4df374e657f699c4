// Package webhook implements the public webhook gateway: a per-plugin
// ingress that authenticates third-party webhook traffic and proxies
// validated payloads to each plugin's internal destination.
//
// # Request Flow
//
//  1. HTTP POST arrives at /plugin/<name>
//  2. Route table lookup (reject 404 for unknown names)
//  3. Source address checked against the plugin's CIDR allowlist (403)
//  4. Body read under the configured size cap (413)
//  5. Credential check per the plugin's auth type (401)
//  6. Single forward attempt to the plugin's destination, response
//     relayed verbatim, or 502 on transport failure
//
// # Security Model
//
//   - All credential comparisons are constant-time (crypto/subtle)
//   - Rejections are uniform: callers cannot distinguish which check
//     failed beyond the status class, and no response ever names the
//     internal destination
//   - Secrets and payloads are never logged
//
// # Concurrency
//
// The route table is the only shared mutable state. Lookups read an
// atomically swapped snapshot and never block on writers; registration
// changes replace the snapshot wholesale, so a request that has passed
// lookup completes against the policy it captured.
package webhook
