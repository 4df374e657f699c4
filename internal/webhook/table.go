package webhook

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/porter-gw/porter/internal/policy"
)

// ErrUnknownPlugin signals a lookup for a name with no registered policy.
// Callers map it to a uniform not-found response; the error text never
// reaches webhook senders.
var ErrUnknownPlugin = errors.New("unknown plugin")

// RouteTable is the concurrency-safe directory of plugin name to webhook
// policy. Readers load an immutable snapshot without taking a lock, so a
// slow forward for one plugin can never stall lookups for another.
// Writers serialize on a mutex, copy the map, and swap the snapshot.
type RouteTable struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[map[string]*policy.Policy]
}

// NewRouteTable returns an empty route table.
func NewRouteTable() *RouteTable {
	t := &RouteTable{}
	empty := make(map[string]*policy.Policy)
	t.snapshot.Store(&empty)
	return t
}

// Lookup returns the policy registered under name, or ErrUnknownPlugin.
// The returned policy is an immutable snapshot: a concurrent upsert or
// remove does not affect a request already past this point.
func (t *RouteTable) Lookup(name string) (*policy.Policy, error) {
	m := *t.snapshot.Load()
	p, ok := m[name]
	if !ok {
		return nil, ErrUnknownPlugin
	}
	return p, nil
}

// Upsert registers p, atomically replacing any existing entry with the
// same name.
func (t *RouteTable) Upsert(p *policy.Policy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := t.copyLocked()
	next[p.Name] = p
	t.snapshot.Store(&next)
}

// Remove deletes the entry for name and reports whether it existed.
func (t *RouteTable) Remove(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := *t.snapshot.Load()
	if _, ok := cur[name]; !ok {
		return false
	}
	next := t.copyLocked()
	delete(next, name)
	t.snapshot.Store(&next)
	return true
}

// ReplaceAll swaps the entire table for the given policies in one step.
// Used by the registration sync's initial bulk load.
func (t *RouteTable) ReplaceAll(policies []*policy.Policy) {
	next := make(map[string]*policy.Policy, len(policies))
	for _, p := range policies {
		next[p.Name] = p
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.Store(&next)
}

// Names returns the registered plugin names, sorted.
func (t *RouteTable) Names() []string {
	m := *t.snapshot.Load()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered policies.
func (t *RouteTable) Len() int {
	return len(*t.snapshot.Load())
}

// copyLocked clones the current snapshot. Callers must hold mu.
func (t *RouteTable) copyLocked() map[string]*policy.Policy {
	cur := *t.snapshot.Load()
	next := make(map[string]*policy.Policy, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	return next
}
