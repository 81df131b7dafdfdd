package integrations

import (
	"context"
	"sync"

	"github.com/apihub/hub/pkg/docstore"
	"github.com/apihub/hub/pkg/errbus"
	"github.com/apihub/hub/pkg/gateway"
	"github.com/apihub/hub/pkg/watch"
)

// Manager keeps a live view of the credential records and mutates them
// optimistically: Toggle and SetKey flip the local row before the store
// confirms the write and roll it back when the write is rejected. Confirmed
// pushes from the collection watch always win over local state.
type Manager struct {
	gw     *gateway.Gateway
	handle *watch.CollectionHandle[Integration]

	mu   sync.Mutex
	rows []Integration
}

// NewManager opens the collection watch and starts mirroring pushes into the
// local row set.
func NewManager(st docstore.Store, bus *errbus.Bus, gw *gateway.Gateway) *Manager {
	m := &Manager{gw: gw}
	m.handle = watch.Collection(st, bus, Collection, docstore.Constraint{
		OrderBy: &docstore.OrderBy{Field: "name", Direction: docstore.Asc},
	}, watch.DecodeFunc[Integration](Decode))
	m.handle.OnUpdate(func(s watch.Snapshot[[]Integration]) {
		if s.Err != nil {
			return
		}
		m.mu.Lock()
		m.rows = s.Value
		m.mu.Unlock()
	})
	return m
}

// Rows returns a copy of the current row set.
func (m *Manager) Rows() []Integration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Integration, len(m.rows))
	copy(out, m.rows)
	return out
}

// Snapshot exposes the underlying watch snapshot, including loading and
// failure state.
func (m *Manager) Snapshot() watch.Snapshot[[]Integration] { return m.handle.Snapshot() }

// Toggle flips an integration on or off. The flip is visible in Rows before
// the write round-trip completes; on rejection the row is restored and the
// failed Result carries the message to surface.
func (m *Manager) Toggle(ctx context.Context, id string) gateway.Result {
	return m.mutate(ctx, id, func(it *Integration) map[string]any {
		it.Active = !it.Active
		return map[string]any{"active": it.Active}
	})
}

// SetKey stores a new API key for an integration, optimistically.
func (m *Manager) SetKey(ctx context.Context, id, key string) gateway.Result {
	return m.mutate(ctx, id, func(it *Integration) map[string]any {
		it.Key = key
		return map[string]any{"key": key}
	})
}

// SetStoreURL stores the storefront URL for an integration, optimistically.
func (m *Manager) SetStoreURL(ctx context.Context, id, url string) gateway.Result {
	return m.mutate(ctx, id, func(it *Integration) map[string]any {
		it.StoreURL = url
		return map[string]any{"storeUrl": url}
	})
}

// mutate applies change to the local copy of row id, issues the merge write,
// and resolves the optimistic patch from the result. The manager lock is not
// held across the write so confirmed pushes can land meanwhile; a push that
// lands during the write supersedes the patch and disarms the rollback.
func (m *Manager) mutate(ctx context.Context, id string, change func(*Integration) map[string]any) gateway.Result {
	m.mu.Lock()
	idx := -1
	for i := range m.rows {
		if m.rows[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return gateway.Result{OK: false, Message: "unknown integration: " + id}
	}
	next := make([]Integration, len(m.rows))
	copy(next, m.rows)
	partial := change(&next[idx])
	patch := gateway.Apply(&m.rows, next)
	m.mu.Unlock()

	res := m.gw.Update(ctx, docstore.DocPath(Collection, id), partial, gateway.Options{Merge: true})
	m.mu.Lock()
	switch {
	case res.OK:
		patch.Commit()
	case m.holds(next):
		patch.Rollback()
	default:
		// A confirmed push replaced the optimistic rows while the write was
		// in flight. A failed write produces no further push, so rolling back
		// would clobber confirmed state; the push wins.
		patch.Commit()
	}
	m.mu.Unlock()
	return res
}

// holds reports whether rows is still the exact slice installed in m.rows.
// Caller holds m.mu.
func (m *Manager) holds(rows []Integration) bool {
	if len(m.rows) != len(rows) {
		return false
	}
	return len(rows) == 0 || &m.rows[0] == &rows[0]
}

// Close tears the collection watch down.
func (m *Manager) Close() { m.handle.Close() }
