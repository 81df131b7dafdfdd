package docstore

import (
	"context"

	"github.com/apihub/hub/pkg/errbus"
	"github.com/apihub/hub/pkg/errmodel"
)

// Rules decides whether an operation on a path is allowed, the way the
// store's access-control rules would. Payload is nil for reads.
type Rules interface {
	Allow(op errbus.Op, path Path, payload map[string]any) bool
}

// RuleFunc adapts a function to Rules.
type RuleFunc func(op errbus.Op, path Path, payload map[string]any) bool

func (f RuleFunc) Allow(op errbus.Op, path Path, payload map[string]any) bool {
	return f(op, path, payload)
}

// AllowAll permits every operation.
var AllowAll Rules = RuleFunc(func(errbus.Op, Path, map[string]any) bool { return true })

// Guarded wraps a Store with access rules. Rejected operations return a
// permission_denied policy error carrying path, operation, and the attempted
// payload; not-found results pass through untouched.
type Guarded struct {
	inner Store
	rules Rules
}

// Guard wraps st. A nil rules behaves like AllowAll.
func Guard(st Store, rules Rules) *Guarded {
	if rules == nil {
		rules = AllowAll
	}
	return &Guarded{inner: st, rules: rules}
}

func (g *Guarded) deny(op errbus.Op, path Path, payload map[string]any) error {
	return errmodel.PermissionDenied(path.String(), string(op), payload)
}

func (g *Guarded) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	p := DocPath(collection, id)
	if !g.rules.Allow(errbus.OpGet, p, nil) {
		return Document{}, false, g.deny(errbus.OpGet, p, nil)
	}
	return g.inner.Get(ctx, collection, id)
}

func (g *Guarded) List(ctx context.Context, collection string, c Constraint) ([]Document, error) {
	p := Path{Collection: collection}
	if !g.rules.Allow(errbus.OpList, p, nil) {
		return nil, g.deny(errbus.OpList, p, nil)
	}
	return g.inner.List(ctx, collection, c)
}

func (g *Guarded) Create(ctx context.Context, collection string, data map[string]any) (Document, error) {
	p := Path{Collection: collection}
	if !g.rules.Allow(errbus.OpCreate, p, data) {
		return Document{}, g.deny(errbus.OpCreate, p, data)
	}
	return g.inner.Create(ctx, collection, data)
}

func (g *Guarded) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) (Document, error) {
	p := DocPath(collection, id)
	if !g.rules.Allow(errbus.OpUpdate, p, data) {
		return Document{}, g.deny(errbus.OpUpdate, p, data)
	}
	return g.inner.Set(ctx, collection, id, data, merge)
}

func (g *Guarded) Delete(ctx context.Context, collection, id string) error {
	p := DocPath(collection, id)
	if !g.rules.Allow(errbus.OpDelete, p, nil) {
		return g.deny(errbus.OpDelete, p, nil)
	}
	return g.inner.Delete(ctx, collection, id)
}

func (g *Guarded) Feed() Feed { return g.inner.Feed() }
