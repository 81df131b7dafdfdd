package integrations

import (
	"context"
	"encoding/json"

	"github.com/apihub/hub/pkg/docstore"
	"github.com/apihub/hub/pkg/errmodel"
)

// Collection is the document collection holding one credential record per
// integration, keyed by the module id.
const Collection = "integrations"

// Integration is a credential record. Key carries the API key or token;
// StoreURL is only meaningful for storefront integrations such as Shopify.
type Integration struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Key      string `json:"key,omitempty"`
	StoreURL string `json:"storeUrl,omitempty"`
	Active   bool   `json:"active"`
}

// Decode converts a stored document into an Integration.
func Decode(d docstore.Document) (Integration, error) {
	m := docstore.CloneData(d.Data)
	if m == nil {
		m = map[string]any{}
	}
	m["id"] = d.ID
	b, err := json.Marshal(m)
	if err != nil {
		return Integration{}, err
	}
	var it Integration
	if err := json.Unmarshal(b, &it); err != nil {
		return Integration{}, err
	}
	return it, nil
}

// Service reads credential records for the hub's outbound clients. Every
// collaborator that calls an external API resolves its credential here first.
type Service struct {
	st docstore.Store
}

func NewService(st docstore.Store) *Service { return &Service{st: st} }

// Get returns the record for id, reporting absence without error.
func (s *Service) Get(ctx context.Context, id string) (Integration, bool, error) {
	doc, ok, err := s.st.Get(ctx, Collection, id)
	if err != nil || !ok {
		return Integration{}, ok, err
	}
	it, err := Decode(doc)
	if err != nil {
		return Integration{}, false, err
	}
	return it, true, nil
}

// List returns all records ordered by name.
func (s *Service) List(ctx context.Context) ([]Integration, error) {
	docs, err := s.st.List(ctx, Collection, docstore.Constraint{
		OrderBy: &docstore.OrderBy{Field: "name", Direction: docstore.Asc},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Integration, 0, len(docs))
	for _, d := range docs {
		it, derr := Decode(d)
		if derr != nil {
			return nil, derr
		}
		out = append(out, it)
	}
	return out, nil
}

// Credential resolves the usable credential for an integration. A record
// that is missing, switched off, or saved without a key yields a
// not_configured error; callers surface it instead of attempting the
// outbound call.
func (s *Service) Credential(ctx context.Context, id string) (Integration, error) {
	it, ok, err := s.Get(ctx, id)
	if err != nil {
		return Integration{}, err
	}
	if !ok || !it.Active || it.Key == "" {
		return Integration{}, errmodel.NotConfigured(id)
	}
	return it, nil
}

// Seed writes a credential record for every catalog module that has none
// yet, active per the catalog default and with an empty key. Existing
// records are left untouched.
func Seed(ctx context.Context, st docstore.Store) error {
	for _, m := range Catalog() {
		_, ok, err := st.Get(ctx, Collection, m.ID)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		data := map[string]any{"name": m.Name, "active": m.DefaultActive, "key": ""}
		if _, err := st.Set(ctx, Collection, m.ID, data, false); err != nil {
			return err
		}
	}
	return nil
}
