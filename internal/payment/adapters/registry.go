package adapters

import (
	"github.com/smallbiznis/coursepay/internal/payment/domain"
)

type Registry struct {
	adapters map[domain.SourceKind]domain.Adapter
}

func NewRegistry(adapters ...domain.Adapter) *Registry {
	registry := &Registry{adapters: map[domain.SourceKind]domain.Adapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		kind := adapter.Kind()
		if !kind.Valid() {
			continue
		}
		registry.adapters[kind] = adapter
	}
	return registry
}

func (r *Registry) SourceExists(kind domain.SourceKind) bool {
	if r == nil {
		return false
	}
	_, ok := r.adapters[kind]
	return ok
}

func (r *Registry) Adapter(kind domain.SourceKind) (domain.Adapter, error) {
	if r == nil {
		return nil, domain.ErrSourceNotFound
	}
	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, domain.ErrSourceNotFound
	}
	return adapter, nil
}

// Normalize dispatches a raw payload to the adapter registered for kind.
func (r *Registry) Normalize(raw []byte, kind domain.SourceKind) (domain.PaymentRecord, error) {
	adapter, err := r.Adapter(kind)
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	return adapter.Normalize(raw)
}
