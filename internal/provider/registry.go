package provider

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"
)

// Registry is a thread-safe set of providers indexed by model type.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	modelIdx  map[ModelType][]string // model → provider names, registration order
	defaults  map[ModelType]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		modelIdx:  make(map[ModelType][]string),
		defaults:  make(map[ModelType]string),
	}
}

// Register adds p. The first provider registered for a model becomes its
// default. Re-registering a name replaces the provider.
func (r *Registry) Register(p Provider) error {
	info := p.Info()
	if info.Name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[info.Name] = p
	for _, model := range p.SupportedModels() {
		if !slices.Contains(r.modelIdx[model], info.Name) {
			r.modelIdx[model] = append(r.modelIdx[model], info.Name)
		}
		if _, ok := r.defaults[model]; !ok {
			r.defaults[model] = info.Name
		}
	}
	return nil
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return p, nil
}

// List returns info about every provider, sorted by name.
func (r *Registry) List() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.providers))
	for _, p := range r.providers {
		infos = append(infos, p.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ProvidersFor returns the providers serving model, default first.
func (r *Registry) ProvidersFor(model ModelType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.modelIdx[model])
}

// DefaultProvider returns the default provider name for model.
func (r *Registry) DefaultProvider(model ModelType) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.defaults[model]
	return name, ok
}

// SetDefault makes providerName the default for model.
func (r *Registry) SetDefault(model ModelType, providerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[providerName]
	if !ok {
		return &ErrProviderNotFound{Name: providerName}
	}
	if p.Fetcher(model) == nil {
		return &ErrModelNotSupported{Provider: providerName, Model: model}
	}
	r.defaults[model] = providerName
	return nil
}

// Fetch routes to params[ParamProvider], or to the model's default.
func (r *Registry) Fetch(ctx context.Context, model ModelType, params QueryParams) (*FetchResult, error) {
	providerName := params[ParamProvider]

	r.mu.RLock()
	if providerName == "" {
		providerName = r.defaults[model]
	}
	p, ok := r.providers[providerName]
	r.mu.RUnlock()

	if !ok || providerName == "" {
		return nil, &ErrProviderNotFound{Name: providerName}
	}

	fetcher := p.Fetcher(model)
	if fetcher == nil {
		return nil, &ErrModelNotSupported{Provider: providerName, Model: model}
	}
	if err := ValidateParams(params, fetcher.RequiredParams()); err != nil {
		return nil, err
	}

	result, err := fetcher.Fetch(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("provider %q fetch %s: %w", providerName, model, err)
	}
	result.Provider = providerName
	result.Model = model
	if result.FetchedAt.IsZero() {
		result.FetchedAt = time.Now()
	}
	return result, nil
}

// FetchWithFallback tries the preferred provider, then every other provider
// of model in registration order. When all fail the returned error joins
// each provider's failure. A missing parameter fails fast.
func (r *Registry) FetchWithFallback(ctx context.Context, model ModelType, params QueryParams) (*FetchResult, error) {
	result, err := r.Fetch(ctx, model, params)
	if err == nil {
		return result, nil
	}
	var missing *ErrMissingParam
	if errors.As(err, &missing) {
		return nil, err
	}

	tried := params[ParamProvider]
	if tried == "" {
		tried, _ = r.DefaultProvider(model)
	}
	errs := []error{err}
	for _, name := range r.ProvidersFor(model) {
		if name == tried {
			continue
		}
		alt := maps.Clone(params)
		if alt == nil {
			alt = QueryParams{}
		}
		alt[ParamProvider] = name
		res, ferr := r.Fetch(ctx, model, alt)
		if ferr == nil {
			return res, nil
		}
		errs = append(errs, ferr)
	}
	if len(errs) == 1 {
		return nil, err
	}
	return nil, fmt.Errorf("all %d providers failed for %s: %w", len(errs), model, errors.Join(errs...))
}
