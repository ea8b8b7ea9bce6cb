package provider

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/seenimoa/creditpulse/internal/infra"
)

// BaseFetcher gives concrete fetchers caching and rate limiting.
type BaseFetcher struct {
	model       ModelType
	description string
	required    []string
	optional    []string
	cache       *infra.Cache
	limiter     *rate.Limiter
}

// NewBaseFetcher uses a 5 minute cache and 10 requests per second.
func NewBaseFetcher(model ModelType, desc string, required, optional []string) BaseFetcher {
	return NewBaseFetcherWithOpts(model, desc, required, optional, 5*time.Minute, 10, time.Second)
}

// NewBaseFetcherWithOpts sets the cache TTL and the rate limit explicitly.
func NewBaseFetcherWithOpts(model ModelType, desc string, required, optional []string, cacheTTL time.Duration, rateLimit int, rateWindow time.Duration) BaseFetcher {
	return BaseFetcher{
		model:       model,
		description: desc,
		required:    required,
		optional:    optional,
		cache:       infra.NewCache(cacheTTL),
		limiter:     infra.NewLimiter(rateLimit, rateWindow),
	}
}

func (b *BaseFetcher) ModelType() ModelType     { return b.model }
func (b *BaseFetcher) Description() string      { return b.description }
func (b *BaseFetcher) RequiredParams() []string { return b.required }
func (b *BaseFetcher) OptionalParams() []string { return b.optional }

func (b *BaseFetcher) CacheGet(key string) (any, bool) { return b.cache.Get(key) }
func (b *BaseFetcher) CacheSet(key string, value any)  { b.cache.Set(key, value) }

// RateLimit waits until a request slot is available.
func (b *BaseFetcher) RateLimit(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// CacheKey builds a deterministic key from the model and parameters.
// The provider override and "_"-prefixed internal keys are excluded.
func CacheKey(model ModelType, params QueryParams) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == ParamProvider || strings.HasPrefix(k, "_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(string(model))
	for _, k := range keys {
		sb.WriteString(":" + k + "=" + params[k])
	}
	return sb.String()
}

// BaseProvider implements the bookkeeping half of Provider.
type BaseProvider struct {
	info        ProviderInfo
	fetchers    map[ModelType]Fetcher
	credentials map[string]string
}

// NewBaseProvider creates a base provider.
func NewBaseProvider(name, description, website string, creds []ProviderCredential) BaseProvider {
	return BaseProvider{
		info: ProviderInfo{
			Name:        name,
			Description: description,
			Website:     website,
			Credentials: creds,
		},
		fetchers:    make(map[ModelType]Fetcher),
		credentials: make(map[string]string),
	}
}

func (bp *BaseProvider) Info() ProviderInfo { return bp.info }

func (bp *BaseProvider) Init(credentials map[string]string) error {
	for _, cred := range bp.info.Credentials {
		if !cred.Required {
			continue
		}
		if credentials[cred.Name] == "" {
			return &ErrInvalidCredentials{
				Provider: bp.info.Name,
				Detail:   "missing required credential: " + cred.Name,
			}
		}
	}
	bp.credentials = credentials
	return nil
}

func (bp *BaseProvider) Fetcher(model ModelType) Fetcher {
	return bp.fetchers[model]
}

// SupportedModels returns the registered model types, sorted.
func (bp *BaseProvider) SupportedModels() []ModelType {
	out := make([]ModelType, 0, len(bp.fetchers))
	for m := range bp.fetchers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (bp *BaseProvider) Ping(ctx context.Context) error { return nil }

// RegisterFetcher adds f under its model type.
func (bp *BaseProvider) RegisterFetcher(f Fetcher) {
	bp.fetchers[f.ModelType()] = f
	bp.info.Models = bp.SupportedModels()
}

// Credential returns a stored credential value.
func (bp *BaseProvider) Credential(name string) string {
	return bp.credentials[name]
}
