// Package provider defines the macro data source abstraction: a Provider
// owns Fetchers, one per ModelType, and a Registry routes requests to the
// default (or explicitly named) provider.
package provider

import (
	"context"
	"fmt"
	"time"
)

// ProviderCredential describes a credential a provider needs.
type ProviderCredential struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	EnvVar      string `json:"env_var"`
}

// ProviderInfo holds metadata about a registered provider.
type ProviderInfo struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Website     string               `json:"website"`
	Credentials []ProviderCredential `json:"credentials"`
	Models      []ModelType          `json:"models"`
}

// Provider is a macro data source.
type Provider interface {
	Info() ProviderInfo

	// Init validates and stores credentials. Called once before use.
	Init(credentials map[string]string) error

	// Fetcher returns the fetcher for model, or nil if unsupported.
	Fetcher(model ModelType) Fetcher

	SupportedModels() []ModelType

	Ping(ctx context.Context) error
}

// QueryParams is the generic parameter map passed to fetchers.
type QueryParams map[string]string

// Common query parameter keys.
const (
	ParamSeries    = "series"
	ParamStartDate = "start_date"
	ParamEndDate   = "end_date"
	ParamLimit     = "limit"
	ParamQuery     = "query"
	ParamRating    = "rating"
	ParamProvider  = "provider"
)

// FetchResult wraps fetched data with metadata.
type FetchResult struct {
	Provider  string    `json:"provider"`
	Model     ModelType `json:"model"`
	Data      any       `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
	Cached    bool      `json:"cached"`
}

// Fetcher retrieves one model type.
type Fetcher interface {
	ModelType() ModelType
	Description() string
	RequiredParams() []string
	OptionalParams() []string

	// Fetch returns data typed per model:
	//   - MacroSeries, CreditSpreadIndex → []models.MacroObservation
	//   - SeriesSearch                   → []models.SeriesInfo
	//   - YieldCurve                     → []models.CurvePoint
	Fetch(ctx context.Context, params QueryParams) (*FetchResult, error)
}

// ErrProviderNotFound is returned when a provider is not registered.
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return fmt.Sprintf("provider %q not found", e.Name)
}

// ErrModelNotSupported is returned when a provider lacks a model type.
type ErrModelNotSupported struct {
	Provider string
	Model    ModelType
}

func (e *ErrModelNotSupported) Error() string {
	return fmt.Sprintf("provider %q does not support model %q", e.Provider, e.Model)
}

// ErrMissingParam is returned when a required parameter is missing.
type ErrMissingParam struct {
	Param string
}

func (e *ErrMissingParam) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Param)
}

// ErrInvalidCredentials is returned when credentials are missing or rejected.
type ErrInvalidCredentials struct {
	Provider string
	Detail   string
}

func (e *ErrInvalidCredentials) Error() string {
	return fmt.Sprintf("invalid credentials for provider %q: %s", e.Provider, e.Detail)
}

// ValidateParams checks that every required key is present and non-empty.
func ValidateParams(params QueryParams, required []string) error {
	for _, key := range required {
		if v, ok := params[key]; !ok || v == "" {
			return &ErrMissingParam{Param: key}
		}
	}
	return nil
}
