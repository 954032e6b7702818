package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"charm.land/catwalk/pkg/catwalk"
)

// catalogue caches the catwalk provider list for the process.
type catalogue struct {
	mu        sync.Mutex
	providers []catwalk.Provider
	loaded    bool
	fetch     func(ctx context.Context) ([]catwalk.Provider, error)
}

var models = &catalogue{fetch: fetchCatwalk}

func fetchCatwalk(ctx context.Context) ([]catwalk.Provider, error) {
	providers, err := catwalk.New().GetProviders(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch providers from catwalk: %w", err)
	}
	return providers, nil
}

func (c *catalogue) get(ctx context.Context) ([]catwalk.Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.providers, nil
	}
	providers, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.providers = providers
	c.loaded = true
	return providers, nil
}

// GetProviders returns all providers known to catwalk. The first successful
// fetch is cached.
func GetProviders(ctx context.Context) ([]catwalk.Provider, error) {
	return models.get(ctx)
}

// ModelInfo is a simplified model representation for listing.
type ModelInfo struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Provider       string  `json:"provider"`
	ContextWindow  int64   `json:"context_window"`
	CostPer1MIn    float64 `json:"cost_per_1m_in"`
	CostPer1MOut   float64 `json:"cost_per_1m_out"`
	CanReason      bool    `json:"can_reason"`
	SupportsImages bool    `json:"supports_images"`
}

// ListAllModels returns every model across providers, optionally filtered to
// one provider, sorted by provider then ID.
func ListAllModels(ctx context.Context, provider string) ([]ModelInfo, error) {
	providers, err := GetProviders(ctx)
	if err != nil {
		return nil, err
	}
	var out []ModelInfo
	for _, p := range providers {
		if provider != "" && string(p.ID) != provider {
			continue
		}
		for _, m := range p.Models {
			out = append(out, ModelInfo{
				ID:             m.ID,
				Name:           m.Name,
				Provider:       string(p.ID),
				ContextWindow:  m.ContextWindow,
				CostPer1MIn:    m.CostPer1MIn,
				CostPer1MOut:   m.CostPer1MOut,
				CanReason:      m.CanReason,
				SupportsImages: m.SupportsImages,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FindModelProvider finds which provider a model belongs to. When catwalk is
// unreachable or does not list the model, the provider is inferred from the
// model name and the returned model is nil.
func FindModelProvider(ctx context.Context, modelID string) (string, *catwalk.Model, error) {
	if p, m := SplitModel(modelID); p != "" {
		return p, lookupModel(ctx, p, m), nil
	}
	if providers, err := GetProviders(ctx); err == nil {
		for _, p := range providers {
			for i, m := range p.Models {
				if m.ID == modelID {
					return string(p.ID), &p.Models[i], nil
				}
			}
		}
	}
	if inferred := InferProviderFromModel(modelID); inferred != "" {
		return inferred, nil, nil
	}
	return "", nil, fmt.Errorf("model %q not found and cannot infer provider", modelID)
}

func lookupModel(ctx context.Context, provider, modelID string) *catwalk.Model {
	providers, err := GetProviders(ctx)
	if err != nil {
		return nil
	}
	for _, p := range providers {
		if string(p.ID) != provider {
			continue
		}
		for i, m := range p.Models {
			if m.ID == modelID {
				return &p.Models[i]
			}
		}
	}
	return nil
}
