package llm

import (
	"context"
	"errors"
	"testing"

	"charm.land/catwalk/pkg/catwalk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withCatalogue(t *testing.T, fetch func(context.Context) ([]catwalk.Provider, error)) *int {
	t.Helper()
	old := models
	calls := 0
	models = &catalogue{fetch: func(ctx context.Context) ([]catwalk.Provider, error) {
		calls++
		return fetch(ctx)
	}}
	t.Cleanup(func() { models = old })
	return &calls
}

func testProviders() []catwalk.Provider {
	return []catwalk.Provider{
		{ID: "openai", Models: []catwalk.Model{{ID: "gpt-4o-mini", Name: "GPT-4o mini", ContextWindow: 128000}, {ID: "gpt-4o", Name: "GPT-4o"}}},
		{ID: "anthropic", Models: []catwalk.Model{{ID: "claude-3-5-haiku", Name: "Claude Haiku", CanReason: true}}},
	}
}

func TestListAllModels(t *testing.T) {
	calls := withCatalogue(t, func(context.Context) ([]catwalk.Provider, error) { return testProviders(), nil })

	all, err := ListAllModels(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "anthropic", all[0].Provider)
	assert.Equal(t, "gpt-4o", all[1].ID)

	openaiOnly, err := ListAllModels(context.Background(), "openai")
	require.NoError(t, err)
	assert.Len(t, openaiOnly, 2)
	assert.Equal(t, 1, *calls, "catalogue is fetched once")
}

func TestListAllModels_FetchError(t *testing.T) {
	withCatalogue(t, func(context.Context) ([]catwalk.Provider, error) { return nil, errors.New("offline") })
	_, err := ListAllModels(context.Background(), "")
	assert.ErrorContains(t, err, "offline")
}

func TestFindModelProvider(t *testing.T) {
	withCatalogue(t, func(context.Context) ([]catwalk.Provider, error) { return testProviders(), nil })

	p, m, err := FindModelProvider(context.Background(), "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "openai", p)
	require.NotNil(t, m)
	assert.EqualValues(t, 128000, m.ContextWindow)

	p, m, err = FindModelProvider(context.Background(), "anthropic/claude-3-5-haiku")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p)
	require.NotNil(t, m)
	assert.True(t, m.CanReason)
}

func TestFindModelProvider_OfflineFallsBackToInference(t *testing.T) {
	withCatalogue(t, func(context.Context) ([]catwalk.Provider, error) { return nil, errors.New("offline") })

	p, m, err := FindModelProvider(context.Background(), "claude-3-5-sonnet")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p)
	assert.Nil(t, m)

	_, _, err = FindModelProvider(context.Background(), "totally-unknown-model-xyz")
	assert.Error(t, err)
}
